package suggest

import (
	"strings"
	"sync"
)

// accumulatorPool recycles Accumulator instances to reduce GC pressure
// during streaming.
var accumulatorPool = sync.Pool{
	New: func() any {
		return &Accumulator{}
	},
}

// AcquireAccumulator retrieves an Accumulator from the pool, reset and
// ready for use.
func AcquireAccumulator() *Accumulator {
	a := accumulatorPool.Get().(*Accumulator)
	a.Reset()
	return a
}

// ReleaseAccumulator returns an Accumulator to the pool. The accumulator
// must not be used after this call.
func ReleaseAccumulator(a *Accumulator) {
	if a == nil {
		return
	}
	a.Reset()
	accumulatorPool.Put(a)
}

// Accumulator accumulates streamed text chunks into the complete response.
type Accumulator struct {
	content strings.Builder
	chunks  int
}

// NewAccumulator creates a new accumulator for a streamed response.
func NewAccumulator() *Accumulator {
	return AcquireAccumulator()
}

// Add appends a chunk.
func (a *Accumulator) Add(chunk string) {
	if chunk == "" {
		return
	}
	a.content.WriteString(chunk)
	a.chunks++
}

// Content returns the text accumulated so far.
func (a *Accumulator) Content() string {
	return a.content.String()
}

// Len returns the accumulated byte length.
func (a *Accumulator) Len() int {
	return a.content.Len()
}

// Chunks returns how many non-empty chunks arrived.
func (a *Accumulator) Chunks() int {
	return a.chunks
}

// Reset clears the accumulator for reuse.
func (a *Accumulator) Reset() {
	a.content.Reset()
	a.chunks = 0
}
