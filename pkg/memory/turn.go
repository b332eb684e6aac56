// Package memory keeps the per-repository editing memory: a bounded log of
// prompt/response turns and the accumulated user preference record.
package memory

import (
	cryptorand "crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// MaxTurns bounds the edit memory log; the oldest turn is evicted first.
const MaxTurns = 20

var turnEntropy = ulid.Monotonic(cryptorand.Reader, 0)

// Turn is one submitted prompt and its response. Immutable once created.
type Turn struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	Prompt           string    `json:"prompt"`
	Response         string    `json:"response"`
	PageID           string    `json:"pageId"`
	DocumentSnapshot string    `json:"documentSnapshot,omitempty"`
}

// NewTurn creates a turn stamped with a ULID and the current time.
func NewTurn(prompt, response, pageID, snapshot string) Turn {
	return Turn{
		ID:               ulid.MustNew(ulid.Timestamp(time.Now()), turnEntropy).String(),
		Timestamp:        time.Now().UTC(),
		Prompt:           prompt,
		Response:         response,
		PageID:           pageID,
		DocumentSnapshot: snapshot,
	}
}

// Log is an append-only, capacity-bounded turn log.
type Log struct {
	turns []Turn
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{}
}

// NewLogFromTurns builds a log from persisted turns, enforcing the bound.
func NewLogFromTurns(turns []Turn) *Log {
	l := &Log{turns: append([]Turn(nil), turns...)}
	l.truncate()
	return l
}

// Append pushes a turn, evicting the oldest beyond capacity.
func (l *Log) Append(turn Turn) {
	l.turns = append(l.turns, turn)
	l.truncate()
}

func (l *Log) truncate() {
	if len(l.turns) > MaxTurns {
		l.turns = append([]Turn(nil), l.turns[len(l.turns)-MaxTurns:]...)
	}
}

// Turns returns all turns, oldest first.
func (l *Log) Turns() []Turn {
	return l.turns
}

// Recent returns the n most recent turns, oldest first.
func (l *Log) Recent(n int) []Turn {
	if n <= 0 || len(l.turns) == 0 {
		return nil
	}
	if n > len(l.turns) {
		n = len(l.turns)
	}
	return l.turns[len(l.turns)-n:]
}

// Len returns the number of stored turns.
func (l *Log) Len() int {
	return len(l.turns)
}

// Clear empties the log.
func (l *Log) Clear() {
	l.turns = nil
}
