package textrange

import (
	"sort"
	"strings"
)

// Markers wrapped around each highlighted span by Annotate.
const (
	MarkOpen  = "<mark>"
	MarkClose = "</mark>"
)

// Annotate returns a copy of doc with every surviving range's span wrapped
// in highlight markers, plus the validated subset of ranges. Callers must
// replace their stored range set with the returned subset so dropped stale
// ranges do not linger.
func Annotate(doc string, ranges []Range) (string, []Range) {
	kept := FilterStale(ranges, doc)
	if len(kept) == 0 {
		return doc, kept
	}

	sorted := make([]Range, len(kept))
	copy(sorted, kept)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	var sb strings.Builder
	sb.Grow(len(doc) + len(sorted)*(len(MarkOpen)+len(MarkClose)))

	pos := 0
	for _, r := range sorted {
		sb.WriteString(doc[pos:r.Start])
		sb.WriteString(MarkOpen)
		sb.WriteString(doc[r.Start:r.End])
		sb.WriteString(MarkClose)
		pos = r.End
	}
	sb.WriteString(doc[pos:])

	return sb.String(), kept
}
