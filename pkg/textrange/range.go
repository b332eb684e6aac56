// Package textrange implements offset ranges into a mutable document:
// capture, merging, staleness filtering, annotation, and splicing.
//
// Offsets are byte offsets. A Range caches the text it covered at capture
// time; after any document mutation the cache may no longer match, and
// every consumer revalidates with FilterStale before trusting a range.
package textrange

import (
	"sort"
	"strings"
)

// ProvenanceVerbatim tags a range whose captured text occurs verbatim in the
// document it was captured from.
const ProvenanceVerbatim = "verbatim"

// Range is an offset span into a document plus the text it covered when it
// was captured. End is exclusive.
type Range struct {
	Start      int    `json:"start"`
	End        int    `json:"end"`
	Text       string `json:"text"`
	Provenance string `json:"provenance,omitempty"`
}

// New captures a range over doc. Callers must pass offsets that are in
// bounds with start <= end.
func New(doc string, start, end int) Range {
	return Range{Start: start, End: end, Text: doc[start:end]}
}

// Len returns the captured span length.
func (r Range) Len() int {
	return r.End - r.Start
}

// Merge inserts incoming into a sorted, non-overlapping range set and
// returns a sorted, non-overlapping result. An incoming range with the same
// bounds as an existing one leaves the set unchanged. Overlapping or
// touching ranges collapse into one, with text recomputed over the merged
// bounds from doc.
func Merge(doc string, existing []Range, incoming Range) []Range {
	for _, r := range existing {
		if r.Start == incoming.Start && r.End == incoming.End {
			return existing
		}
	}

	all := make([]Range, 0, len(existing)+1)
	all = append(all, existing...)
	all = append(all, incoming)

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Start < all[j].Start
	})

	merged := make([]Range, 0, len(all))
	for _, r := range all {
		if len(merged) == 0 {
			merged = append(merged, r)
			continue
		}
		prev := &merged[len(merged)-1]
		if r.Start > prev.End {
			merged = append(merged, r)
			continue
		}
		if r.End > prev.End {
			prev.End = r.End
		}
		if prev.End <= len(doc) {
			prev.Text = doc[prev.Start:prev.End]
		}
		// Merging never widens provenance: a combined span is no longer a
		// verbatim capture of a single selection.
		prev.Provenance = ""
	}

	return merged
}

// FilterStale drops ranges whose offsets fall outside doc or whose captured
// text no longer matches the document at those offsets. Idempotent.
func FilterStale(ranges []Range, doc string) []Range {
	kept := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		if r.Start >= len(doc) || r.End > len(doc) || r.Start >= r.End {
			continue
		}
		if doc[r.Start:r.End] != r.Text {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

// JoinText concatenates the captured text of each range, ascending by
// start, separated by delim.
func JoinText(ranges []Range, delim string) string {
	sorted := make([]Range, len(ranges))
	copy(sorted, ranges)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	parts := make([]string, 0, len(sorted))
	for _, r := range sorted {
		parts = append(parts, r.Text)
	}
	return strings.Join(parts, delim)
}
