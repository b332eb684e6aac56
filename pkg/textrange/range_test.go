package textrange

import (
	"reflect"
	"testing"
)

const doc = "The quick brown fox jumps over the lazy dog"

func TestNew_CapturesText(t *testing.T) {
	r := New(doc, 4, 9)
	if r.Text != "quick" {
		t.Errorf("Text = %q, want %q", r.Text, "quick")
	}
	if r.Len() != 5 {
		t.Errorf("Len = %d, want 5", r.Len())
	}
}

func TestMerge_Duplicate(t *testing.T) {
	existing := []Range{New(doc, 4, 9)}
	got := Merge(doc, existing, New(doc, 4, 9))

	if len(got) != 1 || got[0] != existing[0] {
		t.Errorf("duplicate insert should leave set unchanged, got %+v", got)
	}
}

func TestMerge_DisjointSorted(t *testing.T) {
	var set []Range
	set = Merge(doc, set, New(doc, 16, 19)) // "fox"
	set = Merge(doc, set, New(doc, 4, 9))   // "quick"

	if len(set) != 2 {
		t.Fatalf("got %d ranges, want 2", len(set))
	}
	if set[0].Start != 4 || set[1].Start != 16 {
		t.Errorf("ranges not sorted by start: %+v", set)
	}
}

func TestMerge_OverlapCollapses(t *testing.T) {
	set := []Range{New(doc, 4, 9)} // "quick"
	set = Merge(doc, set, New(doc, 7, 15))

	if len(set) != 1 {
		t.Fatalf("got %d ranges, want 1", len(set))
	}
	if set[0].Start != 4 || set[0].End != 15 {
		t.Errorf("merged bounds = [%d,%d), want [4,15)", set[0].Start, set[0].End)
	}
	if set[0].Text != doc[4:15] {
		t.Errorf("merged text = %q, want %q", set[0].Text, doc[4:15])
	}
}

func TestMerge_TouchingCollapses(t *testing.T) {
	set := []Range{New(doc, 4, 9)}
	set = Merge(doc, set, New(doc, 9, 15)) // start == prev.End

	if len(set) != 1 {
		t.Fatalf("touching ranges should merge, got %+v", set)
	}
	if set[0].Text != doc[4:15] {
		t.Errorf("merged text = %q, want %q", set[0].Text, doc[4:15])
	}
}

func TestMerge_ContainedRange(t *testing.T) {
	set := []Range{New(doc, 4, 19)}
	set = Merge(doc, set, New(doc, 10, 15))

	if len(set) != 1 || set[0].Start != 4 || set[0].End != 19 {
		t.Errorf("contained range should vanish into the outer one, got %+v", set)
	}
}

func TestMerge_Idempotent(t *testing.T) {
	incoming := New(doc, 7, 15)
	once := Merge(doc, []Range{New(doc, 4, 9), New(doc, 20, 25)}, incoming)
	twice := Merge(doc, once, incoming)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("merge not idempotent:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestMerge_OutputAlwaysDisjointSorted(t *testing.T) {
	spans := [][2]int{{10, 20}, {0, 5}, {18, 30}, {4, 11}, {35, 40}, {2, 3}}

	var set []Range
	for _, s := range spans {
		set = Merge(doc, set, New(doc, s[0], s[1]))

		for i := 1; i < len(set); i++ {
			if set[i].Start < set[i-1].Start {
				t.Fatalf("unsorted after inserting %v: %+v", s, set)
			}
			if set[i].Start <= set[i-1].End {
				t.Fatalf("overlap after inserting %v: %+v", s, set)
			}
		}
	}
}

func TestFilterStale_Bounds(t *testing.T) {
	short := "abc"
	ranges := []Range{
		{Start: 0, End: 2, Text: "ab"},
		{Start: 3, End: 5, Text: "xx"},  // start past end of doc
		{Start: 1, End: 10, Text: "yy"}, // end past end of doc
		{Start: 2, End: 2, Text: ""},    // empty span
	}

	kept := FilterStale(ranges, short)
	if len(kept) != 1 || kept[0].Text != "ab" {
		t.Errorf("kept = %+v, want only the in-bounds range", kept)
	}
}

func TestFilterStale_TextMismatch(t *testing.T) {
	r := New(doc, 4, 9) // "quick"
	mutated := "The slack brown fox jumps over the lazy dog"

	kept := FilterStale([]Range{r}, mutated)
	if len(kept) != 0 {
		t.Errorf("stale range survived mutation: %+v", kept)
	}

	kept = FilterStale([]Range{r}, doc)
	if len(kept) != 1 {
		t.Errorf("fresh range dropped: %+v", kept)
	}
}

func TestFilterStale_Idempotent(t *testing.T) {
	ranges := []Range{New(doc, 4, 9), {Start: 100, End: 200, Text: "gone"}}

	once := FilterStale(ranges, doc)
	twice := FilterStale(once, doc)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("filter not idempotent:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestJoinText_AscendingOrder(t *testing.T) {
	ranges := []Range{New(doc, 16, 19), New(doc, 4, 9)} // "fox", "quick" out of order

	got := JoinText(ranges, " | ")
	if got != "quick | fox" {
		t.Errorf("JoinText = %q, want %q", got, "quick | fox")
	}
}
