package textrange

import (
	"fmt"
	"strings"
)

const codeFence = "```"

// Splice replaces each range's span in doc with the paired replacement.
// Ranges must be offsets into doc as it stood when they were captured;
// they are applied ascending by start with a running length delta so later
// splice points account for earlier replacements. A replacement holding an
// odd number of code fence markers gets a closing fence appended so the
// assembled document never carries an unterminated fenced block.
func Splice(doc string, ranges []Range, replacements []string) (string, error) {
	if len(ranges) != len(replacements) {
		return "", fmt.Errorf("splice: %d ranges but %d replacements", len(ranges), len(replacements))
	}

	sorted := make([]Range, len(ranges))
	copy(sorted, ranges)
	reps := make([]string, len(replacements))
	copy(reps, replacements)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Start < sorted[j-1].Start; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
			reps[j], reps[j-1] = reps[j-1], reps[j]
		}
	}

	for i, r := range sorted {
		if r.Start < 0 || r.End > len(doc) || r.Start > r.End {
			return "", fmt.Errorf("splice: range %d [%d,%d) out of bounds for document of %d bytes", i, r.Start, r.End, len(doc))
		}
		if i > 0 && r.Start < sorted[i-1].End {
			return "", fmt.Errorf("splice: range %d overlaps previous range", i)
		}
	}

	result := doc
	offset := 0
	for i, r := range sorted {
		rep := BalanceFences(reps[i])
		start := r.Start + offset
		end := r.End + offset
		result = result[:start] + rep + result[end:]
		offset += len(rep) - r.Len()
	}

	return result, nil
}

// BalanceFences appends a closing code fence when text contains an odd
// number of fence markers. Even counts (including zero) pass through
// unchanged.
func BalanceFences(text string) string {
	if strings.Count(text, codeFence)%2 == 1 {
		return text + "\n" + codeFence
	}
	return text
}
