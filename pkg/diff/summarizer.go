// Package diff summarizes pending revisions for logging and display.
package diff

import (
	"github.com/pmezard/go-difflib/difflib"
)

// Summary is a concise account of a document revision
type Summary struct {
	LinesAdded   int
	LinesRemoved int
	Changed      bool
}

// Summarize compares the prior and proposed documents line by line.
func Summarize(prior, proposed string) Summary {
	if prior == proposed {
		return Summary{}
	}

	a := difflib.SplitLines(prior)
	b := difflib.SplitLines(proposed)

	var summary Summary
	matcher := difflib.NewMatcher(a, b)
	for _, op := range matcher.GetOpCodes() {
		switch op.Tag {
		case 'r':
			summary.LinesRemoved += op.I2 - op.I1
			summary.LinesAdded += op.J2 - op.J1
		case 'd':
			summary.LinesRemoved += op.I2 - op.I1
		case 'i':
			summary.LinesAdded += op.J2 - op.J1
		}
	}
	summary.Changed = summary.LinesAdded > 0 || summary.LinesRemoved > 0

	return summary
}

// Unified renders a unified diff of the revision with three lines of
// context.
func Unified(prior, proposed string) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(prior),
		B:        difflib.SplitLines(proposed),
		FromFile: "prior",
		ToFile:   "proposed",
		Context:  3,
	})
}
