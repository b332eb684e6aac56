package suggest

import "strings"

// Kind is the classification of a completed provider response.
type Kind string

const (
	// KindIrrelevant means the provider declined the query; the document
	// must not change.
	KindIrrelevant Kind = "irrelevant"
	// KindRevision means the response carries revised document content.
	KindRevision Kind = "revision"
	// KindUnclassified means no marker was found; the whole response is
	// treated as explanation only.
	KindUnclassified Kind = "unclassified"
)

// Classification is the tagged result of classifying a response.
type Classification struct {
	Kind        Kind
	Explanation string
	// Content holds the candidate revised content; set only for KindRevision.
	Content string
}

// Classify inspects a complete accumulated response and produces a tagged
// classification. Only the two documented markers participate; nothing else
// about the text is special-cased.
func Classify(full string) Classification {
	if strings.Contains(full, MarkerIrrelevant) {
		return Classification{Kind: KindIrrelevant, Explanation: full}
	}

	parts := strings.Split(full, MarkerRevisedDocument)
	if len(parts) >= 2 {
		// Rejoin in case the delimiter text coincidentally repeats inside
		// the revised content.
		content := strings.TrimSpace(strings.Join(parts[1:], MarkerRevisedDocument))
		return Classification{
			Kind:        KindRevision,
			Explanation: strings.TrimSpace(parts[0]),
			Content:     stripResidualHeading(content),
		}
	}

	return Classification{Kind: KindUnclassified, Explanation: strings.TrimSpace(full)}
}

// stripResidualHeading drops a leading heading line left over from the
// revision marker, e.g. a stray "###" or "# Revised Document" echo.
func stripResidualHeading(content string) string {
	if !strings.HasPrefix(content, "#") {
		return content
	}

	line := content
	rest := ""
	if idx := strings.IndexByte(content, '\n'); idx >= 0 {
		line = content[:idx]
		rest = content[idx+1:]
	}

	text := strings.TrimSpace(strings.TrimLeft(line, "#"))
	if text == "" || strings.EqualFold(text, "Revised Document") {
		return strings.TrimSpace(rest)
	}
	return content
}
