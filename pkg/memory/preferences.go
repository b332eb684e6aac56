package memory

import (
	"regexp"
	"strings"
)

// Writing styles recognized by the extractor.
const (
	StyleFormal    = "formal"
	StyleCasual    = "casual"
	StyleTechnical = "technical"
)

// Preferred output formats recognized by the extractor.
const (
	FormatLists        = "lists"
	FormatTables       = "tables"
	FormatCodeExamples = "code_examples"
)

// maxPreferenceItems bounds formats and instructions to the most recent
// distinct entries.
const maxPreferenceItems = 5

// Preferences is the accumulated per-repository preference record.
type Preferences struct {
	WritingStyle       string   `json:"writingStyle,omitempty"`
	PreferredFormats   []string `json:"preferredFormats,omitempty"`
	CommonInstructions []string `json:"commonInstructions,omitempty"`
}

// IsZero reports whether no preference has been captured yet.
func (p Preferences) IsZero() bool {
	return p.WritingStyle == "" && len(p.PreferredFormats) == 0 && len(p.CommonInstructions) == 0
}

// instructionPattern captures a recognized instruction cue plus trailing
// text up to the next sentence terminator.
var instructionPattern = regexp.MustCompile(`(?i)(always include|make sure to)[^.!?\n]*`)

// ExtractPreferences scans a prompt for style, format, and instruction cues
// and folds them into the preference record. It is a best-effort keyword
// heuristic, not language understanding; only the documented keyword
// mappings are guaranteed.
func ExtractPreferences(prompt string, prefs Preferences) Preferences {
	lower := strings.ToLower(prompt)

	switch {
	case strings.Contains(lower, "professional"),
		strings.Contains(lower, "formal") && !strings.Contains(lower, "informal"):
		prefs.WritingStyle = StyleFormal
	case strings.Contains(lower, "casual"), strings.Contains(lower, "informal"):
		prefs.WritingStyle = StyleCasual
	case strings.Contains(lower, "technical"), strings.Contains(lower, "detailed"):
		prefs.WritingStyle = StyleTechnical
	}

	if strings.Contains(lower, "bullet") || strings.Contains(lower, "list") {
		prefs.PreferredFormats = append(prefs.PreferredFormats, FormatLists)
	}
	if strings.Contains(lower, "table") {
		prefs.PreferredFormats = append(prefs.PreferredFormats, FormatTables)
	}
	if strings.Contains(lower, "code example") || strings.Contains(lower, "example") {
		prefs.PreferredFormats = append(prefs.PreferredFormats, FormatCodeExamples)
	}
	prefs.PreferredFormats = dedupeKeepLast(prefs.PreferredFormats, maxPreferenceItems)

	for _, match := range instructionPattern.FindAllString(prompt, -1) {
		instruction := strings.TrimSpace(match)
		if instruction != "" {
			prefs.CommonInstructions = append(prefs.CommonInstructions, instruction)
		}
	}
	prefs.CommonInstructions = dedupeKeepLast(prefs.CommonInstructions, maxPreferenceItems)

	return prefs
}

// dedupeKeepLast removes duplicates keeping each value's most recent
// occurrence, then truncates to the last max distinct values.
func dedupeKeepLast(values []string, max int) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]bool, len(values))
	reversed := make([]string, 0, len(values))
	for i := len(values) - 1; i >= 0; i-- {
		if seen[values[i]] {
			continue
		}
		seen[values[i]] = true
		reversed = append(reversed, values[i])
	}

	if len(reversed) > max {
		reversed = reversed[:max]
	}

	out := make([]string, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		out = append(out, reversed[i])
	}
	return out
}
