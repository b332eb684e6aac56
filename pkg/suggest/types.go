// Package suggest speaks to the suggestion provider: it ships an edit
// request, consumes the streamed text response, and classifies the result.
package suggest

import (
	"context"
	"time"
)

// In-band markers recognized in provider responses.
const (
	// MarkerIrrelevant flags a query the provider judged unrelated to the page.
	MarkerIrrelevant = "### IRRELEVANT_QUERY"
	// MarkerRevisedDocument separates the explanation from revised content.
	MarkerRevisedDocument = "### Revised Document"
	// SegmentDelimiter separates per-range excerpts in requests and the
	// matching per-range revisions in responses.
	SegmentDelimiter = "\n\n-----\n\n"
)

// Request is the edit request payload sent to the provider.
type Request struct {
	RepoURL            string             `json:"repoUrl"`
	PageTitle          string             `json:"currentPageTitle"`
	PageContent        string             `json:"currentPageContent"`
	EditRequest        string             `json:"editRequest"`
	EditMemory         []TurnContext      `json:"editMemory,omitempty"`
	Preferences        *PreferenceContext `json:"userPreferences,omitempty"`
	HighlightedContent string             `json:"highlightedContent,omitempty"`
	Model              string             `json:"model,omitempty"`
}

// TurnContext is one prior edit turn included as provider context. Document
// snapshots are never included; they would blow up the payload.
type TurnContext struct {
	Timestamp time.Time `json:"timestamp"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	PageID    string    `json:"pageId"`
}

// PreferenceContext carries accumulated user preferences to the provider.
type PreferenceContext struct {
	WritingStyle       string   `json:"writingStyle,omitempty"`
	PreferredFormats   []string `json:"preferredFormats,omitempty"`
	CommonInstructions []string `json:"commonInstructions,omitempty"`
}

// Streamer is the provider behavior the orchestrator depends on. The
// returned chunk channel carries response text fragments in arrival order;
// both channels close when the stream ends.
type Streamer interface {
	Stream(ctx context.Context, req Request) (<-chan string, <-chan error)
}
