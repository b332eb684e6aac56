package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/odvcencio/redline/pkg/diff"
	rlerrors "github.com/odvcencio/redline/pkg/errors"
	"github.com/odvcencio/redline/pkg/logging"
	"github.com/odvcencio/redline/pkg/memory"
	"github.com/odvcencio/redline/pkg/suggest"
	"github.com/odvcencio/redline/pkg/textrange"
)

// KindFailed marks a submission whose stream failed before a complete
// response arrived.
const KindFailed suggest.Kind = "failed"

// Outcome is the result of one completed submission.
type Outcome struct {
	Kind            suggest.Kind
	Explanation     string
	Response        string
	DocumentChanged bool
	Diff            diff.Summary
	UnifiedDiff     string
}

// Submit runs one edit turn: build the request from the current session
// state, stream the provider response through onChunk, classify it, and
// apply a revision optimistically when one arrives. The document and
// highlight set are snapshotted before streaming starts; the document
// stays mutable while the stream is in flight, and an applied revision is
// computed against the snapshot.
//
// Every submission that reaches the provider is recorded as a memory
// turn, including failed ones.
func (s *Session) Submit(ctx context.Context, prompt string, onChunk func(string)) (*Outcome, error) {
	s.mu.Lock()

	if s.streaming {
		s.mu.Unlock()
		return nil, rlerrors.New(rlerrors.ErrCodeStreamInFlight, "a submission is already streaming").
			WithUserMessage("An edit is already in progress.")
	}
	if s.pending != nil {
		s.mu.Unlock()
		return nil, rlerrors.New(rlerrors.ErrCodeRevisionPending, "a revision is awaiting accept or reject").
			WithUserMessage("Accept or reject the pending revision before submitting another edit.")
	}

	// A blank prompt is still a submission when highlights or confirmed
	// verbatim matches are outstanding; the latter survive staling of the
	// highlight set itself.
	s.highlights = textrange.FilterStale(s.highlights, s.document)
	if strings.TrimSpace(prompt) == "" && len(s.highlights) == 0 && len(s.sel.VerbatimMatches()) == 0 {
		s.mu.Unlock()
		return nil, rlerrors.New(rlerrors.ErrCodeInvalidInput, "empty prompt with no highlighted ranges or verbatim matches")
	}

	snapshot := s.document
	ranges := make([]textrange.Range, len(s.highlights))
	copy(ranges, s.highlights)

	req := s.buildRequestLocked(prompt, snapshot, ranges)
	s.streaming = true
	s.mu.Unlock()

	s.logInfo(logging.CategoryProvider, "submit_started", "edit submission started", map[string]any{
		"prompt_len": len(prompt),
		"highlights": len(ranges),
		"tokens":     suggest.CountRequestTokens(req),
	})

	acc := suggest.AcquireAccumulator()
	defer suggest.ReleaseAccumulator(acc)

	chunks, errs := s.provider.Stream(ctx, req)
	for chunk := range chunks {
		acc.Add(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	}
	streamErr := <-errs
	full := acc.Content()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.streaming = false

	if streamErr != nil {
		// Failed turns still enter memory so the provider sees them as
		// context on the next submission.
		response := fmt.Sprintf("Error: the edit request could not be completed: %v", streamErr)
		s.recordTurnLocked(prompt, response, snapshot)
		s.logError(logging.CategoryProvider, "submit_failed", "edit submission failed", map[string]any{
			"error":  streamErr.Error(),
			"chunks": acc.Chunks(),
		})
		return &Outcome{Kind: KindFailed, Response: response},
			rlerrors.Wrap(streamErr, rlerrors.ErrCodeProviderStream, "streaming edit response")
	}

	cls := suggest.Classify(full)
	outcome := &Outcome{Kind: cls.Kind, Explanation: cls.Explanation, Response: full}

	switch cls.Kind {
	case suggest.KindIrrelevant:
		s.highlights = nil
		s.sel.ClearVerbatim()

	case suggest.KindRevision:
		proposed := s.assembleRevisionLocked(cls.Content, snapshot, ranges)
		s.pending = &PendingRevision{Proposed: proposed, Prior: snapshot}
		s.document = proposed
		s.highlights = nil
		s.sel.ClearVerbatim()
		outcome.DocumentChanged = true
		outcome.Diff = diff.Summarize(snapshot, proposed)
		if unified, err := diff.Unified(snapshot, proposed); err == nil {
			outcome.UnifiedDiff = unified
		}

	case suggest.KindUnclassified:
		// Explanation only; document and highlights stay as they are.
	}

	s.recordTurnLocked(prompt, full, snapshot)

	s.logInfo(logging.CategoryProvider, "submit_completed", "edit submission completed", map[string]any{
		"kind":          string(cls.Kind),
		"chunks":        acc.Chunks(),
		"response_len":  len(full),
		"lines_added":   outcome.Diff.LinesAdded,
		"lines_removed": outcome.Diff.LinesRemoved,
	})

	return outcome, nil
}

// buildRequestLocked assembles the provider payload. Memory turns are sent
// without their document snapshots, most recent last, bounded by the
// session's memory context.
func (s *Session) buildRequestLocked(prompt, snapshot string, ranges []textrange.Range) suggest.Request {
	req := suggest.Request{
		RepoURL:     s.repoURL,
		PageTitle:   s.pageTitle,
		PageContent: snapshot,
		EditRequest: prompt,
		Model:       s.model,
	}

	for _, turn := range s.log.Recent(s.memoryContext) {
		req.EditMemory = append(req.EditMemory, suggest.TurnContext{
			Timestamp: turn.Timestamp,
			Prompt:    turn.Prompt,
			Response:  turn.Response,
			PageID:    turn.PageID,
		})
	}

	if !s.prefs.IsZero() {
		req.Preferences = &suggest.PreferenceContext{
			WritingStyle:       s.prefs.WritingStyle,
			PreferredFormats:   s.prefs.PreferredFormats,
			CommonInstructions: s.prefs.CommonInstructions,
		}
	}

	if len(ranges) > 0 {
		req.HighlightedContent = textrange.JoinText(ranges, suggest.SegmentDelimiter)
	}

	if s.tokenBudget > 0 {
		if tokens := suggest.CountRequestTokens(req); tokens > s.tokenBudget {
			s.logWarn(logging.CategoryProvider, "token_budget_exceeded", "request exceeds token budget", map[string]any{
				"tokens": tokens,
				"budget": s.tokenBudget,
			})
		}
	}

	return req
}

// assembleRevisionLocked turns classified revision content into a full
// proposed document. With highlighted ranges in play the content is split
// on the segment delimiter and spliced per range against the snapshot; a
// segment count mismatch or an unspliceable range falls back to treating
// the content as a full-document replacement.
func (s *Session) assembleRevisionLocked(content, snapshot string, ranges []textrange.Range) string {
	if len(ranges) == 0 {
		return textrange.BalanceFences(content)
	}

	segments := strings.Split(content, suggest.SegmentDelimiter)
	if len(segments) != len(ranges) {
		s.logWarn(logging.CategoryEditor, "segment_mismatch", "segment count does not match highlight count", map[string]any{
			"segments":   len(segments),
			"highlights": len(ranges),
		})
		return textrange.BalanceFences(content)
	}

	spliced, err := textrange.Splice(snapshot, ranges, segments)
	if err != nil {
		s.logWarn(logging.CategoryEditor, "splice_failed", "per-range splice failed", map[string]any{
			"error": err.Error(),
		})
		return textrange.BalanceFences(content)
	}
	return spliced
}

// recordTurnLocked appends the turn, folds preference cues from the
// prompt, and persists both best-effort.
func (s *Session) recordTurnLocked(prompt, response, snapshot string) {
	s.log.Append(memory.NewTurn(prompt, response, s.pageID, snapshot))
	s.prefs = memory.ExtractPreferences(prompt, s.prefs)
	s.persistMemoryLocked()

	s.logDebug(logging.CategoryMemory, "turn_recorded", "edit turn recorded", map[string]any{
		"turns": s.log.Len(),
	})
}
