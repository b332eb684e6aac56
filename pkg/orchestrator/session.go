// Package orchestrator owns the editing session: the live document, the
// active highlight set, the streamed edit flow against the suggestion
// provider, and the pending-revision lifecycle.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	rlerrors "github.com/odvcencio/redline/pkg/errors"
	"github.com/odvcencio/redline/pkg/logging"
	"github.com/odvcencio/redline/pkg/memory"
	"github.com/odvcencio/redline/pkg/pagecache"
	"github.com/odvcencio/redline/pkg/selection"
	"github.com/odvcencio/redline/pkg/session"
	"github.com/odvcencio/redline/pkg/suggest"
	"github.com/odvcencio/redline/pkg/textrange"
)

// PendingRevision is an applied-but-unconfirmed document change. The
// proposed document is already live; reject restores the prior one.
type PendingRevision struct {
	Proposed string
	Prior    string
}

// Config wires a session's collaborators.
type Config struct {
	RepoURL   string
	RepoType  string
	Language  string
	PageID    string
	PageTitle string
	Document  string
	Model     string

	Provider    suggest.Streamer
	MemoryStore *memory.Store
	PageCache   *pagecache.Client
	Transient   *pagecache.TransientCache
	Logger      *logging.Logger

	AllowManualEdit bool
	MemoryContext   int
	TokenBudget     int
}

// Session is the per-(owner, repo, page) editing context. All state the
// editing flow mutates lives here; nothing is ambient.
type Session struct {
	mu sync.Mutex

	owner     string
	repo      string
	repoURL   string
	repoType  string
	language  string
	pageID    string
	pageTitle string
	model     string

	document   string
	highlights []textrange.Range
	sel        *selection.Controller
	pending    *PendingRevision
	streaming  bool

	log   *memory.Log
	prefs memory.Preferences

	provider  suggest.Streamer
	memStore  *memory.Store
	cache     *pagecache.Client
	transient *pagecache.TransientCache
	logger    *logging.Logger

	allowManualEdit bool
	memoryContext   int
	tokenBudget     int
}

// NewSession creates a session for one page, loading persisted memory and
// preferences for the repository.
func NewSession(cfg Config) (*Session, error) {
	owner, repo, err := session.ParseRepoURL(cfg.RepoURL)
	if err != nil {
		return nil, rlerrors.Wrap(err, rlerrors.ErrCodeInvalidInput, "invalid repository URL")
	}

	if cfg.Provider == nil {
		return nil, rlerrors.New(rlerrors.ErrCodeInvalidInput, "session requires a suggestion provider")
	}

	memoryContext := cfg.MemoryContext
	if memoryContext <= 0 {
		memoryContext = 10
	}

	s := &Session{
		owner:           owner,
		repo:            repo,
		repoURL:         cfg.RepoURL,
		repoType:        cfg.RepoType,
		language:        cfg.Language,
		pageID:          cfg.PageID,
		pageTitle:       cfg.PageTitle,
		model:           cfg.Model,
		document:        cfg.Document,
		sel:             selection.NewController(),
		log:             memory.NewLog(),
		provider:        cfg.Provider,
		memStore:        cfg.MemoryStore,
		cache:           cfg.PageCache,
		transient:       cfg.Transient,
		logger:          cfg.Logger,
		allowManualEdit: cfg.AllowManualEdit,
		memoryContext:   memoryContext,
		tokenBudget:     cfg.TokenBudget,
	}

	if s.memStore != nil {
		s.log = s.memStore.LoadLog(owner, repo)
		s.prefs = s.memStore.LoadPreferences(owner, repo)
	}

	s.logInfo(logging.CategorySession, "session_opened", "editing session opened", map[string]any{
		"owner": owner,
		"repo":  repo,
		"page":  cfg.PageID,
	})

	return s, nil
}

// Owner returns the repository owner.
func (s *Session) Owner() string { return s.owner }

// Repo returns the repository name.
func (s *Session) Repo() string { return s.repo }

// PageID returns the page this session edits.
func (s *Session) PageID() string { return s.pageID }

// Document returns the live document.
func (s *Session) Document() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.document
}

// Streaming reports whether a provider request is in flight.
func (s *Session) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

// Pending returns a copy of the outstanding revision, if any.
func (s *Session) Pending() (PendingRevision, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return PendingRevision{}, false
	}
	return *s.pending, true
}

// Preferences returns the current preference record.
func (s *Session) Preferences() memory.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

// MemoryLog returns the turns recorded so far, oldest first.
func (s *Session) MemoryLog() []memory.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Turns()
}

// Select feeds a raw selection event into the selection controller.
func (s *Session) Select(start, end int, selectedText string, geom selection.Rect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel.OnSelect(s.document, start, end, selectedText, geom)
}

// SelectionState exposes the controller state for UI surfaces.
func (s *Session) SelectionState() (selection.State, selection.Anchor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel.State(), s.sel.AffordanceAnchor()
}

// ConfirmSelection moves the current selection into the highlight set.
func (s *Session) ConfirmSelection() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged, ok := s.sel.Confirm(s.document, s.highlights)
	if !ok {
		return false
	}
	s.highlights = merged

	s.logDebug(logging.CategorySelection, "highlight_added", "selection confirmed", map[string]any{
		"highlights": len(s.highlights),
	})
	return true
}

// DismissSelection clears the current selection without confirming.
func (s *Session) DismissSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel.Dismiss()
}

// AddHighlight adds a range directly, bypassing the selection controller.
// Used by non-interactive surfaces.
func (s *Session) AddHighlight(start, end int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if start < 0 || end > len(s.document) || start >= end {
		return rlerrors.New(rlerrors.ErrCodeRangeBounds, "highlight bounds out of range").
			WithContext("start", start).
			WithContext("end", end).
			WithContext("document_len", len(s.document))
	}

	s.highlights = textrange.Merge(s.document, s.highlights, textrange.New(s.document, start, end))
	return nil
}

// Highlights returns the validated highlight set; stale ranges are dropped
// from session state as a side effect.
func (s *Session) Highlights() []textrange.Range {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.highlights = textrange.FilterStale(s.highlights, s.document)
	out := make([]textrange.Range, len(s.highlights))
	copy(out, s.highlights)
	return out
}

// VerbatimMatches returns the confirmed selections whose reported text
// occurred verbatim in the document. These outlive staling of the
// highlight set and keep a blank-prompt submission meaningful.
func (s *Session) VerbatimMatches() []textrange.Range {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]textrange.Range, len(s.sel.VerbatimMatches()))
	copy(out, s.sel.VerbatimMatches())
	return out
}

// ClearHighlights empties the highlight set and verbatim matches.
func (s *Session) ClearHighlights() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.highlights = nil
	s.sel.ClearVerbatim()
}

// AnnotatedDocument renders the document with highlight markers. The
// stored highlight set is replaced by the validated subset so stale ranges
// never linger.
func (s *Session) AnnotatedDocument() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	annotated, kept := textrange.Annotate(s.document, s.highlights)
	if len(kept) != len(s.highlights) {
		s.logWarn(logging.CategoryEditor, "stale_ranges_dropped", "highlight set revalidated", map[string]any{
			"dropped": len(s.highlights) - len(kept),
		})
	}
	s.highlights = kept
	return annotated
}

// EditDocument applies a manual edit. Permitted while a stream is in
// flight; the in-flight splice still applies against its own snapshot and
// may overwrite this change.
func (s *Session) EditDocument(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.allowManualEdit {
		return rlerrors.New(rlerrors.ErrCodeEditNotPermitted, "manual editing is disabled for this session")
	}

	s.document = text
	s.highlights = textrange.FilterStale(s.highlights, s.document)
	return nil
}

// AcceptRevision commits the pending revision. The proposed document is
// already live, so accepting only discards the restore point.
func (s *Session) AcceptRevision() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		return rlerrors.New(rlerrors.ErrCodeNoRevision, "no pending revision to accept")
	}

	s.pending = nil
	s.logInfo(logging.CategoryEditor, "revision_accepted", "pending revision accepted", nil)
	return nil
}

// RejectRevision restores the prior document and discards the proposal.
func (s *Session) RejectRevision() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		return rlerrors.New(rlerrors.ErrCodeNoRevision, "no pending revision to reject")
	}

	s.document = s.pending.Prior
	s.pending = nil
	s.highlights = textrange.FilterStale(s.highlights, s.document)
	s.logInfo(logging.CategoryEditor, "revision_rejected", "pending revision rejected", nil)
	return nil
}

// ResetMemory clears the turn log and preference record, including the
// durable copies.
func (s *Session) ResetMemory() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Clear()
	s.prefs = memory.Preferences{}

	if s.memStore == nil {
		return nil
	}
	return s.memStore.Clear(s.owner, s.repo)
}

// Save writes the live document through to the page cache service and
// stages it in the transient cache for the next view.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	doc := s.document
	key := pagecache.Key{Owner: s.owner, Repo: s.repo, RepoType: s.repoType, Language: s.language}
	pageKey := fmt.Sprintf("%s/%s/%s", s.owner, s.repo, s.pageID)
	s.mu.Unlock()

	if s.cache == nil {
		return rlerrors.New(rlerrors.ErrCodeInternal, "no page cache configured")
	}

	if err := s.cache.SavePage(ctx, key, s.pageID, doc); err != nil {
		s.logError(logging.CategoryCache, "save_failed", "page save failed", map[string]any{
			"error": err.Error(),
		})
		return err
	}

	if s.transient != nil {
		s.transient.Set(pageKey, doc)
	}

	s.logInfo(logging.CategoryCache, "page_saved", "page saved to cache", map[string]any{
		"page": s.pageID,
	})
	return nil
}

// Close tears the session down, persisting memory best-effort.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistMemoryLocked()
	s.logInfo(logging.CategorySession, "session_closed", "editing session closed", nil)
}

// persistMemoryLocked writes the log and preferences durably. Failures are
// logged, never surfaced; the interactive flow must not block on storage.
func (s *Session) persistMemoryLocked() {
	if s.memStore == nil {
		return
	}
	if err := s.memStore.PersistLog(s.owner, s.repo, s.log); err != nil {
		s.logWarn(logging.CategoryStorage, "persist_failed", "edit memory persist failed", map[string]any{
			"error": err.Error(),
		})
	}
	if err := s.memStore.PersistPreferences(s.owner, s.repo, s.prefs); err != nil {
		s.logWarn(logging.CategoryStorage, "persist_failed", "preference persist failed", map[string]any{
			"error": err.Error(),
		})
	}
}

func (s *Session) logDebug(cat logging.Category, event, msg string, details map[string]any) {
	if s.logger != nil {
		s.logger.Debug(cat, event, msg, details)
	}
}

func (s *Session) logInfo(cat logging.Category, event, msg string, details map[string]any) {
	if s.logger != nil {
		s.logger.Info(cat, event, msg, details)
	}
}

func (s *Session) logWarn(cat logging.Category, event, msg string, details map[string]any) {
	if s.logger != nil {
		s.logger.Warn(cat, event, msg, details)
	}
}

func (s *Session) logError(cat logging.Category, event, msg string, details map[string]any) {
	if s.logger != nil {
		s.logger.Error(cat, event, msg, details)
	}
}
