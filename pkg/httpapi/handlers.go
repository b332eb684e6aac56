package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	rlerrors "github.com/odvcencio/redline/pkg/errors"
	"github.com/odvcencio/redline/pkg/logging"
	"github.com/odvcencio/redline/pkg/orchestrator"
	"github.com/odvcencio/redline/pkg/pagecache"
	"github.com/odvcencio/redline/pkg/selection"
	"github.com/odvcencio/redline/pkg/session"
)

type errorBody struct {
	Error       string `json:"error"`
	Code        string `json:"code,omitempty"`
	UserMessage string `json:"userMessage,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	body := errorBody{Error: err.Error()}
	status := http.StatusInternalServerError

	var structured *rlerrors.Error
	if errors.As(err, &structured) {
		body.Code = string(structured.Code)
		body.UserMessage = structured.UserMessage
		status = statusForCode(structured.Code)
	}

	writeJSON(w, status, body)
}

func statusForCode(code rlerrors.ErrorCode) int {
	switch code {
	case rlerrors.ErrCodeInvalidInput, rlerrors.ErrCodeRangeBounds:
		return http.StatusBadRequest
	case rlerrors.ErrCodeCacheMiss:
		return http.StatusNotFound
	case rlerrors.ErrCodeRevisionPending, rlerrors.ErrCodeNoRevision,
		rlerrors.ErrCodeStreamInFlight, rlerrors.ErrCodeEditNotPermitted,
		rlerrors.ErrCodeSaveConflict:
		return http.StatusConflict
	case rlerrors.ErrCodeProviderTransport, rlerrors.ErrCodeProviderStatus,
		rlerrors.ErrCodeProviderStream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createSessionRequest struct {
	RepoURL  string `json:"repoUrl"`
	RepoType string `json:"repoType"`
	Language string `json:"language"`
	PageID   string `json:"pageId"`
}

type createSessionResponse struct {
	SessionID string `json:"sessionId"`
	Document  string `json:"document"`
	PageTitle string `json:"pageTitle"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, rlerrors.Wrap(err, rlerrors.ErrCodeInvalidInput, "decoding session request"))
		return
	}

	owner, repo, err := session.ParseRepoURL(req.RepoURL)
	if err != nil {
		writeError(w, rlerrors.Wrap(err, rlerrors.ErrCodeInvalidInput, "invalid repository URL"))
		return
	}

	document, title, err := s.loadPage(r, owner, repo, req)
	if err != nil {
		writeError(w, err)
		return
	}

	sess, err := orchestrator.NewSession(orchestrator.Config{
		RepoURL:         req.RepoURL,
		RepoType:        req.RepoType,
		Language:        req.Language,
		PageID:          req.PageID,
		PageTitle:       title,
		Document:        document,
		Model:           s.opts.Model,
		Provider:        s.opts.Provider,
		MemoryStore:     s.opts.MemoryStore,
		PageCache:       s.opts.PageCache,
		Transient:       s.opts.Transient,
		Logger:          s.opts.Logger,
		AllowManualEdit: s.opts.AllowManualEdit,
		MemoryContext:   s.opts.MemoryContext,
		TokenBudget:     s.opts.TokenBudget,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	id := session.GenerateSessionID(fmt.Sprintf("%s-%s-%s", owner, repo, req.PageID))
	s.register(id, sess)

	if s.opts.Logger != nil {
		s.opts.Logger.Info(logging.CategoryAPI, "session_created", "api session created", map[string]any{
			"session_id": id,
			"owner":      owner,
			"repo":       repo,
			"page":       req.PageID,
		})
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionID: id,
		Document:  document,
		PageTitle: title,
	})
}

// loadPage resolves the page content for a new session: a staged transient
// copy wins over the remote cache record.
func (s *Server) loadPage(r *http.Request, owner, repo string, req createSessionRequest) (string, string, error) {
	pageKey := fmt.Sprintf("%s/%s/%s", owner, repo, req.PageID)
	if s.opts.Transient != nil {
		if staged, ok := s.opts.Transient.Take(pageKey); ok {
			return staged, req.PageID, nil
		}
	}

	if s.opts.PageCache == nil {
		return "", "", rlerrors.New(rlerrors.ErrCodeInternal, "no page cache configured")
	}

	cache, err := s.opts.PageCache.Load(r.Context(), pagecache.Key{
		Owner:    owner,
		Repo:     repo,
		RepoType: req.RepoType,
		Language: req.Language,
	})
	if err != nil {
		return "", "", err
	}

	page, ok := cache.GeneratedPages[req.PageID]
	if !ok {
		return "", "", rlerrors.New(rlerrors.ErrCodeCacheMiss, "page not found in cached wiki").
			WithContext("page", req.PageID)
	}

	title := page.Title
	if title == "" {
		title = req.PageID
	}
	return page.Content, title, nil
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	sess, ok := s.unregister(id)
	if !ok {
		writeError(w, rlerrors.New(rlerrors.ErrCodeInvalidInput, "unknown session"))
		return
	}

	sess.Close()
	w.WriteHeader(http.StatusNoContent)
}

type documentResponse struct {
	Document  string `json:"document"`
	Annotated string `json:"annotated"`
	Pending   bool   `json:"pendingRevision"`
	Streaming bool   `json:"streaming"`
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}

	_, pending := sess.Pending()
	writeJSON(w, http.StatusOK, documentResponse{
		Document:  sess.Document(),
		Annotated: sess.AnnotatedDocument(),
		Pending:   pending,
		Streaming: sess.Streaming(),
	})
}

func (s *Server) handleEditDocument(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, rlerrors.Wrap(err, rlerrors.ErrCodeInvalidInput, "decoding edit request"))
		return
	}

	if err := sess.EditDocument(req.Content); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetHighlights(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"highlights": sess.Highlights()})
}

func (s *Server) handleAddHighlight(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Start int `json:"start"`
		End   int `json:"end"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, rlerrors.Wrap(err, rlerrors.ErrCodeInvalidInput, "decoding highlight request"))
		return
	}

	if err := sess.AddHighlight(req.Start, req.End); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"highlights": sess.Highlights()})
}

func (s *Server) handleClearHighlights(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	sess.ClearHighlights()
	w.WriteHeader(http.StatusNoContent)
}

type selectRequest struct {
	Start int            `json:"start"`
	End   int            `json:"end"`
	Text  string         `json:"text"`
	Rect  selection.Rect `json:"rect"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, rlerrors.Wrap(err, rlerrors.ErrCodeInvalidInput, "decoding selection event"))
		return
	}

	sess.Select(req.Start, req.End, req.Text, req.Rect)
	state, anchor := sess.SelectionState()
	writeJSON(w, http.StatusOK, map[string]any{"state": state, "anchor": anchor})
}

func (s *Server) handleConfirmSelection(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}

	confirmed := sess.ConfirmSelection()
	writeJSON(w, http.StatusOK, map[string]any{
		"confirmed":       confirmed,
		"highlights":      sess.Highlights(),
		"verbatimMatches": len(sess.VerbatimMatches()),
	})
}

func (s *Server) handleDismissSelection(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	sess.DismissSelection()
	w.WriteHeader(http.StatusNoContent)
}

// handleSubmit streams response chunks to the client as they arrive, then
// a terminating JSON outcome line. The body is newline-delimited JSON:
// chunk events first, one outcome event last.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, rlerrors.Wrap(err, rlerrors.ErrCodeInvalidInput, "decoding submit request"))
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	wrote := false

	outcome, err := sess.Submit(r.Context(), req.Prompt, func(chunk string) {
		wrote = true
		enc.Encode(map[string]string{"chunk": chunk})
		if flusher != nil {
			flusher.Flush()
		}
	})
	if err != nil {
		if !wrote {
			writeError(w, err)
			return
		}
		enc.Encode(map[string]any{"error": err.Error()})
		return
	}

	enc.Encode(map[string]any{
		"outcome": map[string]any{
			"kind":            outcome.Kind,
			"explanation":     outcome.Explanation,
			"documentChanged": outcome.DocumentChanged,
			"linesAdded":      outcome.Diff.LinesAdded,
			"linesRemoved":    outcome.Diff.LinesRemoved,
			"diff":            outcome.UnifiedDiff,
		},
	})
}

func (s *Server) handleAcceptRevision(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := sess.AcceptRevision(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"document": sess.Document()})
}

func (s *Server) handleRejectRevision(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := sess.RejectRevision(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"document": sess.Document()})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := sess.Save(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetMemory(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := sess.ResetMemory(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
