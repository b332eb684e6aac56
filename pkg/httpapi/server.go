// Package httpapi exposes editing sessions over HTTP for browser and tool
// clients.
package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	rlerrors "github.com/odvcencio/redline/pkg/errors"
	"github.com/odvcencio/redline/pkg/logging"
	"github.com/odvcencio/redline/pkg/memory"
	"github.com/odvcencio/redline/pkg/orchestrator"
	"github.com/odvcencio/redline/pkg/pagecache"
	"github.com/odvcencio/redline/pkg/suggest"
)

// Options wires the server's collaborators.
type Options struct {
	Provider    suggest.Streamer
	MemoryStore *memory.Store
	PageCache   *pagecache.Client
	Transient   *pagecache.TransientCache
	Logger      *logging.Logger

	AllowManualEdit bool
	MemoryContext   int
	TokenBudget     int
	Model           string
}

// Server hosts editing sessions keyed by session ID.
type Server struct {
	opts Options

	mu       sync.Mutex
	sessions map[string]*orchestrator.Session
}

// NewServer creates a session server.
func NewServer(opts Options) *Server {
	return &Server{
		opts:     opts,
		sessions: make(map[string]*orchestrator.Session),
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Delete("/", s.handleCloseSession)

			r.Get("/document", s.handleGetDocument)
			r.Put("/document", s.handleEditDocument)

			r.Get("/highlights", s.handleGetHighlights)
			r.Post("/highlights", s.handleAddHighlight)
			r.Delete("/highlights", s.handleClearHighlights)

			r.Post("/selection", s.handleSelect)
			r.Post("/selection/confirm", s.handleConfirmSelection)
			r.Post("/selection/dismiss", s.handleDismissSelection)

			r.Post("/submit", s.handleSubmit)
			r.Post("/revision/accept", s.handleAcceptRevision)
			r.Post("/revision/reject", s.handleRejectRevision)

			r.Post("/save", s.handleSave)
			r.Post("/memory/reset", s.handleResetMemory)
		})
	})

	return r
}

func (s *Server) session(id string) (*orchestrator.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, rlerrors.New(rlerrors.ErrCodeInvalidInput, "unknown session").
			WithContext("session_id", id)
	}
	return sess, nil
}

func (s *Server) register(id string, sess *orchestrator.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = sess
}

func (s *Server) unregister(id string) (*orchestrator.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	return sess, ok
}
