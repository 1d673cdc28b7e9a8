package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"paperchat/internal/config"
	"paperchat/internal/pipeline"
	"paperchat/internal/rag"
	"paperchat/internal/storage"
)

const (
	ownerHeader  = "X-Owner-ID"
	defaultOwner = "default"
)

// Deps are the collaborators a Server is built from.
type Deps struct {
	Config     config.Config
	Documents  storage.DocumentStore
	Vectors    storage.VectorStore
	Sessions   storage.SessionStore
	Dispatcher pipeline.Dispatcher
	Reconciler *pipeline.Reconciler
	Engine     *rag.Engine
	Logger     *slog.Logger
	// Health, when set, is called by /healthz.
	Health func(context.Context) error
}

type Server struct {
	cfg        config.Config
	docs       storage.DocumentStore
	vectors    storage.VectorStore
	sessions   storage.SessionStore
	dispatcher pipeline.Dispatcher
	reconciler *pipeline.Reconciler
	engine     *rag.Engine
	health     func(context.Context) error
	logger     *slog.Logger

	// serializes the duplicate check with document creation
	uploadMu sync.Mutex
}

func NewServer(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:        d.Config,
		docs:       d.Documents,
		vectors:    d.Vectors,
		sessions:   d.Sessions,
		dispatcher: d.Dispatcher,
		reconciler: d.Reconciler,
		engine:     d.Engine,
		health:     d.Health,
		logger:     logger.With("component", "api"),
	}
}

func (s *Server) Routes() http.Handler {
	p := s.cfg.APIPrefix
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	if p != "" {
		mux.HandleFunc("GET "+p+"/healthz", s.handleHealthz)
	}

	mux.HandleFunc("POST "+p+"/documents/upload", s.handleUpload)
	mux.HandleFunc("POST "+p+"/documents/upload-multiple", s.handleUploadMultiple)
	mux.HandleFunc("GET "+p+"/documents", s.handleListDocuments)
	mux.HandleFunc("GET "+p+"/documents/{id}/status", s.handleDocumentStatus)
	mux.HandleFunc("GET "+p+"/documents/{id}/logs", s.handleDocumentLogs)
	mux.HandleFunc("DELETE "+p+"/documents/{id}", s.handleDeleteDocument)

	mux.HandleFunc("POST "+p+"/chat/multi", s.handleChatMulti)
	mux.HandleFunc("POST "+p+"/chat/{document_id}", s.handleChat)
	mux.HandleFunc("GET "+p+"/chat/{session_id}/history", s.handleHistory)
	mux.HandleFunc("GET "+p+"/chat/{document_id}/sample-questions", s.handleSampleQuestions)

	mux.HandleFunc("POST "+p+"/admin/refresh-status", s.handleRefreshStatus)
	return withCORS(s.cfg.CORSOrigins, s.withRequestLog(mux))
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			s.logger.Warn("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": "store unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleRefreshStatus(w http.ResponseWriter, r *http.Request) {
	if s.reconciler == nil {
		writeErr(w, s.logger, errUnavailable)
		return
	}
	report, err := s.reconciler.Reconcile(r.Context())
	if err != nil {
		writeErr(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ownerOf identifies the caller. Authentication happens in front of the
// service; requests without the header share one owner.
func ownerOf(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(ownerHeader)); v != "" {
		return v
	}
	return defaultOwner
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "elapsed", time.Since(start))
	})
}
