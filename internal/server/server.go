// Package server is the HTTP surface: uploads, analytics, presentation
// rendering, the copilot question endpoint and feedback collection.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cortexbi/cortexbi/internal/admin"
	"github.com/cortexbi/cortexbi/internal/config"
	"github.com/cortexbi/cortexbi/internal/feedback"
	"github.com/cortexbi/cortexbi/internal/insight"
)

// Server wires the subsystems behind the HTTP handlers. Presentation
// engines are created per request; everything stored here is safe for
// concurrent use.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *feedback.Store
	admin  *admin.Manager

	mu    sync.Mutex
	model *insight.Model

	version string
	started time.Time
}

// New builds a server. The feedback store is owned by the caller. A model
// persisted by an earlier run is picked up from the models dir so the
// first copilot request does not start cold.
func New(cfg *config.Config, logger *zap.Logger, store *feedback.Store, version string) *Server {
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		admin:   admin.New(cfg.Paths.Templates, cfg.Admin.Users),
		version: version,
		started: time.Now(),
	}
	if model, err := insight.Load(cfg.Paths.Models); err == nil {
		s.model = model
	}
	return s
}

// trainedModel retrains the insight model from the feedback log, persists
// it under the models dir and caches it. When training fails the last
// good model is returned, which may be nil on a fresh install.
func (s *Server) trainedModel() *insight.Model {
	model, err := insight.Train(s.store)
	if err != nil {
		s.logger.Warn("failed to train insight model", zap.Error(err))
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.model
	}
	if err := model.Save(s.cfg.Paths.Models); err != nil {
		s.logger.Warn("failed to persist insight model", zap.Error(err))
	}
	s.mu.Lock()
	s.model = model
	s.mu.Unlock()
	return model
}

// Routes returns the full handler tree.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("POST /analyze", s.handleAnalyze)
	mux.HandleFunc("POST /generate-pptx", s.handleGeneratePPTX)
	mux.HandleFunc("POST /analyze-and-generate", s.handleAnalyzeAndGenerate)
	mux.HandleFunc("GET /download/{filename}", s.handleDownload)
	mux.HandleFunc("GET /list-files", s.handleListFiles)
	mux.HandleFunc("GET /templates", s.handleListTemplates)
	mux.HandleFunc("GET /templates/placeholders/{template}", s.handleTemplatePlaceholders)
	mux.HandleFunc("POST /admin/templates", s.handleCreateTemplate)
	mux.HandleFunc("PUT /admin/templates/{template}", s.handleUpdateTemplate)
	mux.HandleFunc("POST /copilot/analyze", s.handleCopilot)
	mux.HandleFunc("POST /feedback", s.handleFeedback)
	mux.HandleFunc("GET /feedback/analytics", s.handleFeedbackAnalytics)
	mux.HandleFunc("GET /user/{user_id}/patterns", s.handleUserPatterns)
	mux.HandleFunc("GET /user/{user_id}/profile", s.handleUserProfile)
	mux.HandleFunc("GET /recommendations/{user_id}", s.handleRecommendations)

	return s.logRequests(mux)
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.Routes(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

type errorPayload struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	payload := errorPayload{Error: msg}
	if err != nil {
		payload.Detail = err.Error()
	}
	writeJSON(w, status, payload)
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
