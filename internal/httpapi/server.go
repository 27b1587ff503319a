package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/amishk599/leadsync/internal/events"
	"github.com/amishk599/leadsync/internal/model"
)

// Syncer runs one sync. *pipeline.Orchestrator satisfies it.
type Syncer interface {
	Run(ctx context.Context) (model.RunSummary, error)
}

// Options configures a Server.
type Options struct {
	Addr       string
	Secret     string        // bearer token for POST /api/sync-jobs; empty rejects every call
	RunTimeout time.Duration // zero means no bound
	Hub        *events.Hub   // optional; enables GET /api/events
	Now        func() time.Time
}

// Server exposes the sync trigger, a health check and the run event stream.
type Server struct {
	syncer     Syncer
	secret     string
	runTimeout time.Duration
	hub        *events.Hub
	now        func() time.Time
	upgrader   websocket.Upgrader
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer builds the HTTP server around syncer.
func NewServer(syncer Syncer, opts Options, logger *slog.Logger) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{
		syncer:     syncer,
		secret:     opts.Secret,
		runTimeout: opts.RunTimeout,
		hub:        opts.Hub,
		now:        opts.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sync-jobs", s.handleSyncJobs)
	mux.HandleFunc("/api/sync-jobs", s.handleMethodNotAllowed)
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.hub != nil {
		mux.HandleFunc("GET /api/events", s.handleEvents)
	}

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           Chain(mux, RequestID, AccessLog(logger), Recover(logger)),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	if s.secret == "" {
		s.logger.Warn("server.secret is empty, every sync trigger will be rejected")
	}
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type syncResponse struct {
	Message   string `json:"message"`
	NewJobs   int    `json:"new_jobs"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleSyncJobs(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	// The run outlives a dropped client; only the configured timeout stops it.
	ctx := context.WithoutCancel(r.Context())
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	summary, err := s.syncer.Run(ctx)
	if err != nil {
		if errors.Is(err, model.ErrRunInProgress) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error("triggered sync failed",
			"request_id", RequestIDFrom(r.Context()),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, syncResponse{
		Message:   "Job sync completed",
		NewJobs:   summary.NewJobsAdded,
		Timestamp: s.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

func (s *Server) authorized(r *http.Request) bool {
	if s.secret == "" {
		return false
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.secret)) == 1
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Allow", http.MethodPost)
	writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
