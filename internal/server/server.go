package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/thruflo/conductor/internal/auth"
	"github.com/thruflo/conductor/internal/logging"
	"github.com/thruflo/conductor/internal/workflow"
)

// keepAliveInterval is how often an SSE comment is sent on idle streams.
const keepAliveInterval = 15 * time.Second

// Config holds server configuration options.
type Config struct {
	Port int
	// AuthToken, when set, is required as a bearer token on /api routes.
	AuthToken string
	// Phases is the number of phases a generated plan has.
	Phases int
	// Tick resends the full snapshot on every stream at this period, the
	// way the real backend does. Zero sends only on change.
	Tick time.Duration
	// Step advances the engine automatically at this period. Zero leaves
	// advancing to the caller.
	Step time.Duration
	// RequestLog enables chi's request logger.
	RequestLog bool
	Logger     *logging.Logger
}

// Server represents the mock backend.
type Server struct {
	cfg    Config
	logger *logging.Logger
	engine *Engine
	events *Broadcaster

	mu       sync.RWMutex
	server   *http.Server
	listener net.Listener
	started  bool
}

// NewServer creates a new Server instance.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default().With("component", "mock-server")
	}

	s := &Server{
		cfg:    *cfg,
		logger: logger,
		engine: NewEngine(cfg.Phases),
		events: NewBroadcaster(),
	}
	s.engine.OnChange(s.publish)
	return s, nil
}

// Engine returns the state machine behind the server.
func (s *Server) Engine() *Engine {
	return s.engine
}

// Events returns the SSE broadcaster.
func (s *Server) Events() *Broadcaster {
	return s.events
}

// Push sends a raw data payload to every stream, bypassing the engine.
func (s *Server) Push(data string) {
	s.events.Publish(data)
}

func (s *Server) publish(snap workflow.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		s.logger.Error("failed to encode snapshot", "error", err)
		return
	}
	s.events.Publish(string(data))
}

// Start starts the HTTP server.
// The server runs until ctx is cancelled or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("server already started")
	}

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	// No write timeout: event streams stay open.
	s.server = &http.Server{
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
	s.started = true
	s.mu.Unlock()

	if s.cfg.Step > 0 {
		go s.autopilot(ctx, s.cfg.Step)
	}
	go func() {
		<-ctx.Done()
		_ = s.Stop()
	}()

	s.logger.Info("mock backend listening", "addr", listener.Addr().String())
	err = s.server.Serve(listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.server == nil {
		return nil
	}

	// Streams never finish on their own, so drop them before shutdown.
	s.events.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	s.started = false
	return nil
}

// ListenAddr returns the actual address the server is listening on.
// Useful when port 0 is used to get an available port.
// Returns empty string if not started.
func (s *Server) ListenAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) autopilot(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.engine.Advance() {
				s.logger.Debug("advanced", "state", s.engine.Snapshot().State)
			}
		}
	}
}

// Handler returns the router, for use with httptest.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	if s.cfg.RequestLog {
		r.Use(middleware.Logger)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.withAuth)

		r.Get("/events", s.handleEvents)
		r.Get("/state", s.handleState)
		r.Get("/config", s.handleGetConfig)
		r.Post("/config", s.handleSaveConfig)
		r.Get("/claude/check", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, s.engine.System())
		})

		r.Get("/questions", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, s.engine.Questions())
		})
		r.Post("/questions/answer", s.handleAnswer)
		r.Post("/questions/skip", s.command(s.engine.SkipQuestions))

		r.Route("/actions", func(r chi.Router) {
			r.Post("/generate-plan", s.command(s.engine.GeneratePlan))
			r.Post("/refine-plan", s.handleRefine)
			r.Post("/execute", s.command(s.engine.ExecutePlan))
			r.Post("/continue", s.command(s.engine.ContinueExecution))
			r.Post("/cancel", s.command(s.engine.Cancel))
			r.Post("/retry", s.command(s.engine.Retry))
			r.Post("/reset", s.command(s.engine.ResetState))
		})
		r.Post("/reset", s.handleResetProject)

		r.Get("/references", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, s.engine.References())
		})
		r.Post("/references/upload", s.handleUpload)
		r.Post("/references/archive", s.handleArchive)
		r.Get("/archive/list", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, s.engine.Archives())
		})

		r.Get("/{target}/open", s.handleOpen)
	})

	return r
}

// withAuth wraps a handler with bearer token authentication when a token
// is configured.
func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AuthToken == "" {
			next.ServeHTTP(w, r)
			return
		}

		if !auth.Authorized(r, s.cfg.AuthToken) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "authorization required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleEvents streams snapshots as Server-Sent Events. The current
// snapshot is sent first.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	sub, ok := s.events.subscribe()
	if !ok {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.events.unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	send := func(data string) bool {
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}
	sendSnapshot := func() bool {
		data, err := json.Marshal(s.engine.Snapshot())
		if err != nil {
			return false
		}
		return send(string(data))
	}

	if !sendSnapshot() {
		return
	}

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	var tick <-chan time.Time
	if s.cfg.Tick > 0 {
		t := time.NewTicker(s.cfg.Tick)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-sub.kick:
			return
		case data := <-sub.frames:
			if !send(data) {
				return
			}
		case <-tick:
			if !sendSnapshot() {
				return
			}
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, saved := s.engine.Config()
	if !saved {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	var cfg workflow.ProjectConfig
	if !decodeBody(w, r, &cfg) {
		return
	}
	s.respond(w, r, "save config", s.engine.SaveConfig(cfg), nil)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Answers map[string]string `json:"answers"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.respond(w, r, "answer", s.engine.SubmitAnswers(body.Answers), nil)
}

func (s *Server) handleRefine(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Skipped bool `json:"skipped"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.respond(w, r, "refine plan", s.engine.RefinePlan(body.Skipped), nil)
}

func (s *Server) handleResetProject(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProjectName string `json:"projectName"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	res, rej := s.engine.ResetProject(body.ProjectName)
	s.respond(w, r, "reset", rej, map[string]any{
		"archived":    res.Archived,
		"archivePath": res.ArchivePath,
		"message":     res.Message,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "No files provided"})
		return
	}
	var files []workflow.ReferenceFile
	for _, fh := range r.MultipartForm.File["files"] {
		files = append(files, workflow.ReferenceFile{Name: filepath.Base(fh.Filename), Size: fh.Size})
	}
	names, rej := s.engine.UploadReferences(files)
	s.respond(w, r, "upload", rej, map[string]any{"files": names})
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	res, rej := s.engine.ArchiveReferences()
	s.respond(w, r, "archive references", rej, map[string]any{
		"archived":    res.Archived,
		"archivePath": res.ArchivePath,
	})
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	target := chi.URLParam(r, "target")
	switch target {
	case "output", "plan", "references", "archive", "questions":
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "Not found"})
		return
	}
	s.respond(w, r, "open "+target, s.engine.Open(target), nil)
}

// command adapts an engine command with no input to a handler.
func (s *Server) command(fn func() *Rejection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.respond(w, r, r.URL.Path, fn(), nil)
	}
}

// respond writes {"success": true, ...extra} or the rejection.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, op string, rej *Rejection, extra map[string]any) {
	reqID := middleware.GetReqID(r.Context())
	if rej != nil {
		s.logger.Info("command rejected", "op", op, "request_id", reqID, "error", rej.Message)
		writeJSON(w, rej.Status, map[string]any{"success": false, "error": rej.Message})
		return
	}
	s.logger.Debug("command accepted", "op", op, "request_id", reqID)

	body := map[string]any{"success": true}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid JSON body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
