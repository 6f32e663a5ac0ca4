package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/SmitUplenchwar2687/Retrace/internal/clock"
	"github.com/SmitUplenchwar2687/Retrace/internal/input"
	"github.com/SmitUplenchwar2687/Retrace/internal/replay"
)

// Options wires the server to a replay session. Every field is optional.
type Options struct {
	// Status reports the live session state for /api/status.
	Status func() replay.Status
	// Log returns the loaded log for /api/log.
	Log func() input.Log
	// Hub, when set, serves /ws and the dashboard.
	Hub    *Hub
	Clock  clock.Clock
	Logger *slog.Logger
}

// Server is the Retrace HTTP server exposing replay status and live events.
type Server struct {
	httpServer *http.Server
	opts       Options
	mux        *http.ServeMux
}

// New creates a new Retrace server.
func New(addr string, opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = clock.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{
		opts: opts,
		mux:  http.NewServeMux(),
	}
	s.routes()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handleRoot)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/log", s.handleLog)
	if s.opts.Hub != nil {
		s.mux.HandleFunc("/ws", s.opts.Hub.HandleWebSocket)
		s.mux.HandleFunc("/dashboard/", handleDashboard)
	}
}

// Handler returns the server's request router.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// handleRoot serves a welcome message.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "retrace",
		"status":  "running",
		"time":    s.opts.Clock.Now().Format(time.RFC3339),
	})
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.opts.Status == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no replay session"})
		return
	}
	writeJSON(w, http.StatusOK, s.opts.Status())
}

// LogInfo describes the loaded log.
type LogInfo struct {
	Samples   int     `json:"samples"`
	Duration  float64 `json:"duration"`
	Anomalies []int   `json:"anomalies"`
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	if s.opts.Log == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no log loaded"})
		return
	}
	l := s.opts.Log()
	info := LogInfo{
		Samples:   l.Len(),
		Duration:  l.Duration(),
		Anomalies: l.Anomalies(),
	}
	if info.Anomalies == nil {
		info.Anomalies = []int{}
	}
	writeJSON(w, http.StatusOK, info)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Start begins listening. It blocks until the server is shut down.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.StartOnListener(ln)
}

// StartOnListener begins serving on the provided listener.
// Useful for tests that need to pick an ephemeral port.
func (s *Server) StartOnListener(ln net.Listener) error {
	s.opts.Logger.Info("retrace server listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.opts.Hub != nil {
		s.opts.Hub.Close()
	}
	return s.httpServer.Shutdown(ctx)
}
