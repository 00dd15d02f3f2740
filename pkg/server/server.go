package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nstogner/nevernood/pkg/chat"
	"github.com/nstogner/nevernood/pkg/config"
	"github.com/nstogner/nevernood/pkg/mcp"
	"github.com/nstogner/nevernood/pkg/metrics"
	"github.com/nstogner/nevernood/pkg/model"
	"github.com/nstogner/nevernood/pkg/session"
	"github.com/nstogner/nevernood/pkg/store"
)

// Options holds the collaborators the server routes to.
type Options struct {
	Provider model.Provider
	Chat     *chat.Pipeline
	Sessions *session.Registry
	MCP      *mcp.Server
	Wardrobe store.WardrobeStore
	Metrics  *metrics.Metrics

	// SessionMode is config.SessionModeStream or config.SessionModeBuffered.
	SessionMode string
	// MessagesPath is where session clients POST their messages.
	MessagesPath string
}

// Server serves the chat, session and wardrobe APIs.
type Server struct {
	provider     model.Provider
	chat         *chat.Pipeline
	sessions     *session.Registry
	mcp          *mcp.Server
	wardrobe     store.WardrobeStore
	metrics      *metrics.Metrics
	sessionMode  string
	messagesPath string

	baseCtx    context.Context
	cancelBase context.CancelFunc

	mu  sync.Mutex
	srv *http.Server
}

// New creates a new Server.
func New(opts Options) *Server {
	s := &Server{
		provider:     opts.Provider,
		chat:         opts.Chat,
		sessions:     opts.Sessions,
		mcp:          opts.MCP,
		wardrobe:     opts.Wardrobe,
		metrics:      opts.Metrics,
		sessionMode:  opts.SessionMode,
		messagesPath: opts.MessagesPath,
	}
	if s.sessions == nil {
		s.sessions = session.NewRegistry()
	}
	if s.sessionMode == "" {
		s.sessionMode = config.SessionModeStream
	}
	if s.messagesPath == "" {
		s.messagesPath = "/messages"
	}
	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())
	return s
}

// Handler returns the HTTP handler with all routes mounted.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Chat
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /api/demo-chat", s.handleChat)

	// Sessions
	mux.HandleFunc("GET /sessions", s.handleSessions)
	mux.HandleFunc("GET /api/sse", s.handleSessions)
	mux.HandleFunc("GET /sessions/ws", s.handleSessionWebSocket)
	msgPath, _, _ := strings.Cut(s.messagesPath, "?")
	mux.HandleFunc("POST "+msgPath, s.handleMessages)

	// Wardrobe
	if s.wardrobe != nil {
		mux.HandleFunc("GET /api/wardrobe", s.handleListWardrobe)
		mux.HandleFunc("POST /api/wardrobe", s.handleCreateWardrobeItem)
		mux.HandleFunc("GET /api/wardrobe/{id}", s.handleGetWardrobeItem)
		mux.HandleFunc("DELETE /api/wardrobe/{id}", s.handleDeleteWardrobeItem)
	}

	// Models
	mux.HandleFunc("GET /api/models", s.handleListModels)

	// Ops
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	return s.corsMiddleware(mux)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		BaseContext:       func(net.Listener) context.Context { return s.baseCtx },
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.mu.Lock()
	s.srv = srv
	s.mu.Unlock()
	if s.baseCtx.Err() != nil {
		return nil
	}

	slog.Info("Starting web server", "addr", addr, "sessionMode", s.sessionMode)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown ends open sessions and gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancelBase()
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	b, err := json.Marshal(data)
	if err != nil {
		slog.Error("Encoding response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, err error) {
	slog.Error("API Error", "status", status, "error", err)
	s.jsonResponse(w, status, map[string]string{"error": err.Error()})
}
