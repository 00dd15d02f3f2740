package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/nstogner/nevernood/pkg/config"
	"github.com/nstogner/nevernood/pkg/session"
	"github.com/nstogner/nevernood/pkg/transport"
)

const maxMessageBytes = 4 << 20

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleSessions establishes a session for the capability server. In
// buffered mode the handshake is collapsed into one immediate response and
// the session closes right away. In stream mode the connection stays open
// until the client goes away.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.sessionMode == config.SessionModeBuffered {
		s.serveBufferedSession(w, r)
		return
	}
	s.serveStreamingSession(w, r)
}

func (s *Server) serveBufferedSession(w http.ResponseWriter, r *http.Request) {
	res := transport.NewBufferedResponse()
	if _, err := s.establishSession(r.Context(), res); err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	if err := res.Respond(w); err != nil {
		slog.Warn("Writing session response", "error", err)
	}
}

func (s *Server) serveStreamingSession(w http.ResponseWriter, r *http.Request) {
	res := transport.NewStreamingResponse(w, r)
	t, err := s.establishSession(r.Context(), res)
	if err != nil {
		slog.Error("Session handshake failed", "error", err)
		if t != nil {
			t.Close()
		}
		res.End()
		return
	}
	<-res.Done()
}

// establishSession creates the transport, registers it, wires the cleanup
// and error hooks, and connects the capability server over it.
func (s *Server) establishSession(ctx context.Context, res transport.ResponseWriter) (*transport.SSE, error) {
	t := transport.NewSSE(s.messagesPath, res)
	id := t.SessionID()

	s.sessions.Register(id, t)
	s.metrics.SessionStarted()
	slog.Info("Session registered", "sessionID", id)

	t.OnError(func(err error) {
		slog.Error("Session transport error", "sessionID", id, "error", err)
	})
	res.On(transport.EventClose, func() {
		s.sessions.Unregister(id)
		slog.Info("Session unregistered", "sessionID", id)
	})

	if err := s.mcp.Connect(ctx, t); err != nil {
		return t, fmt.Errorf("connecting session %s: %w", id, err)
	}
	return t, nil
}

// handleSessionWebSocket serves a session whose messages travel over a
// websocket instead of server-sent events plus POST.
func (s *Server) handleSessionWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade websocket", "error", err)
		return
	}

	t := transport.NewWebSocket(ws)
	id := t.SessionID()

	s.sessions.Register(id, t)
	s.metrics.SessionStarted()
	slog.Info("Session registered", "sessionID", id, "transport", "websocket")

	t.OnError(func(err error) {
		slog.Error("Session transport error", "sessionID", id, "error", err)
	})
	t.OnClose(func() {
		s.sessions.Unregister(id)
		slog.Info("Session unregistered", "sessionID", id)
	})

	if err := s.mcp.Connect(r.Context(), t); err != nil {
		slog.Error("Session handshake failed", "sessionID", id, "error", err)
		t.Close()
		return
	}
	if err := t.Serve(r.Context()); err != nil {
		slog.Warn("WebSocket session ended", "sessionID", id, "error", err)
	}
}

// handleMessages delivers a client message to a registered session. The
// reply, if any, goes out over the session's own connection.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("sessionId")
	if id == "" {
		s.errorResponse(w, http.StatusBadRequest, errors.New("missing sessionId"))
		return
	}
	t, err := s.sessions.Lookup(id)
	if err != nil {
		s.errorResponse(w, http.StatusNotFound, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageBytes))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, fmt.Errorf("reading message: %w", err))
		return
	}
	if len(body) == 0 {
		s.errorResponse(w, http.StatusBadRequest, errors.New("empty message"))
		return
	}

	if err := t.HandleMessage(r.Context(), body); err != nil {
		switch {
		case errors.Is(err, transport.ErrInvalidMessage):
			s.errorResponse(w, http.StatusBadRequest, err)
		case errors.Is(err, transport.ErrNotConnected):
			s.errorResponse(w, http.StatusNotFound, fmt.Errorf("%w: %s", session.ErrNotFound, id))
		default:
			s.errorResponse(w, http.StatusInternalServerError, err)
		}
		return
	}

	w.WriteHeader(http.StatusAccepted)
	io.WriteString(w, "Accepted")
}
