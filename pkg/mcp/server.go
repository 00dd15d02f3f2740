// Package mcp exposes a tool provider's tools to Model Context Protocol
// clients over a session transport. Protocol handling is done by mcp-go; this
// package bridges it to the push-oriented transports in pkg/transport.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/nstogner/nevernood/pkg/tools"
)

// ProtocolVersion is the protocol revision clients of this server use.
const ProtocolVersion = "2024-11-05"

// notificationBuffer is the per-session queue of server-initiated notifications.
const notificationBuffer = 16

// Transport is the session side of a connection.
type Transport interface {
	SessionID() string
	OnMessage(fn func(ctx context.Context, msg json.RawMessage))
	Start(ctx context.Context) error
	Send(msg any) error
}

// Server answers protocol requests for any number of sessions.
type Server struct {
	mcp   *mcpserver.MCPServer
	tools tools.Provider

	mu         sync.Mutex
	advertised map[string]bool
}

// NewServer creates a server that advertises the tools from p.
func NewServer(name, version string, p tools.Provider) *Server {
	return &Server{
		mcp: mcpserver.NewMCPServer(name, version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithRecovery(),
		),
		tools:      p,
		advertised: map[string]bool{},
	}
}

// Refresh re-reads the provider's tool set and updates what the server
// advertises. Tools that disappeared from the provider are withdrawn.
func (s *Server) Refresh(ctx context.Context) error {
	set, err := s.tools.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("listing tools: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var stale []string
	for name := range s.advertised {
		if _, ok := set[name]; !ok {
			stale = append(stale, name)
			delete(s.advertised, name)
		}
	}
	if len(stale) > 0 {
		s.mcp.DeleteTools(stale...)
	}

	entries := make([]mcpserver.ServerTool, 0, len(set))
	for _, t := range tools.Sorted(set) {
		schema, err := inputSchema(t)
		if err != nil {
			return fmt.Errorf("tool %s: %w", t.Name, err)
		}
		entries = append(entries, mcpserver.ServerTool{
			Tool:    mcpgo.NewToolWithRawSchema(t.Name, t.Description, schema),
			Handler: s.callTool(t.Name),
		})
		s.advertised[t.Name] = true
	}
	if len(entries) > 0 {
		s.mcp.AddTools(entries...)
	}
	return nil
}

func inputSchema(t tools.Tool) (json.RawMessage, error) {
	schema := t.Parameters
	if schema == nil {
		schema = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	b, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("encoding input schema: %w", err)
	}
	return b, nil
}

// callTool resolves name against the provider at call time so executions use
// the current tool set.
func (s *Server) callTool(name string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		set, err := s.tools.ListTools(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing tools: %w", err)
		}
		t, ok := set[name]
		if !ok {
			return mcpgo.NewToolResultError("unknown tool: " + name), nil
		}
		out, err := tools.Execute(ctx, t, req.GetArguments())
		if err != nil {
			return mcpgo.NewToolResultError(err.Error()), nil
		}
		text, err := encode(out)
		if err != nil {
			return nil, fmt.Errorf("encoding %s result: %w", name, err)
		}
		return mcpgo.NewToolResultText(text), nil
	}
}

// Connect registers a protocol session for t, wires its messages to the
// server and starts the transport. The session lives until ctx is done.
func (s *Server) Connect(ctx context.Context, t Transport) error {
	id := t.SessionID()
	if err := s.Refresh(ctx); err != nil {
		return fmt.Errorf("preparing session %s: %w", id, err)
	}

	sess := newClientSession(id)
	if err := s.mcp.RegisterSession(ctx, sess); err != nil {
		return fmt.Errorf("registering session %s: %w", id, err)
	}
	go s.forwardNotifications(ctx, t, sess)

	t.OnMessage(func(msgCtx context.Context, msg json.RawMessage) {
		resp := s.mcp.HandleMessage(s.mcp.WithContext(msgCtx, sess), msg)
		if resp == nil {
			return
		}
		if err := t.Send(resp); err != nil {
			slog.Warn("MCP send failed", "sessionID", id, "error", err)
		}
	})
	if err := t.Start(ctx); err != nil {
		return fmt.Errorf("starting transport for session %s: %w", id, err)
	}
	slog.Debug("MCP session connected", "sessionID", id)
	return nil
}

// Handle processes one raw message outside any session. Notifications
// yield a nil response.
func (s *Server) Handle(ctx context.Context, raw json.RawMessage) mcpgo.JSONRPCMessage {
	return s.mcp.HandleMessage(ctx, raw)
}

func (s *Server) forwardNotifications(ctx context.Context, t Transport, sess *clientSession) {
	defer s.mcp.UnregisterSession(context.Background(), sess.id)
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-sess.notifications:
			if err := t.Send(n); err != nil {
				slog.Warn("MCP notification failed", "sessionID", sess.id, "method", n.Method, "error", err)
			}
		}
	}
}

// clientSession is the protocol library's view of one connected client.
type clientSession struct {
	id            string
	initialized   atomic.Bool
	notifications chan mcpgo.JSONRPCNotification
}

var _ mcpserver.ClientSession = (*clientSession)(nil)

func newClientSession(id string) *clientSession {
	return &clientSession{
		id:            id,
		notifications: make(chan mcpgo.JSONRPCNotification, notificationBuffer),
	}
}

func (c *clientSession) SessionID() string { return c.id }
func (c *clientSession) Initialize()       { c.initialized.Store(true) }
func (c *clientSession) Initialized() bool { return c.initialized.Load() }

func (c *clientSession) NotificationChannel() chan<- mcpgo.JSONRPCNotification {
	return c.notifications
}

func encode(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
