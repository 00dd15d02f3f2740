package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// WebSocket is a session transport over a single websocket connection.
// Client messages arrive on the socket itself instead of a separate POST.
type WebSocket struct {
	id   string
	conn *websocket.Conn

	writeMu sync.Mutex

	mu        sync.Mutex
	started   bool
	closed    bool
	onMessage func(ctx context.Context, msg json.RawMessage)
	onError   func(error)
	onClose   func()
}

// NewWebSocket wraps an upgraded connection.
func NewWebSocket(conn *websocket.Conn) *WebSocket {
	return &WebSocket{id: uuid.NewString(), conn: conn}
}

func (t *WebSocket) SessionID() string { return t.id }

func (t *WebSocket) OnMessage(fn func(ctx context.Context, msg json.RawMessage)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMessage = fn
}

func (t *WebSocket) OnError(fn func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onError = fn
}

func (t *WebSocket) OnClose(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onClose = fn
}

// Start marks the transport ready. The connection is already established so
// there is no handshake to write.
func (t *WebSocket) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return ErrAlreadyStarted
	}
	if t.closed {
		return ErrNotConnected
	}
	t.started = true
	return nil
}

// Send writes msg as a JSON text frame.
func (t *WebSocket) Send(msg any) error {
	if t.Closed() {
		return ErrNotConnected
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := t.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("writing websocket message: %w", err)
	}
	return nil
}

// HandleMessage delivers one client message to the message handler.
func (t *WebSocket) HandleMessage(ctx context.Context, body []byte) error {
	t.mu.Lock()
	connected := t.started && !t.closed
	handler := t.onMessage
	t.mu.Unlock()

	if !connected {
		return ErrNotConnected
	}
	if !json.Valid(body) {
		err := fmt.Errorf("%w: session %s", ErrInvalidMessage, t.id)
		t.reportError(err)
		return err
	}
	if handler != nil {
		handler(ctx, json.RawMessage(body))
	}
	return nil
}

// Serve reads messages until the connection drops or ctx is done, pinging
// the client periodically. The close hook runs before Serve returns.
func (t *WebSocket) Serve(ctx context.Context) error {
	defer t.Close()

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	// Keepalive.
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				t.conn.Close()
				return
			case <-ticker.C:
				t.writeMu.Lock()
				err := t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
				t.writeMu.Unlock()
				if err != nil {
					t.reportError(fmt.Errorf("pinging session %s: %w", t.id, err))
					t.conn.Close()
					return
				}
			}
		}
	}()

	var err error
	for {
		var data []byte
		_, data, err = t.conn.ReadMessage()
		if err != nil {
			break
		}
		if herr := t.HandleMessage(ctx, data); herr != nil && !errors.Is(herr, ErrInvalidMessage) {
			err = herr
			break
		}
	}

	close(done)
	wg.Wait()

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || ctx.Err() != nil {
		return nil
	}
	return err
}

// Close closes the connection and runs the close hook once.
func (t *WebSocket) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	fn := t.onClose
	t.mu.Unlock()

	err := t.conn.Close()
	slog.Debug("WebSocket session closed", "sessionID", t.id)
	if fn != nil {
		fn()
	}
	return err
}

// Closed reports whether the connection has closed.
func (t *WebSocket) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *WebSocket) reportError(err error) {
	t.mu.Lock()
	fn := t.onError
	t.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}
