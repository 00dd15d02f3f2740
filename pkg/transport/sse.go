package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// SSE is a server-sent-events session transport. The client receives an
// "endpoint" event telling it where to POST messages and then one "message"
// event per server message.
type SSE struct {
	id       string
	endpoint string
	w        ResponseWriter

	mu        sync.Mutex
	started   bool
	closed    bool
	eventID   int
	onMessage func(ctx context.Context, msg json.RawMessage)
	onError   func(error)
	onClose   func()
}

// NewSSE creates a transport bound to the message-posting endpoint and the
// response it streams to. Session ids are random UUIDs.
func NewSSE(endpoint string, w ResponseWriter) *SSE {
	return &SSE{
		id:       uuid.NewString(),
		endpoint: endpoint,
		w:        w,
	}
}

// SessionID returns the id clients use to address this session.
func (t *SSE) SessionID() string { return t.id }

// OnMessage sets the handler for client messages.
func (t *SSE) OnMessage(fn func(ctx context.Context, msg json.RawMessage)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMessage = fn
}

// OnError sets the transport-level error observer.
func (t *SSE) OnError(fn func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onError = fn
}

// OnClose sets the hook run once when the connection closes.
func (t *SSE) OnClose(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onClose = fn
}

// Start writes the event-stream headers and the endpoint event, then watches
// the response for closure.
func (t *SSE) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return ErrAlreadyStarted
	}
	t.started = true
	t.mu.Unlock()

	t.w.WriteHead(http.StatusOK, map[string]string{
		"Content-Type":  "text/event-stream",
		"Cache-Control": "no-cache, no-transform",
		"Connection":    "keep-alive",
	})
	if err := t.w.Write(formatEvent("endpoint", "", t.EndpointURL())); err != nil {
		return fmt.Errorf("writing endpoint event: %w", err)
	}
	t.w.On(EventClose, t.handleClose)
	return nil
}

// EndpointURL is the message-posting URL advertised to the client.
func (t *SSE) EndpointURL() string {
	sep := "?"
	if strings.Contains(t.endpoint, "?") {
		sep = "&"
	}
	return t.endpoint + sep + "sessionId=" + url.QueryEscape(t.id)
}

// Send writes msg as a JSON "message" event.
func (t *SSE) Send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started || t.closed {
		return ErrNotConnected
	}
	t.eventID++
	if err := t.w.Write(formatEvent("message", fmt.Sprint(t.eventID), string(data))); err != nil {
		return fmt.Errorf("writing message event: %w", err)
	}
	return nil
}

// HandleMessage delivers a client-posted message to the message handler.
func (t *SSE) HandleMessage(ctx context.Context, body []byte) error {
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

// Close ends the underlying response when possible and runs the close hook.
func (t *SSE) Close() error {
	if e, ok := t.w.(interface{ End() }); ok {
		e.End()
	}
	t.handleClose()
	return nil
}

// Closed reports whether the connection has closed.
func (t *SSE) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *SSE) handleClose() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	fn := t.onClose
	t.mu.Unlock()

	slog.Debug("SSE session closed", "sessionID", t.id)
	if fn != nil {
		fn()
	}
}

func (t *SSE) reportError(err error) {
	t.mu.Lock()
	fn := t.onError
	t.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// formatEvent renders one SSE frame. The trailing blank line is supplied by
// ResponseWriter.Write.
func formatEvent(event, id, data string) string {
	var b strings.Builder
	if id != "" {
		b.WriteString("id: " + id + "\n")
	}
	b.WriteString("event: " + event + "\n")
	for _, line := range strings.Split(data, "\n") {
		b.WriteString("data: " + line + "\n")
	}
	return b.String()
}
