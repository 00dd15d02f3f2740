// Package transport adapts HTTP handlers to the push-oriented session
// transport used by the capability server.
package transport

import (
	"errors"
	"io"
	"maps"
	"net/http"
	"strings"
	"sync"
)

// EventClose is the only response event the transports observe.
const EventClose = "close"

var (
	// ErrNotConnected is returned when writing to a session that has not
	// started or has already closed.
	ErrNotConnected = errors.New("transport not connected")
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("transport already started")
	// ErrInvalidMessage is returned for client messages that are not valid JSON.
	ErrInvalidMessage = errors.New("invalid message")
	// ErrResponseClosed is returned by writes after the connection ended.
	ErrResponseClosed = errors.New("response closed")
)

// ResponseWriter is the minimal writable response surface a transport needs.
// Write appends a line break after every chunk.
type ResponseWriter interface {
	On(event string, callback func())
	WriteHead(statusCode int, headers map[string]string)
	Write(chunk string) error
}

// BufferedResponse collects a whole event stream in memory so a handler that
// must return one finished response can host a push-oriented transport.
//
// A "close" callback runs synchronously as soon as it is registered, because
// the hosting handler cannot observe a real disconnect before it returns.
// Session cleanup therefore happens immediately, not on true disconnect.
// Writes after close are still accepted.
type BufferedResponse struct {
	mu      sync.Mutex
	status  int
	headers map[string]string
	body    strings.Builder
}

var _ ResponseWriter = (*BufferedResponse)(nil)

// NewBufferedResponse returns an open response with status 200 and no headers.
func NewBufferedResponse() *BufferedResponse {
	return &BufferedResponse{
		status:  http.StatusOK,
		headers: map[string]string{},
	}
}

// On invokes callback immediately when event is "close". Other events are ignored.
func (b *BufferedResponse) On(event string, callback func()) {
	if event == EventClose && callback != nil {
		callback()
	}
}

// WriteHead records the status and headers. Each call replaces the previous
// status and the whole header map; headers are not merged.
func (b *BufferedResponse) WriteHead(statusCode int, headers map[string]string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = statusCode
	b.headers = maps.Clone(headers)
	if b.headers == nil {
		b.headers = map[string]string{}
	}
}

// Write appends chunk followed by a line break.
func (b *BufferedResponse) Write(chunk string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.body.WriteString(chunk)
	b.body.WriteByte('\n')
	return nil
}

// Finalize returns the accumulated status, headers and body.
func (b *BufferedResponse) Finalize() (int, map[string]string, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status, maps.Clone(b.headers), b.body.String()
}

// Respond packages the buffered state into a single HTTP response.
func (b *BufferedResponse) Respond(w http.ResponseWriter) error {
	status, headers, body := b.Finalize()
	for k, v := range headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(status)
	_, err := io.WriteString(w, body)
	return err
}

// StreamingResponse writes each chunk straight to the client and flushes it.
// Close callbacks fire once, when the client disconnects or End is called.
type StreamingResponse struct {
	mu        sync.Mutex
	w         http.ResponseWriter
	flusher   http.Flusher
	wroteHead bool
	closed    bool
	callbacks []func()
	done      chan struct{}
}

var _ ResponseWriter = (*StreamingResponse)(nil)

// NewStreamingResponse wraps w. The response ends when r's context is done.
func NewStreamingResponse(w http.ResponseWriter, r *http.Request) *StreamingResponse {
	s := &StreamingResponse{
		w:    w,
		done: make(chan struct{}),
	}
	s.flusher, _ = w.(http.Flusher)

	go func() {
		select {
		case <-r.Context().Done():
			s.End()
		case <-s.done:
		}
	}()
	return s
}

// On registers callback for "close". If the response already ended the
// callback runs immediately.
func (s *StreamingResponse) On(event string, callback func()) {
	if event != EventClose || callback == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		callback()
		return
	}
	s.callbacks = append(s.callbacks, callback)
	s.mu.Unlock()
}

// WriteHead sends the status line and headers. Only the first call has an
// effect since headers cannot be changed once streaming has begun.
func (s *StreamingResponse) WriteHead(statusCode int, headers map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wroteHead || s.closed {
		return
	}
	for k, v := range headers {
		s.w.Header().Set(k, v)
	}
	s.w.WriteHeader(statusCode)
	s.wroteHead = true
	s.flush()
}

// Write sends chunk followed by a line break and flushes it.
func (s *StreamingResponse) Write(chunk string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrResponseClosed
	}
	s.wroteHead = true
	if _, err := io.WriteString(s.w, chunk+"\n"); err != nil {
		return err
	}
	s.flush()
	return nil
}

// End marks the response finished and fires the close callbacks.
func (s *StreamingResponse) End() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	callbacks := s.callbacks
	s.callbacks = nil
	s.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
	close(s.done)
}

// Done is closed when the response ends, after the close callbacks ran.
func (s *StreamingResponse) Done() <-chan struct{} {
	return s.done
}

func (s *StreamingResponse) flush() {
	if s.flusher != nil {
		s.flusher.Flush()
	}
}
