// Package uistream encodes and decodes the UI message stream protocol: a
// server-sent event stream of JSON chunks terminated by "[DONE]".
package uistream

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/nstogner/nevernood/pkg/domain"
)

// Chunk types.
const (
	TypeStart               = "start"
	TypeStartStep           = "start-step"
	TypeTextStart           = "text-start"
	TypeTextDelta           = "text-delta"
	TypeTextEnd             = "text-end"
	TypeToolInputAvailable  = "tool-input-available"
	TypeToolOutputAvailable = "tool-output-available"
	TypeToolOutputError     = "tool-output-error"
	TypeFinishStep          = "finish-step"
	TypeFinish              = "finish"
	TypeError               = "error"
)

// HeaderName marks a response as a UI message stream.
const HeaderName = "x-vercel-ai-ui-message-stream"

const doneMarker = "[DONE]"

// ErrDone is returned by Write after the stream has been terminated.
var ErrDone = errors.New("ui message stream already done")

// Chunk is one event of the stream. Which fields are set depends on Type.
type Chunk struct {
	Type         string `json:"type"`
	MessageID    string `json:"messageId,omitempty"`
	ID           string `json:"id,omitempty"`
	Delta        string `json:"delta,omitempty"`
	ToolCallID   string `json:"toolCallId,omitempty"`
	ToolName     string `json:"toolName,omitempty"`
	Input        any    `json:"input,omitempty"`
	Output       any    `json:"output,omitempty"`
	ErrorText    string `json:"errorText,omitempty"`
	FinishReason string `json:"finishReason,omitempty"`
}

// Writer emits chunks to an HTTP response, flushing after each one. Headers
// are written with the first chunk.
type Writer struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
	done    bool
}

// NewWriter returns a Writer over w.
func NewWriter(w http.ResponseWriter) *Writer {
	return &Writer{w: w, rc: http.NewResponseController(w)}
}

// SetHeaders applies the stream headers to h.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set(HeaderName, "v1")
	h.Set("x-accel-buffering", "no")
}

// Write encodes and flushes a single chunk.
func (w *Writer) Write(c Chunk) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding %s chunk: %w", c.Type, err)
	}
	return w.writeData(string(data))
}

// Done terminates the stream. Subsequent calls are no-ops.
func (w *Writer) Done() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return nil
	}
	err := w.writeDataLocked(doneMarker)
	w.done = true
	return err
}

func (w *Writer) writeData(data string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeDataLocked(data)
}

// writeDataLocked frames one data line. w.mu must be held.
func (w *Writer) writeDataLocked(data string) error {
	if w.done {
		return ErrDone
	}
	if !w.started {
		SetHeaders(w.w.Header())
		w.w.WriteHeader(http.StatusOK)
		w.started = true
	}
	if _, err := io.WriteString(w.w, "data: "+data+"\n\n"); err != nil {
		return err
	}
	if err := w.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

// Decode reads chunks from a stream until "[DONE]" or EOF.
func Decode(r io.Reader) ([]Chunk, error) {
	var chunks []Chunk
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == doneMarker {
			return chunks, nil
		}
		var c Chunk
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			return chunks, fmt.Errorf("decoding chunk %q: %w", data, err)
		}
		chunks = append(chunks, c)
	}
	return chunks, sc.Err()
}

type toolPart struct {
	Type       string `json:"type"`
	ToolCallID string `json:"toolCallId"`
	State      string `json:"state"`
	Input      any    `json:"input,omitempty"`
	Output     any    `json:"output,omitempty"`
	ErrorText  string `json:"errorText,omitempty"`
}

// Assemble rebuilds the assistant message described by chunks. Text blocks
// become text parts and tool calls become "tool-<name>" parts.
func Assemble(chunks []Chunk) (domain.UIMessage, error) {
	msg := domain.UIMessage{Role: domain.RoleAssistant}

	textIdx := map[string]int{}
	toolIdx := map[string]int{}
	tools := []*toolPart{}
	type slot struct {
		text bool
		idx  int
	}
	var order []slot
	var texts []string

	for _, c := range chunks {
		switch c.Type {
		case TypeStart:
			msg.ID = c.MessageID
		case TypeTextStart:
			textIdx[c.ID] = len(texts)
			order = append(order, slot{text: true, idx: len(texts)})
			texts = append(texts, "")
		case TypeTextDelta:
			i, ok := textIdx[c.ID]
			if !ok {
				i = len(texts)
				textIdx[c.ID] = i
				order = append(order, slot{text: true, idx: i})
				texts = append(texts, "")
			}
			texts[i] += c.Delta
		case TypeToolInputAvailable:
			toolIdx[c.ToolCallID] = len(tools)
			order = append(order, slot{idx: len(tools)})
			tools = append(tools, &toolPart{
				Type:       "tool-" + c.ToolName,
				ToolCallID: c.ToolCallID,
				State:      "input-available",
				Input:      c.Input,
			})
		case TypeToolOutputAvailable:
			if i, ok := toolIdx[c.ToolCallID]; ok {
				tools[i].State = "output-available"
				tools[i].Output = c.Output
			}
		case TypeToolOutputError:
			if i, ok := toolIdx[c.ToolCallID]; ok {
				tools[i].State = "output-error"
				tools[i].ErrorText = c.ErrorText
			}
		}
	}

	for _, s := range order {
		if s.text {
			msg.Parts = append(msg.Parts, domain.TextPart(texts[s.idx]))
			continue
		}
		raw, err := json.Marshal(tools[s.idx])
		if err != nil {
			return msg, err
		}
		var p domain.Part
		if err := json.Unmarshal(raw, &p); err != nil {
			return msg, err
		}
		msg.Parts = append(msg.Parts, p)
	}
	return msg, nil
}

// Errors returns the error texts carried by error chunks.
func Errors(chunks []Chunk) []string {
	var out []string
	for _, c := range chunks {
		if c.Type == TypeError {
			out = append(out, c.ErrorText)
		}
	}
	return out
}
