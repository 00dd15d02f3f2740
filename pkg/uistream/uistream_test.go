package uistream

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestWriterFraming(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewWriter(rec)

	if err := w.Write(Chunk{Type: TypeStart, MessageID: "m1"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Write(Chunk{Type: TypeTextDelta, ID: "t1", Delta: "hi"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Done(); err != nil {
		t.Fatalf("Done: %v", err)
	}
	if err := w.Done(); err != nil {
		t.Errorf("second Done: %v", err)
	}
	if err := w.Write(Chunk{Type: TypeFinish}); !errors.Is(err, ErrDone) {
		t.Errorf("Write after Done = %v, want ErrDone", err)
	}

	want := "data: {\"type\":\"start\",\"messageId\":\"m1\"}\n\n" +
		"data: {\"type\":\"text-delta\",\"id\":\"t1\",\"delta\":\"hi\"}\n\n" +
		"data: [DONE]\n\n"
	if got := rec.Body.String(); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
	if !rec.Flushed {
		t.Error("expected response to be flushed")
	}

	h := rec.Result().Header
	for k, v := range map[string]string{
		"Content-Type":      "text/event-stream",
		"Cache-Control":     "no-cache",
		"Connection":        "keep-alive",
		HeaderName:          "v1",
		"x-accel-buffering": "no",
	} {
		if got := h.Get(k); got != v {
			t.Errorf("header %s = %q, want %q", k, got, v)
		}
	}
}

func TestDecodeStopsAtDone(t *testing.T) {
	in := "data: {\"type\":\"start\"}\n\n: comment\n\ndata: {\"type\":\"finish\"}\n\ndata: [DONE]\n\ndata: {\"type\":\"error\"}\n\n"
	chunks, err := Decode(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(chunks) != 2 || chunks[0].Type != TypeStart || chunks[1].Type != TypeFinish {
		t.Errorf("chunks = %+v", chunks)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode(strings.NewReader("data: {not json}\n\n")); err == nil {
		t.Error("expected error for malformed chunk")
	}
}

func TestAssemble(t *testing.T) {
	chunks := []Chunk{
		{Type: TypeStart, MessageID: "msg-1"},
		{Type: TypeStartStep},
		{Type: TypeToolInputAvailable, ToolCallID: "c1", ToolName: "list_wardrobe", Input: map[string]any{}},
		{Type: TypeToolOutputAvailable, ToolCallID: "c1", Output: "[]"},
		{Type: TypeFinishStep},
		{Type: TypeStartStep},
		{Type: TypeTextStart, ID: "t1"},
		{Type: TypeTextDelta, ID: "t1", Delta: "Wear the "},
		{Type: TypeTextDelta, ID: "t1", Delta: "blue shirt."},
		{Type: TypeTextEnd, ID: "t1"},
		{Type: TypeFinishStep},
		{Type: TypeFinish},
	}

	msg, err := Assemble(chunks)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if msg.ID != "msg-1" || msg.Role != "assistant" {
		t.Errorf("msg = %+v", msg)
	}
	if len(msg.Parts) != 2 {
		t.Fatalf("len(Parts) = %d, want 2", len(msg.Parts))
	}
	if msg.Parts[0].Type != "tool-list_wardrobe" {
		t.Errorf("Parts[0].Type = %q", msg.Parts[0].Type)
	}
	var tp map[string]any
	if err := json.Unmarshal(msg.Parts[0].Raw(), &tp); err != nil {
		t.Fatalf("tool part: %v", err)
	}
	if tp["state"] != "output-available" || tp["toolCallId"] != "c1" {
		t.Errorf("tool part = %v", tp)
	}
	if msg.Text() != "Wear the blue shirt." {
		t.Errorf("Text() = %q", msg.Text())
	}
}

func TestErrors(t *testing.T) {
	got := Errors([]Chunk{{Type: TypeStart}, {Type: TypeError, ErrorText: "boom"}})
	if len(got) != 1 || got[0] != "boom" {
		t.Errorf("Errors = %v", got)
	}
}

func TestConcurrentDoneWritesOnce(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewWriter(rec)
	if err := w.Write(Chunk{Type: TypeStart}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Done(); err != nil {
				t.Errorf("Done: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := strings.Count(rec.Body.String(), "data: [DONE]"); n != 1 {
		t.Errorf("[DONE] written %d times, want 1", n)
	}
	if err := w.Write(Chunk{Type: TypeFinish}); !errors.Is(err, ErrDone) {
		t.Errorf("Write after Done = %v, want ErrDone", err)
	}
}
