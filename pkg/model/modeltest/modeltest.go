// Package modeltest provides a scripted model.Provider for tests.
package modeltest

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/nstogner/nevernood/pkg/domain"
	"github.com/nstogner/nevernood/pkg/model"
)

// StepFunc returns the events for the n-th (zero based) model call.
type StepFunc func(n int, req model.Request) ([]model.Event, error)

// Provider records every request and replays scripted events.
type Provider struct {
	Step StepFunc
	// StreamErr, if set, is returned by Stream instead of a stream.
	StreamErr error
	// RecvErr, if set, is returned by Recv after the scripted events.
	RecvErr error

	mu       sync.Mutex
	requests []model.Request
}

var _ model.Provider = (*Provider)(nil)

// Text returns a provider that always answers with the given text.
func Text(text string) *Provider {
	return &Provider{Step: func(int, model.Request) ([]model.Event, error) {
		return []model.Event{
			{Type: model.EventTextDelta, Text: text},
			{Type: model.EventFinish, FinishReason: "stop"},
		}, nil
	}}
}

// AlwaysCall returns a provider whose every step requests the named tool.
func AlwaysCall(tool string) *Provider {
	return &Provider{Step: func(n int, _ model.Request) ([]model.Event, error) {
		return []model.Event{
			{Type: model.EventToolCall, ToolCall: &domain.ToolCall{
				ID:    "call-" + string(rune('a'+n)),
				Name:  tool,
				Input: map[string]any{},
			}},
			{Type: model.EventFinish, FinishReason: "tool_calls"},
		}, nil
	}}
}

func (p *Provider) Name() string { return "mock" }

func (p *Provider) List(ctx context.Context) ([]domain.Model, error) {
	return []domain.Model{{ID: "mock-model", Name: "Mock", Provider: "mock"}}, nil
}

func (p *Provider) Stream(ctx context.Context, req model.Request) (model.Stream, error) {
	p.mu.Lock()
	n := len(p.requests)
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	if p.StreamErr != nil {
		return nil, p.StreamErr
	}
	var events []model.Event
	if p.Step != nil {
		var err error
		if events, err = p.Step(n, req); err != nil {
			return nil, err
		}
	}
	return &Stream{events: events, err: p.RecvErr}, nil
}

// Calls returns the number of Stream invocations.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// Requests returns a copy of the recorded requests.
func (p *Provider) Requests() []model.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.Request(nil), p.requests...)
}

// Stream replays a fixed list of events.
type Stream struct {
	events []model.Event
	err    error
	Closed bool
}

func (s *Stream) Recv() (model.Event, error) {
	if len(s.events) == 0 {
		if s.err != nil {
			return model.Event{}, s.err
		}
		return model.Event{}, io.EOF
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, nil
}

func (s *Stream) Close() error {
	s.Closed = true
	return nil
}

// Collect drains s and returns the complete assistant message, the way a
// client that waits for the whole step would see it.
func Collect(s model.Stream) (model.Message, error) {
	var text strings.Builder
	var textSignature []byte
	var calls []model.Content

	for {
		ev, err := s.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return model.Message{}, err
		}
		switch ev.Type {
		case model.EventTextDelta:
			text.WriteString(ev.Text)
			if len(ev.ThoughtSignature) > 0 {
				textSignature = ev.ThoughtSignature
			}
		case model.EventToolCall:
			calls = append(calls, model.Content{
				Type:             domain.ContentTypeToolCall,
				ToolCall:         ev.ToolCall,
				ThoughtSignature: ev.ThoughtSignature,
			})
		}
	}

	var content []model.Content
	if text.Len() > 0 {
		content = append(content, model.Content{
			Type:             domain.ContentTypeText,
			Text:             text.String(),
			ThoughtSignature: textSignature,
		})
	}
	content = append(content, calls...)

	return model.Message{Role: domain.RoleAssistant, Content: content}, nil
}
