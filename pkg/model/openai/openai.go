// Package openai implements model.Provider on top of the OpenAI chat
// completions API. Any OpenAI compatible endpoint works via BaseURL.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nstogner/nevernood/pkg/domain"
	"github.com/nstogner/nevernood/pkg/model"
	openai "github.com/sashabaranov/go-openai"
)

// Config configures the provider.
type Config struct {
	APIKey     string
	BaseURL    string // optional; for compatible or self-hosted servers
	HTTPClient *http.Client
}

// Provider implements model.Provider using go-openai.
type Provider struct {
	client *openai.Client
}

var _ model.Provider = (*Provider)(nil)

// New creates a new OpenAI provider.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing OpenAI API key")
	}
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		config.HTTPClient = cfg.HTTPClient
	} else {
		config.HTTPClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Provider{client: openai.NewClientWithConfig(config)}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "openai" }

// List returns the models visible to the API key.
func (p *Provider) List(ctx context.Context) ([]domain.Model, error) {
	list, err := p.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing openai models: %w", err)
	}
	models := make([]domain.Model, 0, len(list.Models))
	for _, m := range list.Models {
		models = append(models, domain.Model{
			ID:       m.ID,
			Name:     m.ID,
			Provider: "openai",
		})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

// Stream starts a streaming chat completion for one step.
func (p *Provider) Stream(ctx context.Context, req model.Request) (model.Stream, error) {
	slog.Debug("OpenAI.Stream", "model", req.Model, "messageCount", len(req.Messages), "toolCount", len(req.Tools))

	creq, err := buildRequest(req)
	if err != nil {
		return nil, err
	}
	stream, err := p.client.CreateChatCompletionStream(ctx, creq)
	if err != nil {
		return nil, fmt.Errorf("starting openai stream: %w", err)
	}
	return &openaiStream{stream: stream, calls: map[int]*pendingCall{}}, nil
}

func buildRequest(req model.Request) (openai.ChatCompletionRequest, error) {
	msgs, err := convertMessages(req.Instructions, req.Messages)
	if err != nil {
		return openai.ChatCompletionRequest{}, err
	}
	creq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: msgs,
		Stream:   true,
	}
	// Reasoning models reject any temperature other than the default.
	if req.Temperature != nil && !isReasoningModel(req.Model) {
		creq.Temperature = *req.Temperature
		// The client omits a zero temperature, which the API treats as its
		// default rather than as greedy sampling.
		if creq.Temperature == 0 {
			creq.Temperature = math.SmallestNonzeroFloat32
		}
	}
	for _, t := range req.Tools {
		creq.Tools = append(creq.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return creq, nil
}

func isReasoningModel(name string) bool {
	for _, prefix := range []string{"gpt-5", "o1", "o3", "o4"} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func convertMessages(instructions string, messages []model.Message) ([]openai.ChatCompletionMessage, error) {
	var out []openai.ChatCompletionMessage
	if instructions != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: instructions})
	}

	for _, msg := range messages {
		var text strings.Builder
		var calls []openai.ToolCall
		for _, c := range msg.Content {
			switch c.Type {
			case domain.ContentTypeText:
				text.WriteString(c.Text)
			case domain.ContentTypeToolCall:
				if c.ToolCall == nil {
					continue
				}
				args, err := json.Marshal(c.ToolCall.Input)
				if err != nil {
					return nil, fmt.Errorf("encoding tool call %s arguments: %w", c.ToolCall.ID, err)
				}
				calls = append(calls, openai.ToolCall{
					ID:   c.ToolCall.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      c.ToolCall.Name,
						Arguments: string(args),
					},
				})
			case domain.ContentTypeToolResult:
				// Each tool result is its own message.
				if c.ToolResult != nil {
					out = append(out, openai.ChatCompletionMessage{
						Role:       openai.ChatMessageRoleTool,
						Content:    c.ToolResult.Content,
						ToolCallID: c.ToolResult.ToolCallID,
					})
				}
			}
		}

		if msg.Role == domain.RoleTool {
			continue
		}
		if text.Len() == 0 && len(calls) == 0 {
			continue
		}
		out = append(out, openai.ChatCompletionMessage{
			Role:      string(msg.Role),
			Content:   text.String(),
			ToolCalls: calls,
		})
	}
	return out, nil
}

type pendingCall struct {
	id   string
	name string
	args strings.Builder
}

// openaiStream accumulates tool call fragments by index and emits them once
// the step finishes.
type openaiStream struct {
	stream  *openai.ChatCompletionStream
	calls   map[int]*pendingCall
	pending []model.Event
	reason  string
	done    bool
}

func (s *openaiStream) Recv() (model.Event, error) {
	for len(s.pending) == 0 {
		if s.done {
			return model.Event{}, io.EOF
		}
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			if err := s.flushCalls(); err != nil {
				return model.Event{}, err
			}
			s.done = true
			reason := s.reason
			if reason == "" {
				reason = string(openai.FinishReasonStop)
			}
			s.pending = append(s.pending, model.Event{Type: model.EventFinish, FinishReason: reason})
			break
		}
		if err != nil {
			return model.Event{}, err
		}
		s.handle(resp)
	}

	ev := s.pending[0]
	s.pending = s.pending[1:]
	return ev, nil
}

func (s *openaiStream) handle(resp openai.ChatCompletionStreamResponse) {
	for _, choice := range resp.Choices {
		if choice.Delta.Content != "" {
			s.pending = append(s.pending, model.Event{Type: model.EventTextDelta, Text: choice.Delta.Content})
		}
		for _, tc := range choice.Delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			pc, ok := s.calls[idx]
			if !ok {
				pc = &pendingCall{}
				s.calls[idx] = pc
			}
			if tc.ID != "" {
				pc.id = tc.ID
			}
			if tc.Function.Name != "" {
				pc.name = tc.Function.Name
			}
			pc.args.WriteString(tc.Function.Arguments)
		}
		if choice.FinishReason != "" {
			s.reason = string(choice.FinishReason)
		}
	}
}

func (s *openaiStream) flushCalls() error {
	idxs := make([]int, 0, len(s.calls))
	for i := range s.calls {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)

	for _, i := range idxs {
		pc := s.calls[i]
		input := map[string]any{}
		if raw := strings.TrimSpace(pc.args.String()); raw != "" {
			if err := json.Unmarshal([]byte(raw), &input); err != nil {
				return fmt.Errorf("decoding arguments for tool %s: %w", pc.name, err)
			}
		}
		id := pc.id
		if id == "" {
			id = "call-" + uuid.New().String()
		}
		s.pending = append(s.pending, model.Event{
			Type:     model.EventToolCall,
			ToolCall: &domain.ToolCall{ID: id, Name: pc.name, Input: input},
		})
	}
	s.calls = map[int]*pendingCall{}
	return nil
}

func (s *openaiStream) Close() error {
	return s.stream.Close()
}
