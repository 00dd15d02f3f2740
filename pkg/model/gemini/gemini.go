package gemini

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/nstogner/nevernood/pkg/domain"
	"github.com/nstogner/nevernood/pkg/model"
	"google.golang.org/genai"
)

// Provider implements model.Provider using the Google Gen AI SDK.
type Provider struct {
	client *genai.Client
}

// Verify interface compliance.
var _ model.Provider = (*Provider)(nil)

// New creates a new Gemini provider.
func New(ctx context.Context, apiKey string) (*Provider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Provider{client: client}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "gemini" }

// List returns available Gemini models.
func (p *Provider) List(ctx context.Context) ([]domain.Model, error) {
	var models []domain.Model
	for m, err := range p.client.Models.All(ctx) {
		if err != nil {
			return nil, err
		}
		if strings.Contains(strings.ToLower(m.Name), "gemma") || !supports(m.SupportedActions, "generateContent") {
			continue
		}
		models = append(models, domain.Model{
			ID:        strings.TrimPrefix(m.Name, "models/"),
			Name:      m.DisplayName,
			Provider:  "gemini",
			MaxTokens: int(m.InputTokenLimit),
		})
	}
	return models, nil
}

func supports(actions []string, want string) bool {
	for _, a := range actions {
		if a == want {
			return true
		}
	}
	return false
}

// Stream sends a conversation context to the LLM and returns a stream.
func (p *Provider) Stream(ctx context.Context, req model.Request) (model.Stream, error) {
	slog.Debug("Gemini.Stream", "model", req.Model, "messageCount", len(req.Messages), "toolCount", len(req.Tools))

	contents, system := convertMessages(req.Instructions, req.Messages)

	config := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Temperature:       req.Temperature,
	}
	if len(req.Tools) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: buildToolDeclarations(req.Tools)}}
	}

	streamCtx, cancel := context.WithCancel(ctx)
	next, stop := iter.Pull2(p.client.Models.GenerateContentStream(streamCtx, req.Model, contents, config))

	return &geminiStream{
		next:   next,
		stop:   stop,
		cancel: cancel,
	}, nil
}

// convertMessages maps the conversation onto genai contents. System messages
// are folded into the system instruction after the base instructions.
func convertMessages(instructions string, messages []model.Message) ([]*genai.Content, *genai.Content) {
	var contents []*genai.Content
	var systemParts []*genai.Part
	toolNameMap := make(map[string]string) // tool call ID -> name

	if instructions != "" {
		systemParts = append(systemParts, &genai.Part{Text: instructions})
	}

	for _, msg := range messages {
		if msg.Role == domain.RoleSystem {
			for _, c := range msg.Content {
				if c.Type == domain.ContentTypeText && c.Text != "" {
					systemParts = append(systemParts, &genai.Part{Text: c.Text})
				}
			}
			continue
		}

		var parts []*genai.Part
		for _, c := range msg.Content {
			switch c.Type {
			case domain.ContentTypeText:
				parts = append(parts, &genai.Part{
					Text:             c.Text,
					ThoughtSignature: c.ThoughtSignature,
				})
			case domain.ContentTypeToolCall:
				if c.ToolCall != nil {
					toolNameMap[c.ToolCall.ID] = c.ToolCall.Name
					parts = append(parts, &genai.Part{
						FunctionCall: &genai.FunctionCall{
							Name: c.ToolCall.Name,
							Args: c.ToolCall.Input,
							ID:   c.ToolCall.ID,
						},
						ThoughtSignature: c.ThoughtSignature,
					})
				}
			case domain.ContentTypeToolResult:
				if c.ToolResult != nil {
					name := c.ToolResult.Name
					if name == "" {
						name = toolNameMap[c.ToolResult.ToolCallID]
					}
					key := "result"
					if c.ToolResult.IsError {
						key = "error"
					}
					parts = append(parts, &genai.Part{
						FunctionResponse: &genai.FunctionResponse{
							Name:     name,
							ID:       c.ToolResult.ToolCallID,
							Response: map[string]any{key: c.ToolResult.Content},
						},
					})
				}
			}
		}

		role := "user"
		if msg.Role == domain.RoleAssistant {
			role = "model"
		}

		if len(parts) > 0 {
			contents = append(contents, &genai.Content{
				Role:  role,
				Parts: parts,
			})
		}
	}

	var system *genai.Content
	if len(systemParts) > 0 {
		system = &genai.Content{Parts: systemParts}
	}
	return contents, system
}

func buildToolDeclarations(specs []model.ToolSpec) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, s := range specs {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  convertSchema(s.Parameters),
		})
	}
	return decls
}

// convertSchema translates a JSON Schema object into a genai.Schema.
func convertSchema(js map[string]any) *genai.Schema {
	if js == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := js["type"].(string); ok {
		s.Type = genai.Type(strings.ToUpper(t))
	}
	if d, ok := js["description"].(string); ok {
		s.Description = d
	}
	if props, ok := js["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, v := range props {
			if pm, ok := v.(map[string]any); ok {
				s.Properties[name] = convertSchema(pm)
			}
		}
	}
	if items, ok := js["items"].(map[string]any); ok {
		s.Items = convertSchema(items)
	}
	s.Required = stringList(js["required"])
	s.Enum = stringList(js["enum"])
	return s
}

func stringList(v any) []string {
	switch l := v.(type) {
	case []string:
		return l
	case []any:
		out := make([]string, 0, len(l))
		for _, e := range l {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// geminiStream adapts the Gemini streaming iterator to model.Stream.
type geminiStream struct {
	next    func() (*genai.GenerateContentResponse, error, bool)
	stop    func()
	cancel  context.CancelFunc
	pending []model.Event
	reason  string
	done    bool
}

func (s *geminiStream) Recv() (model.Event, error) {
	for len(s.pending) == 0 {
		if s.done {
			return model.Event{}, io.EOF
		}
		resp, err, ok := s.next()
		if !ok {
			s.done = true
			reason := s.reason
			if reason == "" {
				reason = string(genai.FinishReasonStop)
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

func (s *geminiStream) handle(resp *genai.GenerateContentResponse) {
	if resp == nil {
		return
	}
	for _, cand := range resp.Candidates {
		if cand.FinishReason != "" {
			s.reason = string(cand.FinishReason)
		}
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.Text != "" && !part.Thought {
				s.pending = append(s.pending, model.Event{
					Type:             model.EventTextDelta,
					Text:             part.Text,
					ThoughtSignature: part.ThoughtSignature,
				})
			}
			if fc := part.FunctionCall; fc != nil {
				id := fc.ID
				if id == "" {
					id = "call-" + uuid.New().String()
				}
				s.pending = append(s.pending, model.Event{
					Type: model.EventToolCall,
					ToolCall: &domain.ToolCall{
						ID:    id,
						Name:  fc.Name,
						Input: fc.Args,
					},
					ThoughtSignature: part.ThoughtSignature,
				})
			}
		}
	}
}

func (s *geminiStream) Close() error {
	s.stop()
	s.cancel()
	return nil
}
