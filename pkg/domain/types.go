package domain

import (
	"encoding/json"
	"time"
)

// PartTypeText is the only UI part type interpreted by the server.
const PartTypeText = "text"

// UIMessage is the client-facing message structure.
type UIMessage struct {
	ID    string `json:"id"`
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// Part is a tagged variant. Only text parts are interpreted; every other kind
// is kept as raw JSON and passed through untouched.
type Part struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`

	raw json.RawMessage
}

// TextPart returns a text part.
func TextPart(text string) Part {
	return Part{Type: PartTypeText, Text: text}
}

// IsText reports whether the part is the text variant.
func (p Part) IsText() bool { return p.Type == PartTypeText }

// Raw returns the original encoding of an opaque part, if any.
func (p Part) Raw() json.RawMessage { return p.raw }

func (p *Part) UnmarshalJSON(b []byte) error {
	var head struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return err
	}
	p.Type = head.Type
	p.Text = head.Text
	p.raw = nil
	if head.Type != PartTypeText {
		p.raw = append(json.RawMessage(nil), b...)
	}
	return nil
}

func (p Part) MarshalJSON() ([]byte, error) {
	if !p.IsText() && len(p.raw) > 0 {
		return p.raw, nil
	}
	type plain Part
	return json.Marshal(plain(p))
}

// Text concatenates the text parts of the message in order, separated by newlines.
func (m UIMessage) Text() string {
	var out []byte
	for _, p := range m.Parts {
		if !p.IsText() || p.Text == "" {
			continue
		}
		if len(out) > 0 {
			out = append(out, '\n')
		}
		out = append(out, p.Text...)
	}
	return string(out)
}

// Model represents an available LLM model.
type Model struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Provider  string `json:"provider"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

// ToolCall represents a tool invocation by the model.
type ToolCall struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// ToolResult represents the outcome of a tool call execution.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name,omitempty"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error"`
}

// WardrobeItem is a piece of clothing the assistant can recommend from.
type WardrobeItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Color     string    `json:"color,omitempty"`
	Season    string    `json:"season,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
