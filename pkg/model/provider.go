package model

import (
	"context"

	"github.com/nstogner/nevernood/pkg/domain"
)

// Message represents a message in the model's conversation context.
type Message struct {
	// Role indicates the sender (user, assistant, tool, system).
	Role domain.Role
	// Content holds the message parts.
	Content []Content
}

// Content represents a single component of a message.
type Content struct {
	Type string // "text", "tool_call", "tool_result"

	// Text content (when Type == "text").
	Text string `json:"text,omitempty"`

	// Tool call (when Type == "tool_call").
	ToolCall *domain.ToolCall `json:"tool_call,omitempty"`

	// Tool result (when Type == "tool_result").
	ToolResult *domain.ToolResult `json:"tool_result,omitempty"`

	// ThoughtSignature is an opaque signature for the model's internal state.
	// Must be round-tripped back to the model on the next request.
	ThoughtSignature []byte `json:"thought_signature,omitempty"`
}

// ToolSpec describes a tool the model may call. Parameters is a JSON Schema
// object.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Request is a single model invocation.
type Request struct {
	// Model identifies which model to use (e.g. "gpt-5").
	Model string
	// Instructions is the system prompt.
	Instructions string
	// Messages is the conversation history.
	Messages []Message
	// Tools the model may call during this step.
	Tools []ToolSpec
	// Temperature is the sampling temperature. Nil leaves the provider default.
	Temperature *float32
}

// Provider represents a service that provides LLMs (e.g. Gemini, OpenAI).
type Provider interface {
	// Name returns the provider's identifier (e.g. "gemini", "openai").
	Name() string

	// List returns the available models from this provider.
	List(ctx context.Context) ([]domain.Model, error)

	// Stream sends a conversation context to the LLM and returns a stream of
	// events for a single step.
	Stream(ctx context.Context, req Request) (Stream, error)
}

// EventType distinguishes stream events.
type EventType string

const (
	EventTextDelta EventType = "text_delta"
	EventToolCall  EventType = "tool_call"
	EventFinish    EventType = "finish"
)

// Event is one increment of a model response.
type Event struct {
	Type EventType

	// Text is set for EventTextDelta.
	Text string

	// ToolCall is set for EventToolCall. Tool calls are only emitted once
	// their arguments are complete.
	ToolCall *domain.ToolCall

	// ThoughtSignature accompanies a text delta or tool call when the
	// provider supplies one.
	ThoughtSignature []byte

	// FinishReason is set for EventFinish.
	FinishReason string
}

// Stream abstracts the stream of responses from the model.
type Stream interface {
	// Recv returns the next event. It returns io.EOF once the step is done.
	Recv() (Event, error)

	// Close releases resources associated with this stream.
	Close() error
}
