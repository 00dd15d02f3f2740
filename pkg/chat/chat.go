// Package chat runs a single chat turn: it fetches tools, calls the model in a
// bounded step loop, executes requested tools and streams everything to the
// client as a UI message stream.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nstogner/nevernood/pkg/domain"
	"github.com/nstogner/nevernood/pkg/metrics"
	"github.com/nstogner/nevernood/pkg/model"
	"github.com/nstogner/nevernood/pkg/tools"
	"github.com/nstogner/nevernood/pkg/uistream"
)

// SystemPrompt is the fixed instruction sent with every turn.
const SystemPrompt = "You are a helpful clothing and styling assistant for someone getting dressed up in the morning. In 3 sentences: tell the user what the outfit is, review the outfit, and tell them why they will look good while wearing it."

const (
	DefaultMaxSteps    = 5
	DefaultTemperature = float32(0.7)
)

// streamErrorText is sent to the client in place of internal error details.
const streamErrorText = "An error occurred."

// Options configures a Pipeline. Zero values fall back to the defaults.
type Options struct {
	Model        string
	Instructions string
	Temperature  *float32
	MaxSteps     int
	Metrics      *metrics.Metrics
}

// Pipeline turns a UI message history into a streamed assistant reply.
type Pipeline struct {
	provider     model.Provider
	tools        tools.Provider
	model        string
	instructions string
	temperature  *float32
	maxSteps     int
	metrics      *metrics.Metrics
}

// New creates a new Pipeline.
func New(provider model.Provider, toolProvider tools.Provider, opts Options) *Pipeline {
	p := &Pipeline{
		provider:     provider,
		tools:        toolProvider,
		model:        opts.Model,
		instructions: opts.Instructions,
		temperature:  opts.Temperature,
		maxSteps:     opts.MaxSteps,
		metrics:      opts.Metrics,
	}
	if p.instructions == "" {
		p.instructions = SystemPrompt
	}
	if p.temperature == nil {
		t := DefaultTemperature
		p.temperature = &t
	}
	if p.maxSteps <= 0 {
		p.maxSteps = DefaultMaxSteps
	}
	return p
}

// Turn is a chat turn whose first model step has already been started.
type Turn struct {
	p        *Pipeline
	toolSet  map[string]tools.Tool
	req      model.Request
	stream   model.Stream
	started  time.Time
	steps    int
	finished bool
}

// Start fetches the tool set, converts the history and starts the first model
// step. Nothing has been written to the client when Start returns an error.
func (p *Pipeline) Start(ctx context.Context, history []domain.UIMessage) (*Turn, error) {
	p.metrics.TurnStarted()
	started := time.Now()

	toolSet, err := p.tools.ListTools(ctx)
	if err != nil {
		p.metrics.Error(metrics.StageTools)
		return nil, fmt.Errorf("fetching tools: %w", err)
	}

	req := model.Request{
		Model:        p.model,
		Instructions: p.instructions,
		Messages:     ConvertMessages(history),
		Tools:        toolSpecs(toolSet),
		Temperature:  p.temperature,
	}

	stream, err := p.provider.Stream(ctx, req)
	if err != nil {
		p.metrics.Error(metrics.StageModel)
		return nil, fmt.Errorf("starting model stream: %w", err)
	}

	return &Turn{
		p:       p,
		toolSet: toolSet,
		req:     req,
		stream:  stream,
		started: started,
		steps:   1,
	}, nil
}

func toolSpecs(set map[string]tools.Tool) []model.ToolSpec {
	sorted := tools.Sorted(set)
	specs := make([]model.ToolSpec, 0, len(sorted))
	for _, t := range sorted {
		specs = append(specs, model.ToolSpec{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return specs
}

// Steps returns the number of model invocations made so far.
func (t *Turn) Steps() int { return t.steps }

// Close releases the current model stream.
func (t *Turn) Close() error {
	if t.stream == nil {
		return nil
	}
	err := t.stream.Close()
	t.stream = nil
	return err
}

// Run streams the turn to w. Each step forwards model output, then executes
// any requested tools and feeds their results into the next step. The loop
// ends when a step requests no tools or the step ceiling is reached. Errors
// after the stream has begun are reported to the client as an error chunk.
func (t *Turn) Run(ctx context.Context, w *uistream.Writer) error {
	if t.finished {
		return errors.New("turn already run")
	}
	t.finished = true
	defer t.Close()
	defer func() { t.p.metrics.TurnFinished(t.started, t.steps) }()

	if err := w.Write(uistream.Chunk{Type: uistream.TypeStart, MessageID: "msg-" + uuid.New().String()}); err != nil {
		return err
	}

	for {
		msg, calls, err := t.forwardStep(w)
		if err != nil {
			return t.fail(w, metrics.StageStream, err)
		}

		var results []model.Content
		if len(calls) > 0 {
			results, err = t.runTools(ctx, w, calls)
			if err != nil {
				return t.fail(w, metrics.StageStream, err)
			}
		}

		if err := w.Write(uistream.Chunk{Type: uistream.TypeFinishStep}); err != nil {
			return err
		}

		if len(calls) == 0 || t.steps >= t.p.maxSteps {
			break
		}

		t.req.Messages = append(t.req.Messages, msg, model.Message{Role: domain.RoleTool, Content: results})
		t.Close()
		t.stream, err = t.p.provider.Stream(ctx, t.req)
		if err != nil {
			return t.fail(w, metrics.StageModel, fmt.Errorf("starting model step %d: %w", t.steps+1, err))
		}
		t.steps++
	}

	if err := w.Write(uistream.Chunk{Type: uistream.TypeFinish}); err != nil {
		return err
	}
	return w.Done()
}

func (t *Turn) fail(w *uistream.Writer, stage string, err error) error {
	t.p.metrics.Error(stage)
	slog.Error("Chat turn failed", "step", t.steps, "stage", stage, "error", err)
	if werr := w.Write(uistream.Chunk{Type: uistream.TypeError, ErrorText: streamErrorText}); werr != nil {
		return errors.Join(err, werr)
	}
	if derr := w.Done(); derr != nil {
		return errors.Join(err, derr)
	}
	return err
}

// forwardStep relays one model step to the client and returns the assistant
// message it produced together with the tool calls it requested.
func (t *Turn) forwardStep(w *uistream.Writer) (model.Message, []*domain.ToolCall, error) {
	if err := w.Write(uistream.Chunk{Type: uistream.TypeStartStep}); err != nil {
		return model.Message{}, nil, err
	}

	msg := model.Message{Role: domain.RoleAssistant}
	var calls []*domain.ToolCall
	var textID string
	var text []byte
	var textSig []byte

	endText := func() error {
		if textID == "" {
			return nil
		}
		msg.Content = append(msg.Content, model.Content{
			Type:             domain.ContentTypeText,
			Text:             string(text),
			ThoughtSignature: textSig,
		})
		err := w.Write(uistream.Chunk{Type: uistream.TypeTextEnd, ID: textID})
		textID, text, textSig = "", nil, nil
		return err
	}

	for {
		ev, err := t.stream.Recv()
		if isEOF(err) {
			break
		}
		if err != nil {
			return msg, nil, fmt.Errorf("receiving model step %d: %w", t.steps, err)
		}

		switch ev.Type {
		case model.EventTextDelta:
			if ev.Text == "" {
				continue
			}
			if textID == "" {
				textID = uuid.New().String()
				if err := w.Write(uistream.Chunk{Type: uistream.TypeTextStart, ID: textID}); err != nil {
					return msg, nil, err
				}
			}
			text = append(text, ev.Text...)
			if len(ev.ThoughtSignature) > 0 {
				textSig = ev.ThoughtSignature
			}
			if err := w.Write(uistream.Chunk{Type: uistream.TypeTextDelta, ID: textID, Delta: ev.Text}); err != nil {
				return msg, nil, err
			}

		case model.EventToolCall:
			if ev.ToolCall == nil {
				continue
			}
			if err := endText(); err != nil {
				return msg, nil, err
			}
			tc := ev.ToolCall
			if tc.Input == nil {
				tc.Input = map[string]any{}
			}
			calls = append(calls, tc)
			msg.Content = append(msg.Content, model.Content{
				Type:             domain.ContentTypeToolCall,
				ToolCall:         tc,
				ThoughtSignature: ev.ThoughtSignature,
			})
			if err := w.Write(uistream.Chunk{
				Type:       uistream.TypeToolInputAvailable,
				ToolCallID: tc.ID,
				ToolName:   tc.Name,
				Input:      tc.Input,
			}); err != nil {
				return msg, nil, err
			}

		case model.EventFinish:
			slog.Debug("Model step finished", "step", t.steps, "reason", ev.FinishReason)
		}
	}

	if err := endText(); err != nil {
		return msg, nil, err
	}
	return msg, calls, nil
}
