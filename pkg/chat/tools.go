package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/nstogner/nevernood/pkg/domain"
	"github.com/nstogner/nevernood/pkg/model"
	"github.com/nstogner/nevernood/pkg/tools"
	"github.com/nstogner/nevernood/pkg/uistream"
	"golang.org/x/sync/errgroup"
)

func isEOF(err error) bool { return errors.Is(err, io.EOF) }

// maxParallelTools caps how many tool calls of one step run at once.
const maxParallelTools = 8

type toolOutcome struct {
	output  any
	content string
	err     error
}

// runTools executes the requested calls concurrently and reports the outcomes
// in call order. Tool failures are returned to the model as error results.
// An output that cannot be encoded fails the step and cancels the other calls.
func (t *Turn) runTools(ctx context.Context, w *uistream.Writer, calls []*domain.ToolCall) ([]model.Content, error) {
	outcomes := make([]toolOutcome, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelTools)
	for i, tc := range calls {
		g.Go(func() error {
			out, err := t.dispatchTool(gctx, tc)
			if err != nil {
				outcomes[i] = toolOutcome{err: err}
				return nil
			}
			content, err := encodeOutput(out)
			if err != nil {
				return fmt.Errorf("encoding %s output: %w", tc.Name, err)
			}
			outcomes[i] = toolOutcome{output: out, content: content}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]model.Content, 0, len(calls))
	for i, tc := range calls {
		o := outcomes[i]
		t.p.metrics.ToolCall(tc.Name, o.err)

		result := &domain.ToolResult{ToolCallID: tc.ID, Name: tc.Name}
		if o.err != nil {
			slog.Warn("Tool call failed", "tool", tc.Name, "toolCallID", tc.ID, "error", o.err)
			result.Content = fmt.Sprintf("Error: %v", o.err)
			result.IsError = true
			if err := w.Write(uistream.Chunk{
				Type:       uistream.TypeToolOutputError,
				ToolCallID: tc.ID,
				ErrorText:  o.err.Error(),
			}); err != nil {
				return nil, err
			}
		} else {
			result.Content = o.content
			if err := w.Write(uistream.Chunk{
				Type:       uistream.TypeToolOutputAvailable,
				ToolCallID: tc.ID,
				Output:     o.output,
			}); err != nil {
				return nil, err
			}
		}
		results = append(results, model.Content{Type: domain.ContentTypeToolResult, ToolResult: result})
	}
	return results, nil
}

// dispatchTool routes a tool call to the matching tool in the turn's set.
func (t *Turn) dispatchTool(ctx context.Context, tc *domain.ToolCall) (any, error) {
	tool, ok := t.toolSet[tc.Name]
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", tc.Name)
	}
	return tools.Execute(ctx, tool, tc.Input)
}

func encodeOutput(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
