package gemini_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/nstogner/nevernood/pkg/domain"
	"github.com/nstogner/nevernood/pkg/model"
	"github.com/nstogner/nevernood/pkg/model/gemini"
	"github.com/nstogner/nevernood/pkg/model/modeltest"
)

const testModel = "gemini-2.5-flash"

func setupProvider(t *testing.T) *gemini.Provider {
	t.Helper()
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Skip("Skipping: GEMINI_API_KEY not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	provider, err := gemini.New(ctx, apiKey)
	if err != nil {
		t.Fatalf("gemini.New: %v", err)
	}
	return provider
}

func TestIntegrationGeminiListModels(t *testing.T) {
	p := setupProvider(t)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	models, err := p.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(models) == 0 {
		t.Fatal("No models found")
	}
	for _, m := range models {
		if m.Provider != "gemini" {
			t.Errorf("Model %s has provider %q, want %q", m.ID, m.Provider, "gemini")
		}
	}
}

func TestIntegrationGeminiStreamWithSystemInstruction(t *testing.T) {
	p := setupProvider(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stream, err := p.Stream(ctx, model.Request{
		Model:        testModel,
		Instructions: "You are a helpful assistant named TestBot. Always introduce yourself by name.",
		Messages: []model.Message{{
			Role:    domain.RoleUser,
			Content: []model.Content{{Type: domain.ContentTypeText, Text: "What is your name?"}},
		}},
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer stream.Close()

	resp, err := modeltest.Collect(stream)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(resp.Content) == 0 {
		t.Fatal("Response has no content")
	}
	if text := resp.Content[0].Text; !strings.Contains(strings.ToLower(text), "testbot") {
		t.Errorf("Expected 'TestBot' in response, got: %s", text)
	}
}

func TestIntegrationGeminiStreamToolCall(t *testing.T) {
	p := setupProvider(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stream, err := p.Stream(ctx, model.Request{
		Model:        testModel,
		Instructions: "Always call list_wardrobe before suggesting an outfit.",
		Messages: []model.Message{{
			Role:    domain.RoleUser,
			Content: []model.Content{{Type: domain.ContentTypeText, Text: "What should I wear today?"}},
		}},
		Tools: []model.ToolSpec{{
			Name:        "list_wardrobe",
			Description: "List the clothing items in the user's wardrobe.",
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
		}},
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer stream.Close()

	resp, err := modeltest.Collect(stream)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, c := range resp.Content {
		if c.Type == domain.ContentTypeToolCall && c.ToolCall.Name == "list_wardrobe" {
			return
		}
	}
	t.Errorf("Expected a list_wardrobe tool call, got %+v", resp.Content)
}
