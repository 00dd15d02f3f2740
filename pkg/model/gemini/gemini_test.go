package gemini

import (
	"testing"

	"github.com/nstogner/nevernood/pkg/domain"
	"github.com/nstogner/nevernood/pkg/model"
	"github.com/nstogner/nevernood/pkg/model/modeltest"
	"google.golang.org/genai"
)

func TestConvertMessagesFoldsSystem(t *testing.T) {
	msgs := []model.Message{
		{Role: domain.RoleSystem, Content: []model.Content{{Type: domain.ContentTypeText, Text: "Be brief."}}},
		{Role: domain.RoleUser, Content: []model.Content{{Type: domain.ContentTypeText, Text: "What should I wear?"}}},
		{Role: domain.RoleAssistant, Content: []model.Content{{
			Type:     domain.ContentTypeToolCall,
			ToolCall: &domain.ToolCall{ID: "c1", Name: "list_wardrobe", Input: map[string]any{}},
		}}},
		{Role: domain.RoleTool, Content: []model.Content{{
			Type:       domain.ContentTypeToolResult,
			ToolResult: &domain.ToolResult{ToolCallID: "c1", Content: "[]"},
		}}},
	}

	contents, system := convertMessages("You are a stylist.", msgs)

	if system == nil || len(system.Parts) != 2 {
		t.Fatalf("system = %+v, want instructions plus system message", system)
	}
	if system.Parts[0].Text != "You are a stylist." || system.Parts[1].Text != "Be brief." {
		t.Errorf("system parts = %q, %q", system.Parts[0].Text, system.Parts[1].Text)
	}
	if len(contents) != 3 {
		t.Fatalf("len(contents) = %d, want 3", len(contents))
	}
	wantRoles := []string{"user", "model", "user"}
	for i, c := range contents {
		if c.Role != wantRoles[i] {
			t.Errorf("contents[%d].Role = %q, want %q", i, c.Role, wantRoles[i])
		}
	}
	fr := contents[2].Parts[0].FunctionResponse
	if fr == nil || fr.Name != "list_wardrobe" {
		t.Errorf("function response = %+v, want name resolved from call", fr)
	}
}

func TestConvertSchema(t *testing.T) {
	js := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"category": map[string]any{"type": "string", "description": "Category."},
			"tags":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []any{"category"},
	}

	s := convertSchema(js)
	if s.Type != genai.TypeObject {
		t.Errorf("Type = %q, want OBJECT", s.Type)
	}
	if got := s.Properties["category"]; got == nil || got.Type != genai.TypeString || got.Description != "Category." {
		t.Errorf("category = %+v", got)
	}
	if got := s.Properties["tags"]; got == nil || got.Items == nil || got.Items.Type != genai.TypeString {
		t.Errorf("tags = %+v", got)
	}
	if len(s.Required) != 1 || s.Required[0] != "category" {
		t.Errorf("Required = %v", s.Required)
	}
}

func TestStreamEmitsEventsAndFinish(t *testing.T) {
	responses := []*genai.GenerateContentResponse{
		{Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: "Looks "}}}}}},
		{Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Parts: []*genai.Part{{Text: "great."}, {FunctionCall: &genai.FunctionCall{Name: "list_wardrobe"}}}},
			FinishReason: genai.FinishReasonStop,
		}}},
	}
	i := 0
	s := &geminiStream{
		next: func() (*genai.GenerateContentResponse, error, bool) {
			if i >= len(responses) {
				return nil, nil, false
			}
			i++
			return responses[i-1], nil, true
		},
		stop:   func() {},
		cancel: func() {},
	}
	defer s.Close()

	msg, err := modeltest.Collect(s)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(msg.Content) != 2 || msg.Content[0].Text != "Looks great." {
		t.Fatalf("content = %+v", msg.Content)
	}
	if tc := msg.Content[1].ToolCall; tc == nil || tc.ID == "" || tc.Name != "list_wardrobe" {
		t.Errorf("tool call = %+v, want generated ID", tc)
	}
}
