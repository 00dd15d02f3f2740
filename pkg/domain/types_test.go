package domain

import (
	"encoding/json"
	"testing"
)

func TestUIMessageDecodeKeepsOpaqueParts(t *testing.T) {
	in := `{"id":"m1","role":"assistant","parts":[{"type":"step-start"},{"type":"text","text":"Hello"},{"type":"tool-list_wardrobe","toolCallId":"c1","state":"output-available"}]}`

	var msg UIMessage
	if err := json.Unmarshal([]byte(in), &msg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if msg.Role != RoleAssistant {
		t.Errorf("Role = %q, want %q", msg.Role, RoleAssistant)
	}
	if len(msg.Parts) != 3 {
		t.Fatalf("len(Parts) = %d, want 3", len(msg.Parts))
	}
	if !msg.Parts[1].IsText() || msg.Parts[1].Text != "Hello" {
		t.Errorf("Parts[1] = %+v, want text part Hello", msg.Parts[1])
	}
	if msg.Parts[2].Raw() == nil {
		t.Fatal("opaque part lost its raw encoding")
	}

	out, err := json.Marshal(msg.Parts[2])
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("Unmarshal round trip: %v", err)
	}
	if back["toolCallId"] != "c1" || back["state"] != "output-available" {
		t.Errorf("opaque part fields not preserved: %s", out)
	}
}

func TestUIMessageText(t *testing.T) {
	msg := UIMessage{
		Role: RoleUser,
		Parts: []Part{
			TextPart("What should I wear?"),
			{Type: "file"},
			TextPart("It is raining."),
		},
	}
	if got, want := msg.Text(), "What should I wear?\nIt is raining."; got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleUser, RoleAssistant, RoleSystem} {
		if !r.Valid() {
			t.Errorf("%q should be valid", r)
		}
	}
	for _, r := range []Role{RoleTool, "", "robot"} {
		if r.Valid() {
			t.Errorf("%q should not be valid", r)
		}
	}
}
