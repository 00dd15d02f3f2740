package chat

import (
	"encoding/json"
	"testing"

	"github.com/nstogner/nevernood/pkg/domain"
)

func TestConvertMessages(t *testing.T) {
	var history []domain.UIMessage
	raw := `[
		{"id":"1","role":"user","parts":[{"type":"text","text":"What should I wear?"}]},
		{"id":"2","role":"assistant","parts":[{"type":"step-start"},{"type":"text","text":"Jeans."},{"type":"text","text":"And a tee."}]},
		{"id":"3","role":"user","parts":[{"type":"file","url":"x"}]},
		{"id":"4","role":"user","parts":[{"type":"text","text":"Thanks"}]}
	]`
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		t.Fatal(err)
	}

	got := ConvertMessages(history)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	want := []struct {
		role  domain.Role
		texts []string
	}{
		{domain.RoleUser, []string{"What should I wear?"}},
		{domain.RoleAssistant, []string{"Jeans.", "And a tee."}},
		{domain.RoleUser, []string{"Thanks"}},
	}
	for i, w := range want {
		if got[i].Role != w.role {
			t.Errorf("[%d] role = %q, want %q", i, got[i].Role, w.role)
		}
		if len(got[i].Content) != len(w.texts) {
			t.Fatalf("[%d] content = %+v", i, got[i].Content)
		}
		for j, text := range w.texts {
			if got[i].Content[j].Text != text || got[i].Content[j].Type != domain.ContentTypeText {
				t.Errorf("[%d][%d] = %+v, want %q", i, j, got[i].Content[j], text)
			}
		}
	}
}
