package chat

import (
	"github.com/nstogner/nevernood/pkg/domain"
	"github.com/nstogner/nevernood/pkg/model"
)

// ConvertMessages flattens UI messages into model messages. Only text parts
// are carried over; messages without any text are dropped. Order is kept.
func ConvertMessages(history []domain.UIMessage) []model.Message {
	messages := make([]model.Message, 0, len(history))
	for _, m := range history {
		var content []model.Content
		for _, p := range m.Parts {
			if !p.IsText() || p.Text == "" {
				continue
			}
			content = append(content, model.Content{Type: domain.ContentTypeText, Text: p.Text})
		}
		if len(content) == 0 {
			continue
		}
		messages = append(messages, model.Message{Role: m.Role, Content: content})
	}
	return messages
}
