package domain

// Role defines the sender of a message.
type Role string

const (
	// RoleUser indicates a message from the user.
	RoleUser Role = "user"
	// RoleAssistant indicates a message from the model/assistant.
	RoleAssistant Role = "assistant"
	// RoleSystem indicates a system-level message.
	RoleSystem Role = "system"
	// RoleTool indicates a tool result fed back to the model.
	RoleTool Role = "tool"
)

// Valid reports whether r is a role a client may send in a UI message.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Model message content types.
const (
	ContentTypeText       = "text"
	ContentTypeToolCall   = "tool_call"
	ContentTypeToolResult = "tool_result"
)
