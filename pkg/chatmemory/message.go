package chatmemory

import "strings"

// Role identifies who authored a message. The set is closed: anything that
// does not name one of the constants below is treated as RoleUser.
type Role string

const (
	RoleUser      Role = "USER"
	RoleAssistant Role = "ASSISTANT"
	RoleSystem    Role = "SYSTEM"
)

// Roles lists the closed role set in a stable order.
func Roles() []Role {
	return []Role{RoleUser, RoleAssistant, RoleSystem}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// ParseRole maps a case-insensitive role name onto the closed set. The second
// return value is false when the name was not recognized and RoleUser was
// substituted.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if r.Valid() {
		return r, true
	}
	return RoleUser, false
}

// Message is one entry of a conversation history.
type Message struct {
	Role     Role           `json:"role" yaml:"role"`
	Text     string         `json:"text" yaml:"text"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Text: text}
}

func NewAssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Text: text}
}

func NewSystemMessage(text string) Message {
	return Message{Role: RoleSystem, Text: text}
}
