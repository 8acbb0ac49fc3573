package codec

import (
	"strings"

	"github.com/go-go-golems/chatmemory/pkg/chatmemory"
)

// Constructor builds a message of a fixed role from its text.
type Constructor func(text string) chatmemory.Message

// RoleTable maps an upper-case discriminator to the constructor used when a
// stored record carries it. Tables are plain values: a Codec copies the table
// it is given and never mutates it afterwards.
type RoleTable map[string]Constructor

// DefaultRoles returns a fresh table for the closed role set.
func DefaultRoles() RoleTable {
	return RoleTable{
		string(chatmemory.RoleUser):      chatmemory.NewUserMessage,
		string(chatmemory.RoleAssistant): chatmemory.NewAssistantMessage,
		string(chatmemory.RoleSystem):    chatmemory.NewSystemMessage,
	}
}

// With returns a copy of t with name (upper-cased) bound to ctor.
func (t RoleTable) With(name string, ctor Constructor) RoleTable {
	out := t.clone()
	out[strings.ToUpper(name)] = ctor
	return out
}

func (t RoleTable) clone() RoleTable {
	out := make(RoleTable, len(t))
	for k, v := range t {
		if v == nil {
			continue
		}
		out[strings.ToUpper(k)] = v
	}
	return out
}

func (t RoleTable) lookup(discriminator string) (Constructor, bool) {
	ctor, ok := t[strings.ToUpper(discriminator)]
	return ctor, ok
}
