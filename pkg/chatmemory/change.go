package chatmemory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ChangeKind string

const (
	ChangeSaved   ChangeKind = "saved"
	ChangeDeleted ChangeKind = "deleted"
	ChangeTrimmed ChangeKind = "trimmed"
)

// ChangeEvent describes a completed mutation of one conversation. Length is
// the number of stored messages after the mutation.
type ChangeEvent struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	Kind           ChangeKind `json:"kind"`
	Length         int        `json:"length"`
	AtMs           int64      `json:"at_ms"`
}

func NewChangeEvent(conversationID string, kind ChangeKind, length int) ChangeEvent {
	return ChangeEvent{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Kind:           kind,
		Length:         length,
		AtMs:           time.Now().UnixMilli(),
	}
}

// Notifier is told about every successful mutation. Errors are reported to
// the caller's logger only; the mutation itself has already happened.
type Notifier interface {
	ConversationChanged(ctx context.Context, ev ChangeEvent) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev ChangeEvent) error

func (f NotifierFunc) ConversationChanged(ctx context.Context, ev ChangeEvent) error {
	return f(ctx, ev)
}
