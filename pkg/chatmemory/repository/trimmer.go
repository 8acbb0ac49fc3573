package repository

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/go-go-golems/chatmemory/pkg/chatmemory"
	"github.com/go-go-golems/chatmemory/pkg/persistence/chatstore"
)

// Trimmer keeps conversations bounded by dropping their oldest messages.
type Trimmer struct {
	adapter *chatstore.Adapter
	opts    options
	logger  zerolog.Logger
}

// TrimResult reports list lengths around one EnforceLimit call.
type TrimResult struct {
	Before  int  `json:"before"`
	After   int  `json:"after"`
	Removed int  `json:"removed"`
	Trimmed bool `json:"trimmed"`
}

func NewTrimmer(adapter *chatstore.Adapter, opts ...Option) (*Trimmer, error) {
	if adapter == nil {
		return nil, errors.New("chat memory trimmer: adapter is nil")
	}
	t := &Trimmer{adapter: adapter}
	for _, o := range opts {
		o(&t.opts)
	}
	t.logger = loggerFor(t.opts, "chat_memory_trimmer")
	return t, nil
}

// EnforceLimit drops the oldest deleteCount messages once the conversation
// holds maxLimit messages or more. The retained suffix keeps its order. When
// deleteCount covers the whole list the conversation is removed. A negative
// deleteCount drops nothing but still rewrites a list at the limit. An absent
// conversation is never rewritten, whatever maxLimit is.
func (t *Trimmer) EnforceLimit(ctx context.Context, conversationID string, maxLimit, deleteCount int) (TrimResult, error) {
	if err := chatmemory.RequireConversationID(conversationID); err != nil {
		return TrimResult{}, err
	}
	if maxLimit < 0 {
		return TrimResult{}, chatmemory.InvalidArgumentf("chat memory trimmer: maxLimit must be >= 0, got %d", maxLimit)
	}

	unlock := t.opts.locks.lock(conversationID)
	defer unlock()

	records, err := t.adapter.ListAll(ctx, conversationID)
	if err != nil {
		return TrimResult{}, err
	}
	res := TrimResult{Before: len(records), After: len(records)}
	if len(records) == 0 || len(records) < maxLimit {
		return res, nil
	}

	drop := min(max(0, deleteCount), len(records))
	retained := records[drop:]
	if err := t.adapter.ReplaceAll(ctx, conversationID, retained); err != nil {
		return res, err
	}
	res.After = len(retained)
	res.Removed = drop
	res.Trimmed = true

	t.opts.metrics.Trimmed(drop)
	t.logger.Debug().
		Str("conv_id", conversationID).
		Int("before", res.Before).
		Int("removed", drop).
		Msg("trimmed conversation")
	notify(ctx, t.opts, t.logger, chatmemory.NewChangeEvent(conversationID, chatmemory.ChangeTrimmed, res.After))
	return res, nil
}
