// Package repository implements conversation history storage on top of a
// list store: enumerate, read, replace and delete whole conversations, plus
// the retention trimmer that bounds their length.
package repository

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/chatmemory/pkg/chatmemory"
	"github.com/go-go-golems/chatmemory/pkg/chatmemory/codec"
	"github.com/go-go-golems/chatmemory/pkg/persistence/chatstore"
)

type Repository struct {
	adapter *chatstore.Adapter
	codec   *codec.Codec
	opts    options
	logger  zerolog.Logger
}

func New(adapter *chatstore.Adapter, c *codec.Codec, opts ...Option) (*Repository, error) {
	if adapter == nil {
		return nil, errors.New("chat memory repository: adapter is nil")
	}
	if c == nil {
		c = codec.New()
	}
	r := &Repository{adapter: adapter, codec: c}
	for _, o := range opts {
		o(&r.opts)
	}
	r.logger = loggerFor(r.opts, "chat_memory_repository")
	return r, nil
}

func loggerFor(o options, component string) zerolog.Logger {
	if o.logger != nil {
		return *o.logger
	}
	return log.Logger.With().Str("component", component).Logger()
}

func (r *Repository) Adapter() *chatstore.Adapter { return r.adapter }

// Trimmer returns a trimmer sharing this repository's adapter, lock set,
// notifier and metrics.
func (r *Repository) Trimmer() *Trimmer {
	return &Trimmer{adapter: r.adapter, opts: r.opts, logger: loggerFor(r.opts, "chat_memory_trimmer")}
}

// FindConversationIDs lists every stored conversation id in store order.
func (r *Repository) FindConversationIDs(ctx context.Context) ([]string, error) {
	return r.adapter.ListConversationIDs(ctx)
}

// FindByConversationID returns the stored history oldest first. An absent
// conversation yields an empty slice. A record that is not JSON fails the
// whole read.
func (r *Repository) FindByConversationID(ctx context.Context, conversationID string) ([]chatmemory.Message, error) {
	if err := chatmemory.RequireConversationID(conversationID); err != nil {
		return nil, err
	}
	records, err := r.adapter.ListAll(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	out := make([]chatmemory.Message, 0, len(records))
	for i, rec := range records {
		m, err := r.codec.Decode(rec)
		if err != nil {
			return nil, errors.Wrapf(err, "chat memory repository: conversation %q element %d", conversationID, i)
		}
		out = append(out, m)
	}
	return out, nil
}

// SaveAll replaces the stored history with messages. Every message is encoded
// before the store is touched, so an encoding failure leaves the previous
// history in place. Saving an empty slice removes the conversation.
func (r *Repository) SaveAll(ctx context.Context, conversationID string, messages []*chatmemory.Message) error {
	if err := chatmemory.RequireConversationID(conversationID); err != nil {
		return err
	}
	if messages == nil {
		return chatmemory.InvalidArgumentf("chat memory repository: messages cannot be null")
	}
	for i, m := range messages {
		if m == nil {
			return chatmemory.InvalidArgumentf("chat memory repository: messages cannot contain null elements (index %d)", i)
		}
	}

	records := make([]string, 0, len(messages))
	for i, m := range messages {
		rec, err := r.codec.Encode(*m)
		if err != nil {
			return errors.Wrapf(err, "chat memory repository: conversation %q element %d", conversationID, i)
		}
		records = append(records, rec)
	}

	unlock := r.opts.locks.lock(conversationID)
	err := r.adapter.ReplaceAll(ctx, conversationID, records)
	unlock()
	if err != nil {
		return err
	}

	r.logger.Debug().Str("conv_id", conversationID).Int("count", len(records)).Msg("saved conversation")
	notify(ctx, r.opts, r.logger, chatmemory.NewChangeEvent(conversationID, chatmemory.ChangeSaved, len(records)))
	return nil
}

// DeleteByConversationID removes the conversation. Deleting an absent
// conversation succeeds.
func (r *Repository) DeleteByConversationID(ctx context.Context, conversationID string) error {
	if err := chatmemory.RequireConversationID(conversationID); err != nil {
		return err
	}
	unlock := r.opts.locks.lock(conversationID)
	err := r.adapter.DeleteAll(ctx, conversationID)
	unlock()
	if err != nil {
		return err
	}

	r.logger.Debug().Str("conv_id", conversationID).Msg("deleted conversation")
	notify(ctx, r.opts, r.logger, chatmemory.NewChangeEvent(conversationID, chatmemory.ChangeDeleted, 0))
	return nil
}

func notify(ctx context.Context, o options, logger zerolog.Logger, ev chatmemory.ChangeEvent) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.ConversationChanged(ctx, ev); err != nil {
		logger.Warn().Err(err).
			Str("conv_id", ev.ConversationID).
			Str("kind", string(ev.Kind)).
			Msg("change notification failed")
	}
}
