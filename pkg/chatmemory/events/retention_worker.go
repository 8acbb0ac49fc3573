package events

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/chatmemory/pkg/chatmemory"
	"github.com/go-go-golems/chatmemory/pkg/chatmemory/repository"
)

// Enforcer is the part of repository.Trimmer the worker needs.
type Enforcer interface {
	EnforceLimit(ctx context.Context, conversationID string, maxLimit, deleteCount int) (repository.TrimResult, error)
}

var _ Enforcer = &repository.Trimmer{}

// RetentionWorker trims conversations whose saved length reached MaxLimit.
type RetentionWorker struct {
	subscriber  message.Subscriber
	topic       string
	trimmer     Enforcer
	maxLimit    int
	deleteCount int
	logger      zerolog.Logger
	onTrim      func(chatmemory.ChangeEvent, repository.TrimResult)
}

type WorkerOption func(*RetentionWorker)

func WithWorkerLogger(l zerolog.Logger) WorkerOption {
	return func(w *RetentionWorker) {
		w.logger = l
	}
}

// WithTrimObserver is called after each EnforceLimit triggered by an event.
func WithTrimObserver(f func(chatmemory.ChangeEvent, repository.TrimResult)) WorkerOption {
	return func(w *RetentionWorker) {
		w.onTrim = f
	}
}

func NewRetentionWorker(subscriber message.Subscriber, topic string, trimmer Enforcer, maxLimit, deleteCount int, opts ...WorkerOption) (*RetentionWorker, error) {
	if subscriber == nil {
		return nil, errors.New("retention worker: subscriber is nil")
	}
	if trimmer == nil {
		return nil, errors.New("retention worker: trimmer is nil")
	}
	if topic == "" {
		return nil, errors.New("retention worker: topic is empty")
	}
	if maxLimit < 0 {
		return nil, chatmemory.InvalidArgumentf("retention worker: maxLimit must be >= 0, got %d", maxLimit)
	}
	w := &RetentionWorker{
		subscriber:  subscriber,
		topic:       topic,
		trimmer:     trimmer,
		maxLimit:    maxLimit,
		deleteCount: deleteCount,
		logger:      log.Logger.With().Str("component", "retention_worker").Logger(),
	}
	for _, o := range opts {
		o(w)
	}
	return w, nil
}

// Run consumes change events until ctx is cancelled or the subscription
// closes. Every message is acked; a failed trim is logged and the next save
// of the conversation triggers another attempt.
func (w *RetentionWorker) Run(ctx context.Context) error {
	ch, err := w.subscriber.Subscribe(ctx, w.topic)
	if err != nil {
		return errors.Wrap(err, "retention worker: subscribe")
	}
	w.logger.Info().Str("topic", w.topic).Int("max_limit", w.maxLimit).Int("delete_count", w.deleteCount).Msg("retention worker started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			w.handle(ctx, msg)
			msg.Ack()
		}
	}
}

func (w *RetentionWorker) handle(ctx context.Context, msg *message.Message) {
	ev, err := ParseMessage(msg)
	if err != nil {
		w.logger.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("retention worker: failed to decode event")
		return
	}
	if ev.Kind != chatmemory.ChangeSaved || ev.Length < w.maxLimit {
		return
	}
	res, err := w.trimmer.EnforceLimit(ctx, ev.ConversationID, w.maxLimit, w.deleteCount)
	if err != nil {
		w.logger.Warn().Err(err).Str("conv_id", ev.ConversationID).Msg("retention worker: trim failed")
		return
	}
	if res.Trimmed {
		w.logger.Debug().Str("conv_id", ev.ConversationID).Int("removed", res.Removed).Int("after", res.After).Msg("retention worker: trimmed")
	}
	if w.onTrim != nil {
		w.onTrim(ev, res)
	}
}
