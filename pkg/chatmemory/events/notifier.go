// Package events carries conversation change events over watermill and runs
// the retention worker that trims conversations reacting to them.
package events

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"

	"github.com/go-go-golems/chatmemory/pkg/chatmemory"
)

const metadataConversationID = "conversation_id"

// WatermillNotifier publishes every ChangeEvent as a JSON watermill message.
// Delivery order is not guaranteed: the in-process transport hands each
// message to subscribers on its own goroutine. Consumers must not rely on
// events of one conversation arriving in mutation order.
type WatermillNotifier struct {
	publisher message.Publisher
	topic     string
}

var _ chatmemory.Notifier = &WatermillNotifier{}

func NewWatermillNotifier(publisher message.Publisher, topic string) (*WatermillNotifier, error) {
	if publisher == nil {
		return nil, errors.New("events: publisher is nil")
	}
	if topic == "" {
		return nil, errors.New("events: topic is empty")
	}
	return &WatermillNotifier{publisher: publisher, topic: topic}, nil
}

func (n *WatermillNotifier) ConversationChanged(ctx context.Context, ev chatmemory.ChangeEvent) error {
	msg, err := NewMessage(ev)
	if err != nil {
		return err
	}
	msg.SetContext(ctx)
	if err := n.publisher.Publish(n.topic, msg); err != nil {
		return errors.Wrapf(err, "events: publish %s event for %q", ev.Kind, ev.ConversationID)
	}
	return nil
}

// NewMessage wraps ev in a watermill message whose UUID is the event id.
func NewMessage(ev chatmemory.ChangeEvent) (*message.Message, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, errors.Wrap(err, "events: marshal change event")
	}
	msg := message.NewMessage(ev.ID, payload)
	msg.Metadata.Set(metadataConversationID, ev.ConversationID)
	return msg, nil
}

// ParseMessage decodes the ChangeEvent carried by msg.
func ParseMessage(msg *message.Message) (chatmemory.ChangeEvent, error) {
	var ev chatmemory.ChangeEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return chatmemory.ChangeEvent{}, errors.Wrap(err, "events: unmarshal change event")
	}
	if ev.ConversationID == "" {
		return chatmemory.ChangeEvent{}, errors.New("events: change event without conversation id")
	}
	return ev, nil
}
