package chatstore

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/go-go-golems/chatmemory/pkg/chatmemory"
)

// DefaultKeyPrefix namespaces conversation keys in a shared keyspace. It must
// not change for an existing deployment without migrating the keys, because
// conversation ids are recovered by stripping exactly this prefix.
const DefaultKeyPrefix = "spring_ai_chat_memory:"

// ListBackend is the list-valued key-value store holding one list per
// conversation. Every method is expected to be atomic for a single key.
type ListBackend interface {
	// Range returns the whole list in stored order, or an empty slice when
	// the key does not exist.
	Range(ctx context.Context, key string) ([]string, error)
	// Push appends values to the tail of the list, preserving their order.
	Push(ctx context.Context, key string, values ...string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys enumerates the keys starting with prefix, in no particular order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Replacer is implemented by backends that can swap a list's content
// atomically. An empty values slice must leave no key behind.
type Replacer interface {
	Replace(ctx context.Context, key string, values []string) error
}

// Adapter maps conversation ids to namespaced keys and exposes list
// primitives over a ListBackend. Backend failures are reported as
// chatmemory.ErrStore.
type Adapter struct {
	backend ListBackend
	prefix  string
}

type AdapterOption func(*Adapter)

func WithKeyPrefix(prefix string) AdapterOption {
	return func(a *Adapter) {
		a.prefix = prefix
	}
}

func NewAdapter(backend ListBackend, opts ...AdapterOption) (*Adapter, error) {
	if backend == nil {
		return nil, errors.New("chat store adapter: backend is nil")
	}
	a := &Adapter{backend: backend, prefix: DefaultKeyPrefix}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

func (a *Adapter) Prefix() string { return a.prefix }

func (a *Adapter) Backend() ListBackend { return a.backend }

func (a *Adapter) KeyFor(conversationID string) string {
	return a.prefix + conversationID
}

func (a *Adapter) ListAll(ctx context.Context, conversationID string) ([]string, error) {
	key := a.KeyFor(conversationID)
	values, err := a.backend.Range(ctx, key)
	if err != nil {
		return nil, chatmemory.StoreError(err, "chat store adapter: range "+key)
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}

// AppendAll pushes values to the tail of the conversation's list. A failure
// may leave a prefix of values appended.
func (a *Adapter) AppendAll(ctx context.Context, conversationID string, values []string) error {
	if len(values) == 0 {
		return nil
	}
	key := a.KeyFor(conversationID)
	if err := a.backend.Push(ctx, key, values...); err != nil {
		return chatmemory.StoreError(err, "chat store adapter: push "+key)
	}
	return nil
}

func (a *Adapter) DeleteAll(ctx context.Context, conversationID string) error {
	key := a.KeyFor(conversationID)
	if err := a.backend.Delete(ctx, key); err != nil {
		return chatmemory.StoreError(err, "chat store adapter: delete "+key)
	}
	return nil
}

// ReplaceAll swaps the conversation's list for values. Backends implementing
// Replacer do this atomically. Otherwise the key is deleted and values are
// appended afterwards, and a failure in between leaves the conversation
// truncated or partially rewritten.
func (a *Adapter) ReplaceAll(ctx context.Context, conversationID string, values []string) error {
	key := a.KeyFor(conversationID)
	if r, ok := a.backend.(Replacer); ok {
		if err := r.Replace(ctx, key, values); err != nil {
			return chatmemory.StoreError(err, "chat store adapter: replace "+key)
		}
		return nil
	}
	if err := a.DeleteAll(ctx, conversationID); err != nil {
		return err
	}
	return a.AppendAll(ctx, conversationID, values)
}

// Atomic reports whether ReplaceAll is atomic on this backend.
func (a *Adapter) Atomic() bool {
	_, ok := a.backend.(Replacer)
	return ok
}

func (a *Adapter) ListConversationIDs(ctx context.Context) ([]string, error) {
	keys, err := a.backend.Keys(ctx, a.prefix)
	if err != nil {
		return nil, chatmemory.StoreError(err, "chat store adapter: keys "+a.prefix)
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if !strings.HasPrefix(k, a.prefix) {
			continue
		}
		ids = append(ids, k[len(a.prefix):])
	}
	return ids, nil
}

func (a *Adapter) Close() error {
	return a.backend.Close()
}
