package repository

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/go-go-golems/chatmemory/pkg/chatmemory"
	"github.com/go-go-golems/chatmemory/pkg/observability"
)

type options struct {
	locks    *conversationLocks
	notifier chatmemory.Notifier
	metrics  *observability.Metrics
	logger   *zerolog.Logger
}

type Option func(*options)

// WithConversationLocks serializes writes to the same conversation id within
// this process.
func WithConversationLocks() Option {
	return func(o *options) {
		if o.locks == nil {
			o.locks = newConversationLocks()
		}
	}
}

func WithNotifier(n chatmemory.Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &l
	}
}

// conversationLocks hands out one mutex per conversation id. Entries are
// dropped once nobody holds or waits for them.
type conversationLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{entries: map[string]*lockEntry{}}
}

// lock blocks until id is held and returns the matching unlock. A nil set
// never blocks.
func (l *conversationLocks) lock(id string) func() {
	if l == nil {
		return func() {}
	}
	l.mu.Lock()
	e, ok := l.entries[id]
	if !ok {
		e = &lockEntry{}
		l.entries[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.entries, id)
		}
		l.mu.Unlock()
	}
}

func (l *conversationLocks) size() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
