package chatstore

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// InMemoryListBackend keeps lists in process memory. Intended for tests and
// local runs; content is lost on exit.
type InMemoryListBackend struct {
	mu    sync.Mutex
	lists map[string][]string
}

var (
	_ ListBackend = &InMemoryListBackend{}
	_ Replacer    = &InMemoryListBackend{}
)

func NewInMemoryListBackend() *InMemoryListBackend {
	return &InMemoryListBackend{lists: map[string][]string{}}
}

func (s *InMemoryListBackend) Range(_ context.Context, key string) ([]string, error) {
	if s == nil {
		return nil, errors.New("in-memory list backend: nil backend")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.lists[key]...), nil
}

func (s *InMemoryListBackend) Push(_ context.Context, key string, values ...string) error {
	if s == nil {
		return errors.New("in-memory list backend: nil backend")
	}
	if len(values) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[key] = append(s.lists[key], values...)
	return nil
}

func (s *InMemoryListBackend) Delete(_ context.Context, key string) error {
	if s == nil {
		return errors.New("in-memory list backend: nil backend")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lists, key)
	return nil
}

func (s *InMemoryListBackend) Keys(_ context.Context, prefix string) ([]string, error) {
	if s == nil {
		return nil, errors.New("in-memory list backend: nil backend")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.lists))
	for k := range s.lists {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (s *InMemoryListBackend) Replace(_ context.Context, key string, values []string) error {
	if s == nil {
		return errors.New("in-memory list backend: nil backend")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(values) == 0 {
		delete(s.lists, key)
		return nil
	}
	s.lists[key] = append([]string{}, values...)
	return nil
}

func (s *InMemoryListBackend) Close() error { return nil }
