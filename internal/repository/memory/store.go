package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/ecclesia-hub/admin-client/pkg/errors"
)

// Store is an in-process KeyValueStore. State does not survive a restart.
type Store struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{values: make(map[string]string)}
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return "", apperrors.NotFound("key", key)
	}
	return v, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return nil
}

func (s *Store) SetMulti(_ context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range values {
		s.values[k] = v
	}
	return nil
}

func (s *Store) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		delete(s.values, k)
	}
	return nil
}

// Keys returns matching keys in lexical order.
func (s *Store) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for k := range s.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) Ping(context.Context) error { return nil }
