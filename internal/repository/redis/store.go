package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/ecclesia-hub/admin-client/pkg/errors"
)

const scanBatch = 100

// Store implements repository.KeyValueStore on Redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a Redis-backed key-value store.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Get reads a single key.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperrors.NotFound("key", key)
		}
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

// Set writes a single key without expiry. Expiry is decided by the caller.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// SetMulti writes all values inside one MULTI/EXEC transaction.
func (s *Store) SetMulti(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range values {
			pipe.Set(ctx, k, v, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set multi: %w", err)
	}
	return nil
}

// Delete removes keys in a single DEL.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Keys walks the keyspace with SCAN so large databases are not blocked.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, escapeGlob(prefix)+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s*: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// escapeGlob quotes the characters SCAN MATCH treats as patterns.
func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
