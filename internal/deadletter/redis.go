package deadletter

import (
	"context"
	"encoding/json"

	"github.com/resilix/resilix/internal/redisx"
	"github.com/resilix/resilix/pkg/errors"
)

// DefaultRedisKey is the list key used when none is configured
const DefaultRedisKey = "resilix:dead_letters"

// RedisStore persists dead letter records as JSON in a Redis list,
// newest first
type RedisStore struct {
	client *redisx.Client
	key    string
	// maxEntries caps the list length, 0 keeps everything
	maxEntries int64
}

// NewRedisStore creates a store backed by the given Redis client.
// A positive maxEntries trims the oldest records after each write.
func NewRedisStore(client *redisx.Client, key string, maxEntries int) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{
		client:     client,
		key:        key,
		maxEntries: int64(maxEntries),
	}
}

// Add pushes a record onto the front of the list and trims the tail
// when a cap is configured
func (s *RedisStore) Add(ctx context.Context, record *Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return errors.NewInternalError("failed to marshal dead letter").WithCause(err)
	}
	if err := s.client.LPush(ctx, s.key, data); err != nil {
		return err
	}
	if s.maxEntries > 0 {
		return s.client.LTrim(ctx, s.key, 0, s.maxEntries-1)
	}
	return nil
}

// List returns the most recent records, newest first
func (s *RedisStore) List(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	raw, err := s.client.LRange(ctx, s.key, 0, int64(limit-1))
	if err != nil {
		return nil, err
	}

	records := make([]*Record, 0, len(raw))
	for _, item := range raw {
		var record Record
		if err := json.Unmarshal([]byte(item), &record); err != nil {
			return nil, errors.NewInternalError("failed to unmarshal dead letter").WithCause(err)
		}
		records = append(records, &record)
	}
	return records, nil
}

// Count returns the number of stored records
func (s *RedisStore) Count(ctx context.Context) (int64, error) {
	return s.client.LLen(ctx, s.key)
}
