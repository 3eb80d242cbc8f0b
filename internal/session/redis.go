// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pdiddy/aiwrite/pkg/types"
)

const keyPrefix = "aiwrite:session:"

// RedisStore keeps sessions in redis as JSON values with a sliding TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) key(id string) string {
	return keyPrefix + id
}

func (s *RedisStore) Get(ctx context.Context, id string) (types.SessionState, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.SessionState{}, ErrNotFound
	}
	if err != nil {
		return types.SessionState{}, fmt.Errorf("reading session %s: %w", id, err)
	}
	var state types.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return types.SessionState{}, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return state, nil
}

func (s *RedisStore) Put(ctx context.Context, id string, state types.SessionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", id, err)
	}
	if err := s.client.Set(ctx, s.key(id), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("saving session %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	return nil
}

// Close closes the redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
