// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session keeps per-session engine state between requests. The
// memory store serves a single process; the redis store lets state survive
// restarts and be shared by several API instances.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/aiwrite/pkg/types"
)

// ErrNotFound is returned when a session id is unknown or expired.
var ErrNotFound = errors.New("session not found")

// Store persists SessionState by session id.
type Store interface {
	Get(ctx context.Context, id string) (types.SessionState, error)
	Put(ctx context.Context, id string, state types.SessionState) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// NewID returns a fresh random session id.
func NewID() string {
	return uuid.NewString()
}

// Open builds the configured store.
func Open(cfg types.SessionConfig) (Store, error) {
	switch cfg.Backend {
	case types.SessionMemory, "":
		return NewMemoryStore(cfg.TTL), nil
	case types.SessionRedis:
		return NewRedisStore(cfg.RedisURL, cfg.TTL)
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}

type memoryEntry struct {
	state   types.SessionState
	expires time.Time
}

// MemoryStore keeps sessions in process memory. Expired entries are dropped
// lazily on lookup.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

// NewMemoryStore returns an empty store. A zero ttl never expires entries.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (types.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return types.SessionState{}, ErrNotFound
	}
	if !e.expires.IsZero() && s.now().After(e.expires) {
		delete(s.entries, id)
		return types.SessionState{}, ErrNotFound
	}
	return e.state, nil
}

func (s *MemoryStore) Put(_ context.Context, id string, state types.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := memoryEntry{state: state}
	if s.ttl > 0 {
		e.expires = s.now().Add(s.ttl)
	}
	s.entries[id] = e
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
