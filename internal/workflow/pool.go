// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pdiddy/aiwrite/internal/session"
	"github.com/pdiddy/aiwrite/pkg/types"
)

// Pool owns one Engine per session id. Calls for the same session run one
// at a time; different sessions run concurrently. Engine state is written
// back to the session store after every call so a restarted process can
// rebuild it. Engines idle longer than the idle TTL are dropped; the next
// call for that id rebuilds from whatever the store still holds.
type Pool struct {
	deps     Deps
	sessions session.Store
	initial  types.SessionState
	logger   *slog.Logger
	idleTTL  time.Duration
	now      func() time.Time

	mu      sync.Mutex
	engines map[string]*pooledEngine
}

type pooledEngine struct {
	mu  sync.Mutex
	eng *Engine

	// Guarded by Pool.mu.
	refs     int
	lastUsed time.Time
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithIdleTTL drops engines not used for d. Pass the session store's TTL so
// an expired session is not served from memory. Zero keeps engines forever.
func WithIdleTTL(d time.Duration) PoolOption {
	return func(p *Pool) { p.idleTTL = d }
}

// NewPool returns a pool. initial seeds engines for sessions the store has
// never seen.
func NewPool(deps Deps, sessions session.Store, initial types.SessionState, opts ...PoolOption) *Pool {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		deps:     deps,
		logger:   logger,
		sessions: sessions,
		initial:  initial,
		now:      time.Now,
		engines:  make(map[string]*pooledEngine),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Do runs fn on the engine for session id, creating the engine on first
// use. fn has exclusive access to the engine for its duration.
func (p *Pool) Do(ctx context.Context, id string, fn func(*Engine) error) error {
	pe, err := p.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer p.release(pe)
	pe.mu.Lock()
	defer pe.mu.Unlock()

	fnErr := fn(pe.eng)
	if err := p.sessions.Put(ctx, id, pe.eng.State()); err != nil {
		p.logger.Warn("saving session state failed", "session", id, "error", err)
	}
	return fnErr
}

// Forget drops the engine and stored state for id.
func (p *Pool) Forget(ctx context.Context, id string) error {
	p.mu.Lock()
	delete(p.engines, id)
	p.mu.Unlock()
	return p.sessions.Delete(ctx, id)
}

// Len returns the number of engines held in memory.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.engines)
}

func (p *Pool) acquire(ctx context.Context, id string) (*pooledEngine, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.evictIdle()
	if pe, ok := p.engines[id]; ok {
		pe.refs++
		return pe, nil
	}

	state, err := p.sessions.Get(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		state = p.initial
	} else if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}

	eng, err := New(ctx, p.deps, state)
	if err != nil {
		return nil, fmt.Errorf("starting engine for session %s: %w", id, err)
	}
	pe := &pooledEngine{eng: eng, refs: 1}
	p.engines[id] = pe
	return pe, nil
}

func (p *Pool) release(pe *pooledEngine) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pe.refs--
	pe.lastUsed = p.now()
}

// evictIdle drops engines nobody holds that have been idle past the TTL.
// Callers hold p.mu.
func (p *Pool) evictIdle() {
	if p.idleTTL <= 0 {
		return
	}
	now := p.now()
	for id, pe := range p.engines {
		if pe.refs == 0 && now.Sub(pe.lastUsed) > p.idleTTL {
			delete(p.engines, id)
		}
	}
}
