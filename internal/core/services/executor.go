package services

import (
	"context"
	"sync"

	"tempvox/internal/core/domain"
)

// KeyedExecutor serializes work per channel id while letting unrelated
// channels proceed in parallel. Every orchestrator mutation runs through
// it, which closes the race between membership-driven auto-transfers and
// manual commands on the same channel.
type KeyedExecutor struct {
	mu    sync.Mutex
	locks map[domain.ChannelID]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedExecutor() *KeyedExecutor {
	return &KeyedExecutor{
		locks: make(map[domain.ChannelID]*keyLock),
	}
}

// Do runs fn holding the lock for key. Lock entries are dropped once no
// caller holds or waits on them.
func (e *KeyedExecutor) Do(ctx context.Context, key domain.ChannelID, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	l, ok := e.locks[key]
	if !ok {
		l = &keyLock{}
		e.locks[key] = l
	}
	l.refs++
	e.mu.Unlock()

	l.mu.Lock()
	err := fn(ctx)
	l.mu.Unlock()

	e.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(e.locks, key)
	}
	e.mu.Unlock()

	return err
}
