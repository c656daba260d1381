package graph

import (
	"context"
	"sync"
)

// ForkGroup tracks the side tasks spawned during one invocation.
// The scheduler never waits on it; callers may drain it with Wait.
type ForkGroup struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	spawned int
}

func newForkGroup(parent context.Context) *ForkGroup {
	ctx, cancel := context.WithCancel(parent)
	return &ForkGroup{ctx: ctx, cancel: cancel}
}

func (g *ForkGroup) spawn(fn func(ctx context.Context)) {
	g.mu.Lock()
	g.spawned++
	g.mu.Unlock()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		fn(g.ctx)
	}()
}

// Len returns how many forks were spawned.
func (g *ForkGroup) Len() int {
	if g == nil {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.spawned
}

// Wait blocks until every fork finished or ctx is done.
func (g *ForkGroup) Wait(ctx context.Context) error {
	if g == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel abandons any fork still running.
func (g *ForkGroup) Cancel() {
	if g == nil {
		return
	}
	g.cancel()
}
