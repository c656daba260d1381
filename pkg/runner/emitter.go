package runner

import (
	"context"
	"sync"

	"github.com/0x-stone/zspa/pkg/domain"
)

// guardedEmitter serializes events from the main flow and forks, and drops
// everything once the stream is closed.
type guardedEmitter struct {
	mu     sync.Mutex
	sink   domain.Emitter
	closed bool
}

func newGuardedEmitter(sink domain.Emitter) *guardedEmitter {
	return &guardedEmitter{sink: sink}
}

func (g *guardedEmitter) Emit(ctx context.Context, ev domain.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed || g.sink == nil {
		return
	}
	g.sink.Emit(ctx, ev)
}

func (g *guardedEmitter) close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}
