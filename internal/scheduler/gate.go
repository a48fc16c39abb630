package scheduler

import (
	"context"
	"sync"
)

// gate is a pause/resume signal, closed ("open") by default. Workers wait
// on it after taking a task off the ready queue and before running it;
// pause() replaces the channel with
// a fresh, unclosed one so in-flight waiters block, resume() closes the
// current one to release everyone at once (§4.F: "pause() clears a gate
// event... resume() sets the gate").
type gate struct {
	mu sync.Mutex
	ch chan struct{}
}

func newGate() *gate {
	ch := make(chan struct{})
	close(ch)
	return &gate{ch: ch}
}

func (g *gate) wait(ctx context.Context) error {
	g.mu.Lock()
	ch := g.ch
	g.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *gate) pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.ch:
		g.ch = make(chan struct{})
	default:
		// already paused
	}
}

func (g *gate) resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.ch:
		// already open
	default:
		close(g.ch)
	}
}
