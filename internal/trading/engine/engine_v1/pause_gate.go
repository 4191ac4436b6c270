package engine_v1

import (
	"context"
	"sync"
)

// PauseGate blocks a worker between ticks. Resume closes the current channel so
// every waiter is released at once; Wait also returns when ctx is cancelled,
// which lets a stop interrupt a paused worker.
type PauseGate struct {
	mu     sync.Mutex
	paused bool
	resume chan struct{}
}

func NewPauseGate() *PauseGate {
	return &PauseGate{}
}

func (g *PauseGate) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.paused {
		return
	}

	g.paused = true
	g.resume = make(chan struct{})
}

func (g *PauseGate) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.paused {
		return
	}

	g.paused = false
	close(g.resume)
}

func (g *PauseGate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.paused
}

// Wait returns immediately when not paused.
func (g *PauseGate) Wait(ctx context.Context) error {
	g.mu.Lock()
	if !g.paused {
		g.mu.Unlock()

		return nil
	}

	ch := g.resume
	g.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
