package core

import (
	"context"
	"sync"
	"time"
)

// Countdown is a cancellable per-room ticking process. Started from a
// configured value, it reports from-1 down to 0 inclusive through onTick
// and fires onExpire exactly once after the zero tick, then stops.
//
// Callbacks run on the countdown goroutine; callers re-dispatch them into
// their own serialization domain. Stop prevents any further callback.
type Countdown struct {
	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

// Start begins a countdown. Returns false without side effects when a
// countdown is already running.
func (c *Countdown) Start(from int, interval time.Duration, onTick func(remaining int), onExpire func()) bool {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.running = true
	c.mu.Unlock()

	go func() {
		defer func() {
			c.mu.Lock()
			c.running = false
			c.mu.Unlock()
		}()
		for remaining := from - 1; remaining >= 0; remaining-- {
			if ctx.Err() != nil {
				return
			}
			onTick(remaining)
			if remaining == 0 {
				if ctx.Err() == nil {
					onExpire()
				}
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(interval):
			}
		}
	}()
	return true
}

// Stop cancels a running countdown. Stopping an already-stopped countdown
// is a no-op.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Running reports whether a countdown is currently ticking.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
