// Package watch turns filesystem changes and timers into serialized rebuilds.
package watch

import (
	"context"
	"sync"
	"time"
)

// DefaultDebounce is how long the watcher waits for a burst of events to settle.
const DefaultDebounce = 300 * time.Millisecond

// RebuildFunc performs one rebuild. reason is "watch", "schedule" or "manual".
type RebuildFunc func(ctx context.Context, reason string)

// Rebuilder runs at most one rebuild at a time and keeps at most one more
// pending; further requests while one is pending are merged into it.
type Rebuilder struct {
	fn       RebuildFunc
	debounce time.Duration
	req      chan string

	mu    sync.Mutex
	timer *time.Timer
}

// NewRebuilder returns a Rebuilder whose Trigger calls wait debounce before
// fn runs. Nothing runs until Run is started.
func NewRebuilder(fn RebuildFunc, debounce time.Duration) *Rebuilder {
	return &Rebuilder{fn: fn, debounce: debounce, req: make(chan string, 1)}
}

// Trigger requests a rebuild after the debounce window; each call restarts the window.
func (r *Rebuilder) Trigger(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.debounce, func() { r.Request(reason) })
}

// Request asks for a rebuild without debouncing.
func (r *Rebuilder) Request(reason string) {
	select {
	case r.req <- reason:
	default:
	}
}

// Run processes requests until ctx is done.
func (r *Rebuilder) Run(ctx context.Context) {
	defer func() {
		r.mu.Lock()
		if r.timer != nil {
			r.timer.Stop()
		}
		r.mu.Unlock()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case reason := <-r.req:
			r.fn(ctx, reason)
		}
	}
}
