package gateway

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Pending tracks background work started on behalf of requests that have
// already been answered. The zero value is ready to use.
//
// Work is not limited or queued. After Close, Go refuses new work, so Drain
// never races with a late request that is still being handled.
type Pending struct {
	mu       sync.Mutex
	closed   bool
	group    errgroup.Group
	inflight atomic.Int64
}

// Go runs fn in the background on a context that keeps ctx's values but is
// never canceled with it. It reports false, without running fn, once Close
// has been called.
func (p *Pending) Go(ctx context.Context, fn func(ctx context.Context)) bool {
	detached := context.WithoutCancel(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}

	p.inflight.Add(1)
	p.group.Go(func() error {
		defer p.inflight.Add(-1)
		fn(detached)
		return nil
	})
	return true
}

// Close stops Go from accepting new work. Work already started keeps running.
func (p *Pending) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

// Len returns the number of units still running.
func (p *Pending) Len() int {
	return int(p.inflight.Load())
}

// Drain waits until every unit started with Go has finished. It returns
// ctx.Err() if ctx is done first; the remaining work keeps running. Callers
// that may still receive requests call Close first.
func (p *Pending) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		_ = p.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
