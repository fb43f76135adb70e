// Package worker runs buffered per-key job loops bounded by a shared
// semaphore: jobs on one loop are handled in order, while distinct loops
// sharing the semaphore proceed with bounded concurrency.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStopped reports an enqueue on a loop whose goroutine has exited; the
// caller should start a fresh loop and retry.
var ErrStopped = errors.New("worker: loop stopped")

// Config carries the per-loop knobs.
type Config struct {
	// Buffer is the queue depth for pending jobs.
	Buffer int
	// IdleAfter stops the loop when its queue has been empty for this long.
	// Zero keeps the loop alive until the context ends.
	IdleAfter time.Duration
	// OnStop runs once after the loop goroutine exits, whatever the reason.
	OnStop func()
}

// Loop is a single-goroutine job queue.
type Loop[J any] struct {
	ctx  context.Context
	jobs chan J

	mu      sync.Mutex
	stopped bool
}

// Start launches the loop goroutine. Each job acquires a slot from sem
// before its handler runs and releases it after.
func Start[J any](ctx context.Context, sem chan struct{}, cfg Config, handle func(context.Context, J)) *Loop[J] {
	l := &Loop[J]{ctx: ctx, jobs: make(chan J, cfg.Buffer)}
	go func() {
		defer func() {
			l.mu.Lock()
			l.stopped = true
			l.mu.Unlock()
			if cfg.OnStop != nil {
				cfg.OnStop()
			}
		}()

		var idle *time.Timer
		var idleC <-chan time.Time
		if cfg.IdleAfter > 0 {
			idle = time.NewTimer(cfg.IdleAfter)
			defer idle.Stop()
			idleC = idle.C
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-idleC:
				// The stopped flag flips under the lock only when the queue
				// is empty, so a concurrent Enqueue either lands before the
				// flip and is drained below, or observes ErrStopped.
				l.mu.Lock()
				if len(l.jobs) > 0 {
					l.mu.Unlock()
					idle.Reset(cfg.IdleAfter)
					continue
				}
				l.stopped = true
				l.mu.Unlock()
				return
			case job := <-l.jobs:
				select {
				case sem <- struct{}{}:
				case <-ctx.Done():
					return
				}
				func() {
					defer func() { <-sem }()
					handle(ctx, job)
				}()
				if idle != nil {
					if !idle.Stop() {
						select {
						case <-idle.C:
						default:
						}
					}
					idle.Reset(cfg.IdleAfter)
				}
			}
		}
	}()
	return l
}

// Enqueue blocks until the job is buffered, ctx ends, or the loop stops.
func (l *Loop[J]) Enqueue(ctx context.Context, job J) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return ErrStopped
	}
	select {
	case l.jobs <- job:
		l.mu.Unlock()
		return nil
	default:
	}
	l.mu.Unlock()

	// Queue full: the loop cannot idle out while jobs are pending, so block
	// without the lock until a slot frees or a context ends.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.ctx.Done():
		return l.ctx.Err()
	case l.jobs <- job:
		return nil
	}
}

// Stopped reports whether the loop goroutine has exited or decided to.
func (l *Loop[J]) Stopped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped
}
