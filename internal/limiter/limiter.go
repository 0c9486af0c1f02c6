// Package limiter provides a bounded concurrency limiter with strict FIFO
// admission, used to cap in-flight calls against upstream services.
package limiter

import (
	"context"
	"errors"
	"sync"
)

// Limiter admits at most limit concurrent callers; the rest queue and are
// admitted strictly in arrival order as capacity frees up. There is no
// priority and no preemption; queued work that is cancelled before admission
// simply never runs.
type Limiter struct {
	mu     sync.Mutex
	limit  int
	active int
	queue  []chan struct{}
}

// New constructs a limiter. The limit must be at least one.
func New(limit int) (*Limiter, error) {
	if limit < 1 {
		return nil, errors.New("limiter: limit must be >= 1")
	}
	return &Limiter{limit: limit}, nil
}

// Run executes fn once a slot is available. The slot is released when fn
// returns, whether it succeeded or not. A context cancelled while waiting
// returns the context error without running fn.
func (l *Limiter) Run(ctx context.Context, fn func() error) error {
	if err := l.acquire(ctx); err != nil {
		return err
	}
	defer l.release()
	return fn()
}

func (l *Limiter) acquire(ctx context.Context) error {
	l.mu.Lock()
	if l.active < l.limit {
		l.active++
		l.mu.Unlock()
		return nil
	}
	ticket := make(chan struct{})
	l.queue = append(l.queue, ticket)
	l.mu.Unlock()

	select {
	case <-ticket:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		for i, queued := range l.queue {
			if queued == ticket {
				l.queue = append(l.queue[:i], l.queue[i+1:]...)
				l.mu.Unlock()
				return ctx.Err()
			}
		}
		l.mu.Unlock()
		// The ticket was granted between Done and the lock; give the
		// slot back so nobody starves.
		l.release()
		return ctx.Err()
	}
}

func (l *Limiter) release() {
	l.mu.Lock()
	if len(l.queue) > 0 {
		next := l.queue[0]
		l.queue = l.queue[1:]
		l.mu.Unlock()
		close(next)
		return
	}
	l.active--
	l.mu.Unlock()
}
