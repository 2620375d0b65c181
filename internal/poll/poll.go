// Package poll runs cancellable periodic jobs.
package poll

import (
	"context"
	"sync"
	"time"
)

// Task is one background loop. Stop is idempotent and waits for the loop
// to exit, so no tick runs after Stop returns.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Every calls fn once per interval until ctx ends or Stop is called. The
// first call happens one interval after start. fn receives the loop's
// context and must return promptly once it is cancelled.
func Every(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) *Task {
	if interval <= 0 {
		interval = time.Second
	}
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel, done: make(chan struct{})}
	ticker := time.NewTicker(interval)
	go func() {
		defer close(t.done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
	return t
}

func (t *Task) Stop() {
	if t == nil {
		return
	}
	t.once.Do(t.cancel)
	<-t.done
}

// Done is closed once the loop has exited.
func (t *Task) Done() <-chan struct{} { return t.done }
