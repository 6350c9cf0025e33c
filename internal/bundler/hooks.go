package bundler

import (
	"context"
	"fmt"
	"sync"
)

type syncTap[T any] struct {
	name string
	fn   func(T)
}

// SyncHook calls every tap in registration order.
type SyncHook[T any] struct {
	mu   sync.RWMutex
	taps []syncTap[T]
}

func (h *SyncHook[T]) Tap(name string, fn func(T)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.taps = append(h.taps, syncTap[T]{name: name, fn: fn})
}

func (h *SyncHook[T]) Call(v T) {
	h.mu.RLock()
	taps := append([]syncTap[T](nil), h.taps...)
	h.mu.RUnlock()

	for _, t := range taps {
		t.fn(v)
	}
}

type asyncTap[T any] struct {
	name string
	fn   func(T, func(error))
}

// AsyncSeriesHook calls taps one after another. Each tap receives a continuation
// and the next tap only runs once it has been called. The continuation may be
// called from any goroutine, calls after the first are ignored.
type AsyncSeriesHook[T any] struct {
	mu   sync.RWMutex
	taps []asyncTap[T]
}

func (h *AsyncSeriesHook[T]) TapAsync(name string, fn func(T, func(error))) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.taps = append(h.taps, asyncTap[T]{name: name, fn: fn})
}

func (h *AsyncSeriesHook[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.taps)
}

// CallAsync runs the taps in series. It stops at the first tap that passes an
// error to its continuation. A tap that never calls its continuation blocks
// the series until ctx is done.
func (h *AsyncSeriesHook[T]) CallAsync(ctx context.Context, v T) error {
	h.mu.RLock()
	taps := append([]asyncTap[T](nil), h.taps...)
	h.mu.RUnlock()

	for _, t := range taps {
		done := make(chan error, 1)
		var once sync.Once
		t.fn(v, func(err error) {
			once.Do(func() { done <- err })
		})

		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("%s: %w", t.name, err)
			}
		case <-ctx.Done():
			return fmt.Errorf("%s did not call its continuation: %w", t.name, ctx.Err())
		}
	}
	return nil
}
