package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// CheckFunc runs one price check for a (user, item) pair.
type CheckFunc func(ctx context.Context, userId, itemId string)

type timerKey struct {
	userId string
	itemId string
}

// Scheduler keeps one recurring timer per (user, item) pair. Each pair
// gets its own goroutine which runs its firings serially, so checks for
// a single pair never overlap; pairs are fully independent of each
// other. A panicking firing is logged and the timer keeps going.
type Scheduler struct {
	mu     sync.Mutex
	timers map[timerKey]context.CancelFunc
}

func NewScheduler() *Scheduler {
	return &Scheduler{timers: map[timerKey]context.CancelFunc{}}
}

// registers a recurring timer for the pair. the first firing happens
// after initialDelay so freshly added items get feedback within seconds
// instead of a full interval. callers must Cancel a previous timer for
// the same pair first; the orchestration guarantees this by checking
// the store before scheduling, but a leftover timer is cancelled here
// anyway rather than leaked.
func (s *Scheduler) Schedule(ctx context.Context, userId, itemId string, initialDelay, interval time.Duration, fn CheckFunc) {
	s.mu.Lock()
	key := timerKey{userId, itemId}
	if cancel, ok := s.timers[key]; ok {
		slog.WarnContext(ctx, "replacing existing timer", "user", userId, "item", itemId)
		cancel()
	}
	tctx, cancel := context.WithCancel(ctx)
	s.timers[key] = cancel
	s.mu.Unlock()

	go func() {
		first := time.NewTimer(initialDelay)
		defer first.Stop()
		select {
		case <-tctx.Done():
			return
		case <-first.C:
		}
		fire(tctx, userId, itemId, fn)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-tctx.Done():
				return
			case <-ticker.C:
				fire(tctx, userId, itemId, fn)
			}
		}
	}()
}

// stops the pair's timer. future firings are cancelled, a firing
// already in progress finishes on its own. no-op when no timer exists
// so a delete flow never fails here.
func (s *Scheduler) Cancel(userId, itemId string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := timerKey{userId, itemId}
	if cancel, ok := s.timers[key]; ok {
		cancel()
		delete(s.timers, key)
	}
}

func fire(ctx context.Context, userId, itemId string, fn CheckFunc) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "check panicked", "user", userId, "item", itemId, "panic", r)
		}
	}()
	fn(ctx, userId, itemId)
}
