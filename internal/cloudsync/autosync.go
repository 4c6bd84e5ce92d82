package cloudsync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"flockcore/internal/core"
)

// DefaultAutoSyncDelay is the quiet period after the last qualifying change
// before a background push starts.
const DefaultAutoSyncDelay = 1200 * time.Millisecond

const pushTimeout = 30 * time.Second

// Pusher is the push half of a Syncer.
type Pusher interface {
	Push(ctx context.Context) (string, error)
}

// AutoSyncer pushes after bursts of local changes when the household has
// auto-sync enabled. Every qualifying change restarts the delay. Failures
// are logged and retried only on the next qualifying change.
type AutoSyncer struct {
	pusher Pusher
	delay  time.Duration
	log    *zap.Logger

	mu       sync.Mutex
	timer    *time.Timer
	gen      uint64
	closed   bool
	inflight sync.WaitGroup

	unsubscribe func()
	ctx         context.Context
	stop        context.CancelFunc
}

// NewAutoSyncer subscribes to store. A non-positive delay selects
// DefaultAutoSyncDelay. Call Close to unsubscribe.
func NewAutoSyncer(store *core.Store, pusher Pusher, delay time.Duration, log *zap.Logger) *AutoSyncer {
	if delay <= 0 {
		delay = DefaultAutoSyncDelay
	}
	if log == nil {
		log = zap.NewNop()
	}
	ctx, stop := context.WithCancel(context.Background())
	a := &AutoSyncer{pusher: pusher, delay: delay, log: log.Named("autosync"), ctx: ctx, stop: stop}
	a.unsubscribe = store.Subscribe(a.onChange)
	return a
}

func (a *AutoSyncer) onChange(change core.Change) {
	if change.Options.SkipAutoSync || !change.Snapshot.Household.AutoSync {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	a.gen++
	gen := a.gen
	a.timer = time.AfterFunc(a.delay, func() { a.fire(gen) })
}

// Pending reports whether a push is scheduled.
func (a *AutoSyncer) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.timer != nil
}

// fire runs the push scheduled as generation gen. A timer superseded by a
// later change or claimed by Flush finds a newer generation and does nothing.
func (a *AutoSyncer) fire(gen uint64) {
	a.mu.Lock()
	if a.closed || a.timer == nil || gen != a.gen {
		a.mu.Unlock()
		return
	}
	a.timer = nil
	a.inflight.Add(1)
	a.mu.Unlock()
	defer a.inflight.Done()

	ctx, cancel := context.WithTimeout(a.ctx, pushTimeout)
	defer cancel()
	if stamp, err := a.pusher.Push(ctx); err != nil {
		a.log.Warn("auto-sync push failed", zap.Error(err))
	} else {
		a.log.Debug("auto-sync pushed", zap.String("stamp", stamp))
	}
}

// Flush runs a scheduled push immediately instead of waiting out the delay.
// It reports whether a push was pending. A timer that already fired but has
// not started its push is claimed here and its push runs on this goroutine.
func (a *AutoSyncer) Flush(ctx context.Context) (bool, error) {
	a.mu.Lock()
	if a.closed || a.timer == nil {
		a.mu.Unlock()
		return false, nil
	}
	a.timer.Stop()
	a.timer = nil
	a.gen++
	a.inflight.Add(1)
	a.mu.Unlock()
	defer a.inflight.Done()

	_, err := a.pusher.Push(ctx)
	return true, err
}

// Close unsubscribes, drops any scheduled push, and waits for a running one.
func (a *AutoSyncer) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()
	a.unsubscribe()
	a.stop()
	a.inflight.Wait()
}
