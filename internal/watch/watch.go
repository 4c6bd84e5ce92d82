// Package watch notices snapshots written to local storage by another
// process and hands them to the service for adoption.
package watch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"flockcore/pkg/domain"
)

// Applier adopts a raw snapshot written elsewhere.
type Applier interface {
	ApplyExternal(ctx context.Context, raw string) (bool, error)
}

// FileSource is a directory-backed key-value store.
type FileSource interface {
	domain.KeyValueStore
	Dir() string
	KeyForPath(path string) (string, bool)
}

// Defaults for the watchers.
const (
	DefaultDebounce     = 250 * time.Millisecond
	DefaultPollInterval = 2 * time.Second
	tick                = 50 * time.Millisecond
)

// FileWatcher reacts to changes of one key's file in a FileSource directory.
type FileWatcher struct {
	src      FileSource
	key      string
	applier  Applier
	log      *zap.Logger
	debounce time.Duration
	applied  func(bool)
}

// NewFileWatcher watches key in src.
func NewFileWatcher(src FileSource, key string, applier Applier, debounce time.Duration, log *zap.Logger) *FileWatcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FileWatcher{src: src, key: key, applier: applier, log: log.Named("watch"), debounce: debounce}
}

// OnApplied registers a callback invoked after each adoption attempt with
// whether the payload was adopted.
func (w *FileWatcher) OnApplied(fn func(applied bool)) { w.applied = fn }

// Run blocks until ctx is cancelled.
func (w *FileWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(w.src.Dir()); err != nil {
		return fmt.Errorf("watch %s: %w", w.src.Dir(), err)
	}
	w.log.Info("watching data directory", zap.String("dir", w.src.Dir()), zap.String("key", w.key))

	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	var (
		pending   bool
		lastEvent time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if key, ok := w.src.KeyForPath(event.Name); !ok || key != w.key {
				continue
			}
			pending = true
			lastEvent = time.Now()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", zap.Error(err))
		case now := <-ticker.C:
			if pending && now.Sub(lastEvent) >= w.debounce {
				pending = false
				w.apply(ctx)
			}
		}
	}
}

func (w *FileWatcher) apply(ctx context.Context) {
	raw, found, err := w.src.Get(ctx, w.key)
	if err != nil {
		w.log.Warn("read changed snapshot", zap.Error(err))
		return
	}
	if !found {
		return
	}
	applied := adopt(ctx, w.applier, raw, w.log)
	if w.applied != nil {
		w.applied(applied)
	}
}

// Poller re-reads a key at a fixed interval for stores without change
// notification (sqlite, postgres).
type Poller struct {
	src      domain.KeyValueStore
	key      string
	applier  Applier
	interval time.Duration
	log      *zap.Logger
	last     string
	applied  func(bool)
}

// NewPoller polls key in src every interval.
func NewPoller(src domain.KeyValueStore, key string, applier Applier, interval time.Duration, log *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{src: src, key: key, applier: applier, interval: interval, log: log.Named("poll")}
}

// OnApplied registers a callback invoked after each adoption attempt.
func (p *Poller) OnApplied(fn func(applied bool)) { p.applied = fn }

// Run blocks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	raw, found, err := p.src.Get(ctx, p.key)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			p.log.Warn("poll snapshot", zap.Error(err))
		}
		return
	}
	if !found || raw == p.last {
		return
	}
	p.last = raw
	applied := adopt(ctx, p.applier, raw, p.log)
	if p.applied != nil {
		p.applied(applied)
	}
}

func adopt(ctx context.Context, applier Applier, raw string, log *zap.Logger) bool {
	applied, err := applier.ApplyExternal(ctx, raw)
	if err != nil {
		log.Warn("external snapshot rejected", zap.Error(err))
		return false
	}
	if applied {
		log.Info("adopted external snapshot")
	}
	return applied
}
