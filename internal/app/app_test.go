package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap"

	"flockcore/internal/config"
	"flockcore/internal/core"
	"flockcore/internal/watch"
)

var testNow = time.Date(2024, time.March, 15, 9, 30, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func memoryConfig() config.Config {
	cfg := config.Default()
	cfg.Storage.Driver = "memory"
	return cfg
}

func newTestApp(t *testing.T, cfg config.Config) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, WithLogger(zap.NewNop()), WithCalendar(core.FixedCalendar(testNow)))
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() {
		if err := a.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	})
	return a
}

func TestNewWiresCoreWithoutSync(t *testing.T) {
	a := newTestApp(t, memoryConfig())
	if a.Syncing() || a.AutoSync != nil {
		t.Fatalf("sync should be disabled by default")
	}
	plugins := a.Service.RegisteredPlugins()
	if len(plugins) != 1 || plugins[0].Name != "alerts" {
		t.Fatalf("unexpected plugins %+v", plugins)
	}
	if _, _, err := a.Service.AddEggs(context.Background(), core.EggRecord{Count: 4}); err != nil {
		t.Fatalf("add eggs: %v", err)
	}
	families, err := a.Metrics.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{"flockcore_operations_total", "flockcore_records"} {
		if !names[want] {
			t.Fatalf("metric %s missing from %v", want, names)
		}
	}
}

func TestNewRejectsBadStorage(t *testing.T) {
	cfg := memoryConfig()
	cfg.Storage.Driver = "tape"
	if _, err := New(context.Background(), cfg, WithLogger(zap.NewNop())); err == nil {
		t.Fatalf("expected storage error")
	}
}

func TestNewLoadsPersistedSnapshot(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Path = t.TempDir()
	ctx := context.Background()

	first, err := New(ctx, cfg, WithLogger(zap.NewNop()), WithCalendar(core.FixedCalendar(testNow)))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, _, err := first.Service.UpdateProfile(ctx, core.ProfileUpdate{FlockName: ptr("Coop Nine")}); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second := newTestApp(t, cfg)
	if got := second.Service.Snapshot().Profile.FlockName; got != "Coop Nine" {
		t.Fatalf("flock name after reload = %q", got)
	}
}

func TestSyncBetweenDevicesThroughSharedRemote(t *testing.T) {
	root := t.TempDir()
	cfgFor := func() config.Config {
		cfg := memoryConfig()
		cfg.Sync.Driver = "fs"
		cfg.Sync.FSRoot = root
		cfg.Sync.FlockID = "backyard"
		cfg.Sync.AutoSyncDelay = time.Hour
		return cfg
	}
	ctx := context.Background()
	phone := newTestApp(t, cfgFor())
	laptop := newTestApp(t, cfgFor())
	if !phone.Syncing() {
		t.Fatalf("expected sync enabled")
	}

	if _, err := phone.Service.SetAutoSync(ctx, true); err != nil {
		t.Fatalf("enable auto-sync: %v", err)
	}
	if _, _, err := phone.Service.AddEggs(ctx, core.EggRecord{Count: 7}); err != nil {
		t.Fatalf("add eggs: %v", err)
	}
	if !phone.AutoSync.Pending() {
		t.Fatalf("expected a pending auto-sync")
	}
	if err := phone.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if phone.Service.Snapshot().Household.LastSyncedAt == "" {
		t.Fatalf("push should stamp lastSyncedAt")
	}

	res, err := laptop.Syncer.Pull(ctx, false)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if !res.Adopted {
		t.Fatalf("laptop should adopt the newer remote snapshot")
	}
	if eggs := laptop.Service.Snapshot().Eggs; len(eggs) != 1 || eggs[0].Count != 7 {
		t.Fatalf("unexpected eggs after pull %+v", eggs)
	}
}

func TestWatcherSelection(t *testing.T) {
	fileCfg := config.Default()
	fileCfg.Storage.Path = t.TempDir()
	if w, err := newTestApp(t, fileCfg).Watcher(); err != nil {
		t.Fatalf("watcher: %v", err)
	} else if _, ok := w.(*watch.FileWatcher); !ok {
		t.Fatalf("file storage should use fsnotify, got %T", w)
	}

	mem := newTestApp(t, memoryConfig())
	if w, err := mem.Watcher(); err != nil {
		t.Fatalf("watcher: %v", err)
	} else if _, ok := w.(*watch.Poller); !ok {
		t.Fatalf("memory storage should poll, got %T", w)
	}

	off := memoryConfig()
	off.Watch.Mode = "off"
	if w, err := newTestApp(t, off).Watcher(); err != nil || w != nil {
		t.Fatalf("watch off = %v, %v", w, err)
	}

	forced := memoryConfig()
	forced.Watch.Mode = "fsnotify"
	if _, err := newTestApp(t, forced).Watcher(); err == nil || !strings.Contains(err.Error(), "file storage") {
		t.Fatalf("expected fsnotify error, got %v", err)
	}
}

func TestRunAdoptsChangesFromAnotherProcess(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Path = t.TempDir()
	cfg.Watch.Mode = "poll"
	cfg.Watch.Interval = 20 * time.Millisecond
	writer := newTestApp(t, cfg)
	reader := newTestApp(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reader.Run(ctx, "") }()

	if _, _, err := writer.Service.AddEggs(context.Background(), core.EggRecord{Count: 3}); err != nil {
		t.Fatalf("add eggs: %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for len(reader.Service.Snapshot().Eggs) == 0 {
		if time.Now().After(deadline) {
			cancel()
			<-done
			t.Fatalf("reader never adopted the change")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRunServesMetricsUntilCancelled(t *testing.T) {
	cfg := memoryConfig()
	cfg.Watch.Mode = "off"
	a := newTestApp(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("run did not stop")
	}
}

func ptr[T any](v T) *T { return &v }
