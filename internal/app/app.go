// Package app wires configuration, persistence, the core service, remote
// sync, change watching and metrics into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"flockcore/internal/blob"
	"flockcore/internal/cloudsync"
	"flockcore/internal/config"
	"flockcore/internal/core"
	"flockcore/internal/observability"
	"flockcore/internal/platform/logger"
	"flockcore/internal/remote"
	"flockcore/internal/watch"
	"flockcore/pkg/domain"
)

const shutdownTimeout = 5 * time.Second

// App holds the wired components. Syncer and AutoSync are nil when remote
// sync is disabled.
type App struct {
	Cfg      config.Config
	Log      *zap.Logger
	Metrics  *observability.Recorder
	KV       domain.KeyValueStore
	Store    *core.Store
	Service  *core.Service
	Syncer   *cloudsync.Syncer
	AutoSync *cloudsync.AutoSyncer

	remote       *remote.BlobSnapshotStore
	stopTracking func()
	ownsLog      bool
}

// Option overrides a component New would otherwise build from config.
type Option func(*options)

type options struct {
	log *zap.Logger
	cal *core.Calendar
	ids core.IDGenerator
	kv  domain.KeyValueStore
}

// WithLogger supplies the logger instead of building one from cfg.Log.
func WithLogger(log *zap.Logger) Option { return func(o *options) { o.log = log } }

// WithCalendar pins the clock.
func WithCalendar(cal core.Calendar) Option { return func(o *options) { o.cal = &cal } }

// WithIDGenerator replaces the UUIDv7 generator.
func WithIDGenerator(ids core.IDGenerator) Option { return func(o *options) { o.ids = ids } }

// WithKeyValueStore supplies an already opened local store. Close closes it.
func WithKeyValueStore(kv domain.KeyValueStore) Option { return func(o *options) { o.kv = kv } }

// New opens every configured component and loads the persisted snapshot.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	a := &App{Cfg: cfg, Log: o.log}
	if a.Log == nil {
		log, err := logger.New(cfg.Log.Mode)
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
		a.Log = log
		a.ownsLog = true
	}

	a.KV = o.kv
	if a.KV == nil {
		kv, err := core.OpenKeyValueStore(ctx, storageOptions(cfg.Storage))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Driver, err)
		}
		a.KV = kv
	}

	cal := core.NewCalendar(cfg.Location())
	if o.cal != nil {
		cal = *o.cal
	}
	ids := o.ids
	if ids == nil {
		ids = core.TimeOrderedIDs{}
	}

	a.Store = core.NewStore(a.KV,
		core.WithRulesEngine(core.NewDefaultRulesEngine()),
		core.WithNormalizer(core.NewNormalizer(cal, ids)),
		core.WithStorageKeys(cfg.Storage.Key, cfg.Storage.LegacyKey),
		core.WithStoreLogger(a.Log),
	)
	if err := a.Store.Load(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.Metrics = observability.NewRecorder()
	a.Service = core.NewService(a.Store,
		core.WithLogger(a.Log),
		core.WithMetricsRecorder(a.Metrics),
		core.WithCalendar(cal),
		core.WithIDGenerator(ids),
	)
	if _, err := a.Service.InstallPlugin(core.NewAlertsPlugin(cal)); err != nil {
		a.Close()
		return nil, fmt.Errorf("install alerts plugin: %w", err)
	}
	a.stopTracking = a.Metrics.Track(a.Store)

	rs, err := remote.Open(ctx, remoteConfig(cfg.Sync))
	switch {
	case errors.Is(err, domain.ErrSyncUnavailable):
		a.Log.Debug("remote sync disabled")
	case err != nil:
		a.Close()
		return nil, err
	default:
		a.remote = rs
		a.Syncer = cloudsync.New(a.Store, rs, cal,
			cloudsync.WithLogger(a.Log),
			cloudsync.WithRecorder(a.Metrics),
		)
		a.AutoSync = cloudsync.NewAutoSyncer(a.Store, a.Syncer, cfg.Sync.AutoSyncDelay, a.Log)
	}
	return a, nil
}

func storageOptions(cfg config.StorageConfig) core.StorageOptions {
	location := cfg.Path
	if core.StorageDriver(cfg.Driver) == core.StoragePostgres {
		location = cfg.DSN
	}
	return core.StorageOptions{
		Driver:     core.StorageDriver(cfg.Driver),
		Location:   location,
		QuotaBytes: cfg.QuotaBytes,
	}
}

func remoteConfig(cfg config.SyncConfig) remote.Config {
	return remote.Config{
		FlockID: cfg.FlockID,
		Blob: blob.Config{
			Driver: blob.Driver(cfg.Driver),
			FSRoot: cfg.FSRoot,
			S3: blob.S3Config{
				Bucket:    cfg.S3.Bucket,
				Region:    cfg.S3.Region,
				Endpoint:  cfg.S3.Endpoint,
				PathStyle: cfg.S3.PathStyle,
			},
			GCS: blob.GCSConfig{
				Bucket:          cfg.GCS.Bucket,
				CredentialsFile: cfg.GCS.CredentialsFile,
				EmulatorHost:    cfg.GCS.EmulatorHost,
			},
			Redis: blob.RedisConfig{
				Addr:      cfg.Redis.Addr,
				Password:  cfg.Redis.Password,
				DB:        cfg.Redis.DB,
				Namespace: cfg.Redis.Namespace,
			},
		},
	}
}

// Syncing reports whether a remote backend is configured.
func (a *App) Syncing() bool { return a.Syncer != nil }

// Remote returns the configured snapshot backend, or nil when sync is off.
func (a *App) Remote() *remote.BlobSnapshotStore { return a.remote }

// Runner is a blocking background loop.
type Runner interface {
	Run(ctx context.Context) error
}

// Watcher returns the change watcher selected by cfg.Watch.Mode, or nil
// when watching is off. Mode auto uses fsnotify for the file driver and
// polling for everything else.
func (a *App) Watcher() (Runner, error) {
	key := a.Store.Key()
	mode := a.Cfg.Watch.Mode
	src, isFile := a.KV.(watch.FileSource)
	if mode == "auto" || mode == "" {
		mode = "poll"
		if isFile {
			mode = "fsnotify"
		}
	}
	switch mode {
	case "off":
		return nil, nil
	case "fsnotify":
		if !isFile {
			return nil, fmt.Errorf("fsnotify watching needs the file storage driver, have %s", a.Cfg.Storage.Driver)
		}
		return watch.NewFileWatcher(src, key, a.Service, a.Cfg.Watch.Debounce, a.Log), nil
	case "poll":
		return watch.NewPoller(a.KV, key, a.Service, a.Cfg.Watch.Interval, a.Log), nil
	default:
		return nil, fmt.Errorf("unknown watch mode %s", mode)
	}
}

// Run serves metrics on listen (when non-empty) and runs the watcher until
// ctx is cancelled or either fails.
func (a *App) Run(ctx context.Context, listen string) error {
	watcher, err := a.Watcher()
	if err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	if watcher != nil {
		g.Go(func() error { return watcher.Run(gctx) })
	}
	if listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", a.Metrics.Handler())
		srv := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			a.Log.Info("serving metrics", zap.String("addr", listen))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	return g.Wait()
}

// Flush pushes any change still waiting out the auto-sync delay.
func (a *App) Flush(ctx context.Context) error {
	if a.AutoSync == nil {
		return nil
	}
	if _, err := a.AutoSync.Flush(ctx); err != nil {
		return fmt.Errorf("auto-sync: %w", err)
	}
	return nil
}

// Close releases every component. It is safe on a partially built App.
func (a *App) Close() error {
	var errs []error
	if a.AutoSync != nil {
		a.AutoSync.Close()
	}
	if a.stopTracking != nil {
		a.stopTracking()
	}
	if a.remote != nil {
		if err := a.remote.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close remote: %w", err))
		}
	}
	if a.KV != nil {
		if err := a.KV.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	if a.Log != nil && a.ownsLog {
		_ = a.Log.Sync()
	}
	return errors.Join(errs...)
}
