// Package config loads flockcore settings from defaults, an optional YAML
// file, and FLOCKCORE_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "FLOCKCORE_"

// Config is the complete runtime configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Sync    SyncConfig    `yaml:"sync"`
	Watch   WatchConfig   `yaml:"watch"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`

	// Timezone names the IANA zone civil dates are computed in (default Local).
	Timezone string `yaml:"timezone"`
}

// StorageConfig selects the local key-value backend.
type StorageConfig struct {
	// Driver is one of memory, file, sqlite or postgres.
	Driver     string `yaml:"driver"`
	// Path is the data directory (file) or database file (sqlite).
	Path       string `yaml:"path"`
	// DSN is the postgres connection string.
	DSN        string `yaml:"dsn"`
	Key        string `yaml:"key"`
	LegacyKey  string `yaml:"legacy_key"`
	QuotaBytes int    `yaml:"quota_bytes"` // memory driver only
}

// SyncConfig selects the remote snapshot backend.
type SyncConfig struct {
	Driver        string        `yaml:"driver"` // none | memory | fs | s3 | gcs | redis
	FlockID       string        `yaml:"flock_id"`
	AutoSyncDelay time.Duration `yaml:"auto_sync_delay"`
	FSRoot        string        `yaml:"fs_root"`
	S3            S3Config      `yaml:"s3"`
	GCS           GCSConfig     `yaml:"gcs"`
	Redis         RedisConfig   `yaml:"redis"`
}

// S3Config configures the S3 backend.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// GCSConfig configures the Google Cloud Storage backend.
type GCSConfig struct {
	Bucket          string `yaml:"bucket"`
	CredentialsFile string `yaml:"credentials_file"`
	EmulatorHost    string `yaml:"emulator_host"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	Namespace string `yaml:"namespace"`
}

// WatchConfig controls cross-process change detection.
type WatchConfig struct {
	Mode     string        `yaml:"mode"` // auto | fsnotify | poll | off
	Interval time.Duration `yaml:"interval"`
	Debounce time.Duration `yaml:"debounce"`
}

// LogConfig selects the logger.
type LogConfig struct {
	Mode string `yaml:"mode"` // development | production
}

// MetricsConfig controls the prometheus endpoint served by long-running commands.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

var (
	storageDrivers = []string{"memory", "file", "sqlite", "postgres"}
	syncDrivers    = []string{"none", "memory", "fs", "s3", "gcs", "redis"}
	watchModes     = []string{"auto", "fsnotify", "poll", "off"}
	logModes       = []string{"development", "production"}
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Driver:    "file",
			Path:      "flockcore-data",
			Key:       "chicken_tracker_v2",
			LegacyKey: "chicken_tracker_v1",
		},
		Sync: SyncConfig{
			Driver:        "none",
			FlockID:       "default",
			AutoSyncDelay: 1200 * time.Millisecond,
			FSRoot:        "flockcore-sync",
		},
		Watch: WatchConfig{
			Mode:     "auto",
			Interval: 2 * time.Second,
			Debounce: 250 * time.Millisecond,
		},
		Log:     LogConfig{Mode: "production"},
		Metrics: MetricsConfig{Listen: ":9464"},
	}
}

// Load builds a Config from defaults, then path (if non-empty), then the
// process environment. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	integer := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("STORAGE_PATH", &c.Storage.Path)
	str("STORAGE_DSN", &c.Storage.DSN)
	str("STORAGE_KEY", &c.Storage.Key)
	str("STORAGE_LEGACY_KEY", &c.Storage.LegacyKey)
	integer("STORAGE_QUOTA_BYTES", &c.Storage.QuotaBytes)

	str("SYNC_DRIVER", &c.Sync.Driver)
	str("SYNC_FLOCK_ID", &c.Sync.FlockID)
	duration("SYNC_AUTO_DELAY", &c.Sync.AutoSyncDelay)
	str("SYNC_FS_ROOT", &c.Sync.FSRoot)
	str("SYNC_S3_BUCKET", &c.Sync.S3.Bucket)
	str("SYNC_S3_REGION", &c.Sync.S3.Region)
	str("SYNC_S3_ENDPOINT", &c.Sync.S3.Endpoint)
	boolean("SYNC_S3_PATH_STYLE", &c.Sync.S3.PathStyle)
	str("SYNC_GCS_BUCKET", &c.Sync.GCS.Bucket)
	str("SYNC_GCS_CREDENTIALS_FILE", &c.Sync.GCS.CredentialsFile)
	str("SYNC_GCS_EMULATOR_HOST", &c.Sync.GCS.EmulatorHost)
	str("SYNC_REDIS_ADDR", &c.Sync.Redis.Addr)
	str("SYNC_REDIS_PASSWORD", &c.Sync.Redis.Password)
	integer("SYNC_REDIS_DB", &c.Sync.Redis.DB)
	str("SYNC_REDIS_NAMESPACE", &c.Sync.Redis.Namespace)

	str("WATCH_MODE", &c.Watch.Mode)
	duration("WATCH_INTERVAL", &c.Watch.Interval)
	duration("WATCH_DEBOUNCE", &c.Watch.Debounce)
	str("LOG_MODE", &c.Log.Mode)
	str("METRICS_LISTEN", &c.Metrics.Listen)
	str("TIMEZONE", &c.Timezone)
	return errors.Join(errs...)
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	oneOf := func(field, value string, allowed []string) {
		for _, a := range allowed {
			if value == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s: unknown value %q (want one of %s)", field, value, strings.Join(allowed, ", ")))
	}
	oneOf("storage.driver", c.Storage.Driver, storageDrivers)
	oneOf("sync.driver", c.Sync.Driver, syncDrivers)
	oneOf("watch.mode", c.Watch.Mode, watchModes)
	oneOf("log.mode", c.Log.Mode, logModes)

	if strings.TrimSpace(c.Storage.Key) == "" {
		errs = append(errs, errors.New("storage.key: required"))
	}
	if c.Storage.Driver == "postgres" && c.Storage.DSN == "" {
		errs = append(errs, errors.New("storage.dsn: required for postgres"))
	}
	if c.Storage.QuotaBytes < 0 {
		errs = append(errs, errors.New("storage.quota_bytes: must not be negative"))
	}
	switch c.Sync.Driver {
	case "s3":
		if c.Sync.S3.Bucket == "" {
			errs = append(errs, errors.New("sync.s3.bucket: required for s3"))
		}
	case "gcs":
		if c.Sync.GCS.Bucket == "" {
			errs = append(errs, errors.New("sync.gcs.bucket: required for gcs"))
		}
	case "redis":
		if c.Sync.Redis.Addr == "" {
			errs = append(errs, errors.New("sync.redis.addr: required for redis"))
		}
	}
	if c.Sync.AutoSyncDelay < 0 {
		errs = append(errs, errors.New("sync.auto_sync_delay: must not be negative"))
	}
	if c.Watch.Interval < 0 || c.Watch.Debounce < 0 {
		errs = append(errs, errors.New("watch: durations must not be negative"))
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("timezone: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Location resolves Timezone, defaulting to the local zone.
func (c Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
