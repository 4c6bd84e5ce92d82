package blob

import (
	"context"
	"fmt"
	"io"

	infraFS "flockcore/internal/infra/blob/fs"
	infraGCS "flockcore/internal/infra/blob/gcs"
	infraMemory "flockcore/internal/infra/blob/memory"
	infraRedis "flockcore/internal/infra/blob/redis"
	infraS3 "flockcore/internal/infra/blob/s3"
)

type (
	// S3Config configures the S3 driver.
	S3Config = infraS3.Config
	// GCSConfig configures the GCS driver.
	GCSConfig = infraGCS.Config
	// RedisConfig configures the redis driver.
	RedisConfig = infraRedis.Config
)

// Config selects exactly one blob backend.
type Config struct {
	Driver Driver
	FSRoot string
	S3     S3Config
	GCS    GCSConfig
	Redis  RedisConfig
}

// Open constructs the Store named by cfg.Driver. The empty driver selects
// the filesystem backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverFilesystem, "":
		return infraFS.New(cfg.FSRoot)
	case DriverS3:
		return infraS3.New(ctx, cfg.S3)
	case DriverGCS:
		return infraGCS.New(ctx, cfg.GCS)
	case DriverRedis:
		return infraRedis.New(ctx, cfg.Redis)
	case DriverMemory:
		return infraMemory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}

// NewMemory returns a process-local store.
func NewMemory() Store { return infraMemory.New() }

// NewMockS3ForTests exposes the S3 driver over a fake transport for cross-package tests.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests() }

// Close releases backend resources when the store holds any.
func Close(s Store) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
