// Package blob re-exports the core blob abstractions and selects a backend.
// Packages outside the blob tree depend on this package, never on the infra
// implementations directly.
package blob

import (
	"flockcore/internal/blob/core"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverGCS        = core.DriverGCS
	DriverRedis      = core.DriverRedis
	DriverMemory     = core.DriverMemory
)

// ErrNotFound indicates no object exists at a key.
var ErrNotFound = core.ErrNotFound
