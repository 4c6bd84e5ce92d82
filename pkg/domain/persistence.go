package domain

import (
	"context"
	"time"
)

// KeyValueStore is the local persistence collaborator: string values under
// string keys. Get reports found=false for an absent key. Set fails when the
// backing medium cannot accept the value (for example ErrQuotaExceeded).
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// RemoteStore is a cloud snapshot store holding one whole-snapshot record.
// Fetch reports found=false when nothing has been pushed yet; Upsert replaces
// the record unconditionally.
type RemoteStore interface {
	Name() string
	Fetch(ctx context.Context) (payload []byte, found bool, err error)
	Upsert(ctx context.Context, payload []byte, updatedAt time.Time) error
}
