// Package remote stores the whole household snapshot as a single object in a
// blob backend so that other devices can pull it.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"flockcore/internal/blob"
	"flockcore/pkg/domain"
)

// MetadataUpdatedAt is the object metadata key carrying the push time.
const MetadataUpdatedAt = "updated-at"

// DriverNone disables remote sync.
const DriverNone blob.Driver = "none"

// DefaultFlockID names the snapshot object when none is configured.
const DefaultFlockID = "default"

const (
	flocksPrefix = "flocks/"
	snapshotName = "/snapshot.json"
)

// Config selects the blob backend and the flock whose snapshot is synced.
type Config struct {
	Blob    blob.Config
	FlockID string
}

// BlobSnapshotStore adapts a blob.Store to domain.RemoteStore.
type BlobSnapshotStore struct {
	store blob.Store
	key   string
}

var _ domain.RemoteStore = (*BlobSnapshotStore)(nil)

// Open builds the configured backend. DriverNone yields domain.ErrSyncUnavailable.
func Open(ctx context.Context, cfg Config) (*BlobSnapshotStore, error) {
	if cfg.Blob.Driver == DriverNone {
		return nil, domain.ErrSyncUnavailable
	}
	store, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("open %s remote: %w", cfg.Blob.Driver, err)
	}
	return New(store, cfg.FlockID), nil
}

// New wraps store, keeping the snapshot for flockID.
func New(store blob.Store, flockID string) *BlobSnapshotStore {
	return &BlobSnapshotStore{store: store, key: SnapshotKey(flockID)}
}

// SnapshotKey returns the object key for flockID.
func SnapshotKey(flockID string) string {
	id := strings.TrimSpace(flockID)
	if id == "" {
		id = DefaultFlockID
	}
	return flocksPrefix + url.PathEscape(id) + snapshotName
}

// Name identifies the backend in logs and metrics.
func (s *BlobSnapshotStore) Name() string { return string(s.store.Driver()) }

// Key returns the object key the snapshot is stored under.
func (s *BlobSnapshotStore) Key() string { return s.key }

// Fetch reads the stored snapshot. found is false when nothing was pushed yet.
func (s *BlobSnapshotStore) Fetch(ctx context.Context) ([]byte, bool, error) {
	_, rc, err := s.store.Get(ctx, s.key)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("fetch from %s: %w", s.Name(), err)
	}
	defer rc.Close()
	payload, err := io.ReadAll(rc)
	if err != nil {
		return nil, false, fmt.Errorf("read from %s: %w", s.Name(), err)
	}
	return payload, true, nil
}

// Upsert replaces the stored snapshot.
func (s *BlobSnapshotStore) Upsert(ctx context.Context, payload []byte, updatedAt time.Time) error {
	opts := blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{MetadataUpdatedAt: updatedAt.UTC().Format(time.RFC3339)},
	}
	if _, err := s.store.Put(ctx, s.key, bytes.NewReader(payload), opts); err != nil {
		return fmt.Errorf("push to %s: %w", s.Name(), err)
	}
	return nil
}

// Status describes the snapshot object of one flock.
type Status struct {
	Driver    string    `json:"driver"`
	Key       string    `json:"key"`
	Found     bool      `json:"found"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Status reports whether the snapshot exists and when it was last pushed.
func (s *BlobSnapshotStore) Status(ctx context.Context) (Status, error) {
	st := Status{Driver: s.Name(), Key: s.key}
	info, err := s.store.Head(ctx, s.key)
	if errors.Is(err, blob.ErrNotFound) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("stat on %s: %w", s.Name(), err)
	}
	st.Found = true
	st.Size = info.Size
	st.UpdatedAt = updatedAt(info)
	return st, nil
}

// Flock is a snapshot found in the backend.
type Flock struct {
	ID        string    `json:"id"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Flocks lists every flock snapshot held by the backend, ordered by key.
func (s *BlobSnapshotStore) Flocks(ctx context.Context) ([]Flock, error) {
	infos, err := s.store.List(ctx, flocksPrefix)
	if err != nil {
		return nil, fmt.Errorf("list on %s: %w", s.Name(), err)
	}
	out := make([]Flock, 0, len(infos))
	for _, info := range infos {
		rest, ok := strings.CutPrefix(info.Key, flocksPrefix)
		if !ok {
			continue
		}
		escaped, ok := strings.CutSuffix(rest, snapshotName)
		if !ok || escaped == "" || strings.Contains(escaped, "/") {
			continue
		}
		id, err := url.PathUnescape(escaped)
		if err != nil {
			continue
		}
		out = append(out, Flock{ID: id, Size: info.Size, UpdatedAt: updatedAt(info)})
	}
	return out, nil
}

// Clear deletes this flock's snapshot. It reports whether one existed.
func (s *BlobSnapshotStore) Clear(ctx context.Context) (bool, error) {
	existed, err := s.store.Delete(ctx, s.key)
	if err != nil {
		return false, fmt.Errorf("delete on %s: %w", s.Name(), err)
	}
	return existed, nil
}

func updatedAt(info blob.Info) time.Time {
	if raw, ok := info.Metadata[MetadataUpdatedAt]; ok {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			return ts
		}
	}
	return info.LastModified
}

// Close releases the backend.
func (s *BlobSnapshotStore) Close() error { return blob.Close(s.store) }
