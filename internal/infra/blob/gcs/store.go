// Package gcs implements a blob Store on Google Cloud Storage.
package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"flockcore/internal/blob/core"
)

// Config selects the bucket and credentials.
type Config struct {
	Bucket string
	// CredentialsFile or CredentialsJSON override application default credentials.
	CredentialsFile string
	CredentialsJSON string
	// EmulatorHost points the client at a fake-gcs-server style emulator.
	EmulatorHost string
}

// objectAPI is the subset of bucket operations Store relies on.
type objectAPI interface {
	write(ctx context.Context, key string, body []byte, contentType string, metadata map[string]string) (*storage.ObjectAttrs, error)
	read(ctx context.Context, key string) ([]byte, error)
	attrs(ctx context.Context, key string) (*storage.ObjectAttrs, error)
	remove(ctx context.Context, key string) error
	list(ctx context.Context, prefix string) ([]*storage.ObjectAttrs, error)
}

// Store implements core.Store on a single GCS bucket.
type Store struct {
	api    objectAPI
	client *storage.Client
	bucket string
}

// New creates a GCS client for cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("gcs bucket required")
	}
	var opts []option.ClientOption
	switch {
	case cfg.EmulatorHost != "":
		_ = os.Setenv("STORAGE_EMULATOR_HOST", strings.TrimRight(cfg.EmulatorHost, "/"))
		opts = append(opts, option.WithoutAuthentication())
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &Store{api: bucketAPI{h: client.Bucket(cfg.Bucket)}, client: client, bucket: cfg.Bucket}, nil
}

// Driver returns the blob driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverGCS }

// Bucket returns the configured bucket name.
func (s *Store) Bucket() string { return s.bucket }

// Close releases the underlying client.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Put writes the object, replacing any existing generation.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return core.Info{}, err
	}
	attrs, err := s.api.write(ctx, key, body, opts.ContentType, core.CloneMetadata(opts.Metadata))
	if err != nil {
		return core.Info{}, fmt.Errorf("write gcs object %s: %w", key, err)
	}
	return toInfo(key, attrs), nil
}

// Get reads attributes and content.
func (s *Store) Get(ctx context.Context, key string) (core.Info, io.ReadCloser, error) {
	attrs, err := s.api.attrs(ctx, key)
	if err != nil {
		return core.Info{}, nil, mapNotFound(err)
	}
	body, err := s.api.read(ctx, key)
	if err != nil {
		return core.Info{}, nil, mapNotFound(err)
	}
	return toInfo(key, attrs), io.NopCloser(bytes.NewReader(body)), nil
}

// Head reads object attributes.
func (s *Store) Head(ctx context.Context, key string) (core.Info, error) {
	attrs, err := s.api.attrs(ctx, key)
	if err != nil {
		return core.Info{}, mapNotFound(err)
	}
	return toInfo(key, attrs), nil
}

// Delete removes the object.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	err := s.api.remove(ctx, key)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List returns objects under prefix ordered by key.
func (s *Store) List(ctx context.Context, prefix string) ([]core.Info, error) {
	all, err := s.api.list(ctx, prefix)
	if err != nil {
		return nil, err
	}
	infos := make([]core.Info, 0, len(all))
	for _, attrs := range all {
		infos = append(infos, toInfo(attrs.Name, attrs))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return core.ErrNotFound
	}
	return err
}

func toInfo(key string, attrs *storage.ObjectAttrs) core.Info {
	if attrs == nil {
		return core.Info{Key: key}
	}
	return core.Info{
		Key:          key,
		Size:         attrs.Size,
		ContentType:  attrs.ContentType,
		ETag:         attrs.Etag,
		Metadata:     core.CloneMetadata(attrs.Metadata),
		LastModified: attrs.Updated,
	}
}

type bucketAPI struct {
	h *storage.BucketHandle
}

func (b bucketAPI) write(ctx context.Context, key string, body []byte, contentType string, metadata map[string]string) (*storage.ObjectAttrs, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	w := b.h.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = metadata
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return w.Attrs(), nil
}

func (b bucketAPI) read(ctx context.Context, key string) ([]byte, error) {
	r, err := b.h.Object(key).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (b bucketAPI) attrs(ctx context.Context, key string) (*storage.ObjectAttrs, error) {
	return b.h.Object(key).Attrs(ctx)
}

func (b bucketAPI) remove(ctx context.Context, key string) error {
	return b.h.Object(key).Delete(ctx)
}

func (b bucketAPI) list(ctx context.Context, prefix string) ([]*storage.ObjectAttrs, error) {
	it := b.h.Objects(ctx, &storage.Query{Prefix: prefix})
	var out []*storage.ObjectAttrs
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, attrs)
	}
}
