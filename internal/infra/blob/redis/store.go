// Package redis implements a blob Store on redis string values.
package redis

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"flockcore/internal/blob/core"
)

// Client is the subset of redis commands the store issues.
// *goredis.Client satisfies it.
type Client interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *goredis.ScanCmd
}

// Config configures a redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
	// Namespace prefixes every key (default "flockcore:blob:").
	Namespace string
}

const defaultNamespace = "flockcore:blob:"

// envelope is the JSON value stored per object.
type envelope struct {
	Data        []byte            `json:"data"`
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ETag        string            `json:"etag"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Store implements core.Store on redis.
type Store struct {
	rdb    Client
	closer io.Closer
	ns     string
	now    func() time.Time
}

// New dials redis and verifies connectivity.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, fmt.Errorf("redis addr required")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	s := NewWithClient(rdb, cfg.Namespace)
	s.closer = rdb
	return s, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb Client, namespace string) *Store {
	if namespace == "" {
		namespace = defaultNamespace
	}
	return &Store{rdb: rdb, ns: namespace, now: func() time.Time { return time.Now().UTC() }}
}

// Driver returns the blob driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverRedis }

// Close closes the connection when the store owns it.
func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Put stores the object, replacing any existing value.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return core.Info{}, err
	}
	sum := sha256.Sum256(body)
	env := envelope{
		Data:        body,
		ContentType: opts.ContentType,
		Metadata:    core.CloneMetadata(opts.Metadata),
		ETag:        hex.EncodeToString(sum[:]),
		UpdatedAt:   s.now(),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return core.Info{}, err
	}
	if err := s.rdb.Set(ctx, s.ns+key, raw, 0).Err(); err != nil {
		return core.Info{}, fmt.Errorf("redis set %s: %w", key, err)
	}
	return env.info(key), nil
}

// Get loads the object.
func (s *Store) Get(ctx context.Context, key string) (core.Info, io.ReadCloser, error) {
	env, err := s.load(ctx, key)
	if err != nil {
		return core.Info{}, nil, err
	}
	return env.info(key), io.NopCloser(bytes.NewReader(env.Data)), nil
}

// Head loads object metadata.
func (s *Store) Head(ctx context.Context, key string) (core.Info, error) {
	env, err := s.load(ctx, key)
	if err != nil {
		return core.Info{}, err
	}
	return env.info(key), nil
}

// Delete removes the object.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Del(ctx, s.ns+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List scans the namespace for keys under prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]core.Info, error) {
	var (
		cursor uint64
		infos  []core.Info
	)
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, s.ns+prefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, full := range keys {
			key := strings.TrimPrefix(full, s.ns)
			env, err := s.load(ctx, key)
			if errors.Is(err, core.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			infos = append(infos, env.info(key))
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func (s *Store) load(ctx context.Context, key string) (envelope, error) {
	raw, err := s.rdb.Get(ctx, s.ns+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return envelope{}, core.ErrNotFound
	}
	if err != nil {
		return envelope{}, fmt.Errorf("redis get %s: %w", key, err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return envelope{}, fmt.Errorf("decode redis blob %s: %w", key, err)
	}
	return env, nil
}

func (e envelope) info(key string) core.Info {
	return core.Info{
		Key:          key,
		Size:         int64(len(e.Data)),
		ContentType:  e.ContentType,
		ETag:         e.ETag,
		Metadata:     core.CloneMetadata(e.Metadata),
		LastModified: e.UpdatedAt,
	}
}
