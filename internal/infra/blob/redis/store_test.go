package redis

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"flockcore/internal/blob/core"
)

// fakeClient keeps values in a map and answers with prebuilt command results.
type fakeClient struct {
	mu     sync.Mutex
	values map[string]string
	setErr error
}

func newFakeClient() *fakeClient { return &fakeClient{values: map[string]string{}} }

func (f *fakeClient) Get(_ context.Context, key string) *goredis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(v, nil)
}

func (f *fakeClient) Set(_ context.Context, key string, value any, _ time.Duration) *goredis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return goredis.NewStatusResult("", f.setErr)
	}
	switch v := value.(type) {
	case []byte:
		f.values[key] = string(v)
	case string:
		f.values[key] = v
	}
	return goredis.NewStatusResult("OK", nil)
}

func (f *fakeClient) Del(_ context.Context, keys ...string) *goredis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			delete(f.values, k)
			n++
		}
	}
	return goredis.NewIntResult(n, nil)
}

// Scan returns one key per call to exercise cursor iteration.
func (f *fakeClient) Scan(_ context.Context, cursor uint64, match string, _ int64) *goredis.ScanCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.values {
		if strings.HasPrefix(k, strings.TrimSuffix(match, "*")) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if int(cursor) >= len(keys) {
		return goredis.NewScanCmdResult(nil, 0, nil)
	}
	next := cursor + 1
	if int(next) >= len(keys) {
		next = 0
	}
	return goredis.NewScanCmdResult(keys[cursor:cursor+1], next, nil)
}

func TestStore_RoundTripAndOverwrite(t *testing.T) {
	fc := newFakeClient()
	store := NewWithClient(fc, "")
	ctx := context.Background()
	key := "flocks/home/snapshot.json"
	if _, err := store.Put(ctx, key, strings.NewReader("v1"), core.PutOptions{Metadata: map[string]string{"updated-at": "a"}}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok := fc.values[defaultNamespace+key]; !ok {
		t.Fatalf("expected namespaced key, have %v", fc.values)
	}
	if _, err := store.Put(ctx, key, strings.NewReader("v2"), core.PutOptions{ContentType: "application/json", Metadata: map[string]string{"updated-at": "b"}}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	info, rc, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "v2" || info.Metadata["updated-at"] != "b" || info.ContentType != "application/json" {
		t.Fatalf("unexpected object %q %+v", body, info)
	}
}

func TestStore_NotFoundAndDelete(t *testing.T) {
	store := NewWithClient(newFakeClient(), "test:")
	ctx := context.Background()
	if _, _, err := store.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Head(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if ok, err := store.Delete(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected false delete, got %v %v", ok, err)
	}
	if _, err := store.Put(ctx, "k", strings.NewReader("x"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if ok, err := store.Delete(ctx, "k"); err != nil || !ok {
		t.Fatalf("expected delete true, got %v %v", ok, err)
	}
}

func TestStore_ListWalksCursor(t *testing.T) {
	store := NewWithClient(newFakeClient(), "")
	ctx := context.Background()
	for _, k := range []string{"flocks/b/snapshot.json", "flocks/a/snapshot.json", "misc"} {
		if _, err := store.Put(ctx, k, strings.NewReader(k), core.PutOptions{}); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	list, err := store.List(ctx, "flocks/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != "flocks/a/snapshot.json" || list[1].Key != "flocks/b/snapshot.json" {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestStore_Errors(t *testing.T) {
	fc := newFakeClient()
	store := NewWithClient(fc, "")
	ctx := context.Background()
	fc.setErr = errors.New("READONLY")
	if _, err := store.Put(ctx, "k", strings.NewReader("x"), core.PutOptions{}); err == nil || !strings.Contains(err.Error(), "READONLY") {
		t.Fatalf("expected set error, got %v", err)
	}
	fc.values[defaultNamespace+"bad"] = "{not json"
	if _, err := store.Head(ctx, "bad"); err == nil || errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if store.Driver() != core.DriverRedis || store.Close() != nil {
		t.Fatalf("unexpected driver or close result")
	}
}

func TestNew_RequiresAddr(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty addr")
	}
}
