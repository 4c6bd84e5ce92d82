package remote

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"flockcore/internal/blob"
	"flockcore/pkg/domain"
)

func TestSnapshotKey(t *testing.T) {
	cases := map[string]string{
		"":          "flocks/default/snapshot.json",
		"  home  ":  "flocks/home/snapshot.json",
		"back yard": "flocks/back%20yard/snapshot.json",
		"a/b":       "flocks/a%2Fb/snapshot.json",
	}
	for in, want := range cases {
		if got := SnapshotKey(in); got != want {
			t.Fatalf("SnapshotKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBlobSnapshotStore_FetchUpsert(t *testing.T) {
	ctx := context.Background()
	rs := New(blob.NewMemory(), "home")
	if _, found, err := rs.Fetch(ctx); err != nil || found {
		t.Fatalf("expected empty remote, got found=%v err=%v", found, err)
	}
	if st, err := rs.Status(ctx); err != nil || st.Found {
		t.Fatalf("expected no snapshot, got %+v %v", st, err)
	}
	when := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	if err := rs.Upsert(ctx, []byte(`{"v":1}`), when); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := rs.Upsert(ctx, []byte(`{"v":2}`), when.Add(time.Minute)); err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	payload, found, err := rs.Fetch(ctx)
	if err != nil || !found || string(payload) != `{"v":2}` {
		t.Fatalf("fetch: %q %v %v", payload, found, err)
	}
	st, err := rs.Status(ctx)
	if err != nil || !st.Found || st.Size != 7 || !st.UpdatedAt.Equal(when.Add(time.Minute)) {
		t.Fatalf("status: %+v %v", st, err)
	}
	if rs.Name() != "memory" || rs.Key() != "flocks/home/snapshot.json" {
		t.Fatalf("unexpected identity %s %s", rs.Name(), rs.Key())
	}
}

func TestBlobSnapshotStore_FlocksAndClear(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	when := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	home := New(store, "home")
	yard := New(store, "back yard")
	for _, rs := range []*BlobSnapshotStore{home, yard} {
		if err := rs.Upsert(ctx, []byte("{}"), when); err != nil {
			t.Fatalf("upsert %s: %v", rs.Key(), err)
		}
	}
	if _, err := store.Put(ctx, "flocks/home/notes.txt", strings.NewReader("x"), blob.PutOptions{}); err != nil {
		t.Fatalf("put stray object: %v", err)
	}

	flocks, err := home.Flocks(ctx)
	if err != nil {
		t.Fatalf("flocks: %v", err)
	}
	want := []Flock{{ID: "back yard", Size: 2, UpdatedAt: when}, {ID: "home", Size: 2, UpdatedAt: when}}
	if diff := cmp.Diff(want, flocks); diff != "" {
		t.Fatalf("flocks mismatch:\n%s", diff)
	}

	if existed, err := yard.Clear(ctx); err != nil || !existed {
		t.Fatalf("clear: %v %v", existed, err)
	}
	if existed, err := yard.Clear(ctx); err != nil || existed {
		t.Fatalf("second clear should find nothing: %v %v", existed, err)
	}
	if _, found, err := yard.Fetch(ctx); err != nil || found {
		t.Fatalf("cleared snapshot still fetchable: %v %v", found, err)
	}
	if st, err := home.Status(ctx); err != nil || !st.Found {
		t.Fatalf("clear removed another flock: %+v %v", st, err)
	}
}

func TestBlobSnapshotStore_OverS3Mock(t *testing.T) {
	ctx := context.Background()
	rs := New(blob.NewMockS3ForTests(), "home")
	if _, found, err := rs.Fetch(ctx); err != nil || found {
		t.Fatalf("expected missing object, got %v %v", found, err)
	}
	if err := rs.Upsert(ctx, []byte(`{"profile":{}}`), time.Now()); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	payload, found, err := rs.Fetch(ctx)
	if err != nil || !found || string(payload) != `{"profile":{}}` {
		t.Fatalf("fetch: %q %v %v", payload, found, err)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	if _, err := Open(ctx, Config{Blob: blob.Config{Driver: DriverNone}}); !errors.Is(err, domain.ErrSyncUnavailable) {
		t.Fatalf("expected ErrSyncUnavailable, got %v", err)
	}
	rs, err := Open(ctx, Config{Blob: blob.Config{Driver: blob.DriverFilesystem, FSRoot: t.TempDir()}, FlockID: "home"})
	if err != nil {
		t.Fatalf("open fs: %v", err)
	}
	defer rs.Close()
	if err := rs.Upsert(ctx, []byte("{}"), time.Now()); err != nil {
		t.Fatalf("upsert fs: %v", err)
	}
	if _, err := Open(ctx, Config{Blob: blob.Config{Driver: "carrier-pigeon"}}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
