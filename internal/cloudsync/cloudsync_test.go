package cloudsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"flockcore/internal/core"
	"flockcore/internal/infra/persistence/memory"
	"flockcore/pkg/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testNow = time.Date(2024, time.March, 15, 9, 30, 0, 0, time.UTC)

const testStamp = "2024-03-15 09:30:00"

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("id-%d", s.n)
}

type fakeRemote struct {
	mu        sync.Mutex
	payload   []byte
	updatedAt time.Time
	fetches   int
	upserts   int
	fetchErr  error
	upsertErr error
	// gate blocks Fetch until closed when non-nil.
	gate chan struct{}
}

func (f *fakeRemote) Name() string { return "fake" }

func (f *fakeRemote) Fetch(context.Context) ([]byte, bool, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, false, f.fetchErr
	}
	if f.payload == nil {
		return nil, false, nil
	}
	return append([]byte(nil), f.payload...), true, nil
}

func (f *fakeRemote) Upsert(_ context.Context, payload []byte, updatedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts++
	f.payload = append([]byte(nil), payload...)
	f.updatedAt = updatedAt
	return nil
}

type captureRecorder struct {
	mu   sync.Mutex
	seen []string
}

func (c *captureRecorder) ObserveSync(direction, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, direction+":"+outcome)
}

type fixture struct {
	store *core.Store
	svc   *core.Service
	cal   core.Calendar
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cal := core.FixedCalendar(testNow)
	ids := &seqIDs{}
	store := core.NewStore(memory.NewStore(),
		core.WithRulesEngine(core.NewDefaultRulesEngine()),
		core.WithNormalizer(core.NewNormalizer(cal, ids)),
	)
	svc := core.NewService(store, core.WithCalendar(cal), core.WithIDGenerator(ids))
	return fixture{store: store, svc: svc, cal: cal}
}

func remoteSnapshot(t *testing.T, flockName, lastSynced string) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"profile":   map[string]any{"flockName": flockName, "henCount": 6, "units": "imperial"},
		"household": map[string]any{"members": []any{"Ana", "Ben"}, "activeMember": "Ben", "lastSyncedAt": lastSynced},
		"eggs":      []any{map[string]any{"id": "e1", "date": "2024-03-14", "count": 5, "by": "Ana"}},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func TestLastWriteWins(t *testing.T) {
	snap := func(stamp string) core.Snapshot {
		var s core.Snapshot
		s.Household.LastSyncedAt = stamp
		return s
	}
	cases := []struct {
		local, remote string
		adopt         bool
	}{
		{"", "", true},
		{"", "2024-03-15 09:30:00", true},
		{"2024-03-15 09:30:00", "2024-03-16 08:00:00", true},
		{"2024-03-15 09:30:00", "2024-03-15 09:30:00", false},
		{"2024-03-15 09:30:00", "2024-03-14 23:00:00", false},
		{"2024-03-15 09:30:00", "", false},
	}
	for _, tc := range cases {
		next, adopt := LastWriteWins{}.Reconcile(snap(tc.local), snap(tc.remote))
		if adopt != tc.adopt {
			t.Fatalf("local=%q remote=%q: adopt=%v want %v", tc.local, tc.remote, adopt, tc.adopt)
		}
		want := tc.local
		if tc.adopt {
			want = tc.remote
		}
		if next.Household.LastSyncedAt != want {
			t.Fatalf("unexpected next state %q", next.Household.LastSyncedAt)
		}
	}
}

func TestPushStampsRemoteAndLocal(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	if _, _, err := fx.svc.AddEggs(ctx, core.EggRecord{Count: 4}); err != nil {
		t.Fatalf("add eggs: %v", err)
	}
	remote := &fakeRemote{}
	rec := &captureRecorder{}
	s := New(fx.store, remote, fx.cal, WithRecorder(rec))

	var changes []core.Change
	cancel := fx.store.Subscribe(func(c core.Change) { changes = append(changes, c) })
	defer cancel()

	stamp, err := s.Push(ctx)
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if stamp != testStamp {
		t.Fatalf("unexpected stamp %q", stamp)
	}
	pushed, err := fx.store.Normalizer().ParseSnapshot(remote.payload)
	if err != nil {
		t.Fatalf("parse pushed payload: %v", err)
	}
	if pushed.Household.LastSyncedAt != testStamp || len(pushed.Eggs) != 1 {
		t.Fatalf("unexpected pushed snapshot %+v", pushed.Household)
	}
	if !remote.updatedAt.Equal(testNow) {
		t.Fatalf("unexpected updatedAt %v", remote.updatedAt)
	}
	if got := fx.store.Snapshot().Household.LastSyncedAt; got != testStamp {
		t.Fatalf("local stamp not committed: %q", got)
	}
	if len(changes) != 1 || !changes[0].Options.SkipAutoSync {
		t.Fatalf("push commit must skip auto-sync: %+v", changes)
	}
	if len(rec.seen) != 1 || rec.seen[0] != "push:ok" {
		t.Fatalf("unexpected observations %v", rec.seen)
	}
}

func TestPushFailureLeavesLocalState(t *testing.T) {
	fx := newFixture(t)
	boom := errors.New("network down")
	s := New(fx.store, &fakeRemote{upsertErr: boom}, fx.cal)
	if _, err := s.Push(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected upsert error, got %v", err)
	}
	if got := fx.store.Snapshot().Household.LastSyncedAt; got != "" {
		t.Fatalf("local state changed on failed push: %q", got)
	}
}

func TestPullNotFound(t *testing.T) {
	fx := newFixture(t)
	rec := &captureRecorder{}
	s := New(fx.store, &fakeRemote{}, fx.cal, WithRecorder(rec))
	res, err := s.Pull(context.Background(), true)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if !res.NotFound || res.Adopted {
		t.Fatalf("unexpected result %+v", res)
	}
	if rec.seen[0] != "pull:not_found" {
		t.Fatalf("unexpected observation %v", rec.seen)
	}
}

func TestForcedPullAdoptsAndStamps(t *testing.T) {
	fx := newFixture(t)
	remote := &fakeRemote{payload: remoteSnapshot(t, "Remote Flock", "2020-01-01 00:00:00")}
	s := New(fx.store, remote, fx.cal)
	res, err := s.Pull(context.Background(), true)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if !res.Adopted {
		t.Fatalf("forced pull must adopt")
	}
	got := fx.store.Snapshot()
	if got.Profile.FlockName != "Remote Flock" || got.Household.ActiveMember != "Ben" {
		t.Fatalf("remote state not adopted: %+v", got.Profile)
	}
	if got.Household.LastSyncedAt != testStamp {
		t.Fatalf("forced pull must stamp, got %q", got.Household.LastSyncedAt)
	}
	if res.Snapshot.Profile.FlockName != "Remote Flock" {
		t.Fatalf("result snapshot stale")
	}
}

func TestGatedPull(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	remote := &fakeRemote{payload: remoteSnapshot(t, "Remote Flock", "2024-03-16 08:00:00")}
	s := New(fx.store, remote, fx.cal)

	res, err := s.Pull(ctx, false)
	if err != nil || !res.Adopted {
		t.Fatalf("never-synced local must adopt: %+v %v", res, err)
	}
	if got := fx.store.Snapshot().Household.LastSyncedAt; got != "2024-03-16 08:00:00" {
		t.Fatalf("gated pull keeps the remote stamp, got %q", got)
	}

	remote.payload = remoteSnapshot(t, "Older Flock", "2024-03-15 07:00:00")
	res, err = s.Pull(ctx, false)
	if err != nil || res.Adopted {
		t.Fatalf("older remote must be skipped: %+v %v", res, err)
	}
	if fx.store.Snapshot().Profile.FlockName != "Remote Flock" {
		t.Fatalf("local state replaced by older remote")
	}
}

type keepLocal struct{}

func (keepLocal) Reconcile(local, _ core.Snapshot) (core.Snapshot, bool) { return local, false }

func TestPullUsesConfiguredReconciler(t *testing.T) {
	fx := newFixture(t)
	remote := &fakeRemote{payload: remoteSnapshot(t, "Remote Flock", "2099-01-01 00:00:00")}
	s := New(fx.store, remote, fx.cal, WithReconciler(keepLocal{}))
	res, err := s.Pull(context.Background(), false)
	if err != nil || res.Adopted {
		t.Fatalf("reconciler should keep local: %+v %v", res, err)
	}
}

func TestPullRejectsInvalidPayload(t *testing.T) {
	fx := newFixture(t)
	before := fx.store.Snapshot()
	rec := &captureRecorder{}
	s := New(fx.store, &fakeRemote{payload: []byte("{not json")}, fx.cal, WithRecorder(rec))
	if _, err := s.Pull(context.Background(), true); !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
	if fx.store.Snapshot().Profile != before.Profile {
		t.Fatalf("state changed after rejected payload")
	}
	if rec.seen[0] != "pull:error" {
		t.Fatalf("unexpected observation %v", rec.seen)
	}
}

func TestPullFetchError(t *testing.T) {
	fx := newFixture(t)
	boom := errors.New("unauthorized")
	s := New(fx.store, &fakeRemote{fetchErr: boom}, fx.cal)
	if _, err := s.Pull(context.Background(), false); !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}
}

func TestConcurrentPullsShareFetch(t *testing.T) {
	fx := newFixture(t)
	remote := &fakeRemote{payload: remoteSnapshot(t, "Remote Flock", ""), gate: make(chan struct{})}
	s := New(fx.store, remote, fx.cal)

	const callers = 5
	var wg sync.WaitGroup
	started := make(chan struct{}, callers)
	results := make(chan PullResult, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started <- struct{}{}
			res, err := s.Pull(context.Background(), true)
			if err != nil {
				t.Errorf("pull: %v", err)
				return
			}
			results <- res
		}()
	}
	for i := 0; i < callers; i++ {
		<-started
	}
	time.Sleep(20 * time.Millisecond)
	close(remote.gate)
	wg.Wait()
	close(results)
	for res := range results {
		if !res.Adopted {
			t.Fatalf("every caller should observe the adoption")
		}
	}
	if remote.fetches >= callers {
		t.Fatalf("expected coalesced fetches, got %d", remote.fetches)
	}
}

func TestSyncUnavailable(t *testing.T) {
	fx := newFixture(t)
	s := New(fx.store, nil, fx.cal)
	if _, err := s.Push(context.Background()); !errors.Is(err, domain.ErrSyncUnavailable) {
		t.Fatalf("push: expected ErrSyncUnavailable, got %v", err)
	}
	if _, err := s.Pull(context.Background(), false); !errors.Is(err, domain.ErrSyncUnavailable) {
		t.Fatalf("pull: expected ErrSyncUnavailable, got %v", err)
	}
}
