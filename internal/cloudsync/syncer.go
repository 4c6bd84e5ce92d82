package cloudsync

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"flockcore/internal/core"
	"flockcore/pkg/domain"
)

// Direction and outcome labels reported to a Recorder.
const (
	DirectionPush = "push"
	DirectionPull = "pull"

	OutcomeOK       = "ok"
	OutcomeAdopted  = "adopted"
	OutcomeSkipped  = "skipped"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Recorder receives one observation per push or pull.
type Recorder interface {
	ObserveSync(direction, outcome string)
}

type noopRecorder struct{}

func (noopRecorder) ObserveSync(string, string) {}

// PullResult reports what a pull did.
type PullResult struct {
	// Adopted is true when the remote snapshot replaced local state.
	Adopted bool
	// NotFound is true when the remote held no snapshot yet.
	NotFound bool
	// Snapshot is the local state after the pull.
	Snapshot core.Snapshot
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithReconciler replaces LastWriteWins.
func WithReconciler(r Reconciler) Option {
	return func(s *Syncer) {
		if r != nil {
			s.reconciler = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Syncer) {
		if log != nil {
			s.log = log.Named("sync")
		}
	}
}

// WithRecorder reports push and pull outcomes.
func WithRecorder(rec Recorder) Option {
	return func(s *Syncer) {
		if rec != nil {
			s.rec = rec
		}
	}
}

// Syncer moves snapshots between a core.Store and a domain.RemoteStore.
type Syncer struct {
	store      *core.Store
	remote     domain.RemoteStore
	cal        core.Calendar
	reconciler Reconciler
	log        *zap.Logger
	rec        Recorder
	pulls      singleflight.Group
}

// New returns a Syncer. A nil remote makes every call fail with
// domain.ErrSyncUnavailable.
func New(store *core.Store, remote domain.RemoteStore, cal core.Calendar, opts ...Option) *Syncer {
	s := &Syncer{
		store:      store,
		remote:     remote,
		cal:        cal,
		reconciler: LastWriteWins{},
		log:        zap.NewNop(),
		rec:        noopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Remote returns the backing remote store.
func (s *Syncer) Remote() domain.RemoteStore { return s.remote }

// Push uploads the local snapshot stamped with the current time, then records
// the stamp locally without scheduling another push. Local state is left
// alone when the upload fails.
func (s *Syncer) Push(ctx context.Context) (stamp string, err error) {
	defer func() { s.rec.ObserveSync(DirectionPush, outcome(err, OutcomeOK)) }()
	if s.remote == nil {
		return "", domain.ErrSyncUnavailable
	}
	snap := s.store.Snapshot()
	stamp = s.cal.Stamp()
	snap.Household.LastSyncedAt = stamp
	payload, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.remote.Upsert(ctx, payload, s.cal.Now()); err != nil {
		return "", err
	}
	_, err = s.store.Mutate(ctx, core.MutateOptions{SkipAutoSync: true, Origin: "sync_push"}, func(draft *core.Snapshot) error {
		draft.Household.LastSyncedAt = stamp
		return nil
	})
	if err != nil {
		return "", err
	}
	s.log.Debug("pushed snapshot", zap.String("remote", s.remote.Name()), zap.String("stamp", stamp))
	return stamp, nil
}

// Pull fetches the remote snapshot. A forced pull always adopts it and stamps
// lastSyncedAt; otherwise the Reconciler decides. Concurrent pulls with the
// same force flag share one fetch.
func (s *Syncer) Pull(ctx context.Context, force bool) (PullResult, error) {
	v, err, _ := s.pulls.Do("pull:"+strconv.FormatBool(force), func() (any, error) {
		return s.pull(ctx, force)
	})
	if err != nil {
		return PullResult{}, err
	}
	res := v.(PullResult)
	res.Snapshot = res.Snapshot.Clone()
	return res, nil
}

func (s *Syncer) pull(ctx context.Context, force bool) (res PullResult, err error) {
	defer func() {
		out := OutcomeSkipped
		switch {
		case res.NotFound:
			out = OutcomeNotFound
		case res.Adopted:
			out = OutcomeAdopted
		}
		s.rec.ObserveSync(DirectionPull, outcome(err, out))
	}()
	if s.remote == nil {
		return PullResult{}, domain.ErrSyncUnavailable
	}
	payload, found, err := s.remote.Fetch(ctx)
	if err != nil {
		return PullResult{}, err
	}
	if !found || len(payload) == 0 {
		return PullResult{NotFound: true, Snapshot: s.store.Snapshot()}, nil
	}
	incoming, err := s.store.Normalizer().ParseSnapshot(payload)
	if err != nil {
		s.log.Warn("rejected remote snapshot", zap.String("remote", s.remote.Name()), zap.Error(err))
		return PullResult{}, err
	}

	next := incoming
	if force {
		next.Household.LastSyncedAt = s.cal.Stamp()
	} else {
		var adopt bool
		next, adopt = s.reconciler.Reconcile(s.store.Snapshot(), incoming)
		if !adopt {
			return PullResult{Snapshot: s.store.Snapshot()}, nil
		}
	}
	if _, err := s.store.Replace(ctx, next, core.MutateOptions{SkipAutoSync: true, Origin: "sync_pull"}); err != nil {
		return PullResult{}, err
	}
	s.log.Info("adopted remote snapshot", zap.String("remote", s.remote.Name()), zap.Bool("forced", force))
	return PullResult{Adopted: true, Snapshot: s.store.Snapshot()}, nil
}

func outcome(err error, ok string) string {
	if err != nil {
		return OutcomeError
	}
	return ok
}
