package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"flockcore/pkg/domain"
)

// Storage keys used when none are configured.
const (
	DefaultStorageKey       = "chicken_tracker_v2"
	DefaultLegacyStorageKey = "chicken_tracker_v1"
)

// MutateOptions tune how a committed mutation is announced.
type MutateOptions struct {
	// SkipAutoSync marks the change as one that must not schedule a push.
	SkipAutoSync bool
	// Origin names the operation for subscribers and logs.
	Origin string
}

// Change is delivered to subscribers after every commit.
type Change struct {
	Snapshot Snapshot
	Options  MutateOptions
	Result   Result
	// Persisted is false for adopted external state that was not written back.
	Persisted bool
}

// Listener receives committed changes.
type Listener func(Change)

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithRulesEngine installs the engine evaluated before each commit.
func WithRulesEngine(engine *RulesEngine) StoreOption {
	return func(s *Store) { s.engine = engine }
}

// WithNormalizer sets the normalizer used by Load.
func WithNormalizer(n Normalizer) StoreOption {
	return func(s *Store) { s.norm = n }
}

// WithStorageKeys overrides the current and legacy persistence keys.
func WithStorageKeys(current, legacy string) StoreOption {
	return func(s *Store) {
		if current != "" {
			s.key = current
		}
		s.legacyKey = legacy
	}
}

// WithStoreLogger sets the logger.
func WithStoreLogger(log *zap.Logger) StoreOption {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// Store owns the live snapshot. Mutations run against a clone, pass the rules
// engine, are persisted, and only then replace the live state.
type Store struct {
	writeMu     sync.Mutex
	mu          sync.RWMutex
	state       Snapshot
	kv          domain.KeyValueStore
	engine      *RulesEngine
	norm        Normalizer
	log         *zap.Logger
	key         string
	legacyKey   string
	lastWritten string

	subMu  sync.Mutex
	subs   map[int]Listener
	nextID int
}

// NewStore constructs a store persisting to kv. The live state starts as
// defaults until Load is called.
func NewStore(kv domain.KeyValueStore, opts ...StoreOption) *Store {
	s := &Store{
		kv:        kv,
		norm:      NewNormalizer(NewCalendar(nil), nil),
		log:       zap.NewNop(),
		key:       DefaultStorageKey,
		legacyKey: DefaultLegacyStorageKey,
		subs:      make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state = s.norm.Defaults()
	return s
}

// Engine returns the rules engine, creating an empty one when none was set.
func (s *Store) Engine() *RulesEngine {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		s.engine = NewRulesEngine()
	}
	return s.engine
}

// Key returns the current persistence key.
func (s *Store) Key() string { return s.key }

// Normalizer returns the normalizer used for stored and external payloads.
func (s *Store) Normalizer() Normalizer { return s.norm }

// Load reads the persisted snapshot, preferring the current key over the
// legacy one. A payload that cannot be decoded is replaced by defaults. Only
// storage read errors are returned.
func (s *Store) Load(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	raw, found, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	current := raw
	if (!found || raw == "") && s.legacyKey != "" {
		raw, found, err = s.kv.Get(ctx, s.legacyKey)
		if err != nil {
			return fmt.Errorf("load legacy snapshot: %w", err)
		}
	}

	next := s.norm.Defaults()
	if found && raw != "" {
		parsed, err := s.norm.ParseSnapshot([]byte(raw))
		if err != nil {
			s.log.Warn("stored snapshot unreadable, starting from defaults", zap.Error(err))
		} else {
			next = parsed
		}
	}

	s.mu.Lock()
	s.state = next
	s.lastWritten = current
	s.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the live state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// LastWritten returns the payload most recently persisted by this store.
func (s *Store) LastWritten() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastWritten
}

// Mutate applies fn to a copy of the live state. If fn fails, a rule blocks,
// or persistence fails, the live state is left untouched. Writers run one at
// a time; readers keep seeing the previous state while the write is in flight.
func (s *Store) Mutate(ctx context.Context, opts MutateOptions, fn func(*Snapshot) error) (Result, error) {
	s.writeMu.Lock()
	s.mu.RLock()
	draft := s.state.Clone()
	engine := s.engine
	s.mu.RUnlock()

	if err := fn(&draft); err != nil {
		s.writeMu.Unlock()
		return Result{}, err
	}

	var result Result
	if engine != nil {
		res, err := engine.Evaluate(ctx, draft)
		if err != nil {
			s.writeMu.Unlock()
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			s.writeMu.Unlock()
			return res, RuleViolationError{Result: res}
		}
	}

	payload, err := json.Marshal(draft)
	if err != nil {
		s.writeMu.Unlock()
		return Result{}, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, string(payload)); err != nil {
		s.writeMu.Unlock()
		return Result{}, fmt.Errorf("save snapshot: %w", err)
	}
	committed := draft.Clone()
	s.mu.Lock()
	s.state = draft
	s.lastWritten = string(payload)
	s.mu.Unlock()
	s.writeMu.Unlock()

	s.publish(Change{Snapshot: committed, Options: opts, Result: result, Persisted: true})
	return result, nil
}

// Replace swaps the whole live state for next and persists it.
func (s *Store) Replace(ctx context.Context, next Snapshot, opts MutateOptions) (Result, error) {
	return s.Mutate(ctx, opts, func(draft *Snapshot) error {
		*draft = next.Clone()
		return nil
	})
}

// Adopt installs state that already lives in storage, such as a write made by
// another process, without writing it back.
func (s *Store) Adopt(next Snapshot, raw string, opts MutateOptions) {
	s.writeMu.Lock()
	s.mu.Lock()
	s.state = next.Clone()
	s.lastWritten = raw
	committed := next.Clone()
	s.mu.Unlock()
	s.writeMu.Unlock()
	s.publish(Change{Snapshot: committed, Options: opts})
}

// Subscribe registers fn for committed changes and returns a cancel func.
func (s *Store) Subscribe(fn Listener) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) publish(change Change) {
	s.subMu.Lock()
	listeners := make([]Listener, 0, len(s.subs))
	for _, fn := range s.subs {
		listeners = append(listeners, fn)
	}
	s.subMu.Unlock()
	for _, fn := range listeners {
		fn(change)
	}
}
