package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"flockcore/pkg/domain"
)

// Chart defaults.
const (
	DefaultChartDays     = 30
	DefaultActivityLimit = 8
	rollingWindowDays    = 7
)

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(log *zap.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetricsRecorder installs a recorder observing every operation.
func WithMetricsRecorder(rec MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithCalendar overrides the clock used for default dates.
func WithCalendar(cal Calendar) ServiceOption {
	return func(s *Service) { s.cal = cal }
}

// WithIDGenerator overrides record identifier generation.
func WithIDGenerator(ids IDGenerator) ServiceOption {
	return func(s *Service) {
		if ids != nil {
			s.ids = ids
		}
	}
}

// Service exposes the user-facing operations. Every mutation goes through
// Store.Mutate so failures leave the snapshot untouched.
type Service struct {
	store   *Store
	cal     Calendar
	ids     IDGenerator
	metrics MetricsRecorder
	log     *zap.Logger
	plugins map[string]PluginMetadata
}

// NewService constructs a service over store.
func NewService(store *Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		cal:     store.Normalizer().Calendar,
		ids:     store.Normalizer().IDs,
		metrics: noopMetricsRecorder{},
		log:     zap.NewNop(),
		plugins: make(map[string]PluginMetadata),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ids == nil {
		s.ids = TimeOrderedIDs{}
	}
	return s
}

// NewInMemoryService builds a service over an unbounded in-memory key-value
// store with the default rules, for tests and dry runs.
func NewInMemoryService(kv domain.KeyValueStore, cal Calendar, ids IDGenerator, opts ...ServiceOption) *Service {
	store := NewStore(kv,
		WithRulesEngine(NewDefaultRulesEngine()),
		WithNormalizer(NewNormalizer(cal, ids)),
	)
	return NewService(store, opts...)
}

// Store returns the underlying state container.
func (s *Service) Store() *Store { return s.store }

// Calendar returns the calendar used for dates.
func (s *Service) Calendar() Calendar { return s.cal }

// Snapshot returns a copy of the live state.
func (s *Service) Snapshot() Snapshot { return s.store.Snapshot() }

func (s *Service) observe(ctx context.Context, op string, start time.Time, err error) {
	s.metrics.Observe(ctx, op, err == nil, time.Since(start))
	if err != nil {
		s.log.Debug("operation failed", zap.String("operation", op), zap.Error(err))
	}
}

func (s *Service) mutate(ctx context.Context, op string, opts MutateOptions, fn func(*Snapshot) error) (res Result, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, op, start, err) }()
	if opts.Origin == "" {
		opts.Origin = op
	}
	return s.store.Mutate(ctx, opts, fn)
}

// ProfileUpdate carries optional profile changes. Units cannot be set: the
// only transition is the one-time migration to imperial.
type ProfileUpdate struct {
	FlockName *string
	HenCount  *int
}

// UpdateProfile edits the flock name and hen count.
func (s *Service) UpdateProfile(ctx context.Context, update ProfileUpdate) (Profile, Result, error) {
	var out Profile
	res, err := s.mutate(ctx, "update_profile", MutateOptions{}, func(snap *Snapshot) error {
		if update.FlockName != nil {
			snap.Profile.FlockName = ValidateString(*update.FlockName, maxNameLength, "")
		}
		if update.HenCount != nil {
			snap.Profile.HenCount = int(ValidateNumber(float64(*update.HenCount), 0, maxHenCount, 0))
		}
		out = snap.Profile
		return nil
	})
	return out, res, err
}

// AddMember adds a household member and makes them active.
func (s *Service) AddMember(ctx context.Context, name string) (string, Result, error) {
	var added string
	res, err := s.mutate(ctx, "add_member", MutateOptions{}, func(snap *Snapshot) error {
		var err error
		added, err = AddMember(snap, name)
		return err
	})
	return added, res, err
}

// RemoveMember removes a member that is neither the last nor the active one.
func (s *Service) RemoveMember(ctx context.Context, name string) (Result, error) {
	return s.mutate(ctx, "remove_member", MutateOptions{}, func(snap *Snapshot) error {
		return RemoveMember(snap, name)
	})
}

// SwitchMember changes the member credited with new records.
func (s *Service) SwitchMember(ctx context.Context, name string) (Result, error) {
	return s.mutate(ctx, "switch_member", MutateOptions{}, func(snap *Snapshot) error {
		return SwitchMember(snap, name)
	})
}

// MergeMembers reassigns all of from's records to to. A zero count is an
// informational outcome, not an error.
func (s *Service) MergeMembers(ctx context.Context, from, to string) (int, Result, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	var changed int
	res, err := s.mutate(ctx, "merge_members", MutateOptions{}, func(snap *Snapshot) error {
		var err error
		changed, err = MergeMemberRecords(snap, from, to)
		return err
	})
	return changed, res, err
}

// SetAutoSync toggles debounced pushes after each mutation.
func (s *Service) SetAutoSync(ctx context.Context, enabled bool) (Result, error) {
	return s.mutate(ctx, "set_autosync", MutateOptions{}, func(snap *Snapshot) error {
		snap.Household.AutoSync = enabled
		return nil
	})
}

// stampDated fills the shared header for a new record and validates its date.
func (s *Service) stampDated(snap *Snapshot, d Dated) (Dated, error) {
	d.ID = s.ids.NewID()
	d.By = snap.Household.ActiveMember
	if d.Date == "" {
		d.Date = s.cal.Today()
		return d, nil
	}
	if _, err := time.Parse(DateLayout, d.Date); err != nil {
		return d, fmt.Errorf("%w: date %q is not YYYY-MM-DD", domain.ErrInvalidRecord, d.Date)
	}
	return d, nil
}

func nonNegative(v float64) float64 {
	return ValidateNumber(v, 0, math.Inf(1), 0)
}

// AddEggs logs a collection credited to the active member.
func (s *Service) AddEggs(ctx context.Context, rec EggRecord) (EggRecord, Result, error) {
	res, err := s.mutate(ctx, "add_eggs", MutateOptions{}, func(snap *Snapshot) error {
		header, err := s.stampDated(snap, rec.Dated)
		if err != nil {
			return err
		}
		rec.Dated = header
		rec.Count = nonNegative(rec.Count)
		rec.Broken = nonNegative(rec.Broken)
		snap.Eggs = append(snap.Eggs, rec)
		return nil
	})
	return rec, res, err
}

// AddFeed logs feed given. A feed type is required.
func (s *Service) AddFeed(ctx context.Context, rec FeedRecord) (FeedRecord, Result, error) {
	res, err := s.mutate(ctx, "add_feed", MutateOptions{}, func(snap *Snapshot) error {
		rec.Type = ValidateString(rec.Type, maxNameLength, "")
		if rec.Type == "" {
			return fmt.Errorf("%w: feed type required", domain.ErrInvalidRecord)
		}
		header, err := s.stampDated(snap, rec.Dated)
		if err != nil {
			return err
		}
		rec.Dated = header
		rec.Amount = nonNegative(rec.Amount)
		snap.Feed = append(snap.Feed, rec)
		return nil
	})
	return rec, res, err
}

// AddWater logs water given.
func (s *Service) AddWater(ctx context.Context, rec WaterRecord) (WaterRecord, Result, error) {
	res, err := s.mutate(ctx, "add_water", MutateOptions{}, func(snap *Snapshot) error {
		header, err := s.stampDated(snap, rec.Dated)
		if err != nil {
			return err
		}
		rec.Dated = header
		rec.Amount = nonNegative(rec.Amount)
		snap.Water = append(snap.Water, rec)
		return nil
	})
	return rec, res, err
}

// AddCare logs a husbandry note. A category is required.
func (s *Service) AddCare(ctx context.Context, rec CareRecord) (CareRecord, Result, error) {
	res, err := s.mutate(ctx, "add_care", MutateOptions{}, func(snap *Snapshot) error {
		rec.Category = ValidateString(rec.Category, maxNameLength, "")
		if rec.Category == "" {
			return fmt.Errorf("%w: care category required", domain.ErrInvalidRecord)
		}
		rec.Note = ValidateString(rec.Note, maxNoteLength, "")
		header, err := s.stampDated(snap, rec.Dated)
		if err != nil {
			return err
		}
		rec.Dated = header
		snap.Care = append(snap.Care, rec)
		return nil
	})
	return rec, res, err
}

// AddTask creates a recurring task. lastDone defaults to today and nextDue is
// always derived from it.
func (s *Service) AddTask(ctx context.Context, task Task) (Task, Result, error) {
	res, err := s.mutate(ctx, "add_task", MutateOptions{}, func(snap *Snapshot) error {
		task.Name = ValidateString(task.Name, maxNameLength, "")
		if task.Name == "" {
			return fmt.Errorf("%w: task name required", domain.ErrInvalidRecord)
		}
		task.CadenceDays = int(math.Round(ValidateNumber(float64(task.CadenceDays), minCadenceDays, maxCadenceDays, minCadenceDays)))
		if task.LastDone == "" {
			task.LastDone = s.cal.Today()
		} else if _, err := time.Parse(DateLayout, task.LastDone); err != nil {
			return fmt.Errorf("%w: lastDone %q is not YYYY-MM-DD", domain.ErrInvalidRecord, task.LastDone)
		}
		task.ID = s.ids.NewID()
		task.NextDue = s.cal.AddDays(task.LastDone, task.CadenceDays)
		task.CreatedBy = snap.Household.ActiveMember
		task.LastDoneBy = snap.Household.ActiveMember
		snap.Tasks = append(snap.Tasks, task)
		return nil
	})
	return task, res, err
}

// CompleteTask marks a task done today by the active member.
func (s *Service) CompleteTask(ctx context.Context, id string) (Task, Result, error) {
	var done Task
	res, err := s.mutate(ctx, "complete_task", MutateOptions{}, func(snap *Snapshot) error {
		for i := range snap.Tasks {
			if snap.Tasks[i].ID != id {
				continue
			}
			t := &snap.Tasks[i]
			t.LastDone = s.cal.Today()
			t.LastDoneBy = snap.Household.ActiveMember
			t.NextDue = s.cal.AddDays(t.LastDone, t.CadenceDays)
			done = *t
			return nil
		}
		return ErrNotFound{Collection: CollectionTasks, ID: id}
	})
	return done, res, err
}

// AddInventory starts tracking a supply. Item name and unit are required.
func (s *Service) AddInventory(ctx context.Context, item InventoryItem) (InventoryItem, Result, error) {
	res, err := s.mutate(ctx, "add_inventory", MutateOptions{}, func(snap *Snapshot) error {
		item.Item = ValidateString(item.Item, maxNameLength, "")
		item.Unit = ValidateString(item.Unit, maxUnitLength, "")
		if item.Item == "" || item.Unit == "" {
			return fmt.Errorf("%w: item and unit required", domain.ErrInvalidRecord)
		}
		item.ID = s.ids.NewID()
		item.Quantity = nonNegative(item.Quantity)
		item.Threshold = nonNegative(item.Threshold)
		item.By = snap.Household.ActiveMember
		snap.Inventory = append(snap.Inventory, item)
		return nil
	})
	return item, res, err
}

// AdjustInventory adds delta to an item's quantity, never going below zero.
func (s *Service) AdjustInventory(ctx context.Context, id string, delta float64) (InventoryItem, Result, error) {
	var adjusted InventoryItem
	res, err := s.mutate(ctx, "adjust_inventory", MutateOptions{}, func(snap *Snapshot) error {
		for i := range snap.Inventory {
			if snap.Inventory[i].ID != id {
				continue
			}
			item := &snap.Inventory[i]
			item.Quantity = math.Max(0, round2(item.Quantity+delta))
			adjusted = *item
			return nil
		}
		return ErrNotFound{Collection: CollectionInventory, ID: id}
	})
	return adjusted, res, err
}

// RemoveRecord deletes a record by id from collection c.
func (s *Service) RemoveRecord(ctx context.Context, c Collection, id string) (Result, error) {
	return s.mutate(ctx, "remove_record", MutateOptions{}, func(snap *Snapshot) error {
		var removed bool
		switch c {
		case CollectionEggs:
			snap.Eggs, removed = removeByID(snap.Eggs, id, func(r EggRecord) string { return r.ID })
		case CollectionFeed:
			snap.Feed, removed = removeByID(snap.Feed, id, func(r FeedRecord) string { return r.ID })
		case CollectionWater:
			snap.Water, removed = removeByID(snap.Water, id, func(r WaterRecord) string { return r.ID })
		case CollectionCare:
			snap.Care, removed = removeByID(snap.Care, id, func(r CareRecord) string { return r.ID })
		case CollectionTasks:
			snap.Tasks, removed = removeByID(snap.Tasks, id, func(t Task) string { return t.ID })
		case CollectionInventory:
			snap.Inventory, removed = removeByID(snap.Inventory, id, func(i InventoryItem) string { return i.ID })
		default:
			return fmt.Errorf("%w: unknown collection %q", domain.ErrInvalidRecord, c)
		}
		if !removed {
			return ErrNotFound{Collection: c, ID: id}
		}
		return nil
	})
}

func removeByID[T any](list []T, id string, idOf func(T) string) ([]T, bool) {
	for i, v := range list {
		if idOf(v) == id {
			out := make([]T, 0, len(list)-1)
			out = append(out, list[:i]...)
			return append(out, list[i+1:]...), true
		}
	}
	return list, false
}

// Import replaces the snapshot with a normalized backup. Invalid JSON is
// rejected with ErrInvalidPayload and nothing changes.
func (s *Service) Import(ctx context.Context, raw []byte) (_ Snapshot, res Result, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "import", start, err) }()
	next, err := s.store.Normalizer().ParseSnapshot(raw)
	if err != nil {
		return Snapshot{}, Result{}, err
	}
	res, err = s.store.Mutate(ctx, MutateOptions{SkipAutoSync: true, Origin: "import"}, func(snap *Snapshot) error {
		*snap = next
		return nil
	})
	if err != nil {
		return Snapshot{}, res, err
	}
	return next, res, nil
}

// Export returns the snapshot as indented JSON.
func (s *Service) Export() ([]byte, error) {
	out, err := json.MarshalIndent(s.store.Snapshot(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export snapshot: %w", err)
	}
	return out, nil
}

// ExportFileName returns the suggested backup file name for today.
func (s *Service) ExportFileName() string {
	return "chicken-tracker-backup-" + s.cal.Today() + ".json"
}

// Reset replaces everything with a fresh installation's defaults.
func (s *Service) Reset(ctx context.Context) (Result, error) {
	fresh := s.store.Normalizer().Defaults()
	return s.mutate(ctx, "reset", MutateOptions{SkipAutoSync: true}, func(snap *Snapshot) error {
		*snap = fresh
		return nil
	})
}

// ApplyExternal adopts a snapshot written to storage by another process. It
// reports false when raw matches what this process last wrote. Unreadable
// payloads are rejected and the current state is kept.
func (s *Service) ApplyExternal(ctx context.Context, raw string) (applied bool, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "apply_external", start, err) }()
	if raw == "" || raw == s.store.LastWritten() {
		return false, nil
	}
	next, err := s.store.Normalizer().ParseSnapshot([]byte(raw))
	if err != nil {
		s.log.Warn("rejected external snapshot", zap.Error(err))
		return false, err
	}
	s.store.Adopt(next, raw, MutateOptions{SkipAutoSync: true, Origin: "external"})
	return true, nil
}

// Summary is the dashboard card set.
type Summary struct {
	FlockName    string  `json:"flockName"`
	ActiveMember string  `json:"activeMember"`
	HenCount     int     `json:"henCount"`
	Units        Units   `json:"units"`
	EggsToday    float64 `json:"eggsToday"`
	EggsWeekAvg  float64 `json:"eggsWeekAvg"`
	FeedToday    float64 `json:"feedToday"`
	WaterToday   float64 `json:"waterToday"`
	TasksDue     int     `json:"tasksDue"`
	LowSupplies  int     `json:"lowSupplies"`
	LastSyncedAt string  `json:"lastSyncedAt,omitempty"`
	AutoSync     bool    `json:"autoSync"`
	MemberCount  int     `json:"memberCount"`
}

// Summary computes the dashboard figures for today.
func (s *Service) Summary() Summary {
	snap := s.store.Snapshot()
	today := s.cal.Today()
	name := snap.Profile.FlockName
	if name == "" {
		name = "Unnamed flock"
	}
	return Summary{
		FlockName:    name,
		ActiveMember: snap.Household.ActiveMember,
		HenCount:     snap.Profile.HenCount,
		Units:        snap.Profile.Units,
		EggsToday:    SumByDate(snap.Eggs, today, EggCount),
		EggsWeekAvg:  RollingAvg(s.cal, snap.Eggs, EggCount, rollingWindowDays),
		FeedToday:    SumByDate(snap.Feed, today, FeedAmount),
		WaterToday:   SumByDate(snap.Water, today, WaterAmount),
		TasksDue:     len(DueTasks(snap, today)),
		LowSupplies:  len(LowInventory(snap)),
		LastSyncedAt: snap.Household.LastSyncedAt,
		AutoSync:     snap.Household.AutoSync,
		MemberCount:  len(snap.Household.Members),
	}
}

// ChartSeries holds per-day values for the trailing window.
type ChartSeries struct {
	Dates  []string  `json:"dates"`
	Labels []string  `json:"labels"`
	Eggs   []float64 `json:"eggs"`
	Broken []float64 `json:"broken"`
	Feed   []float64 `json:"feed"`
	Water  []float64 `json:"water"`
}

// Series returns chart data for the trailing nDays (DefaultChartDays when
// nDays <= 0).
func (s *Service) Series(nDays int) ChartSeries {
	if nDays <= 0 {
		nDays = DefaultChartDays
	}
	snap := s.store.Snapshot()
	dates := s.cal.LastNDays(nDays)
	labels := make([]string, len(dates))
	for i, d := range dates {
		labels[i] = ShortLabel(d)
	}
	return ChartSeries{
		Dates:  dates,
		Labels: labels,
		Eggs:   SeriesFromRecords(snap.Eggs, dates, EggCount),
		Broken: SeriesFromRecords(snap.Eggs, dates, EggBroken),
		Feed:   SeriesFromRecords(snap.Feed, dates, FeedAmount),
		Water:  SeriesFromRecords(snap.Water, dates, WaterAmount),
	}
}

// Activity ranks members by records logged in the trailing nDays.
func (s *Service) Activity(nDays, limit int) []MemberActivity {
	if nDays <= 0 {
		nDays = DefaultChartDays
	}
	return RankActivity(ActivityByMember(s.cal, s.store.Snapshot(), nDays), limit)
}

// KnownContributors lists every member name seen in the household or records.
func (s *Service) KnownContributors() []string {
	return KnownContributors(s.store.Snapshot())
}

// IsPrecondition reports whether err is a user precondition failure rather
// than a storage or rule failure.
func IsPrecondition(err error) bool {
	for _, target := range []error{
		domain.ErrMergeToSelf, domain.ErrLastMember, domain.ErrActiveMember,
		domain.ErrDuplicateMember, domain.ErrUnknownMember, domain.ErrInvalidMember,
		domain.ErrInvalidRecord,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	var nf ErrNotFound
	return errors.As(err, &nf)
}
