// Package domain defines the snapshot aggregate, record value types, and
// rule evaluation primitives used by flockcore.
package domain

import (
	"encoding/json"
	"fmt"
)

// Collection identifies one of the record sequences held by a Snapshot.
type Collection string

// Supported collection identifiers used for record removal and error reporting.
const (
	// CollectionEggs identifies egg collection records.
	CollectionEggs Collection = "eggs"
	// CollectionFeed identifies feed records.
	CollectionFeed Collection = "feed"
	// CollectionWater identifies water records.
	CollectionWater Collection = "water"
	// CollectionCare identifies husbandry notes.
	CollectionCare Collection = "care"
	// CollectionTasks identifies recurring tasks.
	CollectionTasks Collection = "tasks"
	// CollectionInventory identifies stock items.
	CollectionInventory Collection = "inventory"
)

// Collections lists every collection in wire order.
var Collections = []Collection{
	CollectionEggs,
	CollectionFeed,
	CollectionWater,
	CollectionCare,
	CollectionTasks,
	CollectionInventory,
}

// Units selects the measurement system used for feed, water, and stock amounts.
type Units string

const (
	UnitsMetric   Units = "metric"
	UnitsImperial Units = "imperial"
)

// DefaultMember is the member used when a household has none.
const DefaultMember = "Household"

// Profile describes the flock.
type Profile struct {
	FlockName string `json:"flockName"`
	HenCount  int    `json:"henCount"`
	Units     Units  `json:"units"`
}

// Household holds the member list, the member credited with new records, and
// sync preferences.
type Household struct {
	Members      []string `json:"members"`
	ActiveMember string   `json:"activeMember"`
	AutoSync     bool     `json:"autoSync"`
	LastSyncedAt string   `json:"lastSyncedAt"`
}

// HasMember reports whether name is a current member.
func (h Household) HasMember(name string) bool {
	for _, m := range h.Members {
		if m == name {
			return true
		}
	}
	return false
}

// Snapshot is the complete application state. It is serialized wholesale for
// local persistence, export, and remote sync.
type Snapshot struct {
	Profile   Profile         `json:"profile"`
	Household Household       `json:"household"`
	Eggs      []EggRecord     `json:"eggs"`
	Feed      []FeedRecord    `json:"feed"`
	Water     []WaterRecord   `json:"water"`
	Care      []CareRecord    `json:"care"`
	Tasks     []Task          `json:"tasks"`
	Inventory []InventoryItem `json:"inventory"`
}

// Extra holds input fields a dated record carried that have no typed home.
// They are written back out unchanged.
type Extra map[string]any

// Dated is the common header shared by egg, feed, water, and care records.
type Dated struct {
	ID   string `json:"id"`
	Date string `json:"date"`
	By   string `json:"by"`
}

// RecordID returns the record identifier.
func (d Dated) RecordID() string { return d.ID }

// RecordDate returns the ISO civil date of the record.
func (d Dated) RecordDate() string { return d.Date }

// Attribution returns the member credited with the record.
func (d Dated) Attribution() string { return d.By }

// DatedRecord is implemented by every record type carrying a Dated header.
type DatedRecord interface {
	RecordID() string
	RecordDate() string
	Attribution() string
}

// EggRecord logs one collection.
type EggRecord struct {
	Dated
	Count  float64 `json:"count"`
	Broken float64 `json:"broken"`
	Extra  Extra   `json:"-"`
}

// FeedRecord logs feed given. Amount is stored under the historical "kg" key
// even after the snapshot switches to imperial units, where it holds pounds.
type FeedRecord struct {
	Dated
	Type   string  `json:"type"`
	Amount float64 `json:"kg"`
	Extra  Extra   `json:"-"`
}

// WaterRecord logs water given. Amount keeps the "liters" key and holds
// gallons once the snapshot is imperial.
type WaterRecord struct {
	Dated
	Amount float64 `json:"liters"`
	Extra  Extra   `json:"-"`
}

// CareRecord is a free-form husbandry note.
type CareRecord struct {
	Dated
	Category string `json:"category"`
	Note     string `json:"note"`
	Extra    Extra  `json:"-"`
}

// Task is a recurring chore.
type Task struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CadenceDays int    `json:"cadenceDays"`
	LastDone    string `json:"lastDone"`
	NextDue     string `json:"nextDue"`
	CreatedBy   string `json:"createdBy"`
	LastDoneBy  string `json:"lastDoneBy"`
}

// InventoryItem tracks a stocked supply.
type InventoryItem struct {
	ID        string  `json:"id"`
	Item      string  `json:"item"`
	Quantity  float64 `json:"quantity"`
	Unit      string  `json:"unit"`
	Threshold float64 `json:"threshold"`
	By        string  `json:"by"`
}

// Low reports whether the item is at or below its alert threshold.
func (i InventoryItem) Low() bool { return i.Quantity <= i.Threshold }

type (
	eggWire   EggRecord
	feedWire  FeedRecord
	waterWire WaterRecord
	careWire  CareRecord
)

// MarshalJSON writes typed fields over any preserved extra fields.
func (r EggRecord) MarshalJSON() ([]byte, error) { return marshalWithExtra(eggWire(r), r.Extra) }

// MarshalJSON writes typed fields over any preserved extra fields.
func (r FeedRecord) MarshalJSON() ([]byte, error) { return marshalWithExtra(feedWire(r), r.Extra) }

// MarshalJSON writes typed fields over any preserved extra fields.
func (r WaterRecord) MarshalJSON() ([]byte, error) { return marshalWithExtra(waterWire(r), r.Extra) }

// MarshalJSON writes typed fields over any preserved extra fields.
func (r CareRecord) MarshalJSON() ([]byte, error) { return marshalWithExtra(careWire(r), r.Extra) }

func marshalWithExtra(typed any, extra Extra) ([]byte, error) {
	raw, err := json.Marshal(typed)
	if err != nil || len(extra) == 0 {
		return raw, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	merged := make(map[string]json.RawMessage, len(extra)+len(fields))
	for k, v := range extra {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal extra field %s: %w", k, err)
		}
		merged[k] = b
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	cp := s
	cp.Household.Members = cloneSlice(s.Household.Members, identity[string])
	cp.Eggs = cloneSlice(s.Eggs, func(r EggRecord) EggRecord { r.Extra = r.Extra.Clone(); return r })
	cp.Feed = cloneSlice(s.Feed, func(r FeedRecord) FeedRecord { r.Extra = r.Extra.Clone(); return r })
	cp.Water = cloneSlice(s.Water, func(r WaterRecord) WaterRecord { r.Extra = r.Extra.Clone(); return r })
	cp.Care = cloneSlice(s.Care, func(r CareRecord) CareRecord { r.Extra = r.Extra.Clone(); return r })
	cp.Tasks = cloneSlice(s.Tasks, identity[Task])
	cp.Inventory = cloneSlice(s.Inventory, identity[InventoryItem])
	return cp
}

func identity[T any](v T) T { return v }

func cloneSlice[T any](in []T, fn func(T) T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = fn(v)
	}
	return out
}

// Clone deep-copies decoded JSON values held in the map.
func (e Extra) Clone() Extra {
	if e == nil {
		return nil
	}
	out := make(Extra, len(e))
	for k, v := range e {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = cloneValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = cloneValue(inner)
		}
		return out
	default:
		return v
	}
}

// Len returns the number of records held in a collection.
func (s Snapshot) Len(c Collection) int {
	switch c {
	case CollectionEggs:
		return len(s.Eggs)
	case CollectionFeed:
		return len(s.Feed)
	case CollectionWater:
		return len(s.Water)
	case CollectionCare:
		return len(s.Care)
	case CollectionTasks:
		return len(s.Tasks)
	case CollectionInventory:
		return len(s.Inventory)
	default:
		return 0
	}
}
