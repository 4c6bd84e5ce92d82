package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"flockcore/pkg/domain"
)

// Field bounds applied during normalization.
const (
	maxNameLength     = 100
	maxUnitLength     = 50
	maxNoteLength     = 500
	maxHenCount       = 10000
	minCadenceDays    = 1
	maxCadenceDays    = 365
	defaultTaskName   = "Task"
	defaultSupplyName = "Supply"
	defaultSupplyUnit = "units"
)

// Normalizer turns arbitrary decoded JSON into complete snapshots. It is total:
// malformed fields fall back to their defaults instead of producing errors.
type Normalizer struct {
	Calendar Calendar
	IDs      IDGenerator
}

// NewNormalizer returns a normalizer using cal for default dates and ids for
// missing identifiers.
func NewNormalizer(cal Calendar, ids IDGenerator) Normalizer {
	if ids == nil {
		ids = TimeOrderedIDs{}
	}
	return Normalizer{Calendar: cal, IDs: ids}
}

func (n Normalizer) newID() string {
	if n.IDs == nil {
		return TimeOrderedIDs{}.NewID()
	}
	return n.IDs.NewID()
}

// Decode parses raw JSON into a generic value suitable for NormalizeIncoming.
func Decode(raw []byte) (any, error) {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	return parsed, nil
}

// NormalizeIncoming is the single entry point for external payloads: defaults
// are filled, then the one-time metric to imperial migration is applied.
func (n Normalizer) NormalizeIncoming(parsed any) Snapshot {
	return MigrateToImperial(n.WithDefaults(parsed))
}

// ParseSnapshot decodes raw and normalizes it. Only decoding can fail.
func (n Normalizer) ParseSnapshot(raw []byte) (Snapshot, error) {
	parsed, err := Decode(raw)
	if err != nil {
		return Snapshot{}, err
	}
	return n.NormalizeIncoming(parsed), nil
}

// Defaults returns the snapshot of a brand new installation.
func (n Normalizer) Defaults() Snapshot {
	return n.WithDefaults(nil)
}

// WithDefaults builds a complete snapshot from a possibly partial object.
// Non-object input is treated as an empty object.
func (n Normalizer) WithDefaults(parsed any) Snapshot {
	switch v := parsed.(type) {
	case Snapshot:
		parsed = toGeneric(v)
	case *Snapshot:
		if v != nil {
			parsed = toGeneric(*v)
		}
	}
	root := asObject(parsed)
	household := asObject(root["household"])
	profile := asObject(root["profile"])

	members := NormalizeMembers(household["members"])
	active := members[0]
	if name, ok := household["activeMember"].(string); ok && containsString(members, name) {
		active = name
	}

	units := UnitsImperial
	if len(root) > 0 {
		units = UnitsMetric
	}
	if raw := stringify(profile["units"]); raw != "" {
		if Units(raw) == UnitsImperial {
			units = UnitsImperial
		} else {
			units = UnitsMetric
		}
	}

	return Snapshot{
		Profile: Profile{
			FlockName: ValidateString(profile["flockName"], maxNameLength, ""),
			HenCount:  int(math.Round(ValidateNumber(profile["henCount"], 0, maxHenCount, 0))),
			Units:     units,
		},
		Household: Household{
			Members:      members,
			ActiveMember: active,
			AutoSync:     truthy(household["autoSync"]),
			LastSyncedAt: stringify(household["lastSyncedAt"]),
		},
		Eggs:      n.normalizeEggs(root["eggs"], active),
		Feed:      n.normalizeFeed(root["feed"], active),
		Water:     n.normalizeWater(root["water"], active),
		Care:      n.normalizeCare(root["care"], active),
		Tasks:     n.NormalizeTasks(root["tasks"], active),
		Inventory: n.NormalizeInventory(root["inventory"], active),
	}
}

// NormalizeMembers trims, drops empties and removes exact duplicates while
// keeping first-seen order. An empty result becomes the default member.
func NormalizeMembers(input any) []string {
	arr, _ := input.([]any)
	seen := make(map[string]struct{}, len(arr))
	out := make([]string, 0, len(arr))
	for _, raw := range arr {
		name := ValidateString(raw, DefaultMaxLength, "")
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	if len(out) == 0 {
		return []string{domain.DefaultMember}
	}
	return out
}

// datedFields lists the typed keys per dated collection; all other input keys
// are carried in Extra.
var datedFields = map[Collection][]string{
	CollectionEggs:  {"count", "broken"},
	CollectionFeed:  {"type", "kg"},
	CollectionWater: {"liters"},
	CollectionCare:  {"category", "note"},
}

// normalizeByRecords maps each element of input through build, filling the
// shared header. Non-array input yields an empty slice.
func normalizeByRecords[T any](n Normalizer, input any, fallbackBy string, c Collection, build func(Dated, map[string]any, Extra) T) []T {
	arr, ok := input.([]any)
	if !ok {
		return []T{}
	}
	out := make([]T, 0, len(arr))
	for _, raw := range arr {
		item := asObject(raw)
		header := Dated{
			ID:   n.idOf(item["id"]),
			Date: n.dateOf(item["date"]),
			By:   attribution(item["by"], fallbackBy),
		}
		out = append(out, build(header, item, extraFields(item, c)))
	}
	return out
}

func (n Normalizer) normalizeEggs(input any, fallbackBy string) []EggRecord {
	return normalizeByRecords(n, input, fallbackBy, CollectionEggs, func(h Dated, item map[string]any, extra Extra) EggRecord {
		return EggRecord{
			Dated:  h,
			Count:  ValidateNumber(item["count"], 0, math.Inf(1), 0),
			Broken: ValidateNumber(item["broken"], 0, math.Inf(1), 0),
			Extra:  extra,
		}
	})
}

func (n Normalizer) normalizeFeed(input any, fallbackBy string) []FeedRecord {
	return normalizeByRecords(n, input, fallbackBy, CollectionFeed, func(h Dated, item map[string]any, extra Extra) FeedRecord {
		return FeedRecord{
			Dated:  h,
			Type:   ValidateString(item["type"], maxNameLength, ""),
			Amount: ValidateNumber(item["kg"], 0, math.Inf(1), 0),
			Extra:  extra,
		}
	})
}

func (n Normalizer) normalizeWater(input any, fallbackBy string) []WaterRecord {
	return normalizeByRecords(n, input, fallbackBy, CollectionWater, func(h Dated, item map[string]any, extra Extra) WaterRecord {
		return WaterRecord{
			Dated:  h,
			Amount: ValidateNumber(item["liters"], 0, math.Inf(1), 0),
			Extra:  extra,
		}
	})
}

func (n Normalizer) normalizeCare(input any, fallbackBy string) []CareRecord {
	return normalizeByRecords(n, input, fallbackBy, CollectionCare, func(h Dated, item map[string]any, extra Extra) CareRecord {
		return CareRecord{
			Dated:    h,
			Category: ValidateString(item["category"], maxNameLength, ""),
			Note:     ValidateString(item["note"], maxNoteLength, ""),
			Extra:    extra,
		}
	})
}

// NormalizeTasks fills task defaults. nextDue is kept verbatim when present
// and otherwise derived from lastDone plus the cadence.
func (n Normalizer) NormalizeTasks(input any, fallbackBy string) []Task {
	arr, ok := input.([]any)
	if !ok {
		return []Task{}
	}
	out := make([]Task, 0, len(arr))
	for _, raw := range arr {
		item := asObject(raw)
		cadence := int(math.Round(ValidateNumber(item["cadenceDays"], minCadenceDays, maxCadenceDays, minCadenceDays)))
		lastDone := n.dateOf(item["lastDone"])
		nextDue := stringify(item["nextDue"])
		if nextDue == "" {
			nextDue = n.Calendar.AddDays(lastDone, cadence)
		}
		out = append(out, Task{
			ID:          n.idOf(item["id"]),
			Name:        ValidateString(item["name"], maxNameLength, defaultTaskName),
			CadenceDays: cadence,
			LastDone:    lastDone,
			NextDue:     nextDue,
			CreatedBy:   attribution(firstTruthy(item["createdBy"], item["by"]), fallbackBy),
			LastDoneBy:  attribution(firstTruthy(item["lastDoneBy"], item["by"]), fallbackBy),
		})
	}
	return out
}

// NormalizeInventory fills stock item defaults.
func (n Normalizer) NormalizeInventory(input any, fallbackBy string) []InventoryItem {
	arr, ok := input.([]any)
	if !ok {
		return []InventoryItem{}
	}
	out := make([]InventoryItem, 0, len(arr))
	for _, raw := range arr {
		item := asObject(raw)
		out = append(out, InventoryItem{
			ID:        n.idOf(item["id"]),
			Item:      ValidateString(item["item"], maxNameLength, defaultSupplyName),
			Quantity:  ValidateNumber(item["quantity"], 0, math.Inf(1), 0),
			Unit:      ValidateString(item["unit"], maxUnitLength, defaultSupplyUnit),
			Threshold: ValidateNumber(item["threshold"], 0, math.Inf(1), 0),
			By:        attribution(item["by"], fallbackBy),
		})
	}
	return out
}

func (n Normalizer) idOf(v any) string {
	if id := stringify(v); id != "" {
		return id
	}
	return n.newID()
}

func (n Normalizer) dateOf(v any) string {
	if d := stringify(v); d != "" {
		return d
	}
	return n.Calendar.Today()
}

// attribution resolves a member credit: the validated value when truthy,
// otherwise fallback.
func attribution(v any, fallback string) string {
	if !truthy(v) {
		return fallback
	}
	return ValidateString(v, maxNameLength, fallback)
}

func firstTruthy(values ...any) any {
	for _, v := range values {
		if truthy(v) {
			return v
		}
	}
	return nil
}

func extraFields(item map[string]any, c Collection) Extra {
	typed := datedFields[c]
	var extra Extra
	for k, v := range item {
		switch k {
		case "id", "date", "by":
			continue
		}
		if containsString(typed, k) {
			continue
		}
		if extra == nil {
			extra = make(Extra)
		}
		extra[k] = v
	}
	return extra.Clone()
}

// toGeneric re-expresses a typed snapshot as decoded JSON so it can be
// normalized again.
func toGeneric(s Snapshot) any {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func asObject(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// normalizeUnitAlias lowercases and trims a unit string for alias lookup.
func normalizeUnitAlias(unit string) string {
	return strings.ToLower(strings.TrimSpace(unit))
}
