package core

// Conversion factors applied by MigrateToImperial.
const (
	KgToLb  = 2.2046226218
	LToGal  = 0.2641720524
	unitLb  = "lb"
	unitGal = "gal"
)

var (
	massAliases   = []string{"kg", "kgs", "kilogram", "kilograms"}
	volumeAliases = []string{"l", "liter", "liters", "litre", "litres"}
)

// MigrateToImperial converts a metric snapshot to imperial units and flips the
// units flag. Snapshots already flagged imperial are returned unchanged; the
// flag is what keeps amounts from being converted twice. Field names keep
// their metric wire keys.
func MigrateToImperial(s Snapshot) Snapshot {
	if s.Profile.Units == UnitsImperial {
		return s
	}
	out := s.Clone()
	for i := range out.Feed {
		out.Feed[i].Amount = round2(out.Feed[i].Amount * KgToLb)
	}
	for i := range out.Water {
		out.Water[i].Amount = round2(out.Water[i].Amount * LToGal)
	}
	for i, item := range out.Inventory {
		alias := normalizeUnitAlias(item.Unit)
		switch {
		case containsString(massAliases, alias):
			out.Inventory[i] = convertItem(item, KgToLb, unitLb)
		case containsString(volumeAliases, alias):
			out.Inventory[i] = convertItem(item, LToGal, unitGal)
		}
	}
	out.Profile.Units = UnitsImperial
	return out
}

func convertItem(item InventoryItem, factor float64, unit string) InventoryItem {
	item.Quantity = round2(item.Quantity * factor)
	item.Threshold = round2(item.Threshold * factor)
	item.Unit = unit
	return item
}
