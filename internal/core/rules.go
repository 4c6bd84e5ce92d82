package core

// NewDefaultRulesEngine builds a rules engine with the built-in household
// integrity and attribution rules. Stock and task alerts come from plugins
// such as AlertsPlugin.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewHouseholdIntegrityRule())
	engine.Register(NewAttributionRule())
	return engine
}
