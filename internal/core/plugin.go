package core

import (
	"fmt"
	"sort"
)

// Plugin contributes rules to the service.
type Plugin interface {
	Name() string
	Version() string
	Register(registry *PluginRegistry) error
}

// PluginRegistry accumulates plugin contributions during registration.
type PluginRegistry struct {
	rules []Rule
}

// NewPluginRegistry constructs a plugin registry.
func NewPluginRegistry() *PluginRegistry {
	return &PluginRegistry{}
}

// RegisterRule adds a rule evaluated before every commit.
func (r *PluginRegistry) RegisterRule(rule Rule) {
	if rule == nil {
		return
	}
	r.rules = append(r.rules, rule)
}

// Rules returns a copy of registered rules.
func (r *PluginRegistry) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// PluginMetadata describes an installed plugin.
type PluginMetadata struct {
	Name    string
	Version string
	Rules   []string
}

// InstallPlugin registers plugin rules with the store's engine. Install
// plugins during startup, before the service handles mutations.
func (s *Service) InstallPlugin(plugin Plugin) (PluginMetadata, error) {
	if plugin == nil {
		return PluginMetadata{}, fmt.Errorf("plugin nil")
	}
	name := plugin.Name()
	if name == "" {
		return PluginMetadata{}, fmt.Errorf("plugin name required")
	}
	if _, exists := s.plugins[name]; exists {
		return PluginMetadata{}, fmt.Errorf("plugin %s already registered", name)
	}
	registry := NewPluginRegistry()
	if err := plugin.Register(registry); err != nil {
		return PluginMetadata{}, fmt.Errorf("register plugin %s: %w", name, err)
	}
	engine := s.store.Engine()
	meta := PluginMetadata{Name: name, Version: plugin.Version()}
	for _, rule := range registry.Rules() {
		engine.Register(rule)
		meta.Rules = append(meta.Rules, rule.Name())
	}
	s.plugins[name] = meta
	return meta, nil
}

// RegisteredPlugins returns installed plugin metadata sorted by name.
func (s *Service) RegisteredPlugins() []PluginMetadata {
	out := make([]PluginMetadata, 0, len(s.plugins))
	for _, meta := range s.plugins {
		meta.Rules = append([]string(nil), meta.Rules...)
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AlertsPlugin contributes the husbandry warnings: low stock and due tasks.
type AlertsPlugin struct {
	Calendar Calendar
}

// NewAlertsPlugin returns the alerts plugin evaluating due dates against cal.
func NewAlertsPlugin(cal Calendar) AlertsPlugin { return AlertsPlugin{Calendar: cal} }

// Name implements Plugin.
func (AlertsPlugin) Name() string { return "alerts" }

// Version implements Plugin.
func (AlertsPlugin) Version() string { return "1.0.0" }

// Register implements Plugin.
func (p AlertsPlugin) Register(registry *PluginRegistry) error {
	registry.RegisterRule(NewLowStockRule())
	registry.RegisterRule(NewTasksDueRule(p.Calendar))
	return nil
}
