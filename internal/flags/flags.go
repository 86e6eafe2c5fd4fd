// Package flags provides read-only feature flags loaded from configuration.
// Unknown flags are disabled.
package flags

import (
	"maps"
	"slices"

	"github.com/zjrosen/erwt/internal/log"
)

const (
	// FlagListEvents logs the dispatcher channel table once the host has started.
	FlagListEvents = "list-events"

	// FlagForwardLogs streams log entries to the renderer on app:log.
	FlagForwardLogs = "forward-logs"

	// FlagTraceDeliveries records delivery spans even when the exporter is "none".
	FlagTraceDeliveries = "trace-deliveries"
)

// Known lists every flag the host reads.
var Known = []string{FlagListEvents, FlagForwardLogs, FlagTraceDeliveries}

// Registry holds feature flag state loaded from configuration.
type Registry struct {
	flags map[string]bool
}

// New creates a Registry from a copy of flags. A nil map disables everything.
func New(flags map[string]bool) *Registry {
	r := &Registry{flags: make(map[string]bool, len(flags))}
	maps.Copy(r.flags, flags)
	for name := range r.flags {
		if !slices.Contains(Known, name) {
			log.Warn(log.CatConfig, "Unknown feature flag in config", "flag", name)
		}
	}
	log.Debug(log.CatConfig, "Feature flags initialized", "count", len(r.flags), "enabled", r.EnabledNames())
	return r
}

// Enabled reports whether name is on. A nil registry has every flag off.
func (r *Registry) Enabled(name string) bool {
	if r == nil {
		return false
	}
	return r.flags[name]
}

// EnabledNames returns the sorted names of enabled flags.
func (r *Registry) EnabledNames() []string {
	if r == nil {
		return nil
	}
	var names []string
	for name, on := range r.flags {
		if on {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// All returns a copy of all flags.
func (r *Registry) All() map[string]bool {
	if r == nil {
		return make(map[string]bool)
	}
	return maps.Clone(r.flags)
}
