package profile

import (
	"sort"
	"sync"
)

// DeviceProfile pairs an identified OLT with the OIDs used to poll it.
type DeviceProfile struct {
	Identity DeviceIdentity
	OIDs     OidProfile
}

// Registry resolves a model string to an OidProfile. It is safe for
// concurrent use.
type Registry struct {
	base OidProfile

	mu        sync.RWMutex
	overrides map[string]Override
}

// NewRegistry creates a Registry whose unregistered models use base.
func NewRegistry(base OidProfile) *Registry {
	return &Registry{base: base, overrides: make(map[string]Override)}
}

// DefaultRegistry returns the BDCOM P3310 registry with the P3310B SFP
// table registered.
func DefaultRegistry() *Registry {
	r := NewRegistry(BDCOMP3310())
	r.Register("P3310B", Override{
		"sfp_temperature": "1.3.6.1.4.1.3320.9.183.1.1.13",
		"sfp_signal":      "1.3.6.1.4.1.3320.9.183.1.1.8",
	})
	return r
}

// Register sets the override for model, merging into any existing one.
func (r *Registry) Register(model string, o Override) {
	r.mu.Lock()
	defer r.mu.Unlock()
	merged := make(Override, len(r.overrides[model])+len(o))
	for k, v := range r.overrides[model] {
		merged[k] = v
	}
	for k, v := range o {
		merged[k] = v
	}
	r.overrides[model] = merged
}

// Base returns the table used before a model is known.
func (r *Registry) Base() OidProfile { return r.base }

// Resolve returns the OidProfile for model.
func (r *Registry) Resolve(model string) OidProfile {
	r.mu.RLock()
	o := r.overrides[model]
	r.mu.RUnlock()
	return r.base.With(o)
}

// Profile returns the DeviceProfile for an identity.
func (r *Registry) Profile(id DeviceIdentity) DeviceProfile {
	return DeviceProfile{Identity: id, OIDs: r.Resolve(id.Model)}
}

// Models lists the registered model names, sorted.
func (r *Registry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.overrides))
	for m := range r.overrides {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
