package flavor

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Flavor is a named instruction template that controls the tone and visual style of generated pages.
type Flavor struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	BasePrompt  string   `yaml:"base_prompt" json:"-"`
	Examples    []string `yaml:"examples,omitempty" json:"examples,omitempty"`
}

// Registry is an immutable lookup table of flavors. It is safe for concurrent use.
type Registry struct {
	ordered   []Flavor
	byID      map[string]int
	enabled   map[string]struct{}
	defaultID string
}

// NewRegistry validates the catalogue and builds a registry.
// An empty enabled list enables every registered flavor.
func NewRegistry(flavors []Flavor, defaultID string, enabledIDs []string) (*Registry, error) {
	if len(flavors) == 0 {
		return nil, eris.New("flavor catalogue is empty")
	}

	r := &Registry{
		ordered: make([]Flavor, 0, len(flavors)),
		byID:    make(map[string]int, len(flavors)),
		enabled: make(map[string]struct{}, len(flavors)),
	}

	for _, f := range flavors {
		id := Normalize(f.ID)
		if id == "" {
			return nil, eris.Errorf("flavor %q has an empty id", f.Name)
		}
		if strings.TrimSpace(f.BasePrompt) == "" {
			return nil, eris.Errorf("flavor %s has an empty base prompt", id)
		}
		if _, exists := r.byID[id]; exists {
			return nil, eris.Errorf("flavor %s is registered twice", id)
		}

		f.ID = id
		if f.Examples != nil {
			f.Examples = append([]string(nil), f.Examples...)
		}
		r.byID[id] = len(r.ordered)
		r.ordered = append(r.ordered, f)
	}

	r.defaultID = Normalize(defaultID)
	if _, ok := r.byID[r.defaultID]; !ok {
		return nil, eris.Errorf("default flavor %q is not registered", defaultID)
	}

	if len(enabledIDs) == 0 {
		for id := range r.byID {
			r.enabled[id] = struct{}{}
		}
		return r, nil
	}

	for _, raw := range enabledIDs {
		id := Normalize(raw)
		if id == "" {
			continue
		}
		if _, ok := r.byID[id]; !ok {
			return nil, eris.Errorf("enabled flavor %q is not registered", raw)
		}
		r.enabled[id] = struct{}{}
	}

	if _, ok := r.enabled[r.defaultID]; !ok {
		return nil, eris.Errorf("default flavor %s must be enabled", r.defaultID)
	}

	return r, nil
}

// Normalize trims and lower-cases a flavor id.
func Normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// GetByID returns the registered flavor, or the default flavor when id is unknown.
func (r *Registry) GetByID(id string) Flavor {
	if idx, ok := r.byID[Normalize(id)]; ok {
		return r.ordered[idx]
	}
	return r.ordered[r.byID[r.defaultID]]
}

// Default returns the configured default flavor.
func (r *Registry) Default() Flavor {
	return r.ordered[r.byID[r.defaultID]]
}

// DefaultID returns the id of the configured default flavor.
func (r *Registry) DefaultID() string {
	return r.defaultID
}

// All returns every registered flavor in registration order.
func (r *Registry) All() []Flavor {
	out := make([]Flavor, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Enabled returns the enabled flavors in registration order.
func (r *Registry) Enabled() []Flavor {
	out := make([]Flavor, 0, len(r.enabled))
	for _, f := range r.ordered {
		if _, ok := r.enabled[f.ID]; ok {
			out = append(out, f)
		}
	}
	return out
}

// IsEnabled reports whether id is on the operator allow-list.
func (r *Registry) IsEnabled(id string) bool {
	_, ok := r.enabled[Normalize(id)]
	return ok
}

// Resolve returns the flavor for id when it is enabled and the default flavor otherwise.
func (r *Registry) Resolve(id string) Flavor {
	if r.IsEnabled(id) {
		return r.GetByID(id)
	}
	return r.Default()
}

// EnabledIDs lists the enabled flavor ids sorted alphabetically.
func (r *Registry) EnabledIDs() []string {
	ids := make([]string, 0, len(r.enabled))
	for id := range r.enabled {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
