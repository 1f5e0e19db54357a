package mod

import (
	"sort"
	"strings"
	"sync"
)

// Registry holds the known-mod set and its id index. Units are added by
// discovery and destroyed on rescan; everything else reads. Cross-unit
// effects are applied only through the resolution pass, never by units
// mutating each other directly.
type Registry struct {
	mu   sync.RWMutex
	mods map[string]*Mod
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{mods: make(map[string]*Mod)}
}

// Add registers a mod. Returns ErrNilMod, ErrEmptyModID, or ModExistsError
// on a duplicate id.
func (r *Registry) Add(m *Mod) error {
	if m == nil {
		return ErrNilMod
	}
	key := m.Descriptor().PathID()
	if key == "" {
		return ErrEmptyModID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.mods[key]; exists {
		return &ModExistsError{ID: m.ID()}
	}
	r.mods[key] = m
	return nil
}

// Get returns the mod with the given id. Lookup is case-insensitive.
func (r *Registry) Get(id string) (*Mod, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.mods[strings.ToLower(id)]
	return m, ok
}

// Remove destroys and removes the mod with the given id.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(id)
	m, ok := r.mods[key]
	if !ok {
		return false
	}
	delete(r.mods, key)
	m.Destroy()
	return true
}

// All returns every known mod sorted by id for deterministic ordering.
func (r *Registry) All() []*Mod {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mods := make([]*Mod, 0, len(r.mods))
	for _, m := range r.mods {
		mods = append(mods, m)
	}
	sort.Slice(mods, func(i, j int) bool {
		return mods[i].Descriptor().PathID() < mods[j].Descriptor().PathID()
	})
	return mods
}

// Enabled returns every enabled mod sorted by id.
func (r *Registry) Enabled() []*Mod {
	var out []*Mod
	for _, m := range r.All() {
		if m.Enabled() {
			out = append(out, m)
		}
	}
	return out
}

// Index returns the id→mod index keyed by lower-cased id.
func (r *Registry) Index() map[string]*Mod {
	r.mu.RLock()
	defer r.mu.RUnlock()
	index := make(map[string]*Mod, len(r.mods))
	for key, m := range r.mods {
		index[key] = m
	}
	return index
}

// Count returns the number of known mods.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.mods)
}

// Clear destroys every known mod. Used when the discovery root is
// rescanned.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.mods {
		m.Destroy()
	}
	r.mods = make(map[string]*Mod)
}
