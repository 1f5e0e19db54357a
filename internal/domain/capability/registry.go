package capability

import (
	"context"
	"errors"
	"sync"

	"github.com/felixgeelhaar/modkit/internal/ports"
)

// Registry is the per-mod instance cache. It resolves capability queries
// against the providers of the mod's loaded code modules, guaranteeing
// idempotent instance identity within one load cycle: repeated queries
// return the same instance for every non-scene-resident type.
type Registry struct {
	mu     sync.Mutex
	loaded func() bool
	source func() []Provider
	graph  ports.SceneGraph
	logger ports.Logger

	cache map[string]interface{}
	// order preserves construction order so lifecycle callbacks fire in a
	// stable sequence.
	order []string
}

// NewRegistry creates a registry scoped to one mod. The loaded gate keeps
// queries empty unless the owning mod is fully loaded; source supplies the
// providers of the currently loaded code modules.
func NewRegistry(loaded func() bool, source func() []Provider, graph ports.SceneGraph, logger ports.Logger) *Registry {
	if graph == nil {
		graph = &ports.EmptySceneGraph{}
	}
	return &Registry{
		loaded: loaded,
		source: source,
		graph:  graph,
		logger: logger,
		cache:  make(map[string]interface{}),
	}
}

// Instances returns all live instances implementing the given capability.
// Cached instances are reused; scene-resident types are re-discovered from
// the scene graph on every query and never cached. Construction failures
// skip the single type, never the whole query. Outside the loaded state the
// result is empty.
func (r *Registry) Instances(ctx context.Context, capability string, args ...interface{}) []interface{} {
	if !r.loaded() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var out []interface{}
	for _, p := range r.source() {
		if !implements(p, capability) {
			continue
		}

		if inst, ok := r.cache[p.TypeName()]; ok {
			out = append(out, inst)
			continue
		}

		if p.SceneResident() {
			// Scene object lifetime is owned by the scene, not the
			// registry: discover, never cache.
			out = append(out, r.graph.Active(p.TypeName())...)
			continue
		}

		inst, err := p.New(args...)
		if err != nil {
			if errors.Is(err, ErrNoConstructor) {
				r.logger.Warn(ctx, "type has no matching constructor, skipping",
					ports.F("type", p.TypeName()), ports.F("capability", capability))
			} else {
				r.logger.Error(ctx, "instance construction failed, skipping",
					ports.F("type", p.TypeName()), ports.F("capability", capability), ports.F("error", err))
			}
			continue
		}

		r.cache[p.TypeName()] = inst
		r.order = append(r.order, p.TypeName())
		out = append(out, inst)
	}
	return out
}

// Cached returns the constructed instances in construction order. Scene
// residents are never present.
func (r *Registry) Cached() []interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]interface{}, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.cache[name])
	}
	return out
}

// Clear drops every cached instance. Called during mod unload after the
// instances have been notified.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]interface{})
	r.order = nil
}

// InstancesOf filters a capability query down to instances satisfying the
// Go interface T. Only host-native instances can satisfy a Go interface;
// guest-code proxies pass through Instances untyped.
func InstancesOf[T any](ctx context.Context, r *Registry, capability string, args ...interface{}) []T {
	var out []T
	for _, inst := range r.Instances(ctx, capability, args...) {
		if typed, ok := inst.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}

func implements(p Provider, capability string) bool {
	for _, c := range p.Capabilities() {
		if c == capability {
			return true
		}
	}
	return false
}
