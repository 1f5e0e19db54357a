package bundle

import (
	"sync"

	"github.com/felixgeelhaar/modkit/internal/ports"
)

// LiveComponent is one instantiated component of a loaded scene. Scene
// resources attach these; engine integrations may attach richer instances
// of their own alongside.
type LiveComponent struct {
	Scene  string
	Object string
	Type   string
}

type graphEntry struct {
	owner    string
	instance interface{}
}

// Graph is an in-memory scene graph: live instances indexed by component
// type name. Scene resources attach instances while their scene is loaded
// and detach them on release, so Active always reflects loaded content.
type Graph struct {
	mu     sync.RWMutex
	byType map[string][]graphEntry
}

// NewGraph creates an empty scene graph.
func NewGraph() *Graph {
	return &Graph{byType: make(map[string][]graphEntry)}
}

// Attach registers an instance under a component type name. The owner key
// groups instances for detachment.
func (g *Graph) Attach(owner, typeName string, instance interface{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.byType[typeName] = append(g.byType[typeName], graphEntry{owner: owner, instance: instance})
}

// Detach removes every instance registered under the owner key.
func (g *Graph) Detach(owner string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for typeName, entries := range g.byType {
		kept := entries[:0]
		for _, e := range entries {
			if e.owner != owner {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(g.byType, typeName)
		} else {
			g.byType[typeName] = kept
		}
	}
}

// Active returns the live instances carrying the given component type, in
// attachment order.
func (g *Graph) Active(typeName string) []interface{} {
	g.mu.RLock()
	defer g.mu.RUnlock()
	entries := g.byType[typeName]
	out := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.instance)
	}
	return out
}

var _ ports.SceneGraph = (*Graph)(nil)
