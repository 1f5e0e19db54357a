package mod

import (
	"context"

	"github.com/felixgeelhaar/modkit/internal/domain/capability"
	"github.com/felixgeelhaar/modkit/internal/domain/resource"
)

// Asset is one named entry of a loaded asset bundle. The core never
// interprets asset payloads; Data is carried opaquely.
type Asset struct {
	Name string
	Kind string
	Data map[string]interface{}
}

// Component is one typed component found on an object inside owned content.
type Component struct {
	// Scene is the owning scene name. Empty for prefab components.
	Scene string
	// Object is the owning object name.
	Object string
	// Type is the concrete component type name.
	Type string
}

// CodeResource is the code sub-resource contract: a lifecycle resource that
// exposes the capability providers of its loaded binaries.
type CodeResource interface {
	resource.Resource

	// Providers returns the providers of every loaded module. Empty
	// unless loaded.
	Providers() []capability.Provider
}

// AssetResource is the asset sub-resource contract. Queries are only valid
// while the resource is loaded and return empty results otherwise.
type AssetResource interface {
	resource.Resource

	// Asset returns the named entry.
	Asset(name string) (Asset, bool)

	// Assets returns every entry in bundle order.
	Assets() []Asset

	// AssetsOf returns every entry of the given kind in bundle order.
	AssetsOf(kind string) []Asset

	// ComponentsInPrefabs returns components of the given type found on
	// prefab entries.
	ComponentsInPrefabs(typeName string) []Component
}

// SceneResource is the contract for one loadable scene owned by a mod.
type SceneResource interface {
	resource.Resource

	// SceneName returns the scene identity used for conflict detection.
	SceneName() string

	// ComponentsInScenes returns components of the given type on this
	// scene's objects. Only valid while loaded.
	ComponentsInScenes(typeName string) []Component
}

// Factory constructs the sub-resources a mod aggregates. The discovery
// loader hands it the paths it found; implementations decide how content
// is actually read.
type Factory interface {
	// Code creates the code resource over the given binaries.
	Code(unit string, files []string) (CodeResource, error)

	// Asset creates the asset resource over the mod's asset bundle.
	Asset(unit string, path string) (AssetResource, error)

	// Scene creates one scene resource for the named scene inside the
	// mod's scene bundle.
	Scene(unit string, path string, sceneName string) (SceneResource, error)

	// SceneNames lists the scenes inside a scene bundle without loading
	// it. Needed before load for conflict detection.
	SceneNames(path string) ([]string, error)
}

// Discoverer finds mods under a directory root.
type Discoverer interface {
	// Discover scans for mods, returning both successfully constructed
	// units and per-unit errors.
	Discover(ctx context.Context) (*DiscoveryResult, error)
}
