package ports

import "context"

// Host exposes the host application's runtime services to the mod core.
// The core calls it at well-defined points in a mod's lifecycle; it never
// depends on how the host implements them.
type Host interface {
	// SweepUnusedResources asks the host to release memory held by content
	// that is no longer referenced. Called once at the end of a mod unload.
	SweepUnusedResources(ctx context.Context) error
}

// NoopHost is a no-op implementation of Host.
// Use this when no host integration is needed, e.g. in tests.
type NoopHost struct{}

// SweepUnusedResources does nothing.
func (n *NoopHost) SweepUnusedResources(_ context.Context) error {
	return nil
}

// Ensure NoopHost implements Host.
var _ Host = (*NoopHost)(nil)

// SceneGraph exposes the host's live scene graph to the capability registry.
// Instances living in the scene graph are owned by their scene, not by the
// registry: they are re-discovered on every query and never cached.
type SceneGraph interface {
	// Active returns all currently-active scene instances of the given
	// concrete type. The result order is owned by the scene graph.
	Active(typeName string) []interface{}
}

// EmptySceneGraph is a SceneGraph with no active instances.
type EmptySceneGraph struct{}

// Active returns nil for every type.
func (e *EmptySceneGraph) Active(_ string) []interface{} {
	return nil
}

// Ensure EmptySceneGraph implements SceneGraph.
var _ SceneGraph = (*EmptySceneGraph)(nil)
