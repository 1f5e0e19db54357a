package bundle

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/felixgeelhaar/modkit/internal/domain/mod"
	"github.com/felixgeelhaar/modkit/internal/domain/resource"
	"github.com/felixgeelhaar/modkit/internal/ports"
)

// SceneResource loads one named scene out of a scene bundle. Each tick
// attaches one object's components to the scene graph; cancellation
// detaches one object per tick in reverse order.
type SceneResource struct {
	*resource.Handle

	path   string
	scene  string
	graph  *Graph
	logger ports.Logger

	mu       sync.Mutex
	objects  []sceneObject
	attached int
}

// NewSceneResource creates a scene sub-resource for one scene of a bundle.
func NewSceneResource(name, path, scene string, graph *Graph, logger ports.Logger) (*SceneResource, error) {
	r := &SceneResource{
		path:   path,
		scene:  scene,
		graph:  graph,
		logger: logger,
	}
	handle, err := resource.NewHandle(name, &sceneHooks{r: r}, logger)
	if err != nil {
		return nil, err
	}
	r.Handle = handle
	return r, nil
}

// SceneName returns the scene identity used for conflict detection.
func (r *SceneResource) SceneName() string {
	return r.scene
}

// ComponentsInScenes returns components of the given type on this scene's
// attached objects.
func (r *SceneResource) ComponentsInScenes(typeName string) []mod.Component {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []mod.Component
	for _, obj := range r.objects[:r.attached] {
		for _, c := range obj.Components {
			if c == typeName {
				out = append(out, mod.Component{Scene: r.scene, Object: obj.Name, Type: typeName})
			}
		}
	}
	return out
}

// ownerKey groups one object's graph entries for detachment. Keyed by the
// resource name so identically named scenes in different mods never detach
// each other's instances.
func (r *SceneResource) ownerKey(obj sceneObject) string {
	return r.Name() + "/" + obj.Name
}

func (r *SceneResource) attachObject(obj sceneObject) {
	owner := r.ownerKey(obj)
	for _, c := range obj.Components {
		r.graph.Attach(owner, c, &LiveComponent{Scene: r.scene, Object: obj.Name, Type: c})
	}
}

// sceneHooks adapts SceneResource to the lifecycle hooks contract.
type sceneHooks struct {
	resource.NopHooks
	r *SceneResource
}

// CanLoad requires the bundle file to exist.
func (h *sceneHooks) CanLoad() bool {
	info, err := os.Stat(h.r.path)
	return err == nil && !info.IsDir()
}

// LoadNow parses the bundle and attaches every object at once.
func (h *sceneHooks) LoadNow(ctx context.Context) error {
	if err := h.BeginLoad(ctx); err != nil {
		return err
	}
	h.r.mu.Lock()
	defer h.r.mu.Unlock()
	for h.r.attached < len(h.r.objects) {
		h.r.attachObject(h.r.objects[h.r.attached])
		h.r.attached++
	}
	return nil
}

// BeginLoad parses the bundle and locates this resource's scene.
func (h *sceneHooks) BeginLoad(ctx context.Context) error {
	m, err := readSceneManifest(h.r.path)
	if err != nil {
		return err
	}
	for _, s := range m.Scenes {
		if s.Name == h.r.scene {
			h.r.mu.Lock()
			h.r.objects = s.Objects
			h.r.attached = 0
			h.r.mu.Unlock()
			h.r.logger.Debug(ctx, "scene opened",
				ports.F("scene", h.r.scene), ports.F("objects", len(s.Objects)))
			return nil
		}
	}
	return fmt.Errorf("scene %q not found in %s", h.r.scene, h.r.path)
}

// Step attaches one object.
func (h *sceneHooks) Step(_ context.Context) (bool, error) {
	h.r.mu.Lock()
	defer h.r.mu.Unlock()
	if h.r.attached < len(h.r.objects) {
		h.r.attachObject(h.r.objects[h.r.attached])
		h.r.attached++
	}
	return h.r.attached == len(h.r.objects), nil
}

// Progress reports attached objects over total objects.
func (h *sceneHooks) Progress() float64 {
	h.r.mu.Lock()
	defer h.r.mu.Unlock()
	if len(h.r.objects) == 0 {
		return 1
	}
	return float64(h.r.attached) / float64(len(h.r.objects))
}

// CancelStep detaches the most recently attached object. Done once nothing
// is attached.
func (h *sceneHooks) CancelStep(_ context.Context) bool {
	h.r.mu.Lock()
	defer h.r.mu.Unlock()
	if h.r.attached > 0 {
		h.r.attached--
		h.r.graph.Detach(h.r.ownerKey(h.r.objects[h.r.attached]))
	}
	return h.r.attached == 0
}

// Release detaches every attached object.
func (h *sceneHooks) Release(_ context.Context) error {
	h.r.mu.Lock()
	defer h.r.mu.Unlock()
	for h.r.attached > 0 {
		h.r.attached--
		h.r.graph.Detach(h.r.ownerKey(h.r.objects[h.r.attached]))
	}
	h.r.objects = nil
	return nil
}

var _ mod.SceneResource = (*SceneResource)(nil)
