package bundle

import (
	"context"
	"os"
	"sync"

	"github.com/felixgeelhaar/modkit/internal/domain/mod"
	"github.com/felixgeelhaar/modkit/internal/domain/resource"
	"github.com/felixgeelhaar/modkit/internal/ports"
)

// AssetResource loads an asset manifest entry by entry. Each tick
// materializes one entry; cancellation winds entries back one per tick, so
// a resumed load picks up exactly where the cancel left off.
type AssetResource struct {
	*resource.Handle

	path   string
	logger ports.Logger

	mu      sync.Mutex
	entries []assetEntry
	ready   int
}

// NewAssetResource creates the asset sub-resource over a bundle file.
func NewAssetResource(name, path string, logger ports.Logger) (*AssetResource, error) {
	r := &AssetResource{
		path:   path,
		logger: logger,
	}
	handle, err := resource.NewHandle(name, &assetHooks{r: r}, logger)
	if err != nil {
		return nil, err
	}
	r.Handle = handle
	return r, nil
}

// Asset returns the named entry if it has been materialized.
func (r *AssetResource) Asset(name string) (mod.Asset, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries[:r.ready] {
		if e.Name == name {
			return mod.Asset{Name: e.Name, Kind: e.Kind, Data: e.Data}, true
		}
	}
	return mod.Asset{}, false
}

// Assets returns every materialized entry in bundle order.
func (r *AssetResource) Assets() []mod.Asset {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]mod.Asset, 0, r.ready)
	for _, e := range r.entries[:r.ready] {
		out = append(out, mod.Asset{Name: e.Name, Kind: e.Kind, Data: e.Data})
	}
	return out
}

// AssetsOf returns every materialized entry of the given kind.
func (r *AssetResource) AssetsOf(kind string) []mod.Asset {
	var out []mod.Asset
	for _, a := range r.Assets() {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

// ComponentsInPrefabs scans prefab entries for components of the given
// type. A prefab entry carries its objects under Data["objects"].
func (r *AssetResource) ComponentsInPrefabs(typeName string) []mod.Component {
	var out []mod.Component
	for _, a := range r.AssetsOf("prefab") {
		objects, ok := a.Data["objects"].([]interface{})
		if !ok {
			continue
		}
		for _, raw := range objects {
			obj, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			objName, _ := obj["name"].(string)
			comps, _ := obj["components"].([]interface{})
			for _, c := range comps {
				if s, ok := c.(string); ok && s == typeName {
					out = append(out, mod.Component{Object: objName, Type: typeName})
				}
			}
		}
	}
	return out
}

// assetHooks adapts AssetResource to the lifecycle hooks contract.
type assetHooks struct {
	resource.NopHooks
	r *AssetResource
}

// CanLoad requires the bundle file to exist.
func (h *assetHooks) CanLoad() bool {
	info, err := os.Stat(h.r.path)
	return err == nil && !info.IsDir()
}

// LoadNow parses the manifest and materializes every entry at once.
func (h *assetHooks) LoadNow(ctx context.Context) error {
	if err := h.BeginLoad(ctx); err != nil {
		return err
	}
	h.r.mu.Lock()
	h.r.ready = len(h.r.entries)
	h.r.mu.Unlock()
	return nil
}

// BeginLoad parses the manifest. Entries materialize on subsequent steps.
func (h *assetHooks) BeginLoad(ctx context.Context) error {
	m, err := readAssetManifest(h.r.path)
	if err != nil {
		return err
	}
	h.r.mu.Lock()
	h.r.entries = m.Entries
	h.r.ready = 0
	h.r.mu.Unlock()
	h.r.logger.Debug(ctx, "asset bundle opened",
		ports.F("resource", h.r.Name()), ports.F("entries", len(m.Entries)))
	return nil
}

// Step materializes one entry.
func (h *assetHooks) Step(_ context.Context) (bool, error) {
	h.r.mu.Lock()
	defer h.r.mu.Unlock()
	if h.r.ready < len(h.r.entries) {
		h.r.ready++
	}
	return h.r.ready == len(h.r.entries), nil
}

// Progress reports materialized entries over total entries.
func (h *assetHooks) Progress() float64 {
	h.r.mu.Lock()
	defer h.r.mu.Unlock()
	if len(h.r.entries) == 0 {
		return 1
	}
	return float64(h.r.ready) / float64(len(h.r.entries))
}

// CancelStep winds back one entry. Done once nothing is materialized.
func (h *assetHooks) CancelStep(_ context.Context) bool {
	h.r.mu.Lock()
	defer h.r.mu.Unlock()
	if h.r.ready > 0 {
		h.r.ready--
	}
	return h.r.ready == 0
}

// Release drops every entry.
func (h *assetHooks) Release(_ context.Context) error {
	h.r.mu.Lock()
	h.r.entries = nil
	h.r.ready = 0
	h.r.mu.Unlock()
	return nil
}

var _ mod.AssetResource = (*AssetResource)(nil)
