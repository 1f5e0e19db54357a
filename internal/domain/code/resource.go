package code

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/modkit/internal/domain/capability"
	"github.com/felixgeelhaar/modkit/internal/domain/resource"
	"github.com/felixgeelhaar/modkit/internal/ports"
)

// Resource is the code sub-resource: an ordered list of binaries loaded
// through a Host. Code loads synchronously and eagerly even under an
// asynchronous mod load, because instance discovery needs the full type
// universe before anything else proceeds.
type Resource struct {
	*resource.Handle

	host   Host
	files  []string
	logger ports.Logger

	mu      sync.Mutex
	modules []Module
}

// NewResource creates a code resource over the given binaries.
func NewResource(name string, files []string, host Host, logger ports.Logger) (*Resource, error) {
	r := &Resource{
		host:   host,
		files:  files,
		logger: logger,
	}
	handle, err := resource.NewHandle(name, &codeHooks{r: r}, logger)
	if err != nil {
		return nil, err
	}
	r.Handle = handle
	return r, nil
}

// Files returns the binary paths in load order.
func (r *Resource) Files() []string {
	out := make([]string, len(r.files))
	copy(out, r.files)
	return out
}

// Providers returns the capability providers of every loaded module, in
// module load order. Empty unless loaded.
func (r *Resource) Providers() []capability.Provider {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []capability.Provider
	for _, m := range r.modules {
		out = append(out, m.Providers()...)
	}
	return out
}

// codeHooks adapts Resource to the lifecycle hooks contract.
type codeHooks struct {
	resource.NopHooks
	r *Resource
}

// CanLoad requires every binary to be loadable by the host.
func (h *codeHooks) CanLoad() bool {
	for _, f := range h.r.files {
		if !h.r.host.Available(f) {
			return false
		}
	}
	return true
}

// LoadNow loads every binary in order, force-resolving each before moving
// to the next.
func (h *codeHooks) LoadNow(ctx context.Context) error {
	for _, f := range h.r.files {
		m, err := h.r.host.Load(ctx, f)
		if err != nil {
			return err
		}
		h.r.mu.Lock()
		h.r.modules = append(h.r.modules, m)
		h.r.mu.Unlock()
		h.r.logger.Debug(ctx, "code module loaded", ports.F("module", m.Name()))
	}
	return nil
}

// BeginLoad is the same eager load: code never loads incrementally.
func (h *codeHooks) BeginLoad(ctx context.Context) error {
	return h.LoadNow(ctx)
}

// Progress reports loaded binaries over total binaries.
func (h *codeHooks) Progress() float64 {
	if len(h.r.files) == 0 {
		return 1
	}
	h.r.mu.Lock()
	defer h.r.mu.Unlock()
	return float64(len(h.r.modules)) / float64(len(h.r.files))
}

// CancelStep releases anything loaded so far in one step; eager loads have
// no partial in-flight work to wind back incrementally.
func (h *codeHooks) CancelStep(ctx context.Context) bool {
	_ = h.Release(ctx)
	return true
}

// Release closes every loaded module.
func (h *codeHooks) Release(ctx context.Context) error {
	h.r.mu.Lock()
	modules := h.r.modules
	h.r.modules = nil
	h.r.mu.Unlock()

	var firstErr error
	for _, m := range modules {
		if err := m.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
