package code

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/felixgeelhaar/modkit/internal/domain/capability"
	"github.com/felixgeelhaar/modkit/internal/ports"
)

// capabilityExportPrefix marks a guest export as a capability declaration:
// a module exporting "cap_mod.handler" provides the "mod.handler" capability.
const capabilityExportPrefix = "cap_"

// Guest entrypoints proxied by the lifecycle handler.
const (
	guestOnLoaded   = "on_loaded"
	guestOnUnloaded = "on_unloaded"
)

// WazeroHost loads WASM binaries with the Wazero runtime. Compilation is
// eager: a binary that does not compile fails at load, not first call.
type WazeroHost struct {
	runtime wazero.Runtime
	logger  ports.Logger
	mu      sync.Mutex
	closed  bool
}

// NewWazeroHost creates a WASM code host with WASI available to guests.
func NewWazeroHost(ctx context.Context, logger ports.Logger) (*WazeroHost, error) {
	cfg := wazero.NewRuntimeConfig().
		WithCloseOnContextDone(true)

	r := wazero.NewRuntimeWithConfig(ctx, cfg)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("instantiating WASI: %w", err)
	}

	return &WazeroHost{runtime: r, logger: logger}, nil
}

// Available reports whether the binary exists on disk.
func (h *WazeroHost) Available(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Load compiles and instantiates the WASM binary at path. Instantiation is
// the force-resolve step: every export is known before Load returns.
func (h *WazeroHost) Load(ctx context.Context, path string) (Module, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, fmt.Errorf("code host is closed")
	}
	h.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading code binary: %w", err)
	}

	compiled, err := h.runtime.CompileModule(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("compiling %s: %w", filepath.Base(path), err)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	modConfig := wazero.NewModuleConfig().
		WithName(name).
		WithStartFunctions("_start", "_initialize")

	instance, err := h.runtime.InstantiateModule(ctx, compiled, modConfig)
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, fmt.Errorf("instantiating %s: %w", filepath.Base(path), err)
	}

	return newGuestModule(name, instance, h.logger), nil
}

// Close releases the runtime and every module loaded through it.
func (h *WazeroHost) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.runtime.Close(ctx)
}

// guestModule adapts one instantiated WASM module to the Module contract.
// Its capability set is read from cap_* exports.
type guestModule struct {
	name     string
	instance api.Module
	caps     []string
	logger   ports.Logger
}

func newGuestModule(name string, instance api.Module, logger ports.Logger) *guestModule {
	var caps []string
	for export := range instance.ExportedFunctionDefinitions() {
		if strings.HasPrefix(export, capabilityExportPrefix) {
			caps = append(caps, strings.TrimPrefix(export, capabilityExportPrefix))
		}
	}
	return &guestModule{name: name, instance: instance, caps: caps, logger: logger}
}

// Name returns the module identity.
func (m *guestModule) Name() string { return m.name }

// Providers returns one provider per guest module, or none when the guest
// declares no capabilities.
func (m *guestModule) Providers() []capability.Provider {
	if len(m.caps) == 0 {
		return nil
	}
	return []capability.Provider{&guestProvider{module: m}}
}

// Close releases the module instance.
func (m *guestModule) Close(ctx context.Context) error {
	return m.instance.Close(ctx)
}

// guestProvider constructs proxy instances for a guest module. Guests take
// no host-side constructor arguments; the args contract applies to
// host-native providers only.
type guestProvider struct {
	module *guestModule
}

func (p *guestProvider) TypeName() string       { return p.module.name }
func (p *guestProvider) Capabilities() []string { return p.module.caps }
func (p *guestProvider) SceneResident() bool    { return false }

func (p *guestProvider) New(_ ...interface{}) (interface{}, error) {
	return &GuestInstance{module: p.module}, nil
}

// GuestInstance proxies lifecycle callbacks into a guest module's exports.
type GuestInstance struct {
	module *guestModule
}

// OnLoaded invokes the guest's on_loaded export if it has one.
func (g *GuestInstance) OnLoaded(_ interface{}) {
	g.call(guestOnLoaded)
}

// OnUnloaded invokes the guest's on_unloaded export if it has one.
func (g *GuestInstance) OnUnloaded() {
	g.call(guestOnUnloaded)
}

func (g *GuestInstance) call(export string) {
	fn := g.module.instance.ExportedFunction(export)
	if fn == nil {
		return
	}
	if _, err := fn.Call(context.Background()); err != nil {
		g.module.logger.Warn(context.Background(), "guest lifecycle callback failed",
			ports.F("module", g.module.name), ports.F("export", export), ports.F("error", err))
	}
}

// Ensure the guest types satisfy their contracts.
var (
	_ Host                        = (*WazeroHost)(nil)
	_ Module                      = (*guestModule)(nil)
	_ capability.Provider         = (*guestProvider)(nil)
	_ capability.LifecycleHandler = (*GuestInstance)(nil)
)
