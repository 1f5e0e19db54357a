// Package code provides the code sub-resource of a mod: loading compiled
// binaries through a pluggable host and exposing the capability providers
// they contribute.
package code

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/felixgeelhaar/modkit/internal/domain/capability"
)

// Module is one loaded code binary.
type Module interface {
	// Name returns the module identity, derived from the binary name.
	Name() string

	// Providers returns the capability providers this module contributes.
	Providers() []capability.Provider

	// Close releases the module.
	Close(ctx context.Context) error
}

// Host loads code binaries into modules. Implementations decide what a
// binary is: a WASM blob, a builtin registration, a test double.
type Host interface {
	// Available reports whether the binary at path could be loaded.
	Available(path string) bool

	// Load reads the binary at path and force-resolves its contents so
	// that providers are queryable immediately.
	Load(ctx context.Context, path string) (Module, error)

	// Close releases the host and everything it loaded.
	Close(ctx context.Context) error
}

// ErrUnknownBinary indicates the host has no binary registered at the
// requested path.
var ErrUnknownBinary = errors.New("unknown code binary")

// MemoryHost is an in-process Host for builtin mods and tests: binaries
// are registered up front as provider sets keyed by path.
type MemoryHost struct {
	mu      sync.Mutex
	entries map[string][]capability.Provider
}

// NewMemoryHost creates an empty in-process host.
func NewMemoryHost() *MemoryHost {
	return &MemoryHost{entries: make(map[string][]capability.Provider)}
}

// Register associates a binary path with the providers loading it yields.
func (h *MemoryHost) Register(path string, providers ...capability.Provider) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[path] = providers
}

// Available reports whether the path has been registered.
func (h *MemoryHost) Available(path string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.entries[path]
	return ok
}

// Load returns the module registered at path.
func (h *MemoryHost) Load(_ context.Context, path string) (Module, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	providers, ok := h.entries[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBinary, path)
	}
	return &memoryModule{name: path, providers: providers}, nil
}

// Close does nothing; registered providers have no resources.
func (h *MemoryHost) Close(_ context.Context) error {
	return nil
}

// Paths returns the registered binary paths, sorted.
func (h *MemoryHost) Paths() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	paths := make([]string, 0, len(h.entries))
	for p := range h.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

type memoryModule struct {
	name      string
	providers []capability.Provider
}

func (m *memoryModule) Name() string                     { return m.name }
func (m *memoryModule) Providers() []capability.Provider { return m.providers }
func (m *memoryModule) Close(_ context.Context) error    { return nil }

// Ensure implementations satisfy their contracts.
var (
	_ Host   = (*MemoryHost)(nil)
	_ Module = (*memoryModule)(nil)
)
