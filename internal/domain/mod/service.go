package mod

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/felixgeelhaar/modkit/internal/domain/resource"
	"github.com/felixgeelhaar/modkit/internal/ports"
)

// Service coordinates discovery, the resolution pass, and per-mod
// lifecycle requests. It owns the registry and the cooperative driver.
type Service struct {
	mu         sync.RWMutex
	registry   *Registry
	discoverer Discoverer
	resolver   *Resolver
	driver     *resource.Driver
	logger     ports.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithDiscoverer sets the mod discoverer.
func WithDiscoverer(d Discoverer) ServiceOption {
	return func(s *Service) {
		s.discoverer = d
	}
}

// WithLogger sets the service logger.
func WithLogger(l ports.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = l
	}
}

// NewService creates a mod service. A discoverer must be provided via
// WithDiscoverer before Scan is useful; everything else has defaults.
func NewService(logger ports.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		registry: NewRegistry(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		panic("mod: service requires a logger")
	}
	s.resolver = NewResolver(s.logger)
	s.driver = resource.NewDriver(s.logger)
	return s
}

// Registry returns the known-mod registry.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Driver returns the cooperative scheduler for asynchronous loads.
func (s *Service) Driver() *resource.Driver {
	return s.driver
}

// Scan rescans the discovery root. Existing units are destroyed and
// rebuilt, then a full resolution pass annotates the new set.
func (s *Service) Scan(ctx context.Context) (*Resolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.discoverer == nil {
		return nil, fmt.Errorf("no discoverer configured")
	}

	for _, m := range s.registry.All() {
		s.driver.Remove(m.Descriptor().PathID())
	}
	s.registry.Clear()

	result, err := s.discoverer.Discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovering mods: %w", err)
	}
	for _, de := range result.Errors {
		s.logger.Warn(ctx, "skipping mod", ports.F("path", de.Path), ports.F("error", de.Err))
	}

	for _, m := range result.Mods {
		if err := s.registry.Add(m); err != nil {
			if IsModExists(err) {
				s.logger.Warn(ctx, "duplicate mod id, skipping", ports.F("mod", m.ID()))
				m.Destroy()
				continue
			}
			return nil, fmt.Errorf("registering mod %s: %w", m.ID(), err)
		}
		s.driver.Add(m)
	}

	s.logger.Info(ctx, "scan complete", ports.F("mods", s.registry.Count()))
	return s.resolver.Run(ctx, s.registry), nil
}

// Resolve re-runs the resolution pass over the current set.
func (s *Service) Resolve(ctx context.Context) *Resolution {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolver.Run(ctx, s.registry)
}

// Get returns the mod with the given id.
func (s *Service) Get(id string) (*Mod, bool) {
	return s.registry.Get(id)
}

// List returns every known mod sorted by id.
func (s *Service) List() []*Mod {
	return s.registry.All()
}

// SetEnabled toggles a mod and re-runs the resolution pass. With persist
// set, the descriptor is saved back to its directory.
func (s *Service) SetEnabled(ctx context.Context, id string, enabled, persist bool) (*Resolution, error) {
	m, ok := s.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModNotFound, id)
	}

	m.SetEnabled(enabled)
	if persist {
		path := filepath.Join(m.dir, DescriptorFileName)
		if err := m.Descriptor().Save(path); err != nil {
			return nil, fmt.Errorf("persisting descriptor for %s: %w", id, err)
		}
	}

	s.logger.Info(ctx, "mod toggled", ports.F("mod", m.ID()), ports.F("enabled", enabled))
	return s.Resolve(ctx), nil
}

// Load synchronously loads the mod with the given id. A closed gate is a
// no-op; a load failure is converted to invalid state and returned as a
// diagnostic error, never a panic.
func (s *Service) Load(ctx context.Context, id string) error {
	m, ok := s.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrModNotFound, id)
	}
	return m.Load(ctx)
}

// LoadAsync begins a cooperative load of the mod with the given id. Work
// advances as the driver ticks.
func (s *Service) LoadAsync(ctx context.Context, id string) error {
	m, ok := s.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrModNotFound, id)
	}
	return m.LoadAsync(ctx)
}

// Unload unloads the mod with the given id. Unloading mid-load cancels.
func (s *Service) Unload(ctx context.Context, id string) error {
	m, ok := s.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrModNotFound, id)
	}
	return m.Unload(ctx)
}

// Diagnose returns diagnostics for every known mod, sorted by id.
func (s *Service) Diagnose() []Diagnostics {
	var out []Diagnostics
	for _, m := range s.registry.All() {
		out = append(out, m.Diagnose())
	}
	return out
}
