package mod

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/felixgeelhaar/modkit/internal/domain/capability"
	"github.com/felixgeelhaar/modkit/internal/domain/resource"
	"github.com/felixgeelhaar/modkit/internal/ports"
)

// RuntimeConfig identifies the running host to the mod core. Passed
// explicitly to constructors; there is no ambient global.
type RuntimeConfig struct {
	// Platform is the single platform the host is running on.
	Platform Platform
	// HostVersion is the running host's semantic version. Empty disables
	// the hostVersion compatibility gate.
	HostVersion string
}

// Params carries everything discovery found for one mod.
type Params struct {
	Descriptor *Descriptor
	// Dir is the mod's root directory.
	Dir string
	// CodeFiles are the platform-specific binaries, in load order.
	CodeFiles []string
	// AssetsPath is the mod's asset bundle file.
	AssetsPath string
	// ScenesPath is the mod's scene bundle file.
	ScenesPath string
	// SceneNames are the scenes inside the scene bundle, in bundle order.
	SceneNames []string

	Runtime RuntimeConfig
	Factory Factory
	Graph   ports.SceneGraph
	Host    ports.Host
	Logger  ports.Logger
}

// Mod is one content unit: a code resource, an asset resource, and an
// ordered list of scene resources aggregated behind a single lifecycle.
// Validity is sticky: once a mod goes invalid it stays invalid until the
// discovery root is rescanned and the unit rebuilt.
type Mod struct {
	*resource.Handle

	descriptor *Descriptor
	dir        string
	codeFiles  []string
	assetsPath string
	scenesPath string
	runtime    RuntimeConfig
	host       ports.Host
	logger     ports.Logger

	codeRes  CodeResource
	assetRes AssetResource
	sceneRes []SceneResource

	instances *capability.Registry

	mu           sync.Mutex
	conflicting  map[string]*Mod
	found        []*Mod
	unsatisfied  []string
	disabledDeps []string
	// included is the sub-resource set of the current aggregation: the
	// sub-resources whose gate was open when the load began.
	included []resource.Resource

	staticReasons []string
	staticLogged  bool
	destroyed     bool
}

// New constructs a mod from discovery output. Static invalidity (missing
// platform, missing bundles) does not fail construction; the unit exists,
// reports diagnostics, and refuses to load.
func New(p Params) (*Mod, error) {
	if p.Descriptor == nil {
		return nil, fmt.Errorf("descriptor is required")
	}
	if p.Factory == nil {
		return nil, fmt.Errorf("factory is required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if p.Host == nil {
		p.Host = &ports.NoopHost{}
	}

	m := &Mod{
		descriptor:  p.Descriptor,
		dir:         p.Dir,
		codeFiles:   append([]string(nil), p.CodeFiles...),
		assetsPath:  p.AssetsPath,
		scenesPath:  p.ScenesPath,
		runtime:     p.Runtime,
		host:        p.Host,
		logger:      p.Logger.With(ports.F("mod", p.Descriptor.ID)),
		conflicting: make(map[string]*Mod),
	}

	handle, err := resource.NewHandle(p.Descriptor.PathID(), &modHooks{m: m}, m.logger)
	if err != nil {
		return nil, err
	}
	m.Handle = handle

	if p.Descriptor.Content.Has(ContentCode) {
		m.codeRes, err = p.Factory.Code(p.Descriptor.PathID(), m.codeFiles)
		if err != nil {
			return nil, fmt.Errorf("creating code resource: %w", err)
		}
	}
	if p.Descriptor.Content.Has(ContentAssets) {
		m.assetRes, err = p.Factory.Asset(p.Descriptor.PathID(), p.AssetsPath)
		if err != nil {
			return nil, fmt.Errorf("creating asset resource: %w", err)
		}
	}
	if p.Descriptor.Content.Has(ContentScenes) {
		for _, sceneName := range p.SceneNames {
			s, err := p.Factory.Scene(p.Descriptor.PathID(), p.ScenesPath, sceneName)
			if err != nil {
				return nil, fmt.Errorf("creating scene resource %q: %w", sceneName, err)
			}
			m.sceneRes = append(m.sceneRes, s)
		}
	}

	m.instances = capability.NewRegistry(
		func() bool { return m.State() == resource.StateLoaded },
		m.providers,
		p.Graph,
		m.logger,
	)

	// Lifecycle handlers hear about the mod once it is fully loaded.
	m.Subscribe(func(n resource.Notification) {
		if n.Kind == resource.NotifyLoaded {
			m.notifyHandlersLoaded()
		}
	})

	return m, nil
}

// Descriptor returns the mod's descriptor.
func (m *Mod) Descriptor() *Descriptor {
	return m.descriptor
}

// ID returns the mod identifier.
func (m *Mod) ID() string {
	return m.descriptor.ID
}

// Enabled reports whether the mod participates in loading.
func (m *Mod) Enabled() bool {
	return m.descriptor.Enabled
}

// SetEnabled toggles participation. The resolution pass must be re-run
// afterwards; satisfaction of other mods may have changed.
func (m *Mod) SetEnabled(enabled bool) {
	m.descriptor.Enabled = enabled
}

// CodeFiles returns the mod's binaries in load order.
func (m *Mod) CodeFiles() []string {
	out := make([]string, len(m.codeFiles))
	copy(out, m.codeFiles)
	return out
}

// SceneNames returns the names of the mod's scenes in bundle order.
func (m *Mod) SceneNames() []string {
	var out []string
	for _, s := range m.sceneRes {
		out = append(out, s.SceneName())
	}
	return out
}

// Instances returns all live instances implementing the given capability
// across the mod's loaded code, constructing and caching as needed.
func (m *Mod) Instances(ctx context.Context, capabilityName string, args ...interface{}) []interface{} {
	return m.instances.Instances(ctx, capabilityName, args...)
}

// Registry exposes the mod's capability registry.
func (m *Mod) Registry() *capability.Registry {
	return m.instances
}

// Asset returns the named asset. Empty unless the asset sub-resource is
// loaded.
func (m *Mod) Asset(name string) (Asset, bool) {
	if m.assetRes == nil || m.assetRes.State() != resource.StateLoaded {
		return Asset{}, false
	}
	return m.assetRes.Asset(name)
}

// Assets returns every asset of the given kind. Empty kind means all.
func (m *Mod) Assets(kind string) []Asset {
	if m.assetRes == nil || m.assetRes.State() != resource.StateLoaded {
		return nil
	}
	if kind == "" {
		return m.assetRes.Assets()
	}
	return m.assetRes.AssetsOf(kind)
}

// ComponentsInPrefabs scans the mod's own prefab assets for components of
// the given type.
func (m *Mod) ComponentsInPrefabs(typeName string) []Component {
	if m.assetRes == nil || m.assetRes.State() != resource.StateLoaded {
		return nil
	}
	return m.assetRes.ComponentsInPrefabs(typeName)
}

// ComponentsInScenes scans the mod's own loaded scenes for components of
// the given type.
func (m *Mod) ComponentsInScenes(typeName string) []Component {
	var out []Component
	for _, s := range m.sceneRes {
		if s.State() == resource.StateLoaded {
			out = append(out, s.ComponentsInScenes(typeName)...)
		}
	}
	return out
}

// AllDependenciesSatisfied reports whether every declared dependency was
// found. A found-but-disabled dependency does not block; it was already
// reported as a warning by the resolution pass.
func (m *Mod) AllDependenciesSatisfied() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.unsatisfied) == 0
}

// ConflictingUnitsLoaded reports whether any conflicting mod currently
// holds content.
func (m *Mod) ConflictingUnitsLoaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.conflicting {
		if other.State() != resource.StateUnloaded {
			return true
		}
	}
	return false
}

// ConflictingUnits returns the ids of conflicting mods, sorted.
func (m *Mod) ConflictingUnits() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.conflicting))
	for id := range m.conflicting {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// FoundDependencies returns the resolved dependency mods.
func (m *Mod) FoundDependencies() []*Mod {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Mod, len(m.found))
	copy(out, m.found)
	return out
}

// UnsatisfiedDependencies returns the ids of declared dependencies that
// were not found.
func (m *Mod) UnsatisfiedDependencies() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.unsatisfied))
	copy(out, m.unsatisfied)
	return out
}

// DisabledDependencies returns the ids of dependencies that were found but
// are disabled.
func (m *Mod) DisabledDependencies() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.disabledDeps))
	copy(out, m.disabledDeps)
	return out
}

// ResetRelations clears dependency and conflict annotations before a
// resolution pass.
func (m *Mod) ResetRelations() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicting = make(map[string]*Mod)
	m.found = nil
	m.unsatisfied = nil
	m.disabledDeps = nil
}

// UpdateDependencies resolves the mod's declared dependencies against the
// id index. Must be re-run whenever the known-mod set changes.
func (m *Mod) UpdateDependencies(ctx context.Context, index map[string]*Mod) {
	m.mu.Lock()
	m.found = nil
	m.unsatisfied = nil
	m.disabledDeps = nil
	m.mu.Unlock()

	for _, depID := range m.descriptor.Dependencies {
		key := strings.ToLower(depID)
		dep, ok := index[key]
		if !ok {
			m.mu.Lock()
			m.unsatisfied = append(m.unsatisfied, depID)
			m.mu.Unlock()
			m.logger.Error(ctx, "missing dependency", ports.F("dependency", depID))
			continue
		}

		m.mu.Lock()
		m.found = append(m.found, dep)
		m.mu.Unlock()

		if !dep.Enabled() {
			m.mu.Lock()
			m.disabledDeps = append(m.disabledDeps, depID)
			m.mu.Unlock()
			// Found but disabled: reported, not blocking.
			m.logger.Warn(ctx, "dependency is disabled", ports.F("dependency", depID))
		}
	}
}

// UpdateConflicts checks this mod against another for colliding code file
// or scene names and records the other mod on a match. Symmetry comes from
// the resolution pass invoking both directions.
func (m *Mod) UpdateConflicts(ctx context.Context, other *Mod) {
	if other == nil || other == m {
		return
	}
	if !m.Valid() || !other.Valid() {
		return
	}

	for _, mine := range m.codeFiles {
		for _, theirs := range other.codeFiles {
			if strings.EqualFold(baseName(mine), baseName(theirs)) {
				m.addConflict(ctx, other, "code file", baseName(mine))
				return
			}
		}
	}

	for _, mine := range m.SceneNames() {
		for _, theirs := range other.SceneNames() {
			if mine == theirs {
				m.addConflict(ctx, other, "scene", mine)
				return
			}
		}
	}
}

func (m *Mod) addConflict(ctx context.Context, other *Mod, kind, name string) {
	m.mu.Lock()
	m.conflicting[other.ID()] = other
	m.mu.Unlock()
	m.logger.Warn(ctx, "identifier conflict",
		ports.F("with", other.ID()), ports.F("kind", kind), ports.F("identifier", name))
}

// Diagnostics reports the mod's load-readiness as structured data, without
// attempting a load.
type Diagnostics struct {
	ID                   string
	State                resource.State
	Valid                bool
	CanLoad              bool
	StaticReasons        []string
	MissingDependencies  []string
	DisabledDependencies []string
	Conflicts            []string
}

// Diagnose returns the mod's current diagnostics.
func (m *Mod) Diagnose() Diagnostics {
	canLoad := m.CanLoad()
	m.mu.Lock()
	defer m.mu.Unlock()
	d := Diagnostics{
		ID:                   m.descriptor.ID,
		State:                m.State(),
		Valid:                m.Valid(),
		CanLoad:              canLoad,
		StaticReasons:        append([]string(nil), m.staticReasons...),
		MissingDependencies:  append([]string(nil), m.unsatisfied...),
		DisabledDependencies: append([]string(nil), m.disabledDeps...),
	}
	for id := range m.conflicting {
		d.Conflicts = append(d.Conflicts, id)
	}
	sort.Strings(d.Conflicts)
	return d
}

// Destroy releases the mod's lifecycle machinery. Content must already be
// unloaded. Safe to call more than once.
func (m *Mod) Destroy() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.destroyed = true
	m.mu.Unlock()

	if m.codeRes != nil {
		m.codeRes.Close()
	}
	if m.assetRes != nil {
		m.assetRes.Close()
	}
	for _, s := range m.sceneRes {
		s.Close()
	}
	m.Handle.Close()
}

// providers returns the capability providers of the loaded code modules.
func (m *Mod) providers() []capability.Provider {
	if m.codeRes == nil {
		return nil
	}
	return m.codeRes.Providers()
}

// staticCheck re-runs the static validity checks. Any failure permanently
// invalidates the mod; reasons are reported once.
func (m *Mod) staticCheck() bool {
	var reasons []string

	if m.runtime.Platform != 0 && !m.descriptor.Platforms.Has(m.runtime.Platform) {
		reasons = append(reasons, fmt.Sprintf("platform %s not supported (supports %s)",
			m.runtime.Platform, m.descriptor.Platforms))
	}

	if !hostVersionSatisfied(m.runtime.HostVersion, m.descriptor.HostVersion) {
		reasons = append(reasons, fmt.Sprintf("host version %s does not satisfy required %s",
			m.runtime.HostVersion, m.descriptor.HostVersion))
	}

	if m.descriptor.Content.Has(ContentCode) && len(m.codeFiles) == 0 {
		reasons = append(reasons, "no code files found")
	}
	if m.descriptor.Content.Has(ContentAssets) && !fileExists(m.assetsPath) {
		reasons = append(reasons, fmt.Sprintf("asset bundle missing: %s", m.assetsPath))
	}
	if m.descriptor.Content.Has(ContentScenes) && !fileExists(m.scenesPath) {
		reasons = append(reasons, fmt.Sprintf("scene bundle missing: %s", m.scenesPath))
	}

	if len(reasons) == 0 {
		return true
	}

	m.Invalidate()
	m.mu.Lock()
	logged := m.staticLogged
	m.staticLogged = true
	m.staticReasons = reasons
	m.mu.Unlock()
	if !logged {
		for _, r := range reasons {
			m.logger.Error(context.Background(), "mod is invalid", ports.F("reason", r))
		}
	}
	return false
}

// loadableSubs snapshots the sub-resources whose gate is open right now.
// Composite progress is computed over exactly this set for the duration of
// the aggregation.
func (m *Mod) loadableSubs() []resource.Resource {
	var subs []resource.Resource
	if m.codeRes != nil && m.codeRes.CanLoad() {
		subs = append(subs, m.codeRes)
	}
	if m.assetRes != nil && m.assetRes.CanLoad() {
		subs = append(subs, m.assetRes)
	}
	for _, s := range m.sceneRes {
		if s.CanLoad() {
			subs = append(subs, s)
		}
	}
	return subs
}

func (m *Mod) setIncluded(subs []resource.Resource) {
	m.mu.Lock()
	m.included = subs
	m.mu.Unlock()
}

func (m *Mod) includedSubs() []resource.Resource {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]resource.Resource, len(m.included))
	copy(out, m.included)
	return out
}

// notifyHandlersLoaded tells every lifecycle handler instance the mod is
// loaded. Construction happens here, so handlers exist before any unload.
func (m *Mod) notifyHandlersLoaded() {
	ctx := context.Background()
	for _, h := range capability.InstancesOf[capability.LifecycleHandler](ctx, m.instances, capability.Handler) {
		h.OnLoaded(m)
	}
}

// notifyHandlersUnloaded tells every cached handler instance the mod is
// about to release its content. Ordered, synchronous.
func (m *Mod) notifyHandlersUnloaded() {
	for _, inst := range m.instances.Cached() {
		if h, ok := inst.(capability.LifecycleHandler); ok {
			h.OnUnloaded()
		}
	}
}

// modHooks adapts Mod to the lifecycle hooks contract.
type modHooks struct {
	resource.NopHooks
	m *Mod
}

// CanLoad is the mod's composite gate: static checks, dependency
// satisfaction, and no loaded conflicting unit. Pure besides re-running
// the static checks.
func (h *modHooks) CanLoad() bool {
	m := h.m
	if !m.staticCheck() {
		return false
	}
	if !m.AllDependenciesSatisfied() {
		return false
	}
	if m.ConflictingUnitsLoaded() {
		return false
	}
	return true
}

// LoadNow loads everything synchronously: code first, then assets and
// scenes.
func (h *modHooks) LoadNow(ctx context.Context) error {
	m := h.m
	subs := m.loadableSubs()
	m.setIncluded(subs)

	for _, sub := range subs {
		if err := sub.Load(ctx); err != nil {
			return err
		}
	}
	return nil
}

// BeginLoad starts the aggregation: code eagerly and synchronously, since
// instance discovery needs the loaded type universe; assets and scenes
// asynchronously, interleaved on the scheduler.
func (h *modHooks) BeginLoad(ctx context.Context) error {
	m := h.m
	subs := m.loadableSubs()
	m.setIncluded(subs)

	for _, sub := range subs {
		if sub == resource.Resource(m.codeRes) {
			if err := sub.Load(ctx); err != nil {
				return err
			}
			continue
		}
		if err := sub.LoadAsync(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Step advances every in-flight sub-resource by one unit of work.
func (h *modHooks) Step(ctx context.Context) (bool, error) {
	m := h.m
	done := true
	for _, sub := range m.includedSubs() {
		if sub.IsBusy() {
			sub.Tick(ctx)
		}
		if !sub.Valid() {
			return false, fmt.Errorf("sub-resource %q failed to load", sub.Name())
		}
		if sub.State() != resource.StateLoaded {
			done = false
		}
	}
	return done, nil
}

// Progress is the arithmetic mean over the sub-resources included in the
// current aggregation. Gated sub-resources are excluded from numerator and
// denominator alike.
func (h *modHooks) Progress() float64 {
	subs := h.m.includedSubs()
	if len(subs) == 0 {
		return 1
	}
	var sum float64
	for _, sub := range subs {
		sum += sub.Progress()
	}
	return sum / float64(len(subs))
}

// BeginCancel asks every included sub-resource to unload. In-flight loads
// flip to cancelling; already-loaded sub-resources release immediately.
func (h *modHooks) BeginCancel(ctx context.Context) {
	for _, sub := range h.m.includedSubs() {
		_ = sub.Unload(ctx)
	}
}

// CancelStep drives sub-resource cancellations forward. The aggregate is
// cancelled once no sub-resource reports busy.
func (h *modHooks) CancelStep(ctx context.Context) bool {
	busy := false
	for _, sub := range h.m.includedSubs() {
		if sub.IsBusy() {
			sub.Tick(ctx)
		}
		if sub.IsBusy() {
			busy = true
		}
	}
	return !busy
}

// Resume re-issues the load on every included sub-resource. Sub-resources
// still mid-cancel pick up where they left off instead of restarting.
func (h *modHooks) Resume(ctx context.Context) {
	m := h.m
	for _, sub := range m.includedSubs() {
		if sub == resource.Resource(m.codeRes) {
			if sub.State() != resource.StateLoaded {
				_ = sub.Load(ctx)
			}
			continue
		}
		_ = sub.LoadAsync(ctx)
	}
}

// Release runs the unload sequence: notify handler instances, release
// scenes, clear the instance cache and code handles, release the asset
// bundle, then ask the host to sweep unused memory.
func (h *modHooks) Release(ctx context.Context) error {
	m := h.m

	m.notifyHandlersUnloaded()

	var firstErr error
	for _, s := range m.sceneRes {
		if err := releaseSub(ctx, s); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	m.instances.Clear()
	if m.codeRes != nil {
		if err := releaseSub(ctx, m.codeRes); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if m.assetRes != nil {
		if err := releaseSub(ctx, m.assetRes); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := m.host.SweepUnusedResources(ctx); err != nil {
		m.logger.Warn(ctx, "host resource sweep failed", ports.F("error", err))
	}

	m.setIncluded(nil)
	return firstErr
}

// releaseSub unloads one sub-resource and drives any resulting
// cancellation to completion. A failed aggregation reaches Release with
// siblings still mid-load; nothing ticks them afterwards, so they must
// wind back here before the mod reports unloaded.
func releaseSub(ctx context.Context, sub resource.Resource) error {
	err := sub.Unload(ctx)
	for sub.IsBusy() {
		sub.Tick(ctx)
	}
	return err
}

func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
