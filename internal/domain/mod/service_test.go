package mod_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/modkit/internal/adapters/bundle"
	"github.com/felixgeelhaar/modkit/internal/adapters/logging"
	"github.com/felixgeelhaar/modkit/internal/domain/capability"
	"github.com/felixgeelhaar/modkit/internal/domain/code"
	"github.com/felixgeelhaar/modkit/internal/domain/mod"
	"github.com/felixgeelhaar/modkit/internal/domain/resource"
	"github.com/felixgeelhaar/modkit/internal/ports"
)

const testAssets = `{
  "entries": [
    {"name": "icon", "kind": "texture"},
    {"name": "door-prefab", "kind": "prefab", "data": {
      "objects": [{"name": "Door", "components": ["DoorOpener"]}]
    }}
  ]
}`

const testScenes = `{
  "scenes": [
    {"name": "Hub", "objects": [
      {"name": "Spawner", "components": ["EnemySpawner"]}
    ]}
  ]
}`

// stack bundles everything a scan needs over one mods root.
type stack struct {
	service *mod.Service
	host    *code.MemoryHost
	graph   *bundle.Graph
	root    string
}

func newStack(t *testing.T) *stack {
	t.Helper()
	root := t.TempDir()
	logger := logging.NewNopLogger()
	host := code.NewMemoryHost()
	graph := bundle.NewGraph()
	factory := bundle.NewFactory(host, graph, logger)

	loader := mod.NewLoader(mod.LoaderConfig{
		Root: root,
		Runtime: mod.RuntimeConfig{
			Platform:    mod.PlatformLinux,
			HostVersion: "1.0.0",
		},
	}, factory, graph, &ports.NoopHost{}, logger)

	service := mod.NewService(logger, mod.WithDiscoverer(loader))
	t.Cleanup(service.Registry().Clear)

	return &stack{service: service, host: host, graph: graph, root: root}
}

// writeMod lays one mod out on disk following the directory contract and
// registers its code binary with the in-memory host.
func (s *stack) writeMod(t *testing.T, d *mod.Descriptor, withCode bool) {
	t.Helper()
	dir := filepath.Join(s.root, d.PathID())
	platformDir := filepath.Join(dir, "linux")
	require.NoError(t, os.MkdirAll(platformDir, 0o755))
	require.NoError(t, d.Save(filepath.Join(dir, mod.DescriptorFileName)))

	if d.Content.Has(mod.ContentAssets) {
		require.NoError(t, os.WriteFile(
			filepath.Join(platformDir, d.PathID()+".assets"), []byte(testAssets), 0o644))
	}
	if d.Content.Has(mod.ContentScenes) {
		require.NoError(t, os.WriteFile(
			filepath.Join(platformDir, d.PathID()+".scenes"), []byte(testScenes), 0o644))
	}
	if withCode {
		binary := filepath.Join(platformDir, "main.wasm")
		require.NoError(t, os.WriteFile(binary, []byte("\x00asm"), 0o644))
		s.host.Register(binary, &capability.FuncProvider{
			Type: d.ID + ".Main",
			Caps: []string{"cap.widget"},
			Constructor: func(...interface{}) (interface{}, error) {
				return d.ID, nil
			},
		})
	}
}

func descriptorFor(id string, content mod.Content) *mod.Descriptor {
	return &mod.Descriptor{
		ID:        id,
		Name:      id,
		Version:   "1.0.0",
		Platforms: mod.PlatformLinux,
		Content:   content,
		Enabled:   true,
	}
}

func TestService_ScanDiscoversAndResolves(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStack(t)
	s.writeMod(t, descriptorFor("full-mod", mod.ContentCode|mod.ContentScenes|mod.ContentAssets), true)

	resolution, err := s.service.Scan(ctx)
	require.NoError(t, err)
	assert.False(t, resolution.HasProblems())

	m, ok := s.service.Get("full-mod")
	require.True(t, ok)
	assert.True(t, m.CanLoad())
	assert.Equal(t, []string{"Hub"}, m.SceneNames())
}

func TestService_LoadAndQueryContent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStack(t)
	s.writeMod(t, descriptorFor("full-mod", mod.ContentCode|mod.ContentScenes|mod.ContentAssets), true)

	_, err := s.service.Scan(ctx)
	require.NoError(t, err)
	require.NoError(t, s.service.Load(ctx, "full-mod"))

	m, _ := s.service.Get("full-mod")
	require.Equal(t, resource.StateLoaded, m.State())

	// Assets are queryable.
	icon, ok := m.Asset("icon")
	require.True(t, ok)
	assert.Equal(t, "texture", icon.Kind)
	assert.Len(t, m.Assets(""), 2)
	assert.Len(t, m.Assets("prefab"), 1)

	// Component scans see prefab and scene content.
	prefabHits := m.ComponentsInPrefabs("DoorOpener")
	require.Len(t, prefabHits, 1)
	assert.Equal(t, "Door", prefabHits[0].Object)

	sceneHits := m.ComponentsInScenes("EnemySpawner")
	require.Len(t, sceneHits, 1)
	assert.Equal(t, "Hub", sceneHits[0].Scene)

	// Loaded scenes populate the graph; code instances resolve.
	assert.Len(t, s.graph.Active("EnemySpawner"), 1)
	assert.Len(t, m.Instances(ctx, "cap.widget"), 1)

	require.NoError(t, s.service.Unload(ctx, "full-mod"))
	assert.Equal(t, resource.StateUnloaded, m.State())
	assert.Empty(t, s.graph.Active("EnemySpawner"))
	assert.Empty(t, m.Instances(ctx, "cap.widget"))
}

func TestService_LoadAsyncOnDriver(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStack(t)
	s.writeMod(t, descriptorFor("async-mod", mod.ContentScenes|mod.ContentAssets), false)

	_, err := s.service.Scan(ctx)
	require.NoError(t, err)

	require.NoError(t, s.service.LoadAsync(ctx, "async-mod"))
	require.NoError(t, s.service.Driver().Run(ctx, 1000))

	m, _ := s.service.Get("async-mod")
	assert.Equal(t, resource.StateLoaded, m.State())
	assert.Equal(t, 1.0, m.Progress())
}

func TestService_ScanSkipsBrokenDescriptor(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStack(t)
	s.writeMod(t, descriptorFor("good-mod", mod.ContentAssets), false)

	brokenDir := filepath.Join(s.root, "broken")
	require.NoError(t, os.MkdirAll(brokenDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(brokenDir, mod.DescriptorFileName), []byte("{"), 0o644))

	_, err := s.service.Scan(ctx)
	require.NoError(t, err, "one broken descriptor never hides the rest")
	assert.Equal(t, 1, s.service.Registry().Count())
}

func TestService_MissingBundleMakesModInvalid(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStack(t)

	d := descriptorFor("hollow", mod.ContentAssets)
	dir := filepath.Join(s.root, d.PathID())
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, d.Save(filepath.Join(dir, mod.DescriptorFileName)))

	_, err := s.service.Scan(ctx)
	require.NoError(t, err)

	m, ok := s.service.Get("hollow")
	require.True(t, ok)
	assert.False(t, m.CanLoad())
	assert.NotEmpty(t, m.Diagnose().StaticReasons)
}

func TestService_SetEnabledPersistsDescriptor(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStack(t)
	s.writeMod(t, descriptorFor("toggle-me", mod.ContentAssets), false)

	_, err := s.service.Scan(ctx)
	require.NoError(t, err)

	_, err = s.service.SetEnabled(ctx, "toggle-me", false, true)
	require.NoError(t, err)

	saved, err := mod.LoadDescriptor(filepath.Join(s.root, "toggle-me", mod.DescriptorFileName))
	require.NoError(t, err)
	assert.False(t, saved.Enabled)
}

func TestService_DisablingDependencyIsReportedOnRescan(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStack(t)
	s.writeMod(t, descriptorFor("base", mod.ContentAssets), false)

	top := descriptorFor("top", mod.ContentAssets)
	top.Dependencies = []string{"base"}
	s.writeMod(t, top, false)

	resolution, err := s.service.Scan(ctx)
	require.NoError(t, err)
	require.False(t, resolution.HasProblems())

	resolution, err = s.service.SetEnabled(ctx, "base", false, false)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"top": {"base"}}, resolution.Disabled)

	// Reported, not blocking.
	m, _ := s.service.Get("top")
	assert.True(t, m.CanLoad())
}

func TestService_UnknownModID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStack(t)
	_, err := s.service.Scan(ctx)
	require.NoError(t, err)

	assert.ErrorIs(t, s.service.Load(ctx, "nope"), mod.ErrModNotFound)
	assert.ErrorIs(t, s.service.Unload(ctx, "nope"), mod.ErrModNotFound)
	_, err = s.service.SetEnabled(ctx, "nope", true, false)
	assert.ErrorIs(t, err, mod.ErrModNotFound)
}

func TestService_RescanRebuildsUnits(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStack(t)
	s.writeMod(t, descriptorFor("stable", mod.ContentAssets), false)

	_, err := s.service.Scan(ctx)
	require.NoError(t, err)
	first, _ := s.service.Get("stable")

	_, err = s.service.Scan(ctx)
	require.NoError(t, err)
	second, ok := s.service.Get("stable")
	require.True(t, ok)
	assert.NotSame(t, first, second, "rescan rebuilds every unit")
}
