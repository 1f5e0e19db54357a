package code

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/modkit/internal/adapters/logging"
	"github.com/felixgeelhaar/modkit/internal/domain/capability"
	"github.com/felixgeelhaar/modkit/internal/domain/resource"
)

func widgetProvider(typeName string) capability.Provider {
	return &capability.FuncProvider{
		Type: typeName,
		Caps: []string{"cap.widget"},
		Constructor: func(...interface{}) (interface{}, error) {
			return typeName, nil
		},
	}
}

func newCodeResource(t *testing.T, files []string, host Host) *Resource {
	t.Helper()
	r, err := NewResource("code", files, host, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func TestResource_LoadExposesProviders(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	host := NewMemoryHost()
	host.Register("a.bin", widgetProvider("A"))
	host.Register("b.bin", widgetProvider("B"), widgetProvider("C"))

	r := newCodeResource(t, []string{"a.bin", "b.bin"}, host)
	require.True(t, r.CanLoad())
	assert.Empty(t, r.Providers())

	require.NoError(t, r.Load(ctx))
	assert.Equal(t, resource.StateLoaded, r.State())

	providers := r.Providers()
	require.Len(t, providers, 3)
	assert.Equal(t, "A", providers[0].TypeName())
	assert.Equal(t, "B", providers[1].TypeName())
	assert.Equal(t, "C", providers[2].TypeName())
}

func TestResource_GatedWhenBinaryUnavailable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	host := NewMemoryHost()
	host.Register("a.bin", widgetProvider("A"))

	r := newCodeResource(t, []string{"a.bin", "missing.bin"}, host)
	assert.False(t, r.CanLoad())

	require.NoError(t, r.Load(ctx))
	assert.Equal(t, resource.StateUnloaded, r.State())
}

func TestResource_AsyncLoadIsEager(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	host := NewMemoryHost()
	host.Register("a.bin", widgetProvider("A"))

	r := newCodeResource(t, []string{"a.bin"}, host)
	require.NoError(t, r.LoadAsync(ctx))

	// Binaries load eagerly even on the async path; the first tick observes
	// completed work.
	assert.Len(t, r.Providers(), 1)
	r.Tick(ctx)
	assert.Equal(t, resource.StateLoaded, r.State())
}

func TestResource_UnloadDropsProviders(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	host := NewMemoryHost()
	host.Register("a.bin", widgetProvider("A"))

	r := newCodeResource(t, []string{"a.bin"}, host)
	require.NoError(t, r.Load(ctx))
	require.NoError(t, r.Unload(ctx))

	assert.Equal(t, resource.StateUnloaded, r.State())
	assert.Empty(t, r.Providers())
}

func TestResource_EmptyFilesLoadsImmediately(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := newCodeResource(t, nil, NewMemoryHost())

	require.NoError(t, r.Load(ctx))
	assert.Equal(t, resource.StateLoaded, r.State())
	assert.Equal(t, 1.0, r.Progress())
}
