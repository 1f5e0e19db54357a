package resource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/modkit/internal/adapters/logging"
)

func TestDriver_InterleavesLoads(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := NewDriver(logging.NewNopLogger())

	a := newTestHandle(t, &stepHooks{total: 2})
	b := newTestHandle(t, &stepHooks{total: 5})
	d.Add(a)
	d.Add(b)

	require.NoError(t, a.LoadAsync(ctx))
	require.NoError(t, b.LoadAsync(ctx))

	// Two ticks finish a; b keeps the driver busy.
	assert.True(t, d.Tick(ctx))
	assert.True(t, d.Tick(ctx))
	assert.Equal(t, StateLoaded, a.State())
	assert.Equal(t, StateLoading, b.State())

	require.NoError(t, d.Run(ctx, 0))
	assert.Equal(t, StateLoaded, b.State())
	assert.False(t, d.Tick(ctx))
}

func TestDriver_TickBudget(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newTestHandle(t, &stepHooks{total: 10})
	d := NewDriver(logging.NewNopLogger())
	d.Add(h)

	require.NoError(t, h.LoadAsync(ctx))
	err := d.Run(ctx, 3)
	assert.ErrorIs(t, err, ErrTickBudget)
	assert.Equal(t, StateLoading, h.State())

	require.NoError(t, d.Run(ctx, 0))
	assert.Equal(t, StateLoaded, h.State())
}

func TestDriver_Remove(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newTestHandle(t, &stepHooks{total: 3})
	d := NewDriver(logging.NewNopLogger())
	d.Add(h)

	require.NoError(t, h.LoadAsync(ctx))
	d.Remove("test")
	assert.False(t, d.Tick(ctx))
	assert.Equal(t, StateLoading, h.State())
}
