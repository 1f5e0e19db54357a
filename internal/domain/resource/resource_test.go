package resource

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/modkit/internal/adapters/logging"
)

// stepHooks loads in a fixed number of cooperative steps and winds back one
// step per cancel tick.
type stepHooks struct {
	NopHooks
	total   int
	done    int
	gated   bool
	loadErr error
}

func (h *stepHooks) CanLoad() bool { return !h.gated }

func (h *stepHooks) LoadNow(_ context.Context) error {
	if h.loadErr != nil {
		return h.loadErr
	}
	h.done = h.total
	return nil
}

func (h *stepHooks) BeginLoad(_ context.Context) error {
	if h.loadErr != nil {
		return h.loadErr
	}
	h.done = 0
	return nil
}

func (h *stepHooks) Step(_ context.Context) (bool, error) {
	if h.done < h.total {
		h.done++
	}
	return h.done == h.total, nil
}

func (h *stepHooks) Progress() float64 {
	if h.total == 0 {
		return 1
	}
	return float64(h.done) / float64(h.total)
}

func (h *stepHooks) CancelStep(_ context.Context) bool {
	if h.done > 0 {
		h.done--
	}
	return h.done == 0
}

func (h *stepHooks) Release(_ context.Context) error {
	h.done = 0
	return nil
}

func newTestHandle(t *testing.T, hooks Hooks) *Handle {
	t.Helper()
	h, err := NewHandle("test", hooks, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(h.Close)
	return h
}

func recordNotifications(h *Handle) *[]Notification {
	var got []Notification
	h.Subscribe(func(n Notification) {
		got = append(got, n)
	})
	return &got
}

func countKind(ns []Notification, kind NotificationKind) int {
	count := 0
	for _, n := range ns {
		if n.Kind == kind {
			count++
		}
	}
	return count
}

func TestHandle_InitialState(t *testing.T) {
	t.Parallel()

	h := newTestHandle(t, &stepHooks{total: 1})
	assert.Equal(t, StateUnloaded, h.State())
	assert.True(t, h.Valid())
	assert.True(t, h.CanLoad())
	assert.False(t, h.IsBusy())
	assert.Equal(t, 0.0, h.Progress())
}

func TestHandle_LoadSync(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newTestHandle(t, &stepHooks{total: 3})
	got := recordNotifications(h)

	require.NoError(t, h.Load(ctx))

	assert.Equal(t, StateLoaded, h.State())
	assert.Equal(t, 1.0, h.Progress())
	require.Len(t, *got, 1)
	assert.Equal(t, NotifyLoaded, (*got)[0].Kind)
	assert.NotEmpty(t, (*got)[0].Attempt)
}

func TestHandle_LoadAsync_TicksToLoaded(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newTestHandle(t, &stepHooks{total: 3})
	got := recordNotifications(h)

	require.NoError(t, h.LoadAsync(ctx))
	assert.Equal(t, StateLoading, h.State())
	assert.True(t, h.IsBusy())

	h.Tick(ctx)
	assert.Equal(t, StateLoading, h.State())
	assert.InDelta(t, 1.0/3.0, h.Progress(), 1e-9)

	h.Tick(ctx)
	h.Tick(ctx)
	assert.Equal(t, StateLoaded, h.State())
	assert.Equal(t, 1.0, h.Progress())
	assert.Equal(t, 1, countKind(*got, NotifyLoaded))
}

func TestHandle_LoadWhileLoadedIsNoOp(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newTestHandle(t, &stepHooks{total: 1})
	got := recordNotifications(h)

	require.NoError(t, h.Load(ctx))
	require.NoError(t, h.Load(ctx))

	assert.Equal(t, StateLoaded, h.State())
	assert.Equal(t, 1, countKind(*got, NotifyLoaded))
}

func TestHandle_GatedLoadIsSilentNoOp(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newTestHandle(t, &stepHooks{total: 1, gated: true})
	got := recordNotifications(h)

	require.NoError(t, h.Load(ctx))
	assert.Equal(t, StateUnloaded, h.State())
	assert.Empty(t, *got)

	require.NoError(t, h.LoadAsync(ctx))
	assert.Equal(t, StateUnloaded, h.State())
	assert.Empty(t, *got)
}

func TestHandle_InvalidIsSticky(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newTestHandle(t, &stepHooks{total: 1})

	h.Invalidate()

	assert.False(t, h.Valid())
	assert.False(t, h.CanLoad())
	require.NoError(t, h.Load(ctx))
	assert.Equal(t, StateUnloaded, h.State())
}

func TestHandle_LoadFailureInvalidates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cause := errors.New("boom")
	h := newTestHandle(t, &stepHooks{total: 1, loadErr: cause})
	got := recordNotifications(h)

	err := h.Load(ctx)
	require.Error(t, err)

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "test", loadErr.Resource)
	assert.ErrorIs(t, err, cause)

	assert.Equal(t, StateUnloaded, h.State())
	assert.False(t, h.Valid())
	assert.False(t, h.CanLoad())
	assert.Empty(t, *got)
}

func TestHandle_UnloadIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newTestHandle(t, &stepHooks{total: 1})
	got := recordNotifications(h)

	// Unloading an unloaded resource fires nothing.
	require.NoError(t, h.Unload(ctx))
	assert.Empty(t, *got)

	require.NoError(t, h.Load(ctx))
	require.NoError(t, h.Unload(ctx))
	assert.Equal(t, StateUnloaded, h.State())
	assert.Equal(t, 1, countKind(*got, NotifyUnloaded))

	require.NoError(t, h.Unload(ctx))
	assert.Equal(t, 1, countKind(*got, NotifyUnloaded))
}

func TestHandle_CancelMidLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newTestHandle(t, &stepHooks{total: 3})
	got := recordNotifications(h)

	require.NoError(t, h.LoadAsync(ctx))
	h.Tick(ctx)
	require.Equal(t, StateLoading, h.State())

	require.NoError(t, h.Unload(ctx))
	assert.Equal(t, StateCancelling, h.State())
	assert.True(t, h.IsBusy())

	for h.State() == StateCancelling {
		h.Tick(ctx)
	}

	assert.Equal(t, StateUnloaded, h.State())
	assert.Equal(t, 0.0, h.Progress())
	assert.Equal(t, 0, countKind(*got, NotifyLoaded))
	assert.Equal(t, 1, countKind(*got, NotifyLoadCancelled))
}

func TestHandle_UnloadWhileCancellingCompletesSynchronously(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newTestHandle(t, &stepHooks{total: 3})
	got := recordNotifications(h)

	require.NoError(t, h.LoadAsync(ctx))
	h.Tick(ctx)
	h.Tick(ctx)
	require.NoError(t, h.Unload(ctx))
	require.Equal(t, StateCancelling, h.State())

	require.NoError(t, h.Unload(ctx))
	assert.Equal(t, StateUnloaded, h.State())
	assert.Equal(t, 1, countKind(*got, NotifyLoadCancelled))
}

func TestHandle_ResumeMidCancelPreservesProgress(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	hooks := &stepHooks{total: 4}
	h := newTestHandle(t, hooks)
	got := recordNotifications(h)

	require.NoError(t, h.LoadAsync(ctx))
	h.Tick(ctx)
	h.Tick(ctx)
	h.Tick(ctx)
	require.NoError(t, h.Unload(ctx))
	require.Equal(t, StateCancelling, h.State())
	h.Tick(ctx)
	require.Equal(t, 2, hooks.done)

	// Requesting a load mid-cancel resumes in place.
	require.NoError(t, h.LoadAsync(ctx))
	assert.Equal(t, StateLoading, h.State())
	assert.Equal(t, 2, hooks.done)

	h.Tick(ctx)
	h.Tick(ctx)
	assert.Equal(t, StateLoaded, h.State())
	assert.Equal(t, 0, countKind(*got, NotifyLoadCancelled))
	assert.Equal(t, 1, countKind(*got, NotifyLoaded))
}

func TestHandle_SyncLoadFromCancellingRunsToCompletion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newTestHandle(t, &stepHooks{total: 3})

	require.NoError(t, h.LoadAsync(ctx))
	h.Tick(ctx)
	require.NoError(t, h.Unload(ctx))
	require.Equal(t, StateCancelling, h.State())

	require.NoError(t, h.Load(ctx))
	assert.Equal(t, StateLoaded, h.State())
}

func TestHandle_SubscribeUnsubscribe(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newTestHandle(t, &stepHooks{total: 1})

	calls := 0
	cancel := h.Subscribe(func(Notification) { calls++ })
	require.NoError(t, h.Load(ctx))
	assert.Equal(t, 1, calls)

	cancel()
	require.NoError(t, h.Unload(ctx))
	assert.Equal(t, 1, calls)
}

func TestHandle_NewAttemptPerLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newTestHandle(t, &stepHooks{total: 1})
	got := recordNotifications(h)

	require.NoError(t, h.Load(ctx))
	require.NoError(t, h.Unload(ctx))
	require.NoError(t, h.Load(ctx))

	loaded := make([]string, 0, 2)
	for _, n := range *got {
		if n.Kind == NotifyLoaded {
			loaded = append(loaded, n.Attempt)
		}
	}
	require.Len(t, loaded, 2)
	assert.NotEqual(t, loaded[0], loaded[1])
}
