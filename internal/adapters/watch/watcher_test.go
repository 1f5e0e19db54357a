package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/modkit/internal/adapters/logging"
)

func TestWatcher_TriggersOnChange(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	changed := make(chan struct{}, 1)

	w, err := New(root, 50*time.Millisecond, func(context.Context) {
		select {
		case changed <- struct{}{}:
		default:
		}
	}, logging.NewNopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher a moment to arm before touching the root.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "new-mod"), []byte("x"), 0o644))

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never reported the change")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWatcher_MissingRoot(t *testing.T) {
	t.Parallel()

	w, err := New(filepath.Join(t.TempDir(), "nope"), 0, func(context.Context) {}, logging.NewNopLogger())
	require.NoError(t, err)

	err = w.Run(context.Background())
	assert.Error(t, err)
}
