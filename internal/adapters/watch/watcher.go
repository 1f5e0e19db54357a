// Package watch triggers rescans when the mods root changes on disk.
package watch

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/felixgeelhaar/modkit/internal/ports"
)

// Watcher observes a mods root and invokes a callback after changes settle.
// Events are debounced: editors and installers touch many files in a burst,
// and one rescan at the end covers all of them.
type Watcher struct {
	root     string
	debounce time.Duration
	onChange func(ctx context.Context)
	logger   ports.Logger

	fw *fsnotify.Watcher
}

// New creates a watcher over the given root. The callback runs on the
// watcher goroutine; it must not block indefinitely.
func New(root string, debounce time.Duration, onChange func(ctx context.Context), logger ports.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		root:     root,
		debounce: debounce,
		onChange: onChange,
		logger:   logger,
		fw:       fw,
	}, nil
}

// Run watches until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fw.Close()
	if err := w.fw.Add(w.root); err != nil {
		return err
	}

	w.logger.Info(ctx, "watching mods root", ports.F("root", w.root))

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			w.logger.Debug(ctx, "filesystem event",
				ports.F("op", event.Op.String()), ports.F("path", event.Name))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn(ctx, "watch error", ports.F("error", err))

		case <-fire:
			timer = nil
			fire = nil
			w.onChange(ctx)
		}
	}
}
