package resource

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/modkit/internal/ports"
)

// Driver is the cooperative scheduler for asynchronous lifecycle work.
// The host frame loop (or a test) calls Tick once per frame; each tick
// advances every busy resource by one bounded unit of work. There is no
// true parallelism: in-flight loads interleave on the caller's goroutine,
// so state transitions are atomic with respect to the scheduler.
type Driver struct {
	mu        sync.Mutex
	resources []Resource
	logger    ports.Logger
}

// NewDriver creates an empty driver.
func NewDriver(logger ports.Logger) *Driver {
	return &Driver{logger: logger}
}

// Add registers a resource with the scheduler. Idle resources cost one
// state check per tick.
func (d *Driver) Add(r Resource) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resources = append(d.resources, r)
}

// Remove unregisters the resource with the given name.
func (d *Driver) Remove(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.resources[:0]
	for _, r := range d.resources {
		if r.Name() != name {
			kept = append(kept, r)
		}
	}
	d.resources = kept
}

// Tick advances every busy resource by one unit of work and reports
// whether any resource is still busy afterwards.
func (d *Driver) Tick(ctx context.Context) bool {
	d.mu.Lock()
	snapshot := make([]Resource, len(d.resources))
	copy(snapshot, d.resources)
	d.mu.Unlock()

	busy := false
	for _, r := range snapshot {
		if r.IsBusy() {
			r.Tick(ctx)
		}
		if r.IsBusy() {
			busy = true
		}
	}
	return busy
}

// Run ticks until all resources are idle or the tick budget is exhausted.
// A zero or negative budget means unbounded.
func (d *Driver) Run(ctx context.Context, maxTicks int) error {
	for ticks := 0; ; ticks++ {
		if maxTicks > 0 && ticks >= maxTicks {
			return ErrTickBudget
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Tick(ctx) {
			return nil
		}
	}
}
