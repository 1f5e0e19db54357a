// Package resource provides the base lifecycle abstraction for loadable
// content: a cancellable, resumable state machine with cooperative
// asynchronous loading and at-most-once lifecycle notifications.
package resource

import (
	"context"
	"fmt"
	"sync"

	"github.com/felixgeelhaar/statekit"
	"github.com/google/uuid"

	"github.com/felixgeelhaar/modkit/internal/ports"
)

// State represents a resource's load state.
type State string

const (
	// StateUnloaded indicates no content is held. Initial state.
	StateUnloaded State = "unloaded"
	// StateLoading indicates a load is in flight.
	StateLoading State = "loading"
	// StateLoaded indicates the content is fully loaded.
	StateLoaded State = "loaded"
	// StateUnloading indicates content is being released.
	StateUnloading State = "unloading"
	// StateCancelling indicates an in-flight load is being wound back.
	StateCancelling State = "cancelling"
)

// Event types for the lifecycle state machine.
const (
	eventLoad      = "LOAD"
	eventLoaded    = "LOADED"
	eventUnload    = "UNLOAD"
	eventUnloaded  = "UNLOADED"
	eventCancel    = "CANCEL"
	eventCancelled = "CANCELLED"
	eventResume    = "RESUME"
	eventFail      = "FAIL"
)

// NotificationKind identifies a lifecycle notification.
type NotificationKind string

const (
	// NotifyLoaded fires once when a load attempt completes.
	NotifyLoaded NotificationKind = "loaded"
	// NotifyUnloaded fires once per unload transition.
	NotifyUnloaded NotificationKind = "unloaded"
	// NotifyLoadCancelled fires once when a cancelled load attempt has
	// fully wound back.
	NotifyLoadCancelled NotificationKind = "load-cancelled"
)

// Notification is delivered to subscribers on lifecycle transitions.
type Notification struct {
	// Kind identifies the transition.
	Kind NotificationKind
	// Resource is the name of the resource that transitioned.
	Resource string
	// Attempt identifies the load attempt the notification belongs to.
	// Empty for unload notifications.
	Attempt string
}

// Hooks is the contract a concrete resource implements to participate in
// the lifecycle. The Handle drives hooks; hooks never drive the Handle.
type Hooks interface {
	// CanLoad re-runs the concrete resource's static checks.
	CanLoad() bool

	// LoadNow performs the entire load synchronously.
	LoadNow(ctx context.Context) error

	// BeginLoad starts an asynchronous load. Eager work that later steps
	// depend on happens here.
	BeginLoad(ctx context.Context) error

	// Step advances an in-flight load by one bounded unit of work.
	Step(ctx context.Context) (done bool, err error)

	// Progress reports load completion in [0,1].
	Progress() float64

	// BeginCancel requests cancellation of an in-flight load.
	BeginCancel(ctx context.Context)

	// CancelStep advances cancellation by one bounded unit of work and
	// reports whether every in-flight sub-operation has wound back.
	CancelStep(ctx context.Context) (done bool)

	// Resume re-issues the load for work still mid-cancel.
	Resume(ctx context.Context)

	// Release frees loaded content during unload.
	Release(ctx context.Context) error
}

// NopHooks is a Hooks implementation that loads nothing.
// Embed it to implement only the hooks a concrete resource needs.
type NopHooks struct{}

// CanLoad reports true.
func (NopHooks) CanLoad() bool { return true }

// LoadNow does nothing.
func (NopHooks) LoadNow(_ context.Context) error { return nil }

// BeginLoad does nothing.
func (NopHooks) BeginLoad(_ context.Context) error { return nil }

// Step reports immediate completion.
func (NopHooks) Step(_ context.Context) (bool, error) { return true, nil }

// Progress reports full completion.
func (NopHooks) Progress() float64 { return 1 }

// BeginCancel does nothing.
func (NopHooks) BeginCancel(_ context.Context) {}

// CancelStep reports immediate completion.
func (NopHooks) CancelStep(_ context.Context) bool { return true }

// Resume does nothing.
func (NopHooks) Resume(_ context.Context) {}

// Release does nothing.
func (NopHooks) Release(_ context.Context) error { return nil }

// Ensure NopHooks implements Hooks.
var _ Hooks = NopHooks{}

// Resource is the lifecycle surface every loadable unit exposes.
type Resource interface {
	// Name returns the resource identity.
	Name() string

	// State returns the current load state.
	State() State

	// Progress returns load completion in [0,1].
	Progress() float64

	// CanLoad reports whether a load may begin. Re-evaluated on each call.
	CanLoad() bool

	// IsBusy reports whether a load, unload, or cancellation is in flight.
	IsBusy() bool

	// Valid reports whether the resource is still usable. Once false it
	// never becomes true again.
	Valid() bool

	// Load loads synchronously. A gated resource is a silent no-op.
	Load(ctx context.Context) error

	// LoadAsync begins a cooperative load driven by Tick. Requesting a
	// load while cancelling resumes in place.
	LoadAsync(ctx context.Context) error

	// Unload releases content. Unloading an unloaded resource is a no-op;
	// unloading mid-load cancels the load.
	Unload(ctx context.Context) error

	// Tick advances in-flight work by one bounded unit.
	Tick(ctx context.Context)

	// Subscribe registers a notification observer. The returned function
	// removes it.
	Subscribe(fn func(Notification)) func()

	// Close releases the lifecycle machinery at teardown. The resource
	// must not be used afterwards.
	Close()
}

// lifecycle is the statekit context type. The Handle keeps its own mutable
// state under a mutex, so the machine context stays empty.
type lifecycle struct{}

// Handle implements the lifecycle state machine over a set of Hooks.
// Concrete resources embed a *Handle and supply their hooks at construction.
type Handle struct {
	name   string
	hooks  Hooks
	logger ports.Logger
	interp *statekit.Interpreter[lifecycle]

	mu              sync.Mutex
	valid           bool
	progress        float64
	attempt         uuid.UUID
	loadedNotified  bool
	cancelNotified  bool
	observers       map[int]func(Notification)
	nextObserverKey int
}

// NewHandle creates a lifecycle handle in the unloaded state.
func NewHandle(name string, hooks Hooks, logger ports.Logger) (*Handle, error) {
	machine, err := statekit.NewMachine[lifecycle]("resource-" + name).
		WithInitial(statekit.StateID(StateUnloaded)).
		WithContext(lifecycle{}).
		State(statekit.StateID(StateUnloaded)).
		On(eventLoad).Target(statekit.StateID(StateLoading)).Done().
		State(statekit.StateID(StateLoading)).
		On(eventLoaded).Target(statekit.StateID(StateLoaded)).
		On(eventCancel).Target(statekit.StateID(StateCancelling)).
		On(eventFail).Target(statekit.StateID(StateUnloaded)).Done().
		State(statekit.StateID(StateLoaded)).
		On(eventUnload).Target(statekit.StateID(StateUnloading)).Done().
		State(statekit.StateID(StateUnloading)).
		On(eventUnloaded).Target(statekit.StateID(StateUnloaded)).Done().
		State(statekit.StateID(StateCancelling)).
		On(eventCancelled).Target(statekit.StateID(StateUnloaded)).
		On(eventResume).Target(statekit.StateID(StateLoading)).Done().
		Build()
	if err != nil {
		return nil, fmt.Errorf("building lifecycle machine for %q: %w", name, err)
	}

	interp := statekit.NewInterpreter(machine)
	interp.Start()

	return &Handle{
		name:      name,
		hooks:     hooks,
		logger:    logger,
		interp:    interp,
		valid:     true,
		observers: make(map[int]func(Notification)),
	}, nil
}

// Name returns the resource identity.
func (h *Handle) Name() string {
	return h.name
}

// State returns the current load state.
func (h *Handle) State() State {
	return State(h.interp.State().Value)
}

// Progress returns load completion in [0,1].
func (h *Handle) Progress() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.progress
}

// Valid reports whether the resource is still usable.
func (h *Handle) Valid() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.valid
}

// Invalidate permanently marks the resource unusable.
func (h *Handle) Invalidate() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.valid = false
}

// CanLoad reports whether a load may begin: the resource must still be
// valid and the concrete resource's static checks must pass.
func (h *Handle) CanLoad() bool {
	if !h.Valid() {
		return false
	}
	return h.hooks.CanLoad()
}

// IsBusy reports whether a lifecycle operation is in flight.
func (h *Handle) IsBusy() bool {
	switch h.State() {
	case StateLoading, StateUnloading, StateCancelling:
		return true
	default:
		return false
	}
}

// Attempt returns the identifier of the current load attempt.
func (h *Handle) Attempt() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attempt.String()
}

// Subscribe registers a notification observer.
func (h *Handle) Subscribe(fn func(Notification)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := h.nextObserverKey
	h.nextObserverKey++
	h.observers[key] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.observers, key)
	}
}

// Load loads the resource synchronously. If the gate is closed this is a
// silent no-op; a failure during load invalidates the resource and leaves
// it unloaded.
func (h *Handle) Load(ctx context.Context) error {
	switch h.State() {
	case StateLoaded, StateLoading, StateUnloading:
		return nil
	case StateCancelling:
		// Resume the cancelled load and drive it to completion.
		if err := h.LoadAsync(ctx); err != nil {
			return err
		}
		for h.State() == StateLoading {
			h.Tick(ctx)
		}
		return nil
	}

	if !h.CanLoad() {
		h.logger.Debug(ctx, "load gated, skipping", ports.F("resource", h.name))
		return nil
	}

	h.beginAttempt()
	h.send(eventLoad)

	if err := h.hooks.LoadNow(ctx); err != nil {
		return h.fail(ctx, err)
	}

	h.setProgress(1)
	h.send(eventLoaded)
	h.notifyLoadedOnce()
	h.logger.Info(ctx, "resource loaded", ports.F("resource", h.name), ports.F("attempt", h.Attempt()))
	return nil
}

// LoadAsync begins a cooperative load. Work advances on each Tick.
func (h *Handle) LoadAsync(ctx context.Context) error {
	switch h.State() {
	case StateLoaded, StateLoading, StateUnloading:
		return nil
	case StateCancelling:
		// Resume in place rather than restarting from scratch.
		h.send(eventResume)
		h.hooks.Resume(ctx)
		h.logger.Debug(ctx, "load resumed mid-cancel", ports.F("resource", h.name), ports.F("attempt", h.Attempt()))
		return nil
	}

	if !h.CanLoad() {
		h.logger.Debug(ctx, "load gated, skipping", ports.F("resource", h.name))
		return nil
	}

	h.beginAttempt()
	h.send(eventLoad)

	if err := h.hooks.BeginLoad(ctx); err != nil {
		return h.fail(ctx, err)
	}
	return nil
}

// Unload releases the resource. Requesting unload mid-load cancels the
// load; unloading an unloaded resource is a no-op and fires nothing.
func (h *Handle) Unload(ctx context.Context) error {
	switch h.State() {
	case StateUnloaded, StateUnloading:
		return nil

	case StateLoading:
		h.send(eventCancel)
		h.hooks.BeginCancel(ctx)
		h.logger.Debug(ctx, "load cancellation requested", ports.F("resource", h.name), ports.F("attempt", h.Attempt()))
		return nil

	case StateCancelling:
		// Drive the cancellation to completion synchronously.
		for h.State() == StateCancelling {
			if h.hooks.CancelStep(ctx) {
				h.finishCancel(ctx)
			}
		}
		return nil
	}

	h.send(eventUnload)
	err := h.hooks.Release(ctx)
	h.setProgress(0)
	h.send(eventUnloaded)
	h.notify(Notification{Kind: NotifyUnloaded, Resource: h.name})
	if err != nil {
		h.logger.Error(ctx, "release failed during unload", ports.F("resource", h.name), ports.F("error", err))
		return err
	}
	h.logger.Info(ctx, "resource unloaded", ports.F("resource", h.name))
	return nil
}

// Tick advances in-flight work by one bounded unit. Safe to call in any
// state; only loading and cancelling perform work.
func (h *Handle) Tick(ctx context.Context) {
	switch h.State() {
	case StateLoading:
		done, err := h.hooks.Step(ctx)
		h.setProgress(h.hooks.Progress())
		if err != nil {
			_ = h.fail(ctx, err)
			return
		}
		if done {
			h.setProgress(1)
			h.send(eventLoaded)
			h.notifyLoadedOnce()
			h.logger.Info(ctx, "resource loaded", ports.F("resource", h.name), ports.F("attempt", h.Attempt()))
		}

	case StateCancelling:
		if h.hooks.CancelStep(ctx) {
			h.finishCancel(ctx)
		} else {
			h.setProgress(h.hooks.Progress())
		}
	}
}

// Close releases the state machine interpreter. The resource must not be
// used afterwards.
func (h *Handle) Close() {
	h.interp.Stop()
}

// beginAttempt stamps a fresh attempt identity and resets the per-attempt
// notification guards.
func (h *Handle) beginAttempt() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attempt = uuid.New()
	h.loadedNotified = false
	h.cancelNotified = false
}

// fail converts a load error into invalid + unloaded state. The resource
// never gets stuck mid-state.
func (h *Handle) fail(ctx context.Context, cause error) error {
	h.logger.Error(ctx, "load failed, invalidating resource",
		ports.F("resource", h.name), ports.F("attempt", h.Attempt()), ports.F("error", cause))
	h.Invalidate()
	if err := h.hooks.Release(ctx); err != nil {
		h.logger.Warn(ctx, "cleanup after failed load reported an error",
			ports.F("resource", h.name), ports.F("error", err))
	}
	h.setProgress(0)
	h.send(eventFail)
	return &LoadError{Resource: h.name, Err: cause}
}

// finishCancel completes a cancellation: transition to unloaded and fire
// the cancelled notification exactly once for this attempt.
func (h *Handle) finishCancel(ctx context.Context) {
	h.setProgress(0)
	h.send(eventCancelled)

	h.mu.Lock()
	already := h.cancelNotified
	h.cancelNotified = true
	h.mu.Unlock()
	if !already {
		h.notify(Notification{Kind: NotifyLoadCancelled, Resource: h.name, Attempt: h.Attempt()})
	}
	h.logger.Info(ctx, "load cancelled", ports.F("resource", h.name), ports.F("attempt", h.Attempt()))
}

// notifyLoadedOnce fires the loaded notification at most once per attempt.
func (h *Handle) notifyLoadedOnce() {
	h.mu.Lock()
	already := h.loadedNotified
	h.loadedNotified = true
	h.mu.Unlock()
	if !already {
		h.notify(Notification{Kind: NotifyLoaded, Resource: h.name, Attempt: h.Attempt()})
	}
}

// notify delivers a notification to all observers in subscription order.
func (h *Handle) notify(n Notification) {
	h.mu.Lock()
	fns := make([]func(Notification), 0, len(h.observers))
	for key := 0; key < h.nextObserverKey; key++ {
		if fn, ok := h.observers[key]; ok {
			fns = append(fns, fn)
		}
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(n)
	}
}

func (h *Handle) setProgress(p float64) {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	h.mu.Lock()
	h.progress = p
	h.mu.Unlock()
}

func (h *Handle) send(event string) {
	h.interp.Send(statekit.Event{Type: statekit.EventType(event)})
}

// Ensure Handle implements Resource.
var _ Resource = (*Handle)(nil)
