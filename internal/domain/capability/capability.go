// Package capability provides the capability-based instance registry: host
// code asks a loaded mod for "all live instances implementing capability X"
// without knowing the concrete types the mod's code modules contribute.
package capability

import (
	"errors"
	"fmt"
)

// Handler is the notification contract exposed to loaded code. A provider
// that declares the Handler capability gets told about its mod's lifecycle.
const Handler = "mod.handler"

// LifecycleHandler is implemented by instances registered under the Handler
// capability.
type LifecycleHandler interface {
	// OnLoaded is invoked once per instance after the owning mod reaches
	// the loaded state. The handle is the owning mod.
	OnLoaded(handle interface{})

	// OnUnloaded is invoked once per instance before the owning mod's
	// sub-resources are released.
	OnUnloaded()
}

// Provider describes one concrete type contributed by a loaded code module:
// which capabilities it implements, whether its instances live in the scene
// graph, and how to construct one.
type Provider interface {
	// TypeName returns the concrete type identity. At most one instance
	// per type name is ever cached for a loaded mod.
	TypeName() string

	// Capabilities returns the capability names this type implements.
	Capabilities() []string

	// SceneResident reports whether instances of this type are expected
	// to already exist in the live scene graph rather than be constructed.
	SceneResident() bool

	// New constructs one instance using the capability's constructor
	// arguments contract. Returns ErrNoConstructor when the type has no
	// constructor matching the given arguments.
	New(args ...interface{}) (interface{}, error)
}

// ErrNoConstructor indicates a provider has no constructor matching the
// requested arguments. Queries record it as a warning and skip the type.
var ErrNoConstructor = errors.New("no matching constructor")

// ConstructionError indicates constructing an instance failed for a reason
// other than a missing constructor.
type ConstructionError struct {
	TypeName string
	Err      error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("constructing %q: %v", e.TypeName, e.Err)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}

// FuncProvider is a Provider built from plain values, used by host-native
// code modules and tests.
type FuncProvider struct {
	Type         string
	Caps         []string
	InSceneGraph bool
	Constructor  func(args ...interface{}) (interface{}, error)
}

// TypeName returns the concrete type identity.
func (p *FuncProvider) TypeName() string { return p.Type }

// Capabilities returns the declared capability names.
func (p *FuncProvider) Capabilities() []string { return p.Caps }

// SceneResident reports whether instances live in the scene graph.
func (p *FuncProvider) SceneResident() bool { return p.InSceneGraph }

// New constructs an instance, or reports ErrNoConstructor when the
// provider has none.
func (p *FuncProvider) New(args ...interface{}) (interface{}, error) {
	if p.Constructor == nil {
		return nil, ErrNoConstructor
	}
	return p.Constructor(args...)
}

// Ensure FuncProvider implements Provider.
var _ Provider = (*FuncProvider)(nil)
