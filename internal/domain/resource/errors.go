package resource

import (
	"errors"
	"fmt"
)

// ErrTickBudget indicates the driver's tick budget ran out before every
// resource went idle.
var ErrTickBudget = errors.New("tick budget exhausted before resources went idle")

// LoadError indicates a resource failed to load. The resource has already
// been invalidated and returned to the unloaded state when this is seen.
type LoadError struct {
	Resource string
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading resource %q: %v", e.Resource, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// IsLoadError returns true if the error is a resource load failure.
func IsLoadError(err error) bool {
	var loadErr *LoadError
	return errors.As(err, &loadErr)
}
