package mod

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for programmatic error handling.
var (
	// ErrNilMod indicates a nil mod was provided.
	ErrNilMod = errors.New("mod cannot be nil")
	// ErrEmptyModID indicates a mod id was empty.
	ErrEmptyModID = errors.New("mod id cannot be empty")
	// ErrDescriptorNotFound indicates mod.json was not found.
	ErrDescriptorNotFound = errors.New("mod.json not found")
	// ErrModNotFound indicates no mod with the requested id is known.
	ErrModNotFound = errors.New("mod not found")
)

// ModExistsError indicates a mod id is already registered.
type ModExistsError struct {
	ID string
}

func (e *ModExistsError) Error() string {
	return fmt.Sprintf("mod %q already registered", e.ID)
}

// IsModExists returns true if the error indicates a mod already exists.
func IsModExists(err error) bool {
	var existsErr *ModExistsError
	return errors.As(err, &existsErr)
}

// ValidationError collects multiple validation failures.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0]
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Errors, "; "))
}

// Add adds an error message to the collection.
func (e *ValidationError) Add(msg string) {
	e.Errors = append(e.Errors, msg)
}

// Addf adds a formatted error message to the collection.
func (e *ValidationError) Addf(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are validation errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// IsValidationError returns true if the error is a validation error.
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// DescriptorSizeError indicates a descriptor exceeds the size limit.
type DescriptorSizeError struct {
	Size  int64
	Limit int64
}

func (e *DescriptorSizeError) Error() string {
	return fmt.Sprintf("descriptor size %d bytes exceeds limit of %d bytes", e.Size, e.Limit)
}

// IsDescriptorSizeError returns true if the error is a descriptor size
// violation.
func IsDescriptorSizeError(err error) bool {
	var sizeErr *DescriptorSizeError
	return errors.As(err, &sizeErr)
}

// DiscoveryError represents an error constructing a specific mod.
type DiscoveryError struct {
	Path string
	Err  error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("loading mod at %s: %v", e.Path, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// DiscoveryResult captures both successful constructions and errors.
type DiscoveryResult struct {
	Mods   []*Mod
	Errors []DiscoveryError
}

// HasErrors returns true if there were errors during discovery.
func (r *DiscoveryResult) HasErrors() bool {
	return len(r.Errors) > 0
}
