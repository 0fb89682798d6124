package typeregistry

import (
	"errors"
	"fmt"
)

var (
	ErrTypeNotFound      = errors.New("type not found")
	ErrTypeInstantiation = errors.New("type instantiation failed")
	ErrNotInstantiable   = errors.New("type has no zero-argument constructor")
	ErrDuplicateType     = errors.New("type already registered")
	ErrNilInstance       = errors.New("constructor returned nil")
)

// TypeNotFoundError reports a type name with no loaded type behind it.
// The name comes from user configuration, so this is a configuration error.
type TypeNotFoundError struct {
	Name string
}

func (e *TypeNotFoundError) Error() string {
	return fmt.Sprintf("type not found: %s", e.Name)
}

func (e *TypeNotFoundError) Is(target error) bool {
	return target == ErrTypeNotFound
}

// TypeInstantiationError reports a type that resolved but could not be used,
// either because construction failed or because it has the wrong shape.
type TypeInstantiationError struct {
	Name  string
	Cause error
}

func (e *TypeInstantiationError) Error() string {
	return fmt.Sprintf("failed to instantiate type %s: %v", e.Name, e.Cause)
}

func (e *TypeInstantiationError) Is(target error) bool {
	return target == ErrTypeInstantiation
}

func (e *TypeInstantiationError) Unwrap() error {
	return e.Cause
}
