package core

import (
	"errors"
	"fmt"

	"apt-archive/internal/types"
)

var ErrPoolClosed = errors.New("blocking pool is closed")

type ValidationViolation struct {
	Kind       types.ErrorKind `json:"kind"`
	Repository string          `json:"repo"`
}

func (v ValidationViolation) Message() string {
	switch v.Kind {
	case types.ErrorKindEmptyArchitectures:
		return fmt.Sprintf("repository %q has no architectures", v.Repository)
	case types.ErrorKindEmptyComponents:
		return fmt.Sprintf("repository %q has no components", v.Repository)
	case types.ErrorKindUnknownRepository:
		return fmt.Sprintf("repository %q is not configured", v.Repository)
	default:
		return fmt.Sprintf("repository %q is invalid", v.Repository)
	}
}

// ValidationError rejects a whole batch. Kind and Repository name the first
// violation in request order; Violations holds every violation found, which
// is exactly one in fail-fast mode.
type ValidationError struct {
	Kind       types.ErrorKind
	Repository string
	Violations []ValidationViolation
}

func (e *ValidationError) Error() string {
	first := ValidationViolation{Kind: e.Kind, Repository: e.Repository}
	if len(e.Violations) > 1 {
		return fmt.Sprintf("%s (and %d more violations)", first.Message(), len(e.Violations)-1)
	}
	return first.Message()
}

// BuildError is a failed archive build for one repository.
type BuildError struct {
	Repository string
	Cause      error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("publishing repository %s failed: %v", e.Repository, e.Cause)
}

func (e *BuildError) Unwrap() error {
	return e.Cause
}

type InternalError struct {
	Cause error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error: %v", e.Cause)
}

func (e *InternalError) Unwrap() error {
	return e.Cause
}

// PanicError carries a value recovered from a pooled task.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}
