// Package errs defines the typed error kinds raised across the compute
// core. Callers type-switch on the concrete kind for dispatch-boundary
// decisions. The kinds that carry an underlying error (ShapeError built
// by WrapShapeError, DeviceError, ResourceError) attach a stack to it
// with github.com/pkg/errors' WithStack and expose it through Unwrap,
// so the standard library's errors.Is/As/Unwrap reach it; the other
// kinds carry only a message.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// ShapeError reports a shape or stride incompatibility: a failed
// reshape, a gemm dimension mismatch, or an incommensurate broadcast.
type ShapeError struct {
	msg   string
	cause error
}

func (e *ShapeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("shape error: %s: %v", e.msg, e.cause)
	}
	return "shape error: " + e.msg
}

func (e *ShapeError) Unwrap() error { return e.cause }

// NewShapeError builds a ShapeError from a formatted message.
func NewShapeError(format string, args ...any) error {
	return &ShapeError{msg: fmt.Sprintf(format, args...)}
}

// WrapShapeError attaches msg as context for cause and tags it ShapeError.
func WrapShapeError(cause error, format string, args ...any) error {
	return &ShapeError{msg: fmt.Sprintf(format, args...), cause: errors.WithStack(cause)}
}

// AliasError reports disallowed aliasing between operation arguments.
type AliasError struct{ msg string }

func (e *AliasError) Error() string { return "alias error: " + e.msg }

func NewAliasError(format string, args ...any) error {
	return &AliasError{msg: fmt.Sprintf(format, args...)}
}

// SelectError reports a non-monotonic or non-contiguous select index set.
type SelectError struct{ msg string }

func (e *SelectError) Error() string { return "select error: " + e.msg }

func NewSelectError(format string, args ...any) error {
	return &SelectError{msg: fmt.Sprintf(format, args...)}
}

// DomainError reports an out-of-range numeric conversion under
// unchecked=false.
type DomainError struct{ msg string }

func (e *DomainError) Error() string { return "domain error: " + e.msg }

func NewDomainError(format string, args ...any) error {
	return &DomainError{msg: fmt.Sprintf(format, args...)}
}

// DeviceError carries a backend-raised failure (OOM, kernel fault)
// verbatim, as spec.md §7 requires: the core never retries and never
// rewrites the backend's message.
type DeviceError struct {
	Backend string
	cause   error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device error (%s): %v", e.Backend, e.cause)
}

func (e *DeviceError) Unwrap() error { return e.cause }

// NewDeviceError wraps a backend failure with the backend's name.
func NewDeviceError(backend string, cause error) error {
	return &DeviceError{Backend: backend, cause: errors.WithStack(cause)}
}

// CrossDriverError reports an operation spanning two drivers.
type CrossDriverError struct{ A, B string }

func (e *CrossDriverError) Error() string {
	return fmt.Sprintf("cross-driver error: stream on driver %q cannot sync with stream on driver %q", e.A, e.B)
}

func NewCrossDriverError(a, b string) error {
	return &CrossDriverError{A: a, B: b}
}

// NoContextError reports a required ambient context field that was
// never set and has no explicit override.
type NoContextError struct{ Field string }

func (e *NoContextError) Error() string {
	return fmt.Sprintf("no context error: required field %q has no active context and no explicit override", e.Field)
}

func NewNoContextError(field string) error {
	return &NoContextError{Field: field}
}

// UnknownDriverError reports a registry miss.
type UnknownDriverError struct{ Name string }

func (e *UnknownDriverError) Error() string {
	return fmt.Sprintf("unknown driver error: no driver registered under name %q", e.Name)
}

func NewUnknownDriverError(name string) error {
	return &UnknownDriverError{Name: name}
}

// ResourceError aggregates one or more failures encountered while
// releasing a resource scope (spec.md §4.1): the first failure is
// reported as the primary cause, subsequent failures are chained
// underneath it so none are silently dropped.
type ResourceError struct {
	Failures []error
}

func (e *ResourceError) Error() string {
	if len(e.Failures) == 0 {
		return "resource error: release failed"
	}
	if len(e.Failures) == 1 {
		return fmt.Sprintf("resource error: %v", e.Failures[0])
	}
	return fmt.Sprintf("resource error: %v (and %d more release failure(s))", e.Failures[0], len(e.Failures)-1)
}

func (e *ResourceError) Unwrap() error {
	if len(e.Failures) == 0 {
		return nil
	}
	return e.Failures[0]
}

// NewResourceError aggregates release failures in the order given;
// Scope's release passes them in release order (reverse registration
// order), so the first entry is the first failure encountered. It
// returns nil if failures is empty.
func NewResourceError(failures []error) error {
	if len(failures) == 0 {
		return nil
	}
	wrapped := make([]error, len(failures))
	for i, f := range failures {
		wrapped[i] = errors.WithStack(f)
	}
	return &ResourceError{Failures: wrapped}
}
