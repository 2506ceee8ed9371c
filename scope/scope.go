// Package scope implements the compute core's resource scope (C1): a
// nestable stack of release callbacks that guarantees every tracked
// resource is released exactly once, in reverse registration order, on
// both normal and failure exit.
package scope

import (
	"sync"

	"github.com/google/uuid"

	"github.com/arbalest-compute/compute/errs"
)

// entry pairs a tracked resource with its release callback and an id
// assigned at Track time. Detach matches entries by resource, not by
// id, and no error message includes the id.
type entry struct {
	id       uuid.UUID
	resource any
	release  func() error
}

// Scope is an ordered stack of release callbacks. The zero value is
// not usable; construct one with New or WithScope.
type Scope struct {
	mu      sync.Mutex
	parent  *Scope
	entries []entry
}

// New creates a root scope with no parent. Most callers should use
// WithScope instead, which also guarantees release.
func New(parent *Scope) *Scope {
	return &Scope{parent: parent}
}

// current holds the ambient "current scope" stack. It is one
// process-wide stack shared by every goroutine, not a per-goroutine
// one: the mutex keeps individual pushes and pops from racing, but
// WithScope calls running concurrently on different goroutines push
// and pop frames on the same stack, so Current can return a scope
// another goroutine pushed.
var current struct {
	sync.Mutex
	stack []*Scope
}

// Current returns the innermost active scope on the process-wide
// stack, or nil if none is active.
func Current() *Scope {
	current.Lock()
	defer current.Unlock()
	if len(current.stack) == 0 {
		return nil
	}
	return current.stack[len(current.stack)-1]
}

func push(s *Scope) {
	current.Lock()
	current.stack = append(current.stack, s)
	current.Unlock()
}

func pop() {
	current.Lock()
	current.stack = current.stack[:len(current.stack)-1]
	current.Unlock()
}

// WithScope pushes a new scope as the current scope, runs body, and
// pops the scope on return, releasing every resource registered on it
// (in reverse order) regardless of whether body panics or returns an
// error. Release failures are aggregated into a ResourceError and
// returned; if body also returned an error, the result is a
// ResourceError whose first failure is body's error, followed by the
// release failures. If body panics, the resources are released and
// the panic is re-raised; release failures are then not reported.
func WithScope(body func(s *Scope) error) (err error) {
	s := New(Current())
	push(s)
	defer func() {
		pop()
		relErr := s.release()
		if p := recover(); p != nil {
			// Resources are still released above before we re-panic.
			panic(p)
		}
		if err != nil {
			if relErr != nil {
				err = errs.NewResourceError(append([]error{err}, relErr))
			}
			return
		}
		err = relErr
	}()
	err = body(s)
	return err
}

// Track registers a release callback on s and returns the resource
// unchanged, so Track composes inline:
//
//	buf := scope.Track(s, allocate(), buf.Release)
func Track[T any](s *Scope, resource T, release func() error) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry{id: uuid.New(), resource: resource, release: release})
	return resource
}

// Detach removes resource's release callback from s without invoking
// it, transferring release responsibility to the caller (typically by
// re-registering it with Track on an outer scope). It is a no-op if
// resource was never tracked on s.
func Detach[T any](s *Scope, resource T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.resource == any(resource) {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return
		}
	}
}

// release runs every non-detached callback in reverse registration
// order. Every callback is attempted even if an earlier one fails; the
// first failure becomes the aggregate's primary cause and the rest are
// chained underneath it.
func (s *Scope) release() error {
	s.mu.Lock()
	entries := s.entries
	s.entries = nil
	s.mu.Unlock()

	var failures []error
	for i := len(entries) - 1; i >= 0; i-- {
		if err := entries[i].release(); err != nil {
			failures = append(failures, err)
		}
	}
	return errs.NewResourceError(failures)
}

// Parent returns the scope that s is nested within, or nil for a root
// scope.
func (s *Scope) Parent() *Scope { return s.parent }
