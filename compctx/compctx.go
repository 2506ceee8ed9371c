// Package compctx implements the compute core's ambient context (C7,
// spec.md §5): a stack of {driver, device, stream, datatype,
// unchecked} that lets call sites omit arguments they've already fixed
// for a block of code, with missing required fields falling back
// through enclosing WithContext calls before failing with
// NoContextError. The stack is process-wide and shared by every
// goroutine, not per-goroutine: WithContext calls running concurrently
// on different goroutines push and pop frames on the same stack.
package compctx

import (
	"sync"

	"github.com/arbalest-compute/compute/driver"
	"github.com/arbalest-compute/compute/dtype"
	"github.com/arbalest-compute/compute/errs"
)

// Context is one frame of ambient state. Use Override, not Context
// directly, to enter a new frame — Override's pointer fields
// distinguish "not set, fall back to the enclosing frame" from "set
// to the zero value".
type Context struct {
	Driver      driver.Driver
	Device      driver.Device
	Stream      driver.Stream
	Datatype    dtype.Datatype
	HasDatatype bool
	Unchecked   bool
}

// Override specifies which Context fields a WithContext call changes
// relative to the enclosing frame; a nil field inherits unchanged.
type Override struct {
	Driver    driver.Driver
	Device    driver.Device
	Stream    driver.Stream
	Datatype  *dtype.Datatype
	Unchecked *bool
}

var state struct {
	sync.Mutex
	stack []Context
}

// Current returns the innermost active context on the process-wide
// stack, or the zero Context and false if no WithContext call is
// active.
func Current() (Context, bool) {
	state.Lock()
	defer state.Unlock()
	if len(state.stack) == 0 {
		return Context{}, false
	}
	return state.stack[len(state.stack)-1], true
}

// WithContext pushes a new frame built from the enclosing frame (if
// any) with o's explicit overrides applied, runs body, and pops the
// frame on return.
func WithContext(o Override, body func() error) error {
	base, _ := Current()
	next := base
	if o.Driver != nil {
		next.Driver = o.Driver
	}
	if o.Device != nil {
		next.Device = o.Device
	}
	if o.Stream != nil {
		next.Stream = o.Stream
	}
	if o.Datatype != nil {
		next.Datatype = *o.Datatype
		next.HasDatatype = true
	}
	if o.Unchecked != nil {
		next.Unchecked = *o.Unchecked
	}

	state.Lock()
	state.stack = append(state.stack, next)
	state.Unlock()
	defer func() {
		state.Lock()
		state.stack = state.stack[:len(state.stack)-1]
		state.Unlock()
	}()

	return body()
}

// RequireDriver returns the active context's driver, or NoContextError
// if none is set.
func RequireDriver() (driver.Driver, error) {
	c, ok := Current()
	if !ok || c.Driver == nil {
		return nil, errs.NewNoContextError("driver")
	}
	return c.Driver, nil
}

// RequireDevice returns the active context's device, or NoContextError
// if none is set.
func RequireDevice() (driver.Device, error) {
	c, ok := Current()
	if !ok || c.Device == nil {
		return nil, errs.NewNoContextError("device")
	}
	return c.Device, nil
}

// RequireStream returns the active context's stream, or NoContextError
// if none is set.
func RequireStream() (driver.Stream, error) {
	c, ok := Current()
	if !ok || c.Stream == nil {
		return nil, errs.NewNoContextError("stream")
	}
	return c.Stream, nil
}

// RequireDatatype returns the active context's default datatype, or
// NoContextError if none is set.
func RequireDatatype() (dtype.Datatype, error) {
	c, ok := Current()
	if !ok || !c.HasDatatype {
		return 0, errs.NewNoContextError("datatype")
	}
	return c.Datatype, nil
}

// UncheckedOrDefault returns the active context's Unchecked flag, or
// def if no context is active. Unlike the other fields, Unchecked is
// never a hard requirement — callers always have a sensible default.
func UncheckedOrDefault(def bool) bool {
	c, ok := Current()
	if !ok {
		return def
	}
	return c.Unchecked
}
