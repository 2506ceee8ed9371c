// Package tensor implements the compute core's Tensor (C5,
// spec.md §4.5): a dimensions descriptor paired with a device buffer
// handle, plus the view operations (reshape, select, transpose) that
// preserve the aliasing invariants spec.md §3 defines — every view
// shares the source tensor's Buf rather than carving a sub-buffer —
// and the host/device staging operations that move data across the
// boundary.
package tensor

import (
	"github.com/arbalest-compute/compute/dims"
	"github.com/arbalest-compute/compute/driver"
	"github.com/arbalest-compute/compute/dtype"
	"github.com/arbalest-compute/compute/errs"
	"github.com/arbalest-compute/compute/scope"
)

// Tensor is the pair (dimensions, buffer) of spec.md §3. A Tensor does
// not own its buffer — the enclosing resource scope does — so Tensor
// values are cheap to copy and views share Buf with the tensor they
// were built from.
type Tensor struct {
	Dims dims.Dims
	Buf  driver.Buffer
}

// Datatype returns the tensor's element type (the buffer's datatype).
func (t Tensor) Datatype() dtype.Datatype { return t.Buf.Datatype() }

// Dense reports whether t's dimensions are dense (spec.md §3/§4.3).
func (t Tensor) Dense() bool { return t.Dims.Dense() }

// Simple reports whether t's dimensions are simple: dense,
// access-increasing, and zero offset.
func (t Tensor) Simple() bool { return t.Dims.Simple() }

// NewOptions configures NewTensor.
type NewOptions struct {
	Datatype  dtype.Datatype
	Device    driver.Device
	Stream    driver.Stream
	InitValue *Scalar
}

// Scalar carries a host-side numeric value used for broadcast-fill
// (init_value) and scalar operands.
type Scalar struct {
	I int64
	F float64
}

// IntScalar builds an integer-valued Scalar.
func IntScalar(v int64) *Scalar { return &Scalar{I: v} }

// FloatScalar builds a float-valued Scalar.
func FloatScalar(v float64) *Scalar { return &Scalar{F: v} }

// NewTensor allocates a device buffer of element count ∏shape and
// returns the resulting Tensor, tracked on sc (spec.md §4.5,
// §9 "Open question": every new_tensor result, 1-D included, is a
// Tensor — never a raw buffer).
func NewTensor(sc *scope.Scope, shape []int, opts NewOptions) (Tensor, error) {
	d := dims.New(shape)
	dt := opts.Datatype
	buf, err := opts.Device.AllocateDeviceBuffer(d.Len(), dt, driver.DeviceBufferOptions{Zero: opts.InitValue == nil})
	if err != nil {
		return Tensor{}, errs.NewDeviceError(opts.Device.Driver().Name(), err)
	}
	buf = scope.Track(sc, buf, buf.Release)
	t := Tensor{Dims: d, Buf: buf}

	if opts.InitValue != nil {
		if err := fill(opts.Stream, opts.Device, t, opts.InitValue); err != nil {
			return Tensor{}, err
		}
	}
	return t, nil
}

// fill broadcast-assigns value into every element of t by staging a
// host buffer holding value, in t's datatype, in each of t's elements
// and enqueuing a single CopyHostToDevice of the whole buffer (t comes
// from NewTensor and is dense). The copy goes through the stream so
// enqueue ordering (spec.md §5) is respected.
func fill(stream driver.Stream, device driver.Device, t Tensor, value *Scalar) error {
	n := t.Dims.Len()
	if n == 0 {
		return nil
	}
	host, err := device.Driver().AllocateHostBuffer(n, t.Datatype(), driver.HostBufferOptions{Usage: driver.OneTime})
	if err != nil {
		return errs.NewDeviceError(device.Driver().Name(), err)
	}
	defer host.Release()

	buf := host.Bytes()
	dt := t.Datatype()
	for i := 0; i < n; i++ {
		if dtype.IsFloat(dt) {
			dtype.SetFloat64(dt, buf, i, value.F)
		} else {
			iv, err := dtype.ConvertInt64(dt, value.I, true)
			if err != nil {
				return err
			}
			dtype.SetInt64(dt, buf, i, iv)
		}
	}
	return stream.CopyHostToDevice(host, 0, t.Buf, 0, n)
}

// Reinterpret returns a view with new dimensions over t's unchanged
// buffer. No copy is performed; the caller asserts the reinterpretation
// is safe (spec.md §4.5).
func Reinterpret(t Tensor, newDims dims.Dims) Tensor {
	return Tensor{Dims: newDims, Buf: t.Buf}
}
