package tensor

import (
	"fmt"
	"reflect"

	"github.com/arbalest-compute/compute/dims"
	"github.com/arbalest-compute/compute/driver"
	"github.com/arbalest-compute/compute/dtype"
	"github.com/arbalest-compute/compute/errs"
	"github.com/arbalest-compute/compute/scope"
)

// iterate walks every multi-index of shape in row-major order (last
// axis fastest), calling fn with the current coordinate and its flat
// sequence position. coord is reused across calls; fn must not retain
// it.
func iterate(shape []int, fn func(coord []int, seq int)) {
	n := len(shape)
	coord := make([]int, n)
	total := 1
	for _, s := range shape {
		total *= s
	}
	for seq := 0; seq < total; seq++ {
		fn(coord, seq)
		for i := n - 1; i >= 0; i-- {
			coord[i]++
			if coord[i] < shape[i] {
				break
			}
			coord[i] = 0
		}
	}
}

func linearOffset(d dims.Dims, coord []int) int {
	off := d.Offset
	for i, c := range coord {
		off += c * d.Strides[i]
	}
	return off
}

// gather reads t's elements in row-major logical order into a flat
// float64 slice, following Dims' strides/offset rather than assuming a
// dense layout. It requires t's buffer be host-addressable, which
// holds for every buffer the cpu backend allocates.
func gather(t Tensor) ([]float64, error) {
	buf := t.Buf.Bytes()
	if buf == nil {
		return nil, errs.NewDeviceError(t.Buf.Driver().Name(), fmt.Errorf("buffer is not host-addressable"))
	}
	dt := t.Datatype()
	out := make([]float64, t.Dims.Len())
	iterate(t.Dims.Shape, func(coord []int, seq int) {
		off := linearOffset(t.Dims, coord)
		if dtype.IsFloat(dt) {
			out[seq] = dtype.GetFloat64(dt, buf, off)
		} else {
			out[seq] = dtype.ToFloat64(dt, dtype.GetInt64(dt, buf, off), 0)
		}
	})
	return out, nil
}

// stage writes flat (canonical values, row-major) into dst's device
// buffer by way of a host staging buffer and a stream-enqueued copy,
// converting each value into dst's datatype under unchecked's domain
// policy (spec.md §3). Both ToTensor (ingesting Go data) and
// CloneToDevice (re-staging a gathered tensor) route through this.
func stage(stream driver.Stream, device driver.Device, dst Tensor, flat []float64, unchecked bool) error {
	n := len(flat)
	if n == 0 {
		return nil
	}
	dt := dst.Datatype()
	host, err := device.Driver().AllocateHostBuffer(n, dt, driver.HostBufferOptions{Usage: driver.OneTime})
	if err != nil {
		return errs.NewDeviceError(device.Driver().Name(), err)
	}
	defer host.Release()

	buf := host.Bytes()
	for i, f := range flat {
		if dtype.IsFloat(dt) {
			_, fv, err := dtype.ConvertFloat64(dt, f, unchecked)
			if err != nil {
				return err
			}
			dtype.SetFloat64(dt, buf, i, fv)
		} else {
			iv, _, err := dtype.ConvertFloat64(dt, f, unchecked)
			if err != nil {
				return err
			}
			dtype.SetInt64(dt, buf, i, iv)
		}
	}
	return stream.CopyHostToDevice(host, 0, dst.Buf, 0, n)
}

// ToTensor ingests nested Go slice/array data (spec.md §4.5 to_tensor)
// into a freshly allocated device tensor of datatype dt. data's shape
// is inferred from slice/array lengths; ragged input fails with
// ShapeError.
func ToTensor(sc *scope.Scope, device driver.Device, stream driver.Stream, data any, dt dtype.Datatype, unchecked bool) (Tensor, error) {
	shape, flat, err := flatten(data)
	if err != nil {
		return Tensor{}, err
	}
	t, err := NewTensor(sc, shape, NewOptions{Datatype: dt, Device: device, Stream: stream})
	if err != nil {
		return Tensor{}, err
	}
	if err := stage(stream, device, t, flat, unchecked); err != nil {
		return Tensor{}, err
	}
	return t, nil
}

// CloneToDevice re-stages src as a dense tensor on device (spec.md
// §4.5 clone_to_device). src must already be access_increasing unless
// force is set, in which case a compact copy is made first by
// gathering through src's strides regardless of layout.
func CloneToDevice(sc *scope.Scope, device driver.Device, stream driver.Stream, src Tensor, force bool) (Tensor, error) {
	if !force && !src.Dims.AccessIncreasing() {
		return Tensor{}, errs.NewShapeError("clone_to_device: source is not access_increasing; pass force=true to compact-copy")
	}
	flat, err := gather(src)
	if err != nil {
		return Tensor{}, err
	}
	t, err := NewTensor(sc, src.Dims.Shape, NewOptions{Datatype: src.Datatype(), Device: device, Stream: stream})
	if err != nil {
		return Tensor{}, err
	}
	if err := stage(stream, device, t, flat, true); err != nil {
		return Tensor{}, err
	}
	return t, nil
}

// CloneToHost gathers src and writes it into a freshly allocated,
// dense host buffer from hostDriver (spec.md §4.5 clone_to_host,
// "mirror [of clone_to_device]; defaults sync = true"). sync, when
// true, calls srcStream.SyncWithHost before reading src's contents so
// the most recent writer's device effects are host-visible (spec.md
// §5's ordering guarantee); pass false only when the caller has
// already synchronized by other means.
func CloneToHost(sc *scope.Scope, hostDriver driver.Driver, srcStream driver.Stream, src Tensor, sync bool) (Tensor, error) {
	if sync && srcStream != nil {
		if err := srcStream.SyncWithHost(); err != nil {
			return Tensor{}, err
		}
	}
	flat, err := gather(src)
	if err != nil {
		return Tensor{}, err
	}
	host, err := hostDriver.AllocateHostBuffer(len(flat), src.Datatype(), driver.HostBufferOptions{Usage: driver.Reusable})
	if err != nil {
		return Tensor{}, errs.NewDeviceError(hostDriver.Name(), err)
	}
	host = scope.Track(sc, host, host.Release)

	buf := host.Bytes()
	dt := src.Datatype()
	for i, f := range flat {
		if dtype.IsFloat(dt) {
			dtype.SetFloat64(dt, buf, i, f)
		} else {
			dtype.SetInt64(dt, buf, i, int64(f))
		}
	}
	return Tensor{Dims: dims.New(src.Dims.Shape), Buf: host}, nil
}

// ToArray returns t's elements, in row-major logical order, as a flat
// float64 slice — the canonical numeric form every datatype converts
// to/from (spec.md §3).
func ToArray(t Tensor) ([]float64, error) {
	return gather(t)
}

// ToNestedSequence returns t's elements as Go nested slices of
// float64 matching t's rank (a rank-2 tensor yields [][]float64, a
// rank-1 tensor []float64, a rank-0 tensor a bare float64).
func ToNestedSequence(t Tensor) (any, error) {
	flat, err := gather(t)
	if err != nil {
		return nil, err
	}
	pos := 0
	v := nestBuild(flat, t.Dims.Shape, &pos)
	return v.Interface(), nil
}

func nestType(depth int) reflect.Type {
	typ := reflect.TypeOf(float64(0))
	for i := 0; i < depth; i++ {
		typ = reflect.SliceOf(typ)
	}
	return typ
}

func nestBuild(flat []float64, shape []int, pos *int) reflect.Value {
	if len(shape) == 0 {
		v := flat[*pos]
		*pos++
		return reflect.ValueOf(v)
	}
	n := shape[0]
	result := reflect.MakeSlice(nestType(len(shape)), n, n)
	for i := 0; i < n; i++ {
		result.Index(i).Set(nestBuild(flat, shape[1:], pos))
	}
	return result
}

// flatten infers a shape from data's slice/array nesting and reads its
// leaves (any numeric kind) into a row-major float64 slice, failing
// with ShapeError on ragged nesting or a non-numeric leaf.
func flatten(data any) ([]int, []float64, error) {
	v := reflect.ValueOf(data)
	shape := shapeOf(v)
	vals := make([]float64, 0, prodInts(shape))

	var walk func(reflect.Value, int) error
	walk = func(v reflect.Value, depth int) error {
		if depth == len(shape) {
			f, err := leafToFloat64(v)
			if err != nil {
				return err
			}
			vals = append(vals, f)
			return nil
		}
		if v.Len() != shape[depth] {
			return errs.NewShapeError("to_tensor: ragged input at depth %d: expected length %d, got %d", depth, shape[depth], v.Len())
		}
		for i := 0; i < v.Len(); i++ {
			if err := walk(v.Index(i), depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(v, 0); err != nil {
		return nil, nil, err
	}
	return shape, vals, nil
}

func shapeOf(v reflect.Value) []int {
	var shape []int
	for v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
		shape = append(shape, v.Len())
		if v.Len() == 0 {
			break
		}
		v = v.Index(0)
	}
	return shape
}

func leafToFloat64(v reflect.Value) (float64, error) {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), nil
	default:
		return 0, errs.NewShapeError("to_tensor: unsupported element kind %s", v.Kind())
	}
}

func prodInts(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}
