// Package dims implements the compute core's Dimensions descriptor
// (C3): shape, strides (in elements), and an element offset over a
// backing buffer, plus the pure view operations (reshape, transpose,
// select) and density/monotonicity predicates every backend and the
// tensor/math-dispatch layers depend on.
package dims

import (
	"sort"

	"github.com/xtgo/set"

	"github.com/arbalest-compute/compute/errs"
)

// Dims is the shape/strides/offset descriptor. All operations on Dims
// are pure: they return a new value rather than mutating the receiver.
type Dims struct {
	Shape   []int
	Strides []int
	Offset  int
}

// New builds the descriptor for shape with default row-major strides
// and a zero offset.
func New(shape []int) Dims {
	return Dims{Shape: cloneInts(shape), Strides: RowMajorStrides(shape), Offset: 0}
}

// RowMajorStrides returns the natural row-major strides for shape: the
// last axis is fastest-varying (stride 1), each preceding axis strides
// by the product of the axes to its right.
func RowMajorStrides(shape []int) []int {
	n := len(shape)
	strides := make([]int, n)
	acc := 1
	for i := n - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= shape[i]
	}
	return strides
}

func cloneInts(a []int) []int {
	b := make([]int, len(a))
	copy(b, a)
	return b
}

// Len returns the element count, the product of all shape entries (1
// for a rank-0/scalar shape).
func (d Dims) Len() int {
	n := 1
	for _, s := range d.Shape {
		n *= s
	}
	return n
}

// NDims returns the number of axes.
func (d Dims) NDims() int { return len(d.Shape) }

// MaxLinearIndex returns the largest linear index (relative to Offset)
// any valid multi-index can produce under d. tensor.IndexRangeOverlap
// uses it to bound a view's linear-index range; tensor construction
// does not check Offset + MaxLinearIndex against the buffer length.
func (d Dims) MaxLinearIndex() int {
	idx := 0
	for i, s := range d.Shape {
		if s > 0 {
			idx += (s - 1) * d.Strides[i]
		}
	}
	return idx
}

// Dense reports whether Strides equal the natural row-major strides
// for Shape.
func (d Dims) Dense() bool {
	natural := RowMajorStrides(d.Shape)
	for i := range natural {
		if d.Strides[i] != natural[i] {
			return false
		}
	}
	return true
}

// AccessIncreasing reports whether, once size-1 axes are removed, the
// remaining strides are strictly decreasing — i.e. no axis has been
// transposed out of natural order.
func (d Dims) AccessIncreasing() bool {
	prev := -1
	first := true
	for i, s := range d.Shape {
		if s == 1 {
			continue
		}
		st := d.Strides[i]
		if !first && st >= prev {
			return false
		}
		prev = st
		first = false
	}
	return true
}

// Simple reports whether d is dense, access-increasing, and has a zero
// offset.
func (d Dims) Simple() bool {
	return d.Dense() && d.AccessIncreasing() && d.Offset == 0
}

// Reshape succeeds only when d is dense and access-increasing and the
// element count of newShape matches d's; otherwise it fails with
// ShapeError.
func Reshape(d Dims, newShape []int) (Dims, error) {
	if !d.Dense() || !d.AccessIncreasing() {
		return Dims{}, errs.NewShapeError("reshape requires dense, access-increasing dimensions; got shape=%v strides=%v", d.Shape, d.Strides)
	}
	want := d.Len()
	got := 1
	for _, s := range newShape {
		got *= s
	}
	if got != want {
		return Dims{}, errs.NewShapeError("reshape element count mismatch: %v has %d elements, new shape %v has %d", d.Shape, want, newShape, got)
	}
	return Dims{Shape: cloneInts(newShape), Strides: RowMajorStrides(newShape), Offset: d.Offset}, nil
}

// Transpose reorders Shape and Strides according to perm, a
// permutation of [0..n). perm is validated (via github.com/xtgo/set,
// deduped and compared against the identity range) to reject
// out-of-range or duplicate axis indices.
func Transpose(d Dims, perm []int) (Dims, error) {
	n := d.NDims()
	if len(perm) != n {
		return Dims{}, errs.NewShapeError("transpose: perm length %d does not match rank %d", len(perm), n)
	}
	if !isPermutation(perm, n) {
		return Dims{}, errs.NewShapeError("transpose: perm %v is not a permutation of [0..%d)", perm, n)
	}
	shape := make([]int, n)
	strides := make([]int, n)
	for i, p := range perm {
		shape[i] = d.Shape[p]
		strides[i] = d.Strides[p]
	}
	return Dims{Shape: shape, Strides: strides, Offset: d.Offset}, nil
}

// isPermutation reports whether perm is exactly a reordering of
// [0..n): no duplicates, no out-of-range entries, and n elements.
func isPermutation(perm []int, n int) bool {
	cp := cloneInts(perm)
	sort.Ints(cp)
	deduped := cp[:set.Uniq(sort.IntSlice(cp))]
	if len(deduped) != len(perm) {
		return false // duplicate axis index
	}
	for i, v := range deduped {
		if v != i {
			return false // out of range or gap
		}
	}
	return true
}

// SelectorKind distinguishes the three selector forms of spec.md §4.3.
type SelectorKind int

const (
	// SelAll keeps the axis unchanged (the "all" token).
	SelAll SelectorKind = iota
	// SelIndex drops the axis, folding the chosen coordinate into offset.
	SelIndex
	// SelRange reduces the axis to an increasing contiguous [Lo, Hi) range.
	SelRange
)

// Selector is one axis's selection in a Select call.
type Selector struct {
	Kind     SelectorKind
	Index    int // valid when Kind == SelIndex
	Lo, Hi   int // valid when Kind == SelRange
}

// All selects an entire axis unchanged.
func All() Selector { return Selector{Kind: SelAll} }

// Idx selects a single coordinate, dropping the axis.
func Idx(i int) Selector { return Selector{Kind: SelIndex, Index: i} }

// Rng selects the contiguous, increasing range [lo, hi).
func Rng(lo, hi int) Selector { return Selector{Kind: SelRange, Lo: lo, Hi: hi} }

// Select applies one selector per axis. Non-monotonic or
// out-of-bounds ranges/indices fail with SelectError (spec.md §4.3:
// "the accelerated backends cannot efficiently express arbitrary
// gather along a dimension").
func Select(d Dims, selectors ...Selector) (Dims, error) {
	if len(selectors) != d.NDims() {
		return Dims{}, errs.NewSelectError("select: expected %d selectors (one per axis), got %d", d.NDims(), len(selectors))
	}

	var shape, strides []int
	offset := d.Offset

	for axis, sel := range selectors {
		extent := d.Shape[axis]
		stride := d.Strides[axis]
		switch sel.Kind {
		case SelAll:
			shape = append(shape, extent)
			strides = append(strides, stride)
		case SelIndex:
			if sel.Index < 0 || sel.Index >= extent {
				return Dims{}, errs.NewSelectError("select: index %d out of range for axis %d of extent %d", sel.Index, axis, extent)
			}
			offset += sel.Index * stride
		case SelRange:
			if sel.Lo < 0 || sel.Hi > extent || sel.Lo >= sel.Hi {
				return Dims{}, errs.NewSelectError("select: range [%d,%d) invalid for axis %d of extent %d", sel.Lo, sel.Hi, axis, extent)
			}
			offset += sel.Lo * stride
			shape = append(shape, sel.Hi-sel.Lo)
			strides = append(strides, stride)
		default:
			return Dims{}, errs.NewSelectError("select: unknown selector kind %d on axis %d", sel.Kind, axis)
		}
	}

	if shape == nil {
		shape, strides = []int{}, []int{}
	}
	return Dims{Shape: shape, Strides: strides, Offset: offset}, nil
}

// As2DShape returns [product_of_leading_axes, last_axis].
func As2DShape(d Dims) []int {
	n := d.NDims()
	if n == 0 {
		return []int{1, 1}
	}
	lead := 1
	for i := 0; i < n-1; i++ {
		lead *= d.Shape[i]
	}
	return []int{lead, d.Shape[n-1]}
}

// AsBatchShape returns [first_axis, product_of_trailing_axes].
func AsBatchShape(d Dims) []int {
	n := d.NDims()
	if n == 0 {
		return []int{1, 1}
	}
	trail := 1
	for i := 1; i < n; i++ {
		trail *= d.Shape[i]
	}
	return []int{d.Shape[0], trail}
}

// ColumnStride returns the stride of the slower-varying axis of a 2-D
// descriptor (required to equal shape[1]*ElementStride for dense
// matrices, per spec.md §4.3).
func ColumnStride(d Dims) (int, error) {
	if d.NDims() != 2 {
		return 0, errs.NewShapeError("column_stride requires a 2-D descriptor, got rank %d", d.NDims())
	}
	return d.Strides[0], nil
}

// ElementStride returns the stride of the fastest-varying axis,
// required to equal 1 for gemm operands (spec.md §4.3, §4.6).
func ElementStride(d Dims) (int, error) {
	n := d.NDims()
	if n == 0 {
		return 0, errs.NewShapeError("element_stride requires at least one axis")
	}
	return d.Strides[n-1], nil
}

// Commensurate reports whether shapes a and b satisfy the core's
// broadcast relaxation (spec.md §4.3): for every axis i,
// max(aᵢ,bᵢ) mod min(aᵢ,bᵢ) == 0. This is a deliberate relaxation of
// NumPy's length-1-only broadcasting to any exact divisor.
func Commensurate(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		hi, lo := a[i], b[i]
		if hi < lo {
			hi, lo = lo, hi
		}
		if lo == 0 || hi%lo != 0 {
			return false
		}
	}
	return true
}

// BroadcastShape returns the elementwise-max shape of a and b (the
// destination shape for a commensurate binary op), or a ShapeError if
// a and b are not commensurate.
func BroadcastShape(a, b []int) ([]int, error) {
	if !Commensurate(a, b) {
		return nil, errs.NewShapeError("shapes %v and %v are not commensurate for broadcasting", a, b)
	}
	out := make([]int, len(a))
	for i := range a {
		if a[i] > b[i] {
			out[i] = a[i]
		} else {
			out[i] = b[i]
		}
	}
	return out, nil
}

// BroadcastIndex maps a linear coordinate along axis i of the
// destination shape back to the operand's coordinate along that axis,
// via modular indexing (spec.md §4.3: "implementers must compute
// iteration via modular indexing over the smaller operand").
func BroadcastIndex(destCoord, operandExtent int) int {
	return destCoord % operandExtent
}
