package tensor

import (
	"github.com/arbalest-compute/compute/dims"
	"github.com/arbalest-compute/compute/driver"
	"github.com/arbalest-compute/compute/errs"
)

// Reshape returns a view of t with newShape, requiring t's dimensions
// be dense and access-increasing (spec.md §4.3/§4.5). The returned
// Tensor shares t's Buf.
func Reshape(t Tensor, newShape []int) (Tensor, error) {
	d, err := dims.Reshape(t.Dims, newShape)
	if err != nil {
		return Tensor{}, err
	}
	return Tensor{Dims: d, Buf: t.Buf}, nil
}

// Transpose returns a view of t with its axes permuted by perm.
func Transpose(t Tensor, perm []int) (Tensor, error) {
	d, err := dims.Transpose(t.Dims, perm)
	if err != nil {
		return Tensor{}, err
	}
	return Tensor{Dims: d, Buf: t.Buf}, nil
}

// Select returns a sub-view of t, one selector per axis.
func Select(t Tensor, selectors ...dims.Selector) (Tensor, error) {
	d, err := dims.Select(t.Dims, selectors...)
	if err != nil {
		return Tensor{}, err
	}
	return Tensor{Dims: d, Buf: t.Buf}, nil
}

// AsVector reshapes t to a single axis of length t.Dims.Len().
func AsVector(t Tensor) (Tensor, error) {
	return Reshape(t, []int{t.Dims.Len()})
}

// As2D reshapes t to [leading_product, last_axis] (spec.md §4.3).
func As2D(t Tensor) (Tensor, error) {
	return Reshape(t, dims.As2DShape(t.Dims))
}

// AsBatch reshapes t to [first_axis, trailing_product].
func AsBatch(t Tensor) (Tensor, error) {
	return Reshape(t, dims.AsBatchShape(t.Dims))
}

// Rows returns the row count of a 2-D tensor.
func Rows(t Tensor) (int, error) {
	if t.Dims.NDims() != 2 {
		return 0, errs.NewShapeError("rows: requires a 2-D tensor, got rank %d", t.Dims.NDims())
	}
	return t.Dims.Shape[0], nil
}

// Columns returns the column count of a 2-D tensor.
func Columns(t Tensor) (int, error) {
	if t.Dims.NDims() != 2 {
		return 0, errs.NewShapeError("columns: requires a 2-D tensor, got rank %d", t.Dims.NDims())
	}
	return t.Dims.Shape[1], nil
}

// IndexRangeOverlap reports whether the linear-index ranges [offset,
// offset+MaxLinearIndex] of a and b intersect. This is a conservative
// bound: for descriptors with unusual strides it can report an
// overlap where none of the actual multi-indices coincide, but it
// never misses a real one, which is the safe direction for an
// aliasing guard.
func IndexRangeOverlap(a, b dims.Dims) bool {
	aLo, aHi := a.Offset, a.Offset+a.MaxLinearIndex()
	bLo, bHi := b.Offset, b.Offset+b.MaxLinearIndex()
	return aLo <= bHi && bLo <= aHi
}

// CheckNoAlias fails with AliasError if dest and src share backing
// storage and their index ranges overlap (spec.md §3: operations whose
// contract forbids aliasing must check partial_aliases? at the buffer
// level and the dimension descriptors' index-set overlap).
func CheckNoAlias(dest, src Tensor) error {
	if !driver.PartialAliases(dest.Buf, src.Buf) {
		return nil
	}
	// Dims offsets are relative to each buffer's own start; shift them
	// into the shared backing allocation before comparing.
	a, b := dest.Dims, src.Dims
	a.Offset += dest.Buf.ByteOffset()
	b.Offset += src.Buf.ByteOffset()
	if !IndexRangeOverlap(a, b) {
		return nil
	}
	return errs.NewAliasError("destination aliases a source operand")
}
