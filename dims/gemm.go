package dims

import "github.com/arbalest-compute/compute/errs"

// CanonicalizeGemmOperand implements spec.md §4.6's gemm
// canonicalization: a gemm operand stored "in-place transposed" (its
// strides are access-decreasing rather than access-increasing) is
// reinterpreted by swapping its shape/stride order and flipping the
// caller's requested transpose flag, rather than ever being required
// to change layout in memory. The returned Dims is always
// access-increasing; the returned bool is the effective transpose
// flag the backend must apply when reading the operand logically.
//
// It fails with ShapeError if d is not 2-D, or if even after the flip
// the operand's fastest-varying stride isn't 1 (gemm backends need a
// contiguous row to read without a general gather).
func CanonicalizeGemmOperand(d Dims, trans bool) (Dims, bool, error) {
	if d.NDims() != 2 {
		return Dims{}, false, errs.NewShapeError("gemm operand must be 2-D, got rank %d", d.NDims())
	}

	canon := d
	eff := trans
	if !d.AccessIncreasing() {
		canon = Dims{
			Shape:   []int{d.Shape[1], d.Shape[0]},
			Strides: []int{d.Strides[1], d.Strides[0]},
			Offset:  d.Offset,
		}
		eff = !trans
	}

	if !canon.AccessIncreasing() {
		return Dims{}, false, errs.NewShapeError("gemm operand has neither access-increasing nor access-decreasing strides: %v", d.Strides)
	}
	if es, _ := ElementStride(canon); es != 1 {
		return Dims{}, false, errs.NewShapeError("gemm operand requires element_stride=1, got %d", es)
	}
	return canon, eff, nil
}

// GemmLogicalShape returns the (rows, cols) of op(operand), where
// canon is the access-increasing Dims CanonicalizeGemmOperand
// produced and trans is the effective flag it returned.
func GemmLogicalShape(canon Dims, trans bool) (rows, cols int) {
	if trans {
		return canon.Shape[1], canon.Shape[0]
	}
	return canon.Shape[0], canon.Shape[1]
}
