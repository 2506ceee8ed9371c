package cpu

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/arbalest-compute/compute/dims"
	"github.com/arbalest-compute/compute/driver"
	"github.com/arbalest-compute/compute/dtype"
	"github.com/arbalest-compute/compute/errs"
)

// ReduceOp enumerates the reference backend's last-axis reduction
// kernels (spec.md §4 math dispatch).
type ReduceOp int

const (
	OpSum ReduceOp = iota
	OpMean
	OpMax
	OpMin
	OpMagnitudeSquared
	OpMagnitude
)

// Reduce collapses src's last axis into dst (spec.md §4.6: "dest =
// reduce(α·input) along last axis"), one reduction per row of the
// leading batch shape. dst's shape must equal src's shape with the
// last axis dropped — a rank-1 src (no leading axes) therefore
// reduces to the single-element, zero-leading-axis dst the earlier
// full-tensor-only version of this function always produced; that
// case is just the rows=1 instance of the general one below.
// Sum/Mean/MagnitudeSquared/Magnitude are computed with
// gonum.org/v1/gonum/floats over each row's gathered, dense values —
// the same "gather into a flat slice, hand it to a vector routine"
// shape the reference backend's gemm path uses for BLAS (spec.md
// §4.6).
func Reduce(op ReduceOp, dstD, srcD dims.Dims, dstBuf, srcBuf driver.Buffer, unchecked bool) error {
	dt := dstBuf.Datatype()
	if dt != srcBuf.Datatype() {
		return errs.NewShapeError("reduce requires matching datatypes across dst and src")
	}
	if len(srcD.Shape) == 0 {
		return errs.NewShapeError("reduce: src must have at least one axis")
	}

	// A rank-1 src has no leading axes to batch over; its last axis is
	// its only axis, so the whole tensor reduces to one row and dst is
	// the conventional length-1 destination (spec.md never constructs
	// a true rank-0 tensor), not a rank-0 one.
	var leadShape []int
	if len(srcD.Shape) == 1 {
		leadShape = []int{1}
	} else {
		leadShape = srcD.Shape[:len(srcD.Shape)-1]
	}
	cols := srcD.Shape[len(srcD.Shape)-1]
	if !shapeEqual(dstD.Shape, leadShape) {
		return errs.NewShapeError("reduce destination shape %v does not match input's leading shape %v (input %v reduces its last axis)", dstD.Shape, leadShape, srcD.Shape)
	}

	srcBytes, dstBytes := srcBuf.Bytes(), dstBuf.Bytes()

	vals := make([]float64, cols)
	coord := make([]int, len(srcD.Shape))
	var convErr error
	iterateShape(leadShape, func(leadCoord []int, seq int) {
		if convErr != nil {
			return
		}
		copy(coord, leadCoord)
		for c := 0; c < cols; c++ {
			coord[len(coord)-1] = c
			vals[c] = readCanonical(dt, srcBytes, linOffset(srcD, coord))
		}
		result, err := reduceRow(op, vals)
		if err != nil {
			convErr = err
			return
		}
		if err := writeCanonical(dt, dstBytes, linOffset(dstD, leadCoord), result, unchecked); err != nil {
			convErr = err
		}
	})
	return convErr
}

// reduceRow applies op to one row's worth of last-axis values.
func reduceRow(op ReduceOp, vals []float64) (float64, error) {
	n := len(vals)
	switch op {
	case OpSum:
		return floats.Sum(vals), nil
	case OpMean:
		if n == 0 {
			return 0, errs.NewShapeError("reduce mean: empty row")
		}
		return floats.Sum(vals) / float64(n), nil
	case OpMax:
		if n == 0 {
			return 0, errs.NewShapeError("reduce max: empty row")
		}
		return floats.Max(vals), nil
	case OpMin:
		if n == 0 {
			return 0, errs.NewShapeError("reduce min: empty row")
		}
		return floats.Min(vals), nil
	case OpMagnitudeSquared:
		return floats.Dot(vals, vals), nil
	case OpMagnitude:
		return math.Sqrt(floats.Dot(vals, vals)), nil
	default:
		return 0, errs.NewShapeError("reduce: unknown op %d", op)
	}
}
