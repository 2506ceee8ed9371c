package cpu

import (
	"math"

	"github.com/leesper/go_rng"

	"github.com/arbalest-compute/compute/dims"
	"github.com/arbalest-compute/compute/driver"
	"github.com/arbalest-compute/compute/dtype"
	"github.com/arbalest-compute/compute/errs"
)

// RandDistribution selects the sampling distribution for Rand
// (spec.md §4 math dispatch's rand op).
type RandDistribution int

const (
	// Gaussian samples N(mean, variance): p1 is the mean, p2 the
	// variance.
	Gaussian RandDistribution = iota
	// Flat samples uniformly over [lo, hi).
	Flat
)

// Rand fills dst with independent samples from dist, seeded
// deterministically so a fixed seed reproduces a fixed sequence
// (spec.md rand op Non-goal: cross-backend-identical streams are not
// required, but within the reference backend a given seed is
// reproducible). Restricted to F32, matching the single-precision
// specialization the teacher's own CPU fallback path uses for its
// float kernels.
func Rand(dist RandDistribution, dstD dims.Dims, dstBuf driver.Buffer, seed int64, p1, p2 float64) error {
	if dstBuf.Datatype() != dtype.F32 {
		return errs.NewShapeError("rand is only implemented for f32 destinations, got %s", dstBuf.Datatype())
	}

	raw := dstBuf.Bytes()
	dt := dstBuf.Datatype()

	switch dist {
	case Gaussian:
		gen := rng.NewGaussianGenerator(seed)
		iterateShape(dstD.Shape, func(coord []int, seq int) {
			v := gen.Gaussian(p1, math.Sqrt(p2))
			_ = writeCanonical(dt, raw, linOffset(dstD, coord), v, true)
		})
	case Flat:
		gen := rng.NewUniformGenerator(seed)
		iterateShape(dstD.Shape, func(coord []int, seq int) {
			v := gen.Float64Range(p1, p2)
			_ = writeCanonical(dt, raw, linOffset(dstD, coord), v, true)
		})
	default:
		return errs.NewShapeError("rand: unknown distribution %d", dist)
	}
	return nil
}
