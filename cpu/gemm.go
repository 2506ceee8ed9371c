package cpu

import (
	"gorgonia.org/tensor"

	"github.com/arbalest-compute/compute/dims"
	"github.com/arbalest-compute/compute/driver"
	"github.com/arbalest-compute/compute/dtype"
	"github.com/arbalest-compute/compute/errs"
)

// GemmArgs is the fully-described gemm call: C = alpha*opA(A)*opB(B) +
// beta*C, where opX(A) is A or its transpose depending on TransA
// (spec.md §4.6).
type GemmArgs struct {
	TransA, TransB     bool
	Alpha, Beta        float64
	ADims, BDims, CDims dims.Dims
	ABuf, BBuf, CBuf   driver.Buffer
}

// Gemm performs the reference backend's BLAS-backed matrix multiply.
// It first canonicalizes A and B per spec.md §4.6 (dims.Canonicalize
// GemmOperand), requires C already access-increasing with
// element_stride=1, materializes A/B/C into contiguous row-major
// buffers (adapting the teacher's mps.denseToRowMajor2DF32 /
// rowMajor2DToDenseF32 gather/scatter, generalized past float32-only
// and past the darwin/MPS split), and hands the product off to
// gorgonia.org/tensor's StdEng — the same engine the teacher's CPU
// fallback (mps.MatMul, non-darwin build) uses.
func Gemm(args GemmArgs) error {
	dt := args.CBuf.Datatype()
	if dt != args.ABuf.Datatype() || dt != args.BBuf.Datatype() {
		return errs.NewShapeError("gemm requires A, B, and C to share a datatype")
	}
	if !dtype.IsFloat(dt) {
		return errs.NewShapeError("gemm is only implemented for floating-point datatypes, got %s", dt)
	}

	canonA, transA, err := dims.CanonicalizeGemmOperand(args.ADims, args.TransA)
	if err != nil {
		return err
	}
	canonB, transB, err := dims.CanonicalizeGemmOperand(args.BDims, args.TransB)
	if err != nil {
		return err
	}

	if !args.CDims.AccessIncreasing() {
		return errs.NewShapeError("gemm destination C must have access-increasing dimensions")
	}
	if es, _ := dims.ElementStride(args.CDims); es != 1 {
		return errs.NewShapeError("gemm destination C requires element_stride=1, got %d", es)
	}
	if args.CDims.NDims() != 2 {
		return errs.NewShapeError("gemm destination C must be 2-D, got rank %d", args.CDims.NDims())
	}

	physRowsA, physColsA := canonA.Shape[0], canonA.Shape[1]
	physRowsB, physColsB := canonB.Shape[0], canonB.Shape[1]
	rowsA, colsA := dims.GemmLogicalShape(canonA, transA)
	rowsB, colsB := dims.GemmLogicalShape(canonB, transB)

	if colsA != rowsB {
		return errs.NewShapeError("gemm inner dimension mismatch: opA(A) is %dx%d, opB(B) is %dx%d", rowsA, colsA, rowsB, colsB)
	}
	if rowsA != args.CDims.Shape[0] || colsB != args.CDims.Shape[1] {
		return errs.NewShapeError("gemm output mismatch: opA(A)*opB(B) is %dx%d, C is %v", rowsA, colsB, args.CDims.Shape)
	}

	colStrideA, _ := dims.ColumnStride(canonA)
	colStrideB, _ := dims.ColumnStride(canonB)
	colStrideC, _ := dims.ColumnStride(args.CDims)

	matA := materialize2D(args.ABuf, dt, canonA.Offset, colStrideA, physRowsA, physColsA)
	matB := materialize2D(args.BBuf, dt, canonB.Offset, colStrideB, physRowsB, physColsB)
	origC := materialize2D(args.CBuf, dt, args.CDims.Offset, colStrideC, rowsA, colsB)

	denseA := tensor.New(tensor.WithShape(physRowsA, physColsA), tensor.WithBacking(matA))
	denseB := tensor.New(tensor.WithShape(physRowsB, physColsB), tensor.WithBacking(matB))
	if transA {
		if err := denseA.T(); err != nil {
			return errs.WrapShapeError(err, "gemm: transpose A view")
		}
	}
	if transB {
		if err := denseB.T(); err != nil {
			return errs.WrapShapeError(err, "gemm: transpose B view")
		}
	}

	product := make([]float64, rowsA*colsB)
	denseC := tensor.New(tensor.WithShape(rowsA, colsB), tensor.WithBacking(product))

	var eng tensor.StdEng
	if err := eng.MatMul(denseA, denseB, denseC); err != nil {
		return errs.WrapShapeError(err, "gemm: MatMul")
	}

	result := make([]float64, rowsA*colsB)
	for i := range result {
		result[i] = args.Alpha*product[i] + args.Beta*origC[i]
	}
	scatter2D(args.CBuf, dt, args.CDims.Offset, colStrideC, rowsA, colsB, result)
	return nil
}

// materialize2D gathers a physically access-increasing, element_stride
// =1 2-D region of buf (rows x cols, row pitch colStride, first
// element at offset) into a contiguous row-major float64 buffer.
// Values always round-trip through float64 regardless of buf's
// concrete width, matching dtype's canonical-conversion model
// (spec.md §3).
func materialize2D(buf driver.Buffer, dt dtype.Datatype, offset, colStride, rows, cols int) []float64 {
	raw := buf.Bytes()
	out := make([]float64, rows*cols)
	for r := 0; r < rows; r++ {
		rowOff := offset + r*colStride
		for c := 0; c < cols; c++ {
			out[r*cols+c] = dtype.GetFloat64(dt, raw, rowOff+c)
		}
	}
	return out
}

// scatter2D is materialize2D's inverse: it writes a contiguous
// row-major float64 buffer back into buf's physical layout.
func scatter2D(buf driver.Buffer, dt dtype.Datatype, offset, colStride, rows, cols int, data []float64) {
	raw := buf.Bytes()
	for r := 0; r < rows; r++ {
		rowOff := offset + r*colStride
		for c := 0; c < cols; c++ {
			dtype.SetFloat64(dt, raw, rowOff+c, data[r*cols+c])
		}
	}
}
