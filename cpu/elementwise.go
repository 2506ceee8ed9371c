package cpu

import (
	"encoding/binary"
	"math"

	"github.com/chewxy/math32"
	"gorgonia.org/vecf32"
	"gorgonia.org/vecf64"

	"github.com/arbalest-compute/compute/dims"
	"github.com/arbalest-compute/compute/driver"
	"github.com/arbalest-compute/compute/dtype"
	"github.com/arbalest-compute/compute/errs"
)

// UnaryOp enumerates the reference backend's unary math-dispatch
// kernels (spec.md §4 math dispatch, C6).
type UnaryOp int

const (
	OpNeg UnaryOp = iota
	OpAbs
	OpSquare
	OpSqrt
	OpExp
	OpLog
	OpSin
	OpCos
	OpTanh
	OpSigmoid
	// OpFloor, OpCeil, OpRound, and OpNoop complete spec.md §4.6's
	// named unary set ({floor, ceil, round, negate, tanh, logistic,
	// exp, sqrt, noop}) together with OpNeg, OpSqrt, OpExp, OpTanh,
	// and OpSigmoid; OpAbs, OpSquare, OpLog, OpSin, and OpCos are
	// reference-backend extras kept for callers that already depend
	// on them.
	OpFloor
	OpCeil
	OpRound
	OpNoop
)

// BinaryOp enumerates the binary elementwise kernels.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMax
	OpMin
	OpPow
	// OpBitAnd and OpBitXor operate on dtype's canonical int64 form
	// directly rather than the float64 form the rest of this file
	// shares, and are rejected for float datatypes (spec.md §4.6:
	// bit_and/bit_xor are only meaningful over integers). OpEq, OpGt,
	// OpGe, OpLt, and OpLe complete spec.md §4.6's named binary set
	// ({+, -, *, /, max, min, bit_and, bit_xor, eq, >, >=, <, <=}),
	// writing a canonical 1 or 0.
	OpBitAnd
	OpBitXor
	OpEq
	OpGt
	OpGe
	OpLt
	OpLe
)

func iterateShape(shape []int, fn func(coord []int, seq int)) {
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

func linOffset(d dims.Dims, coord []int) int {
	off := d.Offset
	for i, c := range coord {
		off += c * d.Strides[i]
	}
	return off
}

// readCanonical and writeCanonical move values through dtype's
// canonical int64/float64 forms (spec.md §3), so every kernel below
// is written once against float64 arithmetic regardless of the
// buffer's concrete element width or signedness.
func readCanonical(dt dtype.Datatype, buf []byte, idx int) float64 {
	if dtype.IsFloat(dt) {
		return dtype.GetFloat64(dt, buf, idx)
	}
	return dtype.ToFloat64(dt, dtype.GetInt64(dt, buf, idx), 0)
}

func writeCanonical(dt dtype.Datatype, buf []byte, idx int, v float64, unchecked bool) error {
	if dtype.IsFloat(dt) {
		_, fv, err := dtype.ConvertFloat64(dt, v, unchecked)
		if err != nil {
			return err
		}
		dtype.SetFloat64(dt, buf, idx, fv)
		return nil
	}
	iv, _, err := dtype.ConvertFloat64(dt, v, unchecked)
	if err != nil {
		return err
	}
	dtype.SetInt64(dt, buf, idx, iv)
	return nil
}

func unaryScalar(op UnaryOp, x float64) float64 {
	switch op {
	case OpNeg:
		return -x
	case OpAbs:
		return math.Abs(x)
	case OpSquare:
		return x * x
	case OpSqrt:
		return math.Sqrt(x)
	case OpExp:
		return math.Exp(x)
	case OpLog:
		return math.Log(x)
	case OpSin:
		return math.Sin(x)
	case OpCos:
		return math.Cos(x)
	case OpTanh:
		return math.Tanh(x)
	case OpSigmoid:
		return 1 / (1 + math.Exp(-x))
	case OpFloor:
		return math.Floor(x)
	case OpCeil:
		return math.Ceil(x)
	case OpRound:
		return math.Round(x)
	case OpNoop:
		return x
	default:
		return x
	}
}

// unaryScalarF32 computes op on a raw float32 using chewxy/math32,
// avoiding the float64 round trip readCanonical/writeCanonical would
// otherwise impose — the transcendental ops are where that round trip
// is most wasteful.
func unaryScalarF32(op UnaryOp, x float32) float32 {
	switch op {
	case OpNeg:
		return -x
	case OpAbs:
		return math32.Abs(x)
	case OpSquare:
		return x * x
	case OpSqrt:
		return math32.Sqrt(x)
	case OpExp:
		return math32.Exp(x)
	case OpLog:
		return math32.Log(x)
	case OpSin:
		return math32.Sin(x)
	case OpCos:
		return math32.Cos(x)
	case OpTanh:
		return math32.Tanh(x)
	case OpSigmoid:
		return 1 / (1 + math32.Exp(-x))
	case OpFloor:
		// math32 does not expose Floor/Ceil/Round; route through the
		// stdlib math equivalents rather than guess at an unverified
		// signature.
		return float32(math.Floor(float64(x)))
	case OpCeil:
		return float32(math.Ceil(float64(x)))
	case OpRound:
		return float32(math.Round(float64(x)))
	case OpNoop:
		return x
	default:
		return x
	}
}

// vecf32Unary lists the ops that have a vectorized in-place
// gorgonia.org/vecf32 kernel, used on the fast (simple, F32) path.
var vecf32Unary = map[UnaryOp]func([]float32){
	OpExp:  vecf32.Exp,
	OpTanh: vecf32.Tanh,
	OpSqrt: vecf32.Sqrt,
	OpLog:  vecf32.Ln,
}

// vecf64Unary mirrors vecf32Unary for the F64 fast path.
var vecf64Unary = map[UnaryOp]func([]float64){
	OpExp:  vecf64.Exp,
	OpTanh: vecf64.Tanh,
	OpSqrt: vecf64.Sqrt,
	OpLog:  vecf64.Ln,
}

func asFloat64Slice(b []byte) []float64 {
	n := len(b) / 8
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return out
}

func putFloat64Slice(b []byte, v []float64) {
	for i, f := range v {
		binary.LittleEndian.PutUint64(b[i*8:], math.Float64bits(f))
	}
}

func asFloat32Slice(b []byte) []float32 {
	n := len(b) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

func putFloat32Slice(b []byte, v []float32) {
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
}

// Unary applies op elementwise from src into dst. dst and src must
// have the same shape (no broadcasting: spec.md reserves commensurate
// broadcasting for binary ops) and the same datatype.
func Unary(op UnaryOp, dstD, srcD dims.Dims, dstBuf, srcBuf driver.Buffer, unchecked bool) error {
	if !shapeEqual(dstD.Shape, srcD.Shape) {
		return errs.NewShapeError("unary op shape mismatch: dst shape %v, src shape %v", dstD.Shape, srcD.Shape)
	}
	dt := dstBuf.Datatype()
	if dt != srcBuf.Datatype() {
		return errs.NewShapeError("unary op requires matching datatypes: dst=%s src=%s", dt, srcBuf.Datatype())
	}

	dstRaw, srcRaw := dstBuf.Bytes(), srcBuf.Bytes()

	if dt == dtype.F32 {
		if dstD.Simple() && srcD.Simple() {
			if fn, ok := vecf32Unary[op]; ok {
				v := asFloat32Slice(srcRaw)
				fn(v)
				putFloat32Slice(dstRaw, v)
				return nil
			}
		}
		iterateShape(dstD.Shape, func(coord []int, seq int) {
			so, do := linOffset(srcD, coord)*4, linOffset(dstD, coord)*4
			x := math.Float32frombits(binary.LittleEndian.Uint32(srcRaw[so:]))
			binary.LittleEndian.PutUint32(dstRaw[do:], math.Float32bits(unaryScalarF32(op, x)))
		})
		return nil
	}

	if dt == dtype.F64 && dstD.Simple() && srcD.Simple() {
		if fn, ok := vecf64Unary[op]; ok {
			v := asFloat64Slice(srcRaw)
			fn(v)
			putFloat64Slice(dstRaw, v)
			return nil
		}
	}

	var convErr error
	iterateShape(dstD.Shape, func(coord []int, seq int) {
		if convErr != nil {
			return
		}
		so, do := linOffset(srcD, coord), linOffset(dstD, coord)
		v := readCanonical(dt, srcRaw, so)
		if err := writeCanonical(dt, dstRaw, do, unaryScalar(op, v), unchecked); err != nil {
			convErr = err
		}
	})
	return convErr
}

func binaryScalar(op BinaryOp, a, b float64) float64 {
	switch op {
	case OpAdd:
		return a + b
	case OpSub:
		return a - b
	case OpMul:
		return a * b
	case OpDiv:
		return a / b
	case OpMax:
		if a > b {
			return a
		}
		return b
	case OpMin:
		if a < b {
			return a
		}
		return b
	case OpPow:
		return math.Pow(a, b)
	case OpEq:
		return boolFloat(a == b)
	case OpGt:
		return boolFloat(a > b)
	case OpGe:
		return boolFloat(a >= b)
	case OpLt:
		return boolFloat(a < b)
	case OpLe:
		return boolFloat(a <= b)
	default:
		return a
	}
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// isBitwise reports whether op must bypass the float64 canonical path
// and operate on dtype's raw int64 form instead (spec.md §4.6:
// bit_and/bit_xor are only meaningful over integers, and routing them
// through float64 would not preserve bit patterns).
func isBitwise(op BinaryOp) bool {
	return op == OpBitAnd || op == OpBitXor
}

func bitwiseScalar(op BinaryOp, a, b int64) int64 {
	if op == OpBitXor {
		return a ^ b
	}
	return a & b
}

// Binary applies op(a, b) into dst, broadcasting a and b to dst's
// shape via the commensurate rule (spec.md §4.3): dst's shape must be
// the elementwise max of a's and b's shapes, and every axis of a and
// b must be a divisor of the corresponding dst axis.
func Binary(op BinaryOp, dstD, aD, bD dims.Dims, dstBuf, aBuf, bBuf driver.Buffer, unchecked bool) error {
	want, err := dims.BroadcastShape(aD.Shape, bD.Shape)
	if err != nil {
		return err
	}
	if !shapeEqual(want, dstD.Shape) {
		return errs.NewShapeError("binary op destination shape %v does not match broadcast shape %v", dstD.Shape, want)
	}
	dt := dstBuf.Datatype()
	if dt != aBuf.Datatype() || dt != bBuf.Datatype() {
		return errs.NewShapeError("binary op requires matching datatypes across dst, a, and b")
	}
	if isBitwise(op) && !dtype.IsInteger(dt) {
		return errs.NewShapeError("bit_and/bit_xor require an integer datatype, got %s", dt)
	}

	dstRaw, aRaw, bRaw := dstBuf.Bytes(), aBuf.Bytes(), bBuf.Bytes()
	var convErr error
	iterateShape(dstD.Shape, func(coord []int, seq int) {
		if convErr != nil {
			return
		}
		aCoord := broadcastCoord(coord, aD.Shape)
		bCoord := broadcastCoord(coord, bD.Shape)
		aOff := linOffset(aD, aCoord)
		bOff := linOffset(bD, bCoord)
		dOff := linOffset(dstD, coord)
		if isBitwise(op) {
			av := dtype.GetInt64(dt, aRaw, aOff)
			bv := dtype.GetInt64(dt, bRaw, bOff)
			dtype.SetInt64(dt, dstRaw, dOff, bitwiseScalar(op, av, bv))
			return
		}
		av := readCanonical(dt, aRaw, aOff)
		bv := readCanonical(dt, bRaw, bOff)
		if err := writeCanonical(dt, dstRaw, dOff, binaryScalar(op, av, bv), unchecked); err != nil {
			convErr = err
		}
	})
	return convErr
}

// broadcastCoord maps a destination coordinate back to operandShape's
// coordinate space via modular indexing (spec.md §4.3,
// dims.BroadcastIndex).
func broadcastCoord(destCoord, operandShape []int) []int {
	out := make([]int, len(operandShape))
	for i, extent := range operandShape {
		out[i] = dims.BroadcastIndex(destCoord[i], extent)
	}
	return out
}

func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Select is the ternary where(cond, onTrue, onFalse) kernel: cond is
// read as a boolean via != 0 in its canonical form, all three operands
// broadcasting to dst's shape under the same commensurate rule as
// Binary.
func Select(dstD, condD, aD, bD dims.Dims, dstBuf, condBuf, aBuf, bBuf driver.Buffer, unchecked bool) error {
	dt := dstBuf.Datatype()
	if dt != aBuf.Datatype() || dt != bBuf.Datatype() {
		return errs.NewShapeError("select requires matching datatypes across dst, a, and b")
	}
	for _, s := range [][]int{condD.Shape, aD.Shape, bD.Shape} {
		if len(s) != len(dstD.Shape) {
			return errs.NewShapeError("select operand shape %v does not match destination rank %v", s, dstD.Shape)
		}
		for i, extent := range s {
			if extent == 0 || dstD.Shape[i]%extent != 0 {
				return errs.NewShapeError("select operand shape %v is not commensurate with destination shape %v", s, dstD.Shape)
			}
		}
	}

	dstRaw, condRaw, aRaw, bRaw := dstBuf.Bytes(), condBuf.Bytes(), aBuf.Bytes(), bBuf.Bytes()
	condDT := condBuf.Datatype()
	var convErr error
	iterateShape(dstD.Shape, func(coord []int, seq int) {
		if convErr != nil {
			return
		}
		condCoord := broadcastCoord(coord, condD.Shape)
		aCoord := broadcastCoord(coord, aD.Shape)
		bCoord := broadcastCoord(coord, bD.Shape)
		cond := readCanonical(condDT, condRaw, linOffset(condD, condCoord))
		var v float64
		if cond != 0 {
			v = readCanonical(dt, aRaw, linOffset(aD, aCoord))
		} else {
			v = readCanonical(dt, bRaw, linOffset(bD, bCoord))
		}
		if err := writeCanonical(dt, dstRaw, linOffset(dstD, coord), v, unchecked); err != nil {
			convErr = err
		}
	})
	return convErr
}
