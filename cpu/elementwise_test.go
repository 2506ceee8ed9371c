package cpu

import (
	"math"
	"testing"

	"github.com/arbalest-compute/compute/dims"
	"github.com/arbalest-compute/compute/dtype"
)

func vec(t *testing.T, dt dtype.Datatype, values []float64) (*buf, dims.Dims) {
	t.Helper()
	b, err := newBuffer(nil, nil, len(values), dt, true)
	if err != nil {
		t.Fatalf("newBuffer: %v", err)
	}
	raw := b.Bytes()
	for i, v := range values {
		if dtype.IsFloat(dt) {
			dtype.SetFloat64(dt, raw, i, v)
		} else {
			dtype.SetInt64(dt, raw, i, int64(v))
		}
	}
	return b, dims.New([]int{len(values)})
}

func readVec(b *buf, dt dtype.Datatype, n int) []float64 {
	raw := b.Bytes()
	out := make([]float64, n)
	for i := range out {
		if dtype.IsFloat(dt) {
			out[i] = dtype.GetFloat64(dt, raw, i)
		} else {
			out[i] = float64(dtype.GetInt64(dt, raw, i))
		}
	}
	return out
}

func TestUnaryNegF64(t *testing.T) {
	src, srcD := vec(t, dtype.F64, []float64{1, -2, 3})
	dst, dstD := vec(t, dtype.F64, []float64{0, 0, 0})

	if err := Unary(OpNeg, dstD, srcD, dst, src, false); err != nil {
		t.Fatalf("Unary: %v", err)
	}
	got := readVec(dst, dtype.F64, 3)
	want := []float64{-1, 2, -3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestUnarySqrtF32VectorPath(t *testing.T) {
	src, srcD := vec(t, dtype.F32, []float64{4, 9, 16})
	dst, dstD := vec(t, dtype.F32, []float64{0, 0, 0})

	if err := Unary(OpSqrt, dstD, srcD, dst, src, false); err != nil {
		t.Fatalf("Unary: %v", err)
	}
	got := readVec(dst, dtype.F32, 3)
	want := []float64{2, 3, 4}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-5 {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestBinaryAddBroadcast(t *testing.T) {
	a, aD := vec(t, dtype.F64, []float64{1, 2, 3, 4, 5, 6})
	b, bD := vec(t, dtype.F64, []float64{10, 20, 30})
	dst, dstD := vec(t, dtype.F64, make([]float64, 6))

	if err := Binary(OpAdd, dstD, aD, bD, dst, a, b, false); err != nil {
		t.Fatalf("Binary: %v", err)
	}
	got := readVec(dst, dtype.F64, 6)
	want := []float64{11, 22, 33, 14, 25, 36}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestBinaryRejectsIncommensurateShapes(t *testing.T) {
	a, aD := vec(t, dtype.F64, []float64{1, 2, 3, 4, 5})
	b, bD := vec(t, dtype.F64, []float64{10, 20, 30})
	dst, dstD := vec(t, dtype.F64, make([]float64, 5))

	if err := Binary(OpAdd, dstD, aD, bD, dst, a, b, false); err == nil {
		t.Fatal("expected ShapeError: 5 and 3 are not commensurate")
	}
}

func TestUnaryFloorCeilRound(t *testing.T) {
	src, srcD := vec(t, dtype.F64, []float64{1.4, 1.6, -1.4, -1.6})
	dst, dstD := vec(t, dtype.F64, make([]float64, 4))

	if err := Unary(OpFloor, dstD, srcD, dst, src, false); err != nil {
		t.Fatalf("Unary floor: %v", err)
	}
	if got, want := readVec(dst, dtype.F64, 4), []float64{1, 1, -2, -2}; !floatsEqual(got, want) {
		t.Fatalf("floor: got %v, want %v", got, want)
	}

	if err := Unary(OpCeil, dstD, srcD, dst, src, false); err != nil {
		t.Fatalf("Unary ceil: %v", err)
	}
	if got, want := readVec(dst, dtype.F64, 4), []float64{2, 2, -1, -1}; !floatsEqual(got, want) {
		t.Fatalf("ceil: got %v, want %v", got, want)
	}

	if err := Unary(OpRound, dstD, srcD, dst, src, false); err != nil {
		t.Fatalf("Unary round: %v", err)
	}
	if got, want := readVec(dst, dtype.F64, 4), []float64{1, 2, -1, -2}; !floatsEqual(got, want) {
		t.Fatalf("round: got %v, want %v", got, want)
	}
}

func TestUnaryFloorCeilRoundF32(t *testing.T) {
	src, srcD := vec(t, dtype.F32, []float64{1.4, 1.6, -1.4, -1.6})
	dst, dstD := vec(t, dtype.F32, make([]float64, 4))

	if err := Unary(OpRound, dstD, srcD, dst, src, false); err != nil {
		t.Fatalf("Unary round: %v", err)
	}
	got, want := readVec(dst, dtype.F32, 4), []float64{1, 2, -1, -2}
	if !floatsEqual(got, want) {
		t.Fatalf("round f32: got %v, want %v", got, want)
	}
}

func TestUnaryNoop(t *testing.T) {
	src, srcD := vec(t, dtype.F64, []float64{1, 2, 3})
	dst, dstD := vec(t, dtype.F64, make([]float64, 3))

	if err := Unary(OpNoop, dstD, srcD, dst, src, false); err != nil {
		t.Fatalf("Unary noop: %v", err)
	}
	if got, want := readVec(dst, dtype.F64, 3), []float64{1, 2, 3}; !floatsEqual(got, want) {
		t.Fatalf("noop: got %v, want %v", got, want)
	}
}

func TestBinaryBitwise(t *testing.T) {
	a, aD := vec(t, dtype.I32, []float64{6, 12})
	b, bD := vec(t, dtype.I32, []float64{3, 10})
	dst, dstD := vec(t, dtype.I32, make([]float64, 2))

	if err := Binary(OpBitAnd, dstD, aD, bD, dst, a, b, false); err != nil {
		t.Fatalf("Binary bit_and: %v", err)
	}
	if got, want := readVec(dst, dtype.I32, 2), []float64{2, 8}; !floatsEqual(got, want) {
		t.Fatalf("bit_and: got %v, want %v", got, want)
	}

	if err := Binary(OpBitXor, dstD, aD, bD, dst, a, b, false); err != nil {
		t.Fatalf("Binary bit_xor: %v", err)
	}
	if got, want := readVec(dst, dtype.I32, 2), []float64{5, 6}; !floatsEqual(got, want) {
		t.Fatalf("bit_xor: got %v, want %v", got, want)
	}
}

func TestBinaryBitwiseRejectsFloat(t *testing.T) {
	a, aD := vec(t, dtype.F64, []float64{1, 2})
	b, bD := vec(t, dtype.F64, []float64{1, 2})
	dst, dstD := vec(t, dtype.F64, make([]float64, 2))

	if err := Binary(OpBitAnd, dstD, aD, bD, dst, a, b, false); err == nil {
		t.Fatal("expected ShapeError: bit_and requires an integer datatype")
	}
}

func TestBinaryComparisons(t *testing.T) {
	a, aD := vec(t, dtype.F64, []float64{1, 2, 3})
	b, bD := vec(t, dtype.F64, []float64{2, 2, 2})
	dst, dstD := vec(t, dtype.F64, make([]float64, 3))

	cases := []struct {
		op   BinaryOp
		want []float64
	}{
		{OpEq, []float64{0, 1, 0}},
		{OpGt, []float64{0, 0, 1}},
		{OpGe, []float64{0, 1, 1}},
		{OpLt, []float64{1, 0, 0}},
		{OpLe, []float64{1, 1, 0}},
	}
	for _, c := range cases {
		if err := Binary(c.op, dstD, aD, bD, dst, a, b, false); err != nil {
			t.Fatalf("Binary(%d): %v", c.op, err)
		}
		if got := readVec(dst, dtype.F64, 3); !floatsEqual(got, c.want) {
			t.Fatalf("op %d: got %v, want %v", c.op, got, c.want)
		}
	}
}

func floatsEqual(a, b []float64) bool {
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

func TestSelectTernary(t *testing.T) {
	cond, condD := vec(t, dtype.I8, []float64{1, 0, 1})
	a, aD := vec(t, dtype.F64, []float64{1, 2, 3})
	b, bD := vec(t, dtype.F64, []float64{10, 20, 30})
	dst, dstD := vec(t, dtype.F64, make([]float64, 3))

	if err := Select(dstD, condD, aD, bD, dst, cond, a, b, false); err != nil {
		t.Fatalf("Select: %v", err)
	}
	got := readVec(dst, dtype.F64, 3)
	want := []float64{1, 20, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
