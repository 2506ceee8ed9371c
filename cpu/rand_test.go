package cpu

import (
	"testing"

	"github.com/arbalest-compute/compute/dims"
	"github.com/arbalest-compute/compute/dtype"
)

func TestRandFlatWithinRange(t *testing.T) {
	b, err := newBuffer(nil, nil, 64, dtype.F32, true)
	if err != nil {
		t.Fatalf("newBuffer: %v", err)
	}
	d := dims.New([]int{64})

	if err := Rand(Flat, d, b, 42, 0, 1); err != nil {
		t.Fatalf("Rand: %v", err)
	}
	vals := readVec(b, dtype.F32, 64)
	for i, v := range vals {
		if v < 0 || v >= 1 {
			t.Fatalf("sample %d = %v, want in [0,1)", i, v)
		}
	}
}

func TestRandRejectsNonF32(t *testing.T) {
	b, err := newBuffer(nil, nil, 4, dtype.F64, true)
	if err != nil {
		t.Fatalf("newBuffer: %v", err)
	}
	d := dims.New([]int{4})
	if err := Rand(Gaussian, d, b, 1, 0, 1); err == nil {
		t.Fatal("expected ShapeError for non-f32 destination")
	}
}

func TestRandGaussianDeterministicForSeed(t *testing.T) {
	d := dims.New([]int{16})
	b1, _ := newBuffer(nil, nil, 16, dtype.F32, true)
	b2, _ := newBuffer(nil, nil, 16, dtype.F32, true)

	if err := Rand(Gaussian, d, b1, 7, 0, 1); err != nil {
		t.Fatalf("Rand: %v", err)
	}
	if err := Rand(Gaussian, d, b2, 7, 0, 1); err != nil {
		t.Fatalf("Rand: %v", err)
	}
	v1, v2 := readVec(b1, dtype.F32, 16), readVec(b2, dtype.F32, 16)
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("same seed produced different sequences at %d: %v vs %v", i, v1[i], v2[i])
		}
	}
}
