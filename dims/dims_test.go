package dims

import (
	"reflect"
	"testing"
)

func TestNewIsSimple(t *testing.T) {
	d := New([]int{3, 4})
	if !d.Simple() {
		t.Fatalf("freshly constructed dims should be simple: %+v", d)
	}
	if got, want := d.Strides, []int{4, 1}; !reflect.DeepEqual(got, want) {
		t.Errorf("strides = %v, want %v", got, want)
	}
}

func TestReshapeRequiresDenseAccessIncreasing(t *testing.T) {
	d := New([]int{2, 3})
	reshaped, err := Reshape(d, []int{6})
	if err != nil {
		t.Fatalf("Reshape: %v", err)
	}
	if !reflect.DeepEqual(reshaped.Shape, []int{6}) {
		t.Errorf("shape = %v, want [6]", reshaped.Shape)
	}

	transposed, err := Transpose(d, []int{1, 0})
	if err != nil {
		t.Fatalf("Transpose: %v", err)
	}
	if _, err := Reshape(transposed, []int{6}); err == nil {
		t.Fatal("expected ShapeError reshaping a transposed (non-access-increasing when strides don't match) descriptor")
	}
}

func TestTransposeInvolution(t *testing.T) {
	d := New([]int{2, 3, 4})
	perm := []int{2, 0, 1}
	inv := []int{1, 2, 0} // perm^-1

	t1, err := Transpose(d, perm)
	if err != nil {
		t.Fatalf("Transpose: %v", err)
	}
	t2, err := Transpose(t1, inv)
	if err != nil {
		t.Fatalf("Transpose inverse: %v", err)
	}
	if !reflect.DeepEqual(t2.Shape, d.Shape) || !reflect.DeepEqual(t2.Strides, d.Strides) {
		t.Fatalf("transpose(transpose(d, perm), perm^-1) = %+v, want %+v", t2, d)
	}
}

func TestTransposeRejectsInvalidPerm(t *testing.T) {
	d := New([]int{2, 3})
	if _, err := Transpose(d, []int{0, 0}); err == nil {
		t.Fatal("expected error for duplicate axis in perm")
	}
	if _, err := Transpose(d, []int{0, 2}); err == nil {
		t.Fatal("expected error for out-of-range axis in perm")
	}
}

func TestSelectSubView(t *testing.T) {
	// 3x3 descriptor, select rows [0,2) and cols [0,2).
	d := New([]int{3, 3})
	sub, err := Select(d, Rng(0, 2), Rng(0, 2))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if !reflect.DeepEqual(sub.Shape, []int{2, 2}) {
		t.Errorf("shape = %v, want [2 2]", sub.Shape)
	}
	if sub.Offset != 0 {
		t.Errorf("offset = %d, want 0", sub.Offset)
	}
}

func TestSelectIndexDropsAxis(t *testing.T) {
	d := New([]int{3, 4})
	sub, err := Select(d, Idx(1), All())
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if !reflect.DeepEqual(sub.Shape, []int{4}) {
		t.Errorf("shape = %v, want [4]", sub.Shape)
	}
	if sub.Offset != 4 { // row 1 * stride 4
		t.Errorf("offset = %d, want 4", sub.Offset)
	}
}

func TestSelectComposition(t *testing.T) {
	d := New([]int{4, 4})
	once, err := Select(d, Rng(1, 3), Rng(0, 4))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	twice, err := Select(once, Rng(0, 1), Rng(1, 3))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	// Row 1 (from the first select), cols [1,3) -- directly equivalent
	// to select(d, Idx-style range [1,2), Rng(1,3)).
	direct, err := Select(d, Rng(1, 2), Rng(1, 3))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if !reflect.DeepEqual(twice.Shape, direct.Shape) || twice.Offset != direct.Offset {
		t.Fatalf("select(select(d,S1),S2) = %+v, want %+v", twice, direct)
	}
}

func TestSelectRejectsOutOfRange(t *testing.T) {
	d := New([]int{3})
	if _, err := Select(d, Idx(5)); err == nil {
		t.Fatal("expected SelectError for out-of-range index")
	}
	if _, err := Select(d, Rng(2, 1)); err == nil {
		t.Fatal("expected SelectError for non-increasing range")
	}
}

func TestCommensurateBroadcast(t *testing.T) {
	if !Commensurate([]int{6}, []int{3}) {
		t.Fatal("[6] and [3] should be commensurate (6 mod 3 == 0)")
	}
	if Commensurate([]int{6}, []int{4}) {
		t.Fatal("[6] and [4] should not be commensurate (6 mod 4 != 0)")
	}
	shape, err := BroadcastShape([]int{6}, []int{3})
	if err != nil {
		t.Fatalf("BroadcastShape: %v", err)
	}
	if !reflect.DeepEqual(shape, []int{6}) {
		t.Errorf("broadcast shape = %v, want [6]", shape)
	}
}

func TestAs2DAndBatchShape(t *testing.T) {
	d := New([]int{2, 3, 4})
	if got := As2DShape(d); !reflect.DeepEqual(got, []int{6, 4}) {
		t.Errorf("As2DShape = %v, want [6 4]", got)
	}
	if got := AsBatchShape(d); !reflect.DeepEqual(got, []int{2, 12}) {
		t.Errorf("AsBatchShape = %v, want [2 12]", got)
	}
}

func TestColumnAndElementStride(t *testing.T) {
	d := New([]int{3, 4})
	cs, err := ColumnStride(d)
	if err != nil || cs != 4 {
		t.Errorf("ColumnStride = %d, %v, want 4, nil", cs, err)
	}
	es, err := ElementStride(d)
	if err != nil || es != 1 {
		t.Errorf("ElementStride = %d, %v, want 1, nil", es, err)
	}
}
