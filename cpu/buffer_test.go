package cpu

import (
	"testing"

	"github.com/arbalest-compute/compute/driver"
	"github.com/arbalest-compute/compute/dtype"
)

// TestSubBufferAliasing exercises SubBuffer (spec.md §4.4 Buffer
// capability) against driver.Aliases and driver.PartialAliases
// directly, the way a tensor view over a shared backing store would
// (tensor views in this tree reuse the parent *buf rather than calling
// SubBuffer themselves, so this is SubBuffer's only exerciser).
func TestSubBufferAliasing(t *testing.T) {
	parent, err := newBuffer(nil, nil, 10, dtype.F64, true)
	if err != nil {
		t.Fatalf("newBuffer: %v", err)
	}

	whole, err := parent.SubBuffer(0, 10)
	if err != nil {
		t.Fatalf("SubBuffer(whole): %v", err)
	}
	if !driver.Aliases(whole, parent) {
		t.Fatal("a sub-buffer spanning the whole parent range must alias it")
	}

	left, err := parent.SubBuffer(0, 4)
	if err != nil {
		t.Fatalf("SubBuffer(left): %v", err)
	}
	right, err := parent.SubBuffer(6, 4)
	if err != nil {
		t.Fatalf("SubBuffer(right): %v", err)
	}
	if driver.Aliases(left, right) {
		t.Fatal("disjoint sub-buffers must not report exact aliasing")
	}
	if driver.PartialAliases(left, right) {
		t.Fatal("disjoint sub-buffers must not report partial aliasing")
	}

	overlapping, err := parent.SubBuffer(2, 4)
	if err != nil {
		t.Fatalf("SubBuffer(overlapping): %v", err)
	}
	if !driver.PartialAliases(left, overlapping) {
		t.Fatal("overlapping sub-buffers [0,4) and [2,6) must report partial aliasing")
	}
	if driver.Aliases(left, overlapping) {
		t.Fatal("overlapping-but-unequal sub-buffers must not report exact aliasing")
	}

	if _, err := parent.SubBuffer(8, 5); err == nil {
		t.Fatal("expected ShapeError for a sub-buffer range past the parent's length")
	}
}
