package compute_test

import (
	"reflect"
	"testing"

	"github.com/arbalest-compute/compute/compute"
	"github.com/arbalest-compute/compute/cpu"
	"github.com/arbalest-compute/compute/driver"
	"github.com/arbalest-compute/compute/dtype"
	"github.com/arbalest-compute/compute/scope"
	"github.com/arbalest-compute/compute/tensor"
)

func setup(t *testing.T) (driver.Device, driver.Stream) {
	t.Helper()
	drv, err := driver.Get(cpu.DriverName)
	if err != nil {
		t.Fatalf("driver.Get: %v", err)
	}
	dev := drv.EnumerateDevices()[0]
	return dev, dev.DefaultStream()
}

func TestBroadcastAddEndToEnd(t *testing.T) {
	dev, stream := setup(t)
	err := scope.WithScope(func(sc *scope.Scope) error {
		a, err := tensor.ToTensor(sc, dev, stream, []float64{1, 2, 3, 4, 5, 6}, dtype.F64, false)
		if err != nil {
			return err
		}
		aBatched, err := tensor.Reshape(a, []int{2, 3})
		if err != nil {
			return err
		}
		b, err := tensor.ToTensor(sc, dev, stream, []float64{10, 20, 30}, dtype.F64, false)
		if err != nil {
			return err
		}
		bBatched, err := tensor.Reshape(b, []int{1, 3})
		if err != nil {
			return err
		}
		dst, err := tensor.NewTensor(sc, []int{2, 3}, tensor.NewOptions{Datatype: dtype.F64, Device: dev, Stream: stream})
		if err != nil {
			return err
		}
		if err := compute.Binary(cpu.OpAdd, dst, aBatched, bBatched, nil); err != nil {
			return err
		}
		got, err := tensor.ToNestedSequence(dst)
		if err != nil {
			return err
		}
		want := [][]float64{{11, 22, 33}, {14, 25, 36}}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("got %v, want %v", got, want)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithScope: %v", err)
	}
}

func TestGemmEndToEndTransposeA(t *testing.T) {
	dev, stream := setup(t)
	err := scope.WithScope(func(sc *scope.Scope) error {
		a, err := tensor.ToTensor(sc, dev, stream, [][]float64{{1, 2}, {3, 4}}, dtype.F64, false)
		if err != nil {
			return err
		}
		b, err := tensor.ToTensor(sc, dev, stream, [][]float64{{5, 6}, {7, 8}}, dtype.F64, false)
		if err != nil {
			return err
		}
		c, err := tensor.NewTensor(sc, []int{2, 2}, tensor.NewOptions{Datatype: dtype.F64, Device: dev, Stream: stream})
		if err != nil {
			return err
		}
		if err := compute.Gemm(true, false, 1, 0, c, a, b); err != nil {
			return err
		}
		got, err := tensor.ToNestedSequence(c)
		if err != nil {
			return err
		}
		want := [][]float64{{26, 30}, {38, 44}}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("got %v, want %v", got, want)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithScope: %v", err)
	}
}

func TestGemmRejectsAliasBetweenCAndA(t *testing.T) {
	dev, stream := setup(t)
	err := scope.WithScope(func(sc *scope.Scope) error {
		a, err := tensor.ToTensor(sc, dev, stream, [][]float64{{1, 2}, {3, 4}}, dtype.F64, false)
		if err != nil {
			return err
		}
		b, err := tensor.ToTensor(sc, dev, stream, [][]float64{{5, 6}, {7, 8}}, dtype.F64, false)
		if err != nil {
			return err
		}
		if err := compute.Gemm(false, false, 1, 0, a, a, b); err == nil {
			t.Fatal("expected AliasError when C aliases A")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithScope: %v", err)
	}
}

func TestReduceEndToEnd(t *testing.T) {
	dev, stream := setup(t)
	err := scope.WithScope(func(sc *scope.Scope) error {
		src, err := tensor.ToTensor(sc, dev, stream, []float64{3, 4, 0, 5}, dtype.F64, false)
		if err != nil {
			return err
		}
		dst, err := tensor.NewTensor(sc, []int{1}, tensor.NewOptions{Datatype: dtype.F64, Device: dev, Stream: stream})
		if err != nil {
			return err
		}
		if err := compute.Reduce(cpu.OpMagnitudeSquared, dst, src, nil); err != nil {
			return err
		}
		got, err := tensor.ToArray(dst)
		if err != nil {
			return err
		}
		if got[0] != 50 {
			t.Fatalf("got %v, want 50", got[0])
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithScope: %v", err)
	}
}
