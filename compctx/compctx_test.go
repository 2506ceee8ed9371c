package compctx

import (
	"testing"

	"github.com/arbalest-compute/compute/dtype"
)

func TestRequireDriverFailsWithNoContext(t *testing.T) {
	if _, err := RequireDriver(); err == nil {
		t.Fatal("expected NoContextError with no active context")
	}
}

func TestWithContextOverridesAndRestores(t *testing.T) {
	dt := dtype.F32
	err := WithContext(Override{Datatype: &dt}, func() error {
		got, err := RequireDatatype()
		if err != nil {
			return err
		}
		if got != dtype.F32 {
			t.Fatalf("datatype = %v, want F32", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithContext: %v", err)
	}
	if _, ok := Current(); ok {
		t.Fatal("expected no active context after WithContext returns")
	}
}

func TestWithContextNestingInheritsUnsetFields(t *testing.T) {
	dt := dtype.F64
	unchecked := true
	err := WithContext(Override{Datatype: &dt, Unchecked: &unchecked}, func() error {
		return WithContext(Override{}, func() error {
			got, err := RequireDatatype()
			if err != nil {
				return err
			}
			if got != dtype.F64 {
				t.Fatalf("inner frame lost inherited datatype: got %v", got)
			}
			if !UncheckedOrDefault(false) {
				t.Fatal("inner frame lost inherited unchecked flag")
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("WithContext: %v", err)
	}
}

func TestUncheckedOrDefaultFallsBackWithNoContext(t *testing.T) {
	if !UncheckedOrDefault(true) {
		t.Fatal("expected default to be returned with no active context")
	}
}
