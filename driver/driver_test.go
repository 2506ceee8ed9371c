package driver

import (
	"testing"

	"github.com/arbalest-compute/compute/dtype"
)

type stubDriver struct{ name string }

func (s *stubDriver) Name() string               { return s.name }
func (s *stubDriver) EnumerateDevices() []Device { return nil }
func (s *stubDriver) AllocateHostBuffer(int, dtype.Datatype, HostBufferOptions) (Buffer, error) {
	return nil, nil
}

func TestUnknownDriverError(t *testing.T) {
	if _, err := Get("does-not-exist"); err == nil {
		t.Fatal("expected UnknownDriverError")
	}
}

func TestRegisterAndGetCaches(t *testing.T) {
	calls := 0
	Register("stub-test-driver", func() (Driver, error) {
		calls++
		return &stubDriver{name: "stub-test-driver"}, nil
	})

	d1, err := Get("stub-test-driver")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	d2, err := Get("stub-test-driver")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if d1 != d2 {
		t.Fatal("expected Get to cache the driver instance")
	}
	if calls != 1 {
		t.Fatalf("factory invoked %d times, want 1", calls)
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	Register("dup-test-driver", func() (Driver, error) { return &stubDriver{name: "dup-test-driver"}, nil })
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	Register("dup-test-driver", func() (Driver, error) { return &stubDriver{name: "dup-test-driver"}, nil })
}
