// Package cpu implements the compute core's reference CPU backend
// (C8, spec.md §2): a minimal in-process backend that satisfies every
// driver.Driver/Device/Stream/Buffer contract using native Go memory,
// a single background goroutine per stream for serialized execution,
// and a BLAS-backed gemm (via gorgonia.org/tensor's StdEng, adapting
// the teacher's row-major materialization helpers).
package cpu

import (
	"github.com/arbalest-compute/compute/driver"
	"github.com/arbalest-compute/compute/dtype"
)

// DriverName is the name this backend registers itself under.
const DriverName = "cpu"

func init() {
	driver.Register(DriverName, func() (driver.Driver, error) {
		return newDriver(), nil
	})
}

// cpuDriver is the sole driver instance; it enumerates exactly one
// device (the host CPU itself).
type cpuDriver struct {
	device *cpuDevice
}

func newDriver() *cpuDriver {
	d := &cpuDriver{}
	d.device = newDevice(d)
	return d
}

func (d *cpuDriver) Name() string { return DriverName }

func (d *cpuDriver) EnumerateDevices() []driver.Device {
	return []driver.Device{d.device}
}

func (d *cpuDriver) AllocateHostBuffer(n int, dt dtype.Datatype, opts driver.HostBufferOptions) (driver.Buffer, error) {
	return newBuffer(d, nil, n, dt, true)
}

// cpuDevice is the single in-process "device": it owns no memory
// distinct from host memory, and it supports creating additional
// streams (each backed by its own worker goroutine).
type cpuDevice struct {
	driver *cpuDriver
	def    *stream
}

func newDevice(d *cpuDriver) *cpuDevice {
	dev := &cpuDevice{driver: d}
	dev.def = newStream(dev)
	return dev
}

func (d *cpuDevice) Driver() driver.Driver { return d.driver }
func (d *cpuDevice) Name() string          { return "cpu0" }

func (d *cpuDevice) MemoryInfo() driver.MemoryInfo {
	// The reference backend has no fixed memory budget of its own; it
	// borrows the host's, which Go does not expose precisely. Report
	// an unbounded budget rather than fabricate a number nothing
	// downstream can act on.
	return driver.MemoryInfo{Free: -1, Total: -1}
}

func (d *cpuDevice) SupportsCreateStream() bool { return true }

func (d *cpuDevice) DefaultStream() driver.Stream { return d.def }

func (d *cpuDevice) CreateStream() (driver.Stream, error) {
	return newStream(d), nil
}

func (d *cpuDevice) AllocateDeviceBuffer(n int, dt dtype.Datatype, opts driver.DeviceBufferOptions) (driver.Buffer, error) {
	return newBuffer(d.driver, d, n, dt, opts.Zero)
}

// AcceptableDeviceBuffer holds for every buffer allocated by the cpu
// driver: each one is plain host memory.
func (d *cpuDevice) AcceptableDeviceBuffer(b driver.Buffer) bool {
	return b.Driver().Name() == DriverName
}

// AcceptableHostBuffer holds for every buffer allocated by the cpu
// driver: the reference device can address host memory directly, so
// callers can skip staging entirely.
func (d *cpuDevice) AcceptableHostBuffer(b driver.Buffer) bool {
	return b.Driver().Name() == DriverName
}
