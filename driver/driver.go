// Package driver defines the capability contracts every compute
// backend must satisfy (C4, spec.md §4.4): Driver, Device, Stream, and
// Buffer. It also hosts the process-wide backend registry
// (spec.md §6) — the only process-wide mutable state the core
// requires.
package driver

import (
	"sync"

	"github.com/arbalest-compute/compute/dtype"
	"github.com/arbalest-compute/compute/errs"
)

// Usage hints how a host buffer will be used, letting a backend choose
// a cheaper allocation strategy for one-shot staging versus a buffer
// that will be reused across many transfers.
type Usage int

const (
	// OneTime indicates the buffer will be used for a single transfer
	// and then released.
	OneTime Usage = iota
	// Reusable indicates the buffer will be staged into repeatedly.
	Reusable
)

// HostBufferOptions configures Driver.AllocateHostBuffer.
type HostBufferOptions struct {
	Usage Usage
}

// DeviceBufferOptions configures Device.AllocateDeviceBuffer. It is
// intentionally a thin, backend-opaque struct: concrete backends may
// type-assert it or ignore fields they don't understand.
type DeviceBufferOptions struct {
	// Zero requests the buffer be zero-initialized after allocation.
	Zero bool
}

// MemoryInfo reports a device's free/total byte counts.
type MemoryInfo struct {
	Free, Total int64
}

// Buffer is the capability set for both host and device buffers
// (spec.md §4.4 "Buffer capability", §3). A sub-buffer shares backing
// storage with its parent; releasing the parent while a sub-buffer is
// alive is a usage error the owning resource scope is responsible for
// preventing via structural nesting (spec.md §3).
type Buffer interface {
	// Datatype returns the buffer's element type.
	Datatype() dtype.Datatype
	// Length returns the element count.
	Length() int
	// Device returns the owning device, or nil for a host buffer.
	Device() Device
	// Driver returns the owning driver.
	Driver() Driver
	// BackingID identifies the backing allocation: a buffer and every
	// sub-buffer derived from it share the same BackingID.
	BackingID() uint64
	// ByteOffset returns this buffer's offset in elements into its
	// backing allocation (0 for a non-sub-buffer).
	ByteOffset() int
	// SubBuffer returns a view of off..off+length (in elements) of the
	// same backing storage; no copy is performed.
	SubBuffer(off, length int) (Buffer, error)
	// Bytes returns the buffer's raw bytes if it is host-addressable,
	// or nil otherwise. The slice is valid for the buffer's lifetime.
	Bytes() []byte
	// Release frees the buffer. Called by the owning resource scope;
	// user code should not normally call this directly.
	Release() error
}

// Aliases reports whether a and b refer to the same backing store and
// an identical element range (spec.md §4.4).
func Aliases(a, b Buffer) bool {
	return a.BackingID() == b.BackingID() && a.ByteOffset() == b.ByteOffset() && a.Length() == b.Length()
}

// PartialAliases reports whether a and b refer to the same backing
// store and their ranges overlap (spec.md §4.4).
func PartialAliases(a, b Buffer) bool {
	if a.BackingID() != b.BackingID() {
		return false
	}
	aLo, aHi := a.ByteOffset(), a.ByteOffset()+a.Length()
	bLo, bHi := b.ByteOffset(), b.ByteOffset()+b.Length()
	return aLo < bHi && bLo < aHi
}

// Event is an opaque marker inserted into a stream's queue, used to
// make another stream wait (spec.md glossary).
type Event interface {
	// Wait blocks until the event has fired. Backends whose streams
	// are not goroutine-driven may implement this as a no-op when the
	// event has necessarily already happened by construction.
	Wait()
}

// Stream is a serial execution queue on a device (spec.md §4.4
// "Stream capability"). Operations enqueued on one stream observe a
// happens-before relation in enqueue order; across streams there is no
// ordering except through SyncWithStream or SyncWithHost.
type Stream interface {
	Device() Device
	Driver() Driver

	CopyHostToDevice(hostBuf Buffer, hostOff int, devBuf Buffer, devOff int, n int) error
	CopyDeviceToHost(devBuf Buffer, devOff int, hostBuf Buffer, hostOff int, n int) error
	CopyDeviceToDevice(src Buffer, srcOff int, dst Buffer, dstOff int, n int) error

	// SyncWithHost blocks the caller until this stream's queue drains.
	SyncWithHost() error

	// InsertEvent enqueues a marker and returns it; Wait on the
	// returned Event blocks until every operation enqueued on this
	// stream before the marker has completed.
	InsertEvent() Event

	// Await enqueues a wait for ev before continuing this stream's
	// queue, establishing a happens-before edge from ev's stream into
	// this one. Used by SyncWithStream.
	Await(ev Event)
}

// SyncWithStream makes dst await an event inserted into src's queue
// (spec.md §4.4). Both streams must belong to the same driver;
// otherwise it fails with CrossDriverError.
func SyncWithStream(src, dst Stream) error {
	if src.Driver().Name() != dst.Driver().Name() {
		return errs.NewCrossDriverError(src.Driver().Name(), dst.Driver().Name())
	}
	ev := src.InsertEvent()
	dst.Await(ev)
	return nil
}

// Device owns memory and may spawn streams (spec.md §4.4 "Device
// capability").
type Device interface {
	Driver() Driver
	Name() string
	MemoryInfo() MemoryInfo
	SupportsCreateStream() bool
	DefaultStream() Stream
	// CreateStream creates an additional stream. It fails if
	// SupportsCreateStream() is false.
	CreateStream() (Stream, error)
	AllocateDeviceBuffer(n int, dt dtype.Datatype, opts DeviceBufferOptions) (Buffer, error)
	// AcceptableDeviceBuffer reports whether buf (allocated by this or
	// another device) is directly usable by this device without
	// staging.
	AcceptableDeviceBuffer(buf Buffer) bool
	// AcceptableHostBuffer reports whether a host buffer happens to be
	// directly addressable by this device, letting callers skip
	// staging (spec.md §4.4).
	AcceptableHostBuffer(buf Buffer) bool
}

// Driver is a backend registry entry capable of enumerating devices
// and allocating host staging buffers (spec.md §4.4 "Driver
// capability", glossary).
type Driver interface {
	Name() string
	EnumerateDevices() []Device
	AllocateHostBuffer(n int, dt dtype.Datatype, opts HostBufferOptions) (Buffer, error)
}

// Factory constructs a Driver instance on demand.
type Factory func() (Driver, error)

var registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	instances map[string]Driver
}

func init() {
	registry.factories = make(map[string]Factory)
	registry.instances = make(map[string]Driver)
}

// Register associates name with factory in the process-wide backend
// registry. Backend packages call this from an init() function.
// Registering the same name twice panics, matching the fail-fast
// posture backend registration failures warrant (it is a programming
// error, not a runtime condition callers should handle).
func Register(name string, factory Factory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, exists := registry.factories[name]; exists {
		panic("driver: duplicate registration for " + name)
	}
	registry.factories[name] = factory
}

// Get returns the registered driver for name, constructing and caching
// it on first use (spec.md §6: "initialized at first use and never
// torn down"). It fails with UnknownDriverError if name was never
// registered.
func Get(name string) (Driver, error) {
	registry.mu.RLock()
	if d, ok := registry.instances[name]; ok {
		registry.mu.RUnlock()
		return d, nil
	}
	factory, ok := registry.factories[name]
	registry.mu.RUnlock()
	if !ok {
		return nil, errs.NewUnknownDriverError(name)
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()
	if d, ok := registry.instances[name]; ok {
		return d, nil
	}
	d, err := factory()
	if err != nil {
		return nil, errs.NewDeviceError(name, err)
	}
	registry.instances[name] = d
	return d, nil
}

// Names returns the currently registered driver names, for
// diagnostics and tests.
func Names() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	names := make([]string, 0, len(registry.factories))
	for n := range registry.factories {
		names = append(names, n)
	}
	return names
}
