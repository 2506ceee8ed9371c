package cpu

import (
	"sync/atomic"

	"github.com/apache/arrow/go/arrow/memory"

	"github.com/arbalest-compute/compute/driver"
	"github.com/arbalest-compute/compute/dtype"
	"github.com/arbalest-compute/compute/errs"
)

// backingIDSeq hands out process-unique identities for backing
// allocations (driver.Buffer.BackingID), so Aliases/PartialAliases can
// compare sub-buffers against their parent without holding a shared
// pointer comparison across the driver package boundary.
var backingIDSeq uint64

func nextBackingID() uint64 {
	return atomic.AddUint64(&backingIDSeq, 1)
}

// allocator is the arrow memory.Allocator used for every host/device
// staging buffer this backend creates. The reference backend has no
// real device memory of its own — its "device buffer" and "host
// buffer" are both ordinary process memory — so a single
// general-purpose allocator covers both paths, the same way the
// teacher's MPSEng keeps tensor allocations in regular Go memory and
// only offloads the compute step itself.
var allocator = memory.NewGoAllocator()

// backing is the actual allocation a Buffer (and every SubBuffer
// derived from it) shares.
type backing struct {
	id   uint64
	data []byte
}

// buf implements driver.Buffer for the reference CPU backend. Device
// buffers and host buffers share this same representation: the CPU
// "device" has no memory distinct from host memory, so
// AcceptableHostBuffer/AcceptableDeviceBuffer are true for every
// buffer this driver allocates (spec.md §4.4).
type buf struct {
	back   *backing
	dt     dtype.Datatype
	length int // elements
	elOff  int // element offset into back.data
	dev    driver.Device
	drv    driver.Driver
}

func newBuffer(d driver.Driver, dev driver.Device, n int, dt dtype.Datatype, zero bool) (*buf, error) {
	size := n * dtype.ByteWidth(dt)
	var data []byte
	if size > 0 {
		data = allocator.Allocate(size)
		if !zero {
			// arrow's allocator zero-fills; nothing further to do,
			// but callers that explicitly did not ask for zeroing
			// must not rely on that, per spec.md semantics for
			// new_tensor's init_value being the only guaranteed
			// initialization path.
			_ = zero
		}
	}
	return &buf{
		back:   &backing{id: nextBackingID(), data: data},
		dt:     dt,
		length: n,
		dev:    dev,
		drv:    d,
	}, nil
}

func (b *buf) Datatype() dtype.Datatype { return b.dt }
func (b *buf) Length() int              { return b.length }
func (b *buf) Device() driver.Device    { return b.dev }
func (b *buf) Driver() driver.Driver    { return b.drv }
func (b *buf) BackingID() uint64        { return b.back.id }
func (b *buf) ByteOffset() int          { return b.elOff }

func (b *buf) SubBuffer(off, length int) (driver.Buffer, error) {
	if off < 0 || length < 0 || off+length > b.length {
		return nil, errs.NewShapeError("sub_buffer: range [%d,%d) out of bounds for buffer of length %d", off, off+length, b.length)
	}
	return &buf{
		back:   b.back,
		dt:     b.dt,
		length: length,
		elOff:  b.elOff + off,
		dev:    b.dev,
		drv:    b.drv,
	}, nil
}

func (b *buf) Bytes() []byte {
	if b.back.data == nil {
		return nil
	}
	width := dtype.ByteWidth(b.dt)
	start := b.elOff * width
	end := start + b.length*width
	return b.back.data[start:end]
}

func (b *buf) Release() error {
	// The Go allocator's memory is reclaimed by the GC; nothing to do
	// beyond severing the reference so a use-after-release at least
	// produces a nil-length buffer rather than silently remaining
	// valid.
	if b.back != nil {
		allocator.Free(b.back.data)
		b.back.data = nil
	}
	return nil
}
