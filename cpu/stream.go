package cpu

import (
	"sync"

	"github.com/arbalest-compute/compute/driver"
	"github.com/arbalest-compute/compute/dtype"
	"github.com/arbalest-compute/compute/errs"
)

// task is one unit of enqueued work. Stream methods build and submit
// tasks; the stream's single worker goroutine runs them strictly in
// submission order, which is what gives the stream its FIFO
// happens-before guarantee (spec.md §4.4, §5).
type task func() error

// event marks a point in a stream's queue; Wait blocks until every
// task submitted before the event (on that same stream) has run.
type event struct {
	done chan struct{}
}

func (e *event) Wait() { <-e.done }

// stream is a serialized execution queue on the reference CPU device.
// The host thread never runs device work itself; it only enqueues
// tasks onto q, which the background worker goroutine drains in
// order (spec.md §5: "the host thread does not itself execute device
// work; it only enqueues").
type stream struct {
	device *cpuDevice
	q      chan task
	done   chan struct{}
	once   sync.Once
}

func newStream(d *cpuDevice) *stream {
	s := &stream{device: d, q: make(chan task, 64), done: make(chan struct{})}
	go s.run()
	return s
}

func (s *stream) run() {
	for t := range s.q {
		// A single task's error does not stop the queue: spec.md says
		// nothing about aborting a stream on error, and the scope's
		// release-time SyncWithHost must still be able to drain it.
		// Errors surface via whichever result channel the caller that
		// submitted the task is reading from.
		_ = t()
	}
	close(s.done)
}

// submit enqueues t and returns a channel that receives its result
// once the worker goroutine has run it.
func (s *stream) submit(t task) <-chan error {
	result := make(chan error, 1)
	s.q <- func() error {
		err := t()
		result <- err
		return err
	}
	return result
}

func (s *stream) Device() driver.Device { return s.device }
func (s *stream) Driver() driver.Driver { return s.device.driver }

func (s *stream) CopyHostToDevice(hostBuf driver.Buffer, hostOff int, devBuf driver.Buffer, devOff int, n int) error {
	return <-s.submit(func() error { return copyBytes(hostBuf, hostOff, devBuf, devOff, n) })
}

func (s *stream) CopyDeviceToHost(devBuf driver.Buffer, devOff int, hostBuf driver.Buffer, hostOff int, n int) error {
	return <-s.submit(func() error { return copyBytes(devBuf, devOff, hostBuf, hostOff, n) })
}

func (s *stream) CopyDeviceToDevice(src driver.Buffer, srcOff int, dst driver.Buffer, dstOff int, n int) error {
	return <-s.submit(func() error { return copyBytes(src, srcOff, dst, dstOff, n) })
}

// copyBytes performs a same-datatype byte copy between two buffers
// (device-to-device and host-to-device/device-to-host copies never
// convert datatype; only Copy-through-dtype operations, e.g. to_tensor
// ingestion, perform conversion).
func copyBytes(src driver.Buffer, srcOff int, dst driver.Buffer, dstOff int, n int) error {
	if src.Datatype() != dst.Datatype() {
		return errs.NewShapeError("copy requires matching datatypes: src=%s dst=%s", src.Datatype(), dst.Datatype())
	}
	return dtype.Copy(src.Datatype(), src.Bytes(), srcOff, dst.Datatype(), dst.Bytes(), dstOff, n, true)
}

func (s *stream) SyncWithHost() error {
	barrier := &event{done: make(chan struct{})}
	s.q <- func() error {
		close(barrier.done)
		return nil
	}
	barrier.Wait()
	return nil
}

func (s *stream) InsertEvent() driver.Event {
	ev := &event{done: make(chan struct{})}
	s.q <- func() error {
		close(ev.done)
		return nil
	}
	return ev
}

func (s *stream) Await(ev driver.Event) {
	s.q <- func() error {
		ev.Wait()
		return nil
	}
}

// Close drains and shuts down the stream's worker goroutine. Streams
// returned by CreateStream implement this so a resource scope can
// track them (scope.Track(s, str, str.Close)); spec.md §5 requires
// that an exiting scope call SyncWithHost on a stream it owns before
// releasing the buffers that stream touched, which Close does first.
func (s *stream) Close() error {
	s.once.Do(func() {
		_ = s.SyncWithHost()
		close(s.q)
	})
	return nil
}
