package recorder

import (
	"io"
	"unsafe"

	"github.com/tracewalk/callstack/pkg/wire"
)

// sink is the ring-buffer-backed destination shared by the module tracker
// and the stack capturer. Every write goes through ringBuffer.appendRecord,
// which takes its timestamp and appends the encoded record in one critical
// section.
type sink struct {
	rb    *ringBuffer
	clock func() uint64
}

func newSink(capacity int, overflow OverflowPolicy, clock func() uint64) *sink {
	if clock == nil {
		clock = monotonicNanos
	}
	return &sink{rb: newRingBuffer(capacity, overflow), clock: clock}
}

// writeSystemInfo emits the optional leading system_info record (see
// SPEC_FULL.md §5/§6) once at bootstrap, describing this process rather
// than relying on a consumer to assume 64-bit pointers and UTF-16 paths.
func (s *sink) writeSystemInfo() bool {
	var wideChar uint8 = 2 // Go's path decoding always targets UTF-16, per pkg/wire.
	pointerBits := uint8(8 * unsafe.Sizeof(uintptr(0)))
	return s.rb.appendRecord(s.clock, func(ts uint64) ([]byte, error) {
		return wire.EncodeSystemInfo(ts, pointerBits, wideChar), nil
	})
}

func (s *sink) writeAddModule(path string, baseAddr uint64, size uint32) bool {
	return s.rb.appendRecord(s.clock, func(ts uint64) ([]byte, error) {
		return wire.EncodeAddModule(ts, path, baseAddr, size)
	})
}

func (s *sink) writeDelModule(path string) bool {
	return s.rb.appendRecord(s.clock, func(ts uint64) ([]byte, error) {
		return wire.EncodeDelModule(ts, path)
	})
}

func (s *sink) writeCallstack(frames []uint64) bool {
	return s.rb.appendRecord(s.clock, func(ts uint64) ([]byte, error) {
		return wire.EncodeCallstack(ts, frames)
	})
}

// dump writes the valid contents of the ring buffer to w.
func (s *sink) dump(w io.Writer) error {
	_, err := w.Write(s.rb.snapshot())
	return err
}

// len reports the number of bytes currently held in the buffer.
func (s *sink) len() int {
	return s.rb.len()
}
