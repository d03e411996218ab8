package recorder

import (
	"bytes"
	"os"
	"sync"
	"sync/atomic"

	"github.com/tracewalk/callstack/pkg/envelope"
)

// Recorder is the process-wide call-stack recording facade (the Recorder
// Facade of SPEC_FULL.md §1), grounded on callstack-recorder-windows.cpp's
// g_callstack_recorder singleton and its Uninitialized -> Active -> Torn
// lifecycle. The zero value returned by New is Uninitialized and inert:
// Capture bootstraps it lazily on first use.
type Recorder struct {
	cfg Config

	once     sync.Once
	sink     *sink
	tracker  *moduleTracker
	capturer *stackCapturer

	torn atomic.Bool
}

// New creates a Recorder configured by cfg. Bootstrap — allocating the
// ring buffer, performing the static module enumeration, and registering
// the loader callback — is deferred to the first Capture call.
func New(cfg Config) *Recorder {
	return &Recorder{cfg: cfg}
}

func (r *Recorder) bootstrap() {
	r.once.Do(func() {
		r.sink = newSink(r.cfg.BufferCapacity, r.cfg.Overflow, nil)
		r.sink.writeSystemInfo()
		r.tracker = newModuleTracker(r.sink, newLoaderBackend())
		r.tracker.start()
		r.capturer = newStackCapturer(r.sink, newBacktracer())
	})
}

// Capture records the calling goroutine's current call stack. The first
// call on a Recorder bootstraps it; calls after Close are a no-op, mirroring
// the original's "torn recorders don't record" behavior.
func (r *Recorder) Capture() {
	if r.torn.Load() {
		return
	}
	r.bootstrap()
	r.capturer.capture()
}

// Dump writes the recorder's buffered log to path, applying whatever
// compression/encryption/integrity options cfg carries. It returns false
// (never an error, matching the original's bool-returning dump()) if the
// recorder was never bootstrapped or the file could not be written.
func (r *Recorder) Dump(path string) bool {
	if r.sink == nil {
		return false
	}

	var raw bytes.Buffer
	if err := r.sink.dump(&raw); err != nil {
		return false
	}

	sealed, err := envelope.Seal(raw.Bytes(), r.cfg.envelopeOptions())
	if err != nil {
		return false
	}

	return os.WriteFile(path, sealed, 0o644) == nil
}

// Close tears the recorder down: it marks the recorder torn, so later
// Capture calls are no-ops, and then unregisters the loader callback. The
// buffer is not released, so Dump still works after Close. Go has no
// static destructors, so
// callers own calling Close explicitly — typically via defer, the idiom
// cmd/csrecord uses. Close is safe to call more than once and safe to call
// on a Recorder that was never bootstrapped.
func (r *Recorder) Close() {
	if !r.torn.CompareAndSwap(false, true) {
		return
	}
	if r.tracker != nil {
		r.tracker.stop()
	}
}
