package recorder

// maxCaptureFrames mirrors RtlCaptureStackBackTrace's practical frame cap
// used by callstack-recorder-windows.cpp's capture routine.
const maxCaptureFrames = 200

// backtracer abstracts over the OS back-trace primitive so stackCapturer
// stays testable without a real stack to walk.
type backtracer interface {
	// captureInto fills dst with return addresses, skipping skip frames
	// so the capture routine itself never appears, and returns the
	// number of frames written.
	captureInto(dst []uint64, skip int) int
}

// stackCapturer wraps the OS back-trace primitive and turns one capture
// request into a callstack record written to the sink. dst is stack
// allocated so a capture never allocates on its hot path.
type stackCapturer struct {
	sink *sink
	bt   backtracer
}

func newStackCapturer(s *sink, bt backtracer) *stackCapturer {
	return &stackCapturer{sink: s, bt: bt}
}

// capture records the caller's current call stack.
func (sc *stackCapturer) capture() {
	var frames [maxCaptureFrames]uint64
	n := sc.bt.captureInto(frames[:], 1)
	sc.sink.writeCallstack(frames[:n])
}
