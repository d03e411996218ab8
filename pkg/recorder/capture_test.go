package recorder

import (
	"bytes"
	"testing"
)

type fakeBacktracer struct {
	frames    []uint64
	lastSkip  int
}

func (b *fakeBacktracer) captureInto(dst []uint64, skip int) int {
	b.lastSkip = skip
	n := copy(dst, b.frames)
	return n
}

func TestStackCapturerWritesCallstackRecord(t *testing.T) {
	bt := &fakeBacktracer{frames: []uint64{0xaaaa, 0xbbbb, 0xcccc}}
	s := newSink(4096, OverflowDrop, fixedClock(0))
	sc := newStackCapturer(s, bt)

	sc.capture()

	var buf bytes.Buffer
	s.dump(&buf)
	recs := decodeAll(t, buf.Bytes())
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if len(recs[0].Callstack.Frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(recs[0].Callstack.Frames))
	}
	if bt.lastSkip != 1 {
		t.Errorf("expected skip=1 so the capture routine itself is not included, got %d", bt.lastSkip)
	}
}

func TestStackCapturerHandlesEmptyStack(t *testing.T) {
	bt := &fakeBacktracer{}
	s := newSink(4096, OverflowDrop, fixedClock(0))
	sc := newStackCapturer(s, bt)

	sc.capture()

	var buf bytes.Buffer
	s.dump(&buf)
	recs := decodeAll(t, buf.Bytes())
	if len(recs) != 1 || len(recs[0].Callstack.Frames) != 0 {
		t.Fatalf("expected 1 record with 0 frames, got %+v", recs)
	}
}
