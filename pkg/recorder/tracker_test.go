package recorder

import (
	"bytes"
	"errors"
	"testing"

	"github.com/tracewalk/callstack/pkg/wire"
)

var errSubscribeUnavailable = errors.New("loader notification unavailable")

type fakeBackend struct {
	modules      []moduleEvent
	subscribeErr error
	subscribed   func(moduleEvent)
	unsubscribeN int
}

func (b *fakeBackend) enumerate() ([]moduleEvent, error) {
	return b.modules, nil
}

func (b *fakeBackend) subscribe(cb func(moduleEvent)) (func(), error) {
	if b.subscribeErr != nil {
		return nil, b.subscribeErr
	}
	b.subscribed = cb
	return func() { b.unsubscribeN++ }, nil
}

func decodeAll(t *testing.T, raw []byte) []*wire.Record {
	t.Helper()
	dec := wire.NewDecoder(bytes.NewReader(raw))
	var recs []*wire.Record
	for {
		rec, err := dec.Next()
		if err != nil {
			return recs
		}
		recs = append(recs, rec)
	}
}

func TestModuleTrackerEnumeratesAtBootstrap(t *testing.T) {
	backend := &fakeBackend{modules: []moduleEvent{
		{loaded: true, path: "a.dll", baseAddr: 0x1000, size: 0x100},
		{loaded: true, path: "b.dll", baseAddr: 0x2000, size: 0x200},
	}}
	s := newSink(4096, OverflowDrop, fixedClock(0))
	mt := newModuleTracker(s, backend)

	if ok := mt.start(); !ok {
		t.Fatal("expected subscribe to succeed")
	}

	var buf bytes.Buffer
	if err := s.dump(&buf); err != nil {
		t.Fatalf("dump failed: %v", err)
	}
	recs := decodeAll(t, buf.Bytes())
	if len(recs) != 2 {
		t.Fatalf("expected 2 add_module records, got %d", len(recs))
	}
	for i, want := range []string{"a.dll", "b.dll"} {
		if recs[i].Tag != wire.TagAddModule || recs[i].AddModule.Path != want {
			t.Errorf("record %d: expected add_module %q, got %+v", i, want, recs[i])
		}
	}
}

func TestModuleTrackerForwardsLoadAndUnloadEvents(t *testing.T) {
	backend := &fakeBackend{}
	s := newSink(4096, OverflowDrop, fixedClock(0))
	mt := newModuleTracker(s, backend)
	if ok := mt.start(); !ok {
		t.Fatal("expected subscribe to succeed")
	}

	backend.subscribed(moduleEvent{loaded: true, path: "c.dll", baseAddr: 0x3000, size: 0x10})
	backend.subscribed(moduleEvent{loaded: false, path: "c.dll"})

	var buf bytes.Buffer
	s.dump(&buf)
	recs := decodeAll(t, buf.Bytes())
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Tag != wire.TagAddModule || recs[1].Tag != wire.TagDelModule {
		t.Errorf("expected add_module then del_module, got %v then %v", recs[0].Tag, recs[1].Tag)
	}
}

func TestModuleTrackerDegradesWhenSubscribeFails(t *testing.T) {
	backend := &fakeBackend{
		modules:      []moduleEvent{{loaded: true, path: "a.dll", baseAddr: 0x1000, size: 0x10}},
		subscribeErr: errSubscribeUnavailable,
	}
	s := newSink(4096, OverflowDrop, fixedClock(0))
	mt := newModuleTracker(s, backend)

	if ok := mt.start(); ok {
		t.Fatal("expected start to report dynamicOK=false")
	}

	var buf bytes.Buffer
	s.dump(&buf)
	recs := decodeAll(t, buf.Bytes())
	if len(recs) != 1 {
		t.Fatalf("expected the static enumeration pass to still have run, got %d records", len(recs))
	}
}

func TestModuleTrackerStopUnsubscribes(t *testing.T) {
	backend := &fakeBackend{}
	s := newSink(4096, OverflowDrop, fixedClock(0))
	mt := newModuleTracker(s, backend)
	mt.start()
	mt.stop()
	if backend.unsubscribeN != 1 {
		t.Fatalf("expected exactly one unsubscribe call, got %d", backend.unsubscribeN)
	}
	mt.stop()
	if backend.unsubscribeN != 1 {
		t.Fatalf("stop must be idempotent, got %d unsubscribe calls", backend.unsubscribeN)
	}
}
