package replay

import "testing"

type fakeDebugInfoBackend struct {
	images map[string]uint64 // path -> loadAddress
	lines  map[uint64]lineInfo
}

func newFakeDebugInfoBackend() *fakeDebugInfoBackend {
	return &fakeDebugInfoBackend{
		images: make(map[string]uint64),
		lines:  make(map[uint64]lineInfo),
	}
}

func (f *fakeDebugInfoBackend) addImage(path string, loadAddress uint64) error {
	f.images[path] = loadAddress
	return nil
}

func (f *fakeDebugInfoBackend) pcToLine(pc uint64) lineInfo {
	if info, ok := f.lines[pc]; ok {
		return info
	}
	return lineInfo{}
}

func TestResolverHandleIsNonZeroAndStable(t *testing.T) {
	r, err := newResolverWithBackend(newFakeDebugInfoBackend())
	if err != nil {
		t.Fatalf("newResolverWithBackend failed: %v", err)
	}
	h1 := r.Handle()
	h2 := r.Handle()
	if h1 != h2 {
		t.Error("Handle should be stable across calls")
	}
	if h1 == 0 {
		t.Error("Handle should very rarely be exactly zero; treat as a bug if this fails repeatedly")
	}
}

func TestResolverTwoInstancesMintDifferentHandles(t *testing.T) {
	r1, _ := newResolverWithBackend(newFakeDebugInfoBackend())
	r2, _ := newResolverWithBackend(newFakeDebugInfoBackend())
	if r1.Handle() == r2.Handle() {
		t.Error("two Resolvers should not mint the same handle")
	}
}

func TestResolverResolvesKnownModuleOffset(t *testing.T) {
	backend := newFakeDebugInfoBackend()
	r, _ := newResolverWithBackend(backend)

	if err := r.AddModule("a.dll", 0x1000); err != nil {
		t.Fatalf("AddModule failed: %v", err)
	}
	base := syntheticBaseWatermark
	backend.lines[uint64(base)+0x50] = lineInfo{File: "a.c", Line: 42, Function: "foo", Found: true}

	frame := r.Resolve("a.dll", 0x50)
	if !frame.Resolved || frame.File != "a.c" || frame.Line != 42 || frame.Function != "foo" {
		t.Errorf("unexpected resolution: %+v", frame)
	}
}

func TestResolverUnknownModuleIsUnresolved(t *testing.T) {
	r, _ := newResolverWithBackend(newFakeDebugInfoBackend())
	frame := r.Resolve("unknown.dll", 0x10)
	if frame.Resolved {
		t.Error("expected an unresolved frame for a module never added")
	}
	if frame.Module != "unknown.dll" || frame.Offset != 0x10 {
		t.Errorf("expected module/offset to be preserved even when unresolved, got %+v", frame)
	}
}

func TestResolverCachesRepeatedLookups(t *testing.T) {
	backend := newFakeDebugInfoBackend()
	r, _ := newResolverWithBackend(backend)
	r.AddModule("a.dll", 0x1000)
	backend.lines[uint64(syntheticBaseWatermark)+0x20] = lineInfo{File: "a.c", Line: 1, Function: "f", Found: true}

	first := r.Resolve("a.dll", 0x20)
	// Mutate the backend's answer; the cached result must not change.
	backend.lines[uint64(syntheticBaseWatermark)+0x20] = lineInfo{File: "other.c", Line: 99, Function: "g", Found: true}
	second := r.Resolve("a.dll", 0x20)

	if first != second {
		t.Errorf("expected a cached lookup to return the same tuple, got %+v then %+v", first, second)
	}
}

func TestResolverSecondModuleGetsDistinctSyntheticBase(t *testing.T) {
	backend := newFakeDebugInfoBackend()
	r, _ := newResolverWithBackend(backend)

	r.AddModule("a.dll", 0x1000)
	r.AddModule("b.dll", 0x2000)

	if backend.images["a.dll"] == backend.images["b.dll"] {
		t.Error("expected distinct synthetic load addresses per module")
	}
	if backend.images["b.dll"] != backend.images["a.dll"]+0x1000 {
		t.Errorf("expected b.dll's base to follow a.dll's size, got a=%#x b=%#x",
			backend.images["a.dll"], backend.images["b.dll"])
	}
}

func TestResolverRemoveModuleForgetsMapping(t *testing.T) {
	backend := newFakeDebugInfoBackend()
	r, _ := newResolverWithBackend(backend)
	r.AddModule("a.dll", 0x1000)
	backend.lines[uint64(syntheticBaseWatermark)+0x5] = lineInfo{File: "a.c", Line: 1, Found: true}

	r.RemoveModule("a.dll")
	frame := r.Resolve("a.dll", 0x5)
	if frame.Resolved {
		t.Error("expected no resolution once the module has been removed")
	}
}
