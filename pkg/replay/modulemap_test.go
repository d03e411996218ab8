package replay

import "testing"

func TestModuleMapLookupWithinRange(t *testing.T) {
	var mm moduleMap
	mm.insert("a.dll", 0x1000, 0x100)

	got, ok := mm.lookup(0x1050)
	if !ok || got.path != "a.dll" {
		t.Fatalf("expected a.dll, got %+v ok=%v", got, ok)
	}
}

func TestModuleMapLookupOutsideRange(t *testing.T) {
	var mm moduleMap
	mm.insert("a.dll", 0x1000, 0x100)

	if _, ok := mm.lookup(0x2000); ok {
		t.Fatal("expected no match outside the module's range")
	}
	if _, ok := mm.lookup(0x1100); ok {
		t.Fatal("the end address is exclusive; base+size must not match")
	}
}

func TestModuleMapInsertOverwritesOverlap(t *testing.T) {
	var mm moduleMap
	mm.insert("a.dll", 0x1000, 0x100)
	mm.insert("b.dll", 0x1000, 0x200)

	if mm.len() != 1 {
		t.Fatalf("expected the overlapping entry to be replaced, got %d entries", mm.len())
	}
	got, ok := mm.lookup(0x1050)
	if !ok || got.path != "b.dll" {
		t.Fatalf("expected b.dll to have replaced a.dll, got %+v", got)
	}
}

func TestModuleMapInsertKeepsNonOverlappingEntries(t *testing.T) {
	var mm moduleMap
	mm.insert("a.dll", 0x1000, 0x100)
	mm.insert("b.dll", 0x2000, 0x100)

	if mm.len() != 2 {
		t.Fatalf("expected 2 distinct entries, got %d", mm.len())
	}
}

func TestModuleMapRemoveByPathRemovesFirstMatchOnly(t *testing.T) {
	var mm moduleMap
	mm.insert("a.dll", 0x1000, 0x100)
	mm.insert("a.dll", 0x3000, 0x100)

	if !mm.removeByPath("a.dll") {
		t.Fatal("expected removeByPath to find a match")
	}
	if mm.len() != 1 {
		t.Fatalf("expected exactly one entry removed, got %d remaining", mm.len())
	}
}

func TestModuleMapRemoveByPathMissingPath(t *testing.T) {
	var mm moduleMap
	mm.insert("a.dll", 0x1000, 0x100)

	if mm.removeByPath("missing.dll") {
		t.Fatal("expected removeByPath to report no match")
	}
	if mm.len() != 1 {
		t.Fatal("unrelated entries must survive a failed removeByPath")
	}
}

func TestModuleMapPointQueryAtExactBase(t *testing.T) {
	var mm moduleMap
	mm.insert("a.dll", 0x1000, 0x100)

	if _, ok := mm.lookup(0x1000); !ok {
		t.Fatal("the base address itself should be in range")
	}
}
