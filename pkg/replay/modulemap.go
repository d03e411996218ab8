package replay

import "sort"

// moduleRange is one entry in a moduleMap: a module occupying the
// half-open byte range [base, base+size).
type moduleRange struct {
	path string
	base uint64
	size uint32
}

func (m moduleRange) end() uint64 {
	return m.base + uint64(m.size)
}

func (m moduleRange) contains(addr uint64) bool {
	return addr >= m.base && addr < m.end()
}

// moduleMap is an ordered, non-overlapping set of module address ranges,
// grounded on callstack-player.cpp's module map. Where the original finds
// a point with a zero-length "{addr, addr}" range query, lookup here
// binary-searches the sorted bases and checks the one range that can
// contain the address.
type moduleMap struct {
	entries []moduleRange // always kept sorted by base
}

// insert adds the module at [base, base+size), replacing any existing
// entries it overlaps. This matches the Module Tracker's duplicate- and
// reload-tolerant semantics: a repeated or updated add_module for the same
// address range simply wins over whatever was there.
func (mm *moduleMap) insert(path string, base uint64, size uint32) {
	nr := moduleRange{path: path, base: base, size: size}

	next := make([]moduleRange, 0, len(mm.entries)+1)
	for _, e := range mm.entries {
		if e.end() <= nr.base || e.base >= nr.end() {
			next = append(next, e)
		}
	}
	next = append(next, nr)

	sort.Slice(next, func(i, j int) bool { return next[i].base < next[j].base })
	mm.entries = next
}

// removeByPath removes the first entry, in ascending base-address order,
// whose path matches. It reports whether an entry was removed.
func (mm *moduleMap) removeByPath(path string) bool {
	for i, e := range mm.entries {
		if e.path == path {
			mm.entries = append(mm.entries[:i:i], mm.entries[i+1:]...)
			return true
		}
	}
	return false
}

// lookup returns the module containing addr, if any.
func (mm *moduleMap) lookup(addr uint64) (moduleRange, bool) {
	i := sort.Search(len(mm.entries), func(i int) bool { return mm.entries[i].base > addr })
	if i == 0 {
		return moduleRange{}, false
	}
	e := mm.entries[i-1]
	if e.contains(addr) {
		return e, true
	}
	return moduleRange{}, false
}

// len reports the number of modules currently mapped.
func (mm *moduleMap) len() int {
	return len(mm.entries)
}
