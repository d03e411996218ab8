package replay

import (
	"hash/crc32"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
)

// syntheticBaseWatermark is the first synthetic load address handed to the
// debug-info backend. The player never runs on the machine that recorded
// the log, so a module's real runtime base address is meaningless here;
// callstack-player.cpp relocates every module to a synthetic base it
// controls before resolving against it, and this rewrite does the same.
const syntheticBaseWatermark = 0x1_0000_0000

// ResolvedFrame is one symbolicated return address.
type ResolvedFrame struct {
	Addr     uint64
	Module   string
	Offset   uint64
	File     string
	Line     int
	Function string
	Resolved bool
}

type cacheKey struct {
	module string
	offset uint64
}

// Resolver resolves recorded return addresses to (module, offset) pairs
// and, when debug info is available, (file, line, function) tuples. Each
// Resolver owns an opaque 64-bit handle minted at construction time,
// mirroring the original's generate_id for a per-session symbol-library
// context (callstack-player.cpp), and an LRU cache of already-resolved
// (module, offset) tuples so a hot call site that recurs across many
// callstack records isn't re-resolved through the debug-info backend
// every time.
type Resolver struct {
	handle  uint64
	backend debugInfoBackend
	cache   *lru.Cache

	nextBase uint64
	loaded   map[string]uint64 // module path -> synthetic load address
}

// DefaultResolverCacheSize is the reference LRU sizing: generous enough to
// hold every distinct call site in a typical capture session.
const DefaultResolverCacheSize = 4096

// NewResolver creates a Resolver backed by delve's debug-info loader.
func NewResolver() (*Resolver, error) {
	return newResolverWithBackend(newDelveBackend())
}

func newResolverWithBackend(backend debugInfoBackend) (*Resolver, error) {
	cache, err := lru.New(DefaultResolverCacheSize)
	if err != nil {
		return nil, err
	}
	return &Resolver{
		handle:   mintHandle(),
		backend:  backend,
		cache:    cache,
		nextBase: syntheticBaseWatermark,
		loaded:   make(map[string]uint64),
	}, nil
}

// Handle returns this Resolver's opaque per-session symbol-context handle.
func (r *Resolver) Handle() uint64 {
	return r.handle
}

// AddModule loads path's debug info at the next available synthetic
// address and remembers the mapping so Resolve can translate offsets into
// it into synthetic program counters.
func (r *Resolver) AddModule(path string, size uint32) error {
	base := r.nextBase
	if err := r.backend.addImage(path, base); err != nil {
		return err
	}
	r.loaded[path] = base
	r.nextBase += uint64(size)
	return nil
}

// RemoveModule forgets path's synthetic load address. Cache entries for
// offsets into path are left in place: they are harmless once the Module
// Map no longer maps any address to path, since nothing will look them up
// again, and golang-lru has no cheap prefix eviction to remove them early.
func (r *Resolver) RemoveModule(path string) {
	delete(r.loaded, path)
}

// Resolve looks up (module, offset), consulting the cache first.
func (r *Resolver) Resolve(module string, offset uint64) ResolvedFrame {
	key := cacheKey{module: module, offset: offset}
	if v, ok := r.cache.Get(key); ok {
		frame := v.(ResolvedFrame)
		return frame
	}

	frame := ResolvedFrame{Module: module, Offset: offset}
	if base, ok := r.loaded[module]; ok {
		info := r.backend.pcToLine(base + offset)
		frame.File = info.File
		frame.Line = info.Line
		frame.Function = info.Function
		frame.Resolved = info.Found
	}

	r.cache.Add(key, frame)
	return frame
}

// Close releases the resolver's cache.
func (r *Resolver) Close() {
	r.cache.Purge()
}

// mintHandle produces an opaque 64-bit handle from two random UUIDs,
// CRC-32-folded together: one checksum per UUID, packed into the high and
// low 32 bits. Grounded on callstack-player.cpp's generate_id, which folds
// a UUID down to a smaller integer with an inline CRC32; hash/crc32 is the
// standard library's own implementation of the same algorithm the
// original hand-rolls, so there is no third-party CRC32 worth reaching for
// here.
func mintHandle() uint64 {
	hi := crc32.ChecksumIEEE(uuidBytes())
	lo := crc32.ChecksumIEEE(uuidBytes())
	return uint64(hi)<<32 | uint64(lo)
}

func uuidBytes() []byte {
	id := uuid.New()
	return id[:]
}
