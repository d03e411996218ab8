package recorder

import (
	"unsafe"

	"github.com/tracewalk/callstack/pkg/winapi"
)

// newLoaderBackend and newBacktracer are what the Recorder Facade
// bootstraps against; winapi.New already resolves to the right platform
// implementation, so no build tags are needed here.
func newLoaderBackend() loaderBackend {
	return newWinapiLoaderBackend(winapi.New())
}

func newBacktracer() backtracer {
	return newWinapiBacktracer(winapi.New())
}

// winapiLoaderBackend adapts winapi.Backend to loaderBackend, translating
// winapi's module-info/notification types into the package-local
// moduleEvent.
type winapiLoaderBackend struct {
	backend winapi.Backend
}

func newWinapiLoaderBackend(backend winapi.Backend) *winapiLoaderBackend {
	return &winapiLoaderBackend{backend: backend}
}

func (b *winapiLoaderBackend) enumerate() ([]moduleEvent, error) {
	modules, err := b.backend.EnumerateModules()
	if err != nil {
		return nil, err
	}
	events := make([]moduleEvent, len(modules))
	for i, m := range modules {
		events[i] = moduleEvent{loaded: true, path: m.Path, baseAddr: m.BaseAddr, size: m.Size}
	}
	return events, nil
}

func (b *winapiLoaderBackend) subscribe(cb func(moduleEvent)) (func(), error) {
	return b.backend.RegisterDllNotification(func(ev winapi.NotificationEvent) {
		cb(moduleEvent{loaded: ev.Loaded, path: ev.Path, baseAddr: ev.BaseAddr, size: ev.Size})
	})
}

// winapiBacktracer adapts winapi.Backend to backtracer.
type winapiBacktracer struct {
	backend winapi.Backend
}

func newWinapiBacktracer(backend winapi.Backend) *winapiBacktracer {
	return &winapiBacktracer{backend: backend}
}

// captureInto reinterprets dst's backing array in place as []uintptr
// rather than allocating a fresh slice to capture into: uintptr and
// uint64 are both 8 bytes on every platform winapi.Backend supports, so
// the OS back-trace primitive can write directly into dst's stack-backed
// storage, matching capture.go's "no allocation on the hot path"
// requirement.
func (b *winapiBacktracer) captureInto(dst []uint64, skip int) int {
	if len(dst) == 0 {
		return 0
	}
	raw := unsafe.Slice((*uintptr)(unsafe.Pointer(&dst[0])), len(dst))
	return b.backend.CaptureStackBackTrace(skip, raw)
}
