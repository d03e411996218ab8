// Package winapi isolates the handful of Windows loader and back-trace
// primitives the recorder needs (LdrRegisterDllNotification,
// EnumProcessModulesEx, RtlCaptureStackBackTrace) behind a small interface,
// so pkg/recorder stays portable and testable off Windows. The Windows
// implementation lives in backend_windows.go; every other platform gets
// the no-op backend in backend_other.go.
package winapi

// ModuleInfo describes one module returned by Backend.EnumerateModules.
type ModuleInfo struct {
	Path     string
	BaseAddr uint64
	Size     uint32
}

// NotificationEvent is delivered to a RegisterDllNotification callback.
type NotificationEvent struct {
	Loaded   bool
	Path     string
	BaseAddr uint64
	Size     uint32
}

// Backend exposes the OS primitives behind an interface pkg/recorder can
// fake in tests.
type Backend interface {
	// EnumerateModules lists every module currently mapped into the
	// calling process.
	EnumerateModules() ([]ModuleInfo, error)

	// RegisterDllNotification subscribes cb to every subsequent module
	// load/unload. The returned unregister func is safe to call once;
	// calling it again is a no-op.
	RegisterDllNotification(cb func(NotificationEvent)) (unregister func(), err error)

	// CaptureStackBackTrace fills dst with return addresses, skipping
	// skip frames, and returns the number of frames written.
	CaptureStackBackTrace(skip int, dst []uintptr) int
}

// New returns the Backend for the current platform.
func New() Backend {
	return newBackend()
}
