//go:build windows
// +build windows

package winapi

import (
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	ntdll                           = windows.NewLazySystemDLL("ntdll.dll")
	procLdrRegisterDllNotification  = ntdll.NewProc("LdrRegisterDllNotification")
	procLdrUnregisterDllNotification = ntdll.NewProc("LdrUnregisterDllNotification")
	procRtlCaptureStackBackTrace    = ntdll.NewProc("RtlCaptureStackBackTrace")
)

const (
	ldrDllNotificationReasonLoaded   = 1
	ldrDllNotificationReasonUnloaded = 2
)

// unicodeString mirrors UNICODE_STRING; Buffer is not null terminated, its
// length in bytes is Length.
type unicodeString struct {
	Length        uint16
	MaximumLength uint16
	Buffer        *uint16
}

// ldrDllNotificationData mirrors LDR_DLL_NOTIFICATION_DATA. The real type
// is a union of a Loaded and an Unloaded variant with identical layout, so
// one struct covers both.
type ldrDllNotificationData struct {
	Flags       uint32
	FullDllName *unicodeString
	BaseDllName *unicodeString
	DllBase     uintptr
	SizeOfImage uint32
}

func (s *unicodeString) string() string {
	if s == nil || s.Buffer == nil || s.Length == 0 {
		return ""
	}
	units := unsafe.Slice(s.Buffer, s.Length/2)
	return windows.UTF16ToString(units)
}

type windowsBackend struct {
	mu        sync.Mutex
	callbacks map[uintptr]func(NotificationEvent)
}

func newBackend() Backend {
	return &windowsBackend{callbacks: make(map[uintptr]func(NotificationEvent))}
}

func (b *windowsBackend) EnumerateModules() ([]ModuleInfo, error) {
	process, err := windows.GetCurrentProcess()
	if err != nil {
		return nil, err
	}

	var needed uint32
	handles := make([]windows.Handle, 256)
	for {
		sz := uint32(len(handles)) * uint32(unsafe.Sizeof(handles[0]))
		err := windows.EnumProcessModulesEx(process, &handles[0], sz, &needed, windows.LIST_MODULES_ALL)
		if err == nil && needed <= sz {
			break
		}
		if err != nil && needed == 0 {
			return nil, err
		}
		handles = make([]windows.Handle, needed/uint32(unsafe.Sizeof(handles[0]))+1)
	}

	count := int(needed / uint32(unsafe.Sizeof(handles[0])))
	modules := make([]ModuleInfo, 0, count)
	for i := 0; i < count; i++ {
		var info windows.ModuleInfo
		if err := windows.GetModuleInformation(process, handles[i], &info, uint32(unsafe.Sizeof(info))); err != nil {
			continue
		}

		var nameBuf [windows.MAX_PATH]uint16
		if err := windows.GetModuleFileNameEx(process, handles[i], &nameBuf[0], uint32(len(nameBuf))); err != nil {
			continue
		}

		modules = append(modules, ModuleInfo{
			Path:     windows.UTF16ToString(nameBuf[:]),
			BaseAddr: uint64(info.BaseOfDll),
			Size:     info.SizeOfImage,
		})
	}
	return modules, nil
}

func (b *windowsBackend) RegisterDllNotification(cb func(NotificationEvent)) (func(), error) {
	if err := procLdrRegisterDllNotification.Find(); err != nil {
		return nil, fmt.Errorf("winapi: LdrRegisterDllNotification unavailable: %w", err)
	}
	if err := procLdrUnregisterDllNotification.Find(); err != nil {
		return nil, fmt.Errorf("winapi: LdrUnregisterDllNotification unavailable: %w", err)
	}

	trampoline := syscall.NewCallback(func(reason uintptr, data *ldrDllNotificationData, context uintptr) uintptr {
		ev := NotificationEvent{
			Loaded:   reason == ldrDllNotificationReasonLoaded,
			Path:     data.FullDllName.string(),
			BaseAddr: uint64(data.DllBase),
			Size:     data.SizeOfImage,
		}
		b.mu.Lock()
		fn := b.callbacks[context]
		b.mu.Unlock()
		if fn != nil {
			fn(ev)
		}
		return 0
	})

	b.mu.Lock()
	context := uintptr(len(b.callbacks) + 1)
	b.callbacks[context] = cb
	b.mu.Unlock()

	var cookie uintptr
	status, _, _ := procLdrRegisterDllNotification.Call(0, trampoline, context, uintptr(unsafe.Pointer(&cookie)))
	if status != 0 {
		b.mu.Lock()
		delete(b.callbacks, context)
		b.mu.Unlock()
		return nil, fmt.Errorf("winapi: LdrRegisterDllNotification failed with NTSTATUS 0x%x", status)
	}

	var once sync.Once
	unregister := func() {
		once.Do(func() {
			procLdrUnregisterDllNotification.Call(cookie)
			b.mu.Lock()
			delete(b.callbacks, context)
			b.mu.Unlock()
		})
	}
	return unregister, nil
}

func (b *windowsBackend) CaptureStackBackTrace(skip int, dst []uintptr) int {
	if len(dst) == 0 {
		return 0
	}
	if err := procRtlCaptureStackBackTrace.Find(); err != nil {
		return 0
	}
	r0, _, _ := procRtlCaptureStackBackTrace.Call(
		uintptr(skip),
		uintptr(len(dst)),
		uintptr(unsafe.Pointer(&dst[0])),
		0,
	)
	return int(r0)
}
