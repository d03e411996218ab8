package recorder

// moduleEvent is the portable notification delivered by the OS-specific
// loader-notification backend, grounded on callstack-recorder-windows.cpp's
// on_dll_notification callback (LDR_DLL_NOTIFICATION_REASON_LOADED /
// _UNLOADED) and its enum_modules bootstrap pass.
type moduleEvent struct {
	loaded   bool // true = load (add_module), false = unload (del_module)
	path     string
	baseAddr uint64
	size     uint32
}

// loaderBackend abstracts over the OS loader-notification facility so
// moduleTracker stays testable without a real loader. pkg/winapi supplies
// the Windows implementation; other platforms get a backend whose
// subscribe always fails, since dynamic tracking is out of scope there
// (SPEC_FULL.md §4, "Non-Windows back-ends are a non-goal").
type loaderBackend interface {
	// enumerate lists every module currently mapped into the process.
	enumerate() ([]moduleEvent, error)
	// subscribe registers cb to be invoked on every subsequent load and
	// unload. The returned unsubscribe func must be safe to call once
	// cb is no longer needed; it does not need to be safe to call twice.
	subscribe(cb func(moduleEvent)) (unsubscribe func(), err error)
}

// moduleTracker emits add_module/del_module records into a sink as modules
// load and unload, grounded on callstack-recorder-windows.cpp's
// start_tracking_modules/bootstrap pairing.
type moduleTracker struct {
	sink        *sink
	backend     loaderBackend
	unsubscribe func()
}

func newModuleTracker(s *sink, backend loaderBackend) *moduleTracker {
	return &moduleTracker{sink: s, backend: backend}
}

// start registers the loader callback before performing the static
// enumeration pass, matching the original's actual ordering rather than
// the safer-looking reverse: any module that loads between the two steps
// produces one add_module from the callback and a second, harmless
// duplicate from enumerate (the Module Map's overlap-replaces-entry rule
// makes a duplicate add_module a no-op). If subscribe fails, start still
// performs the enumeration pass and reports degraded (dynamicOK=false):
// the recorder then has whatever modules were loaded at bootstrap time but
// won't learn about later loads or unloads.
func (mt *moduleTracker) start() (dynamicOK bool) {
	unsub, err := mt.backend.subscribe(mt.onEvent)
	if err == nil {
		mt.unsubscribe = unsub
		dynamicOK = true
	}

	modules, _ := mt.backend.enumerate()
	for _, ev := range modules {
		mt.emit(moduleEvent{loaded: true, path: ev.path, baseAddr: ev.baseAddr, size: ev.size})
	}
	return dynamicOK
}

// stop unregisters the loader callback. It is safe to call more than once.
func (mt *moduleTracker) stop() {
	if mt.unsubscribe != nil {
		mt.unsubscribe()
		mt.unsubscribe = nil
	}
}

func (mt *moduleTracker) onEvent(ev moduleEvent) {
	mt.emit(ev)
}

func (mt *moduleTracker) emit(ev moduleEvent) {
	if ev.loaded {
		mt.sink.writeAddModule(ev.path, ev.baseAddr, ev.size)
	} else {
		mt.sink.writeDelModule(ev.path)
	}
}
