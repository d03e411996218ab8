package replay

import "github.com/go-delve/delve/pkg/proc"

// delveBackend adapts delve's pkg/proc.BinaryInfo to debugInfoBackend.
// BinaryInfo already does exactly what the Symbol Resolver needs: load a
// module's debug info at a caller-chosen address and translate
// pc -> (file, line, function), the same shape as delve's own handling of
// a dynamically loaded shared library whose runtime load address becomes
// known only after the fact — analogous to our add_module.
type delveBackend struct {
	bi *proc.BinaryInfo
}

func newDelveBackend() *delveBackend {
	return &delveBackend{bi: proc.NewBinaryInfo("windows", "amd64")}
}

func (d *delveBackend) addImage(path string, loadAddress uint64) error {
	return d.bi.AddImage(path, loadAddress)
}

func (d *delveBackend) pcToLine(pc uint64) lineInfo {
	file, line, fn := d.bi.PCToLine(pc)
	info := lineInfo{File: file, Line: line, Found: fn != nil}
	if fn != nil {
		info.Function = fn.Name
	}
	return info
}
