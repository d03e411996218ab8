package replay

import (
	"bytes"
	"os"

	"github.com/tracewalk/callstack/pkg/envelope"
	"github.com/tracewalk/callstack/pkg/wire"
)

// Config configures a Player. It mirrors recorder.Config's envelope
// options: a log dumped with compression and/or encryption enabled can
// only be opened again with the matching Config.
type Config struct {
	Compression   envelope.CompressionType
	EncryptionKey []byte
	IntegrityKey  []byte
}

func (c Config) envelopeOptions() envelope.Options {
	opts := envelope.Options{Compression: c.Compression}
	if len(c.EncryptionKey) > 0 {
		opts.Encryption = &envelope.EncryptionOptions{Key: c.EncryptionKey}
	}
	if len(c.IntegrityKey) > 0 {
		opts.Integrity = &envelope.IntegrityOptions{Key: c.IntegrityKey}
	}
	return opts
}

// CallstackFrame is one symbolicated frame of a captured call stack,
// delivered to a Player callback.
type CallstackFrame struct {
	Addr     uint64
	Module   string
	Resolved ResolvedFrame
}

// Player decodes a dumped event log and streams symbolicated call stacks
// to a caller-supplied callback, grounded on callstack-player.cpp's
// start()/end() pair.
type Player struct {
	cfg      Config
	modules  moduleMap
	resolver *Resolver
}

// NewPlayer creates a Player configured by cfg.
func NewPlayer(cfg Config) (*Player, error) {
	resolver, err := NewResolver()
	if err != nil {
		return nil, err
	}
	return &Player{cfg: cfg, resolver: resolver}, nil
}

// Start opens filename, decodes every record in order, and invokes
// callback once per callstack record with its frames symbolicated against
// whatever module map state has accumulated so far. It returns false if
// the callback is absent or the file could not be opened or unsealed. A
// truncated or empty log is not an error: wire.ErrTruncated simply ends
// the decode loop early, the same as the original's read-until-EOF
// behavior; wire.ErrUnknownTag is fatal for the same reason it is in
// pkg/wire, and also just ends the loop, since nothing past a corrupt tag
// can be trusted.
func (p *Player) Start(filename string, callback func([]CallstackFrame)) bool {
	if callback == nil {
		return false
	}

	raw, err := os.ReadFile(filename)
	if err != nil {
		return false
	}

	data, err := envelope.Open(raw, p.cfg.envelopeOptions())
	if err != nil {
		return false
	}

	dec := wire.NewDecoder(bytes.NewReader(data))
	for {
		rec, err := dec.Next()
		if err != nil {
			break
		}

		switch rec.Tag {
		case wire.TagAddModule:
			p.modules.insert(rec.AddModule.Path, rec.AddModule.BaseAddr, rec.AddModule.Size)
			_ = p.resolver.AddModule(rec.AddModule.Path, rec.AddModule.Size)
		case wire.TagDelModule:
			p.modules.removeByPath(rec.DelModule.Path)
			p.resolver.RemoveModule(rec.DelModule.Path)
		case wire.TagCallstack:
			callback(p.symbolicate(rec.Callstack.Frames))
		case wire.TagSystemInfo:
			// Optional leading record (SPEC_FULL.md §5/§6); nothing to
			// act on, but a producer that emits one must not break replay.
		}
	}
	return true
}

// End releases the resolver's resources, mirroring callstack-player.cpp's
// end(), which unloads every module's symbol context.
func (p *Player) End() bool {
	p.resolver.Close()
	return true
}

func (p *Player) symbolicate(addrs []uint64) []CallstackFrame {
	frames := make([]CallstackFrame, len(addrs))
	for i, addr := range addrs {
		mod, ok := p.modules.lookup(addr)
		if !ok {
			frames[i] = CallstackFrame{Addr: addr}
			continue
		}
		frames[i] = CallstackFrame{
			Addr:     addr,
			Module:   mod.path,
			Resolved: p.resolver.Resolve(mod.path, addr-mod.base),
		}
	}
	return frames
}
