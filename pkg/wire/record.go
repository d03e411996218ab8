// Package wire implements the bit-exact binary record format shared by the
// recorder and the player: little-endian, tightly packed, no alignment
// padding. Every function here is a pure transformation over bytes — no
// package in this tree owns a file handle except the recorder's ring buffer
// sink and the player's input file.
package wire

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf16"
)

// Tag identifies a record variant. It is the first byte of every record.
type Tag uint8

const (
	TagAddModule Tag = 0
	TagDelModule Tag = 1
	TagCallstack Tag = 2
	// TagSystemInfo is an optional leading record (see SPEC_FULL.md §5/§6):
	// older producers prepend one, newer producers omit it entirely.
	TagSystemInfo Tag = 3
)

func (t Tag) String() string {
	switch t {
	case TagAddModule:
		return "add_module"
	case TagDelModule:
		return "del_module"
	case TagCallstack:
		return "callstack"
	case TagSystemInfo:
		return "system_info"
	default:
		return fmt.Sprintf("tag(%d)", uint8(t))
	}
}

// MaxFrames is the largest frame count a callstack record can carry; the
// field is a uint16 on the wire.
const MaxFrames = 65535

// MaxPathChars is the largest path length, in UTF-16 code units, a
// add_module/del_module record can carry; the field is a uint16 on the wire.
const MaxPathChars = 65535

// ErrTruncated signals that the input ended before a complete record could
// be read, at a record boundary or mid-record. Per spec this is not an
// error condition for the player: it means replay has reached the end of
// available data and should stop cleanly.
var ErrTruncated = errors.New("wire: truncated record")

// ErrUnknownTag signals a tag byte that matches no known record variant.
// Unlike ErrTruncated this IS fatal: the stream can no longer be trusted
// and the caller must stop replay.
var ErrUnknownTag = errors.New("wire: unknown record tag")

// AddModule records that a code module became mapped into the process.
type AddModule struct {
	Timestamp uint64
	Path      string
	BaseAddr  uint64
	Size      uint32
}

// DelModule records that a code module was unmapped from the process.
type DelModule struct {
	Timestamp uint64
	Path      string
}

// Callstack records one captured back-trace, innermost frame first.
type Callstack struct {
	Timestamp uint64
	Frames    []uint64
}

// SystemInfo is the optional leading record; see TagSystemInfo.
type SystemInfo struct {
	Timestamp   uint64
	PointerBits uint8 // 32 or 64
	WideChar    uint8 // bytes per wide-char code unit: 2 or 4
}

// Record is a decoded wire record. Exactly one of the pointer fields is
// non-nil, selected by Tag.
type Record struct {
	Tag        Tag
	AddModule  *AddModule
	DelModule  *DelModule
	Callstack  *Callstack
	SystemInfo *SystemInfo
}

// EncodeAddModule serializes an add_module record.
func EncodeAddModule(timestamp uint64, path string, baseAddr uint64, size uint32) ([]byte, error) {
	units, err := encodePath(path)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, 1+8+2+len(units)*2+8+4)
	buf = append(buf, byte(TagAddModule))
	buf = binary.LittleEndian.AppendUint64(buf, timestamp)
	buf = appendPath(buf, units)
	buf = binary.LittleEndian.AppendUint64(buf, baseAddr)
	buf = binary.LittleEndian.AppendUint32(buf, size)
	return buf, nil
}

// EncodeDelModule serializes a del_module record.
func EncodeDelModule(timestamp uint64, path string) ([]byte, error) {
	units, err := encodePath(path)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, 1+8+2+len(units)*2)
	buf = append(buf, byte(TagDelModule))
	buf = binary.LittleEndian.AppendUint64(buf, timestamp)
	buf = appendPath(buf, units)
	return buf, nil
}

// EncodeCallstack serializes a callstack record. frames may be empty.
func EncodeCallstack(timestamp uint64, frames []uint64) ([]byte, error) {
	if len(frames) > MaxFrames {
		return nil, fmt.Errorf("wire: %d frames exceeds max of %d", len(frames), MaxFrames)
	}
	buf := make([]byte, 0, 1+8+2+len(frames)*8)
	buf = append(buf, byte(TagCallstack))
	buf = binary.LittleEndian.AppendUint64(buf, timestamp)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(frames)))
	for _, f := range frames {
		buf = binary.LittleEndian.AppendUint64(buf, f)
	}
	return buf, nil
}

// EncodeSystemInfo serializes the optional leading system_info record.
func EncodeSystemInfo(timestamp uint64, pointerBits, wideChar uint8) []byte {
	var flags uint8
	if pointerBits == 64 {
		flags |= 1
	}
	if wideChar == 4 {
		flags |= 2
	}
	buf := make([]byte, 0, 1+8+1)
	buf = append(buf, byte(TagSystemInfo))
	buf = binary.LittleEndian.AppendUint64(buf, timestamp)
	buf = append(buf, flags)
	return buf
}

func encodePath(path string) ([]uint16, error) {
	units := utf16.Encode([]rune(path))
	if len(units) > MaxPathChars {
		return nil, fmt.Errorf("wire: path of %d UTF-16 units exceeds max of %d", len(units), MaxPathChars)
	}
	return units, nil
}

func appendPath(buf []byte, units []uint16) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(units)))
	for _, u := range units {
		buf = binary.LittleEndian.AppendUint16(buf, u)
	}
	return buf
}

// Decoder reads a sequence of records from an io.Reader.
type Decoder struct {
	r        *bufio.Reader
	consumed int64
}

// NewDecoder wraps r for sequential record decoding.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Offset returns the number of input bytes consumed by completed calls to
// Next. A Next call that returns ErrTruncated does not advance it: the
// partially-read record is not counted as consumed.
func (d *Decoder) Offset() int64 {
	return d.consumed
}

// Next decodes the next record. It returns ErrTruncated at a clean or
// mid-record end of input, and ErrUnknownTag for an unrecognized tag byte.
// Both are terminal: the caller must stop calling Next after either.
func (d *Decoder) Next() (*Record, error) {
	var n int64

	tagByte, err := d.r.ReadByte()
	if err != nil {
		return nil, ErrTruncated
	}
	n++

	timestamp, k, ok := d.readUint64()
	if !ok {
		return nil, ErrTruncated
	}
	n += k

	switch Tag(tagByte) {
	case TagAddModule:
		path, k, ok := d.readPath()
		if !ok {
			return nil, ErrTruncated
		}
		n += k
		base, k, ok := d.readUint64()
		if !ok {
			return nil, ErrTruncated
		}
		n += k
		size, k, ok := d.readUint32()
		if !ok {
			return nil, ErrTruncated
		}
		n += k
		d.consumed += n
		return &Record{Tag: TagAddModule, AddModule: &AddModule{timestamp, path, base, size}}, nil

	case TagDelModule:
		path, k, ok := d.readPath()
		if !ok {
			return nil, ErrTruncated
		}
		n += k
		d.consumed += n
		return &Record{Tag: TagDelModule, DelModule: &DelModule{timestamp, path}}, nil

	case TagCallstack:
		count, k, ok := d.readUint16()
		if !ok {
			return nil, ErrTruncated
		}
		n += k
		frames := make([]uint64, count)
		for i := range frames {
			v, k, ok := d.readUint64()
			if !ok {
				return nil, ErrTruncated
			}
			n += k
			frames[i] = v
		}
		d.consumed += n
		return &Record{Tag: TagCallstack, Callstack: &Callstack{timestamp, frames}}, nil

	case TagSystemInfo:
		flags, err := d.r.ReadByte()
		if err != nil {
			return nil, ErrTruncated
		}
		n++
		ptrBits := uint8(32)
		if flags&1 != 0 {
			ptrBits = 64
		}
		wide := uint8(2)
		if flags&2 != 0 {
			wide = 4
		}
		d.consumed += n
		return &Record{Tag: TagSystemInfo, SystemInfo: &SystemInfo{timestamp, ptrBits, wide}}, nil

	default:
		return nil, ErrUnknownTag
	}
}

func (d *Decoder) readUint64() (uint64, int64, bool) {
	var b [8]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return 0, 0, false
	}
	return binary.LittleEndian.Uint64(b[:]), 8, true
}

func (d *Decoder) readUint32() (uint32, int64, bool) {
	var b [4]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return 0, 0, false
	}
	return binary.LittleEndian.Uint32(b[:]), 4, true
}

func (d *Decoder) readUint16() (uint16, int64, bool) {
	var b [2]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return 0, 0, false
	}
	return binary.LittleEndian.Uint16(b[:]), 2, true
}

func (d *Decoder) readPath() (string, int64, bool) {
	count, k, ok := d.readUint16()
	if !ok {
		return "", 0, false
	}
	if count == 0 {
		return "", k, true
	}
	raw := make([]byte, int(count)*2)
	if _, err := io.ReadFull(d.r, raw); err != nil {
		return "", 0, false
	}
	units := make([]uint16, count)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(raw[i*2 : i*2+2])
	}
	return string(utf16.Decode(units)), k + int64(len(raw)), true
}
