package wire

import (
	"encoding/binary"
	"fmt"
)

// Listing body:
//
//	[2B] record count
//	repeated count times, no padding:
//	  [2B] record size (this header included)
//	  [1B] flags
//	  [size-3 B] name

// EntryHeaderSize is the size+flags prefix of every directory record.
const EntryHeaderSize = 3

// Directory record flag bits.
const (
	EntryFlagDir     byte = 0x01
	EntryFlagUnicode byte = 0x02
)

// Entry is one raw directory record. Name holds UTF-16 bytes when
// EntryFlagUnicode is set and locale code page bytes otherwise.
type Entry struct {
	Flags byte
	Name  []byte
}

// Size is the record length as it appears on the wire.
func (e Entry) Size() int {
	return EntryHeaderSize + len(e.Name)
}

// EncodeEntries builds a listing body.
func EncodeEntries(entries []Entry, order binary.ByteOrder) ([]byte, error) {
	if len(entries) > 0xFFFF {
		return nil, fmt.Errorf("%w: %d entries exceed 65535", ErrFormat, len(entries))
	}
	total := 2
	for i, e := range entries {
		if e.Size() > 0xFFFF {
			return nil, fmt.Errorf("%w: entry %d size %d exceeds 65535", ErrFormat, i, e.Size())
		}
		total += e.Size()
	}

	b := make([]byte, total)
	order.PutUint16(b[0:2], uint16(len(entries)))
	off := 2
	for _, e := range entries {
		order.PutUint16(b[off:off+2], uint16(e.Size()))
		b[off+2] = e.Flags
		copy(b[off+EntryHeaderSize:], e.Name)
		off += e.Size()
	}
	return b, nil
}

// DecodeEntries walks a listing body record by record. A record shorter
// than its header, a record running past the buffer, and bytes left over
// after the declared count are all errors.
func DecodeEntries(b []byte, order binary.ByteOrder) ([]Entry, error) {
	if err := need("listing count", b, 2); err != nil {
		return nil, err
	}
	count := int(order.Uint16(b[0:2]))
	entries := make([]Entry, 0, count)

	off := 2
	for i := 0; i < count; i++ {
		if len(b)-off < EntryHeaderSize {
			return nil, fmt.Errorf("%w: entry %d/%d header at offset %d", ErrShort, i+1, count, off)
		}
		size := int(order.Uint16(b[off : off+2]))
		if size < EntryHeaderSize {
			return nil, fmt.Errorf("%w: entry %d declares size %d", ErrFormat, i+1, size)
		}
		if off+size > len(b) {
			return nil, fmt.Errorf("%w: entry %d declares %d bytes, %d remain", ErrShort, i+1, size, len(b)-off)
		}
		entries = append(entries, Entry{
			Flags: b[off+2],
			Name:  append([]byte(nil), b[off+EntryHeaderSize:off+size]...),
		})
		off += size
	}

	if off != len(b) {
		return nil, fmt.Errorf("%w: %d bytes after %d entries", ErrFormat, len(b)-off, count)
	}
	return entries, nil
}
