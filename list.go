package exword

import (
	"github.com/alparslanahmed/go-exword/internal/wire"
)

// EntryFlag describes a directory entry.
type EntryFlag uint8

const (
	EntryDir     EntryFlag = EntryFlag(wire.EntryFlagDir)
	EntryUnicode EntryFlag = EntryFlag(wire.EntryFlagUnicode)
)

// DirEntry is one record of a directory listing.
type DirEntry struct {
	// Size is the record length including its 3-byte header.
	Size uint16

	Flags EntryFlag

	// Raw is the name exactly as the device sent it.
	Raw []byte

	// Name is Raw decoded for display: UTF-16 for unicode entries, the
	// locale code page otherwise.
	Name string
}

// IsDir reports whether the entry is a directory.
func (e DirEntry) IsDir() bool { return e.Flags&EntryDir != 0 }

// IsUnicode reports whether Raw holds UTF-16.
func (e DirEntry) IsUnicode() bool { return e.Flags&EntryUnicode != 0 }

// Listing is the result of List.
type Listing struct {
	Entries []DirEntry
}

// Len returns the number of entries, zero after Release.
func (l *Listing) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Entries)
}

// Release drops the entries. Calling it again is a no-op.
func (l *Listing) Release() {
	if l == nil {
		return
	}
	l.Entries = nil
}

// Find returns the entry with the given decoded name.
func (l *Listing) Find(name string) (DirEntry, bool) {
	if l == nil {
		return DirEntry{}, false
	}
	for _, e := range l.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return DirEntry{}, false
}

// List reads the entries of the current directory. A malformed listing
// yields CodeMalformed and no entries.
func (s *Session) List() (*Listing, error) {
	const op = "list"

	body, err := s.getCommand(op, "_List")
	if err != nil {
		return nil, err
	}

	raw, err := wire.DecodeEntries(body, s.opts.order)
	if err != nil {
		return nil, newError(op, CodeMalformed, err)
	}

	entries := make([]DirEntry, len(raw))
	for i, r := range raw {
		e := DirEntry{
			Size:  uint16(r.Size()),
			Flags: EntryFlag(r.Flags),
			Raw:   r.Name,
		}
		if e.IsUnicode() {
			e.Name, err = s.codec.FromUTF16(r.Name)
		} else {
			e.Name, err = s.codec.FromLocale(r.Name)
		}
		if err != nil {
			return nil, newError(op, CodeMalformed, err)
		}
		entries[i] = e
	}

	s.logf(1, op, "%d entries in %s", len(entries), s.path)
	return &Listing{Entries: entries}, nil
}
