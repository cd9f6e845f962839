package exword

import (
	"strings"

	"github.com/alparslanahmed/go-exword/internal/wire"
)

// NormalizePath converts every '/' to '\' and collapses each run of
// separators into one.
//
//	NormalizePath("//a///b/")   // `\a\b\`
func NormalizePath(p string) string {
	var b strings.Builder
	b.Grow(len(p))
	sep := false
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c == '/' || c == '\\' {
			if !sep {
				b.WriteByte('\\')
			}
			sep = true
			continue
		}
		sep = false
		b.WriteByte(c)
	}
	return b.String()
}

// DevicePath joins a storage root and a relative path.
//
//	DevicePath(RootSD, "/dict")   // `\_SD_00\dict`
func DevicePath(root Root, rel string) string {
	return NormalizePath(string(root) + `\` + rel)
}

// SetPath selects the working directory on the device. On success the
// session moves to StatePathSet and any CName binding is dropped; on failure
// the previous path stays in effect.
func (s *Session) SetPath(root Root, rel string, flags SetPathFlag) error {
	const op = "setpath"

	if err := s.ensureConnected(op); err != nil {
		return err
	}

	path := DevicePath(root, rel)
	name, err := wire.NameHeader(path, s.codec)
	if err != nil {
		return newError(op, CodeInvalidArgument, err)
	}

	req := &wire.Frame{
		Code:    wire.OpSetPath,
		Fields:  []byte{byte(flags), 0x00},
		Headers: []wire.Header{name},
	}
	resp, err := s.exchange(op, req)
	if err != nil {
		return err
	}
	if err := s.expect(op, resp, CodeOK); err != nil {
		return err
	}

	s.path = path
	s.state = StatePathSet
	s.cname = nil
	s.logf(1, op, "path set to %s", path)
	return nil
}

// validName rejects empty names and names containing a separator. File
// operations act on the current directory only.
func validName(name string) bool {
	return name != "" && !strings.ContainsAny(name, `\/`)
}
