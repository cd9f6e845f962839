package exword

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alparslanahmed/go-exword/internal/wire"
)

// ─── File Transfer ──────────────────────────────────────────────────────────────
//
// Upload is a PUT sequence:
//
//  1. PUT with Name and Length headers. The device answers Continue.
//  2. One PUT per chunk carrying a Body header, each answered Continue.
//  3. The last chunk goes as PUT|final with EndOfBody, answered OK.
//
// An empty file is a single PUT|final with Name, Length 0 and an empty
// EndOfBody.
//
// Download is a GET|final with a Name header. While the device answers
// Continue the host pulls the next chunk with an empty GET|final. The
// first response carries the Length header; the OK response closes the
// stream with EndOfBody.

var errCancelled = errors.New("transfer cancelled by progress callback")

// maxPrealloc caps the buffer reserved from a device-declared length.
const maxPrealloc = 1 << 24

// chunkSize returns the payload per frame for the agreed frame size.
func (s *Session) chunkSize() int {
	return max(1, min(s.opts.chunkSize, s.maxFrame-chunkOverhead))
}

// SendFile uploads data under name into the current directory.
//
//	data, _ := os.ReadFile("NOTE.TXT")
//	err := s.SendFile("NOTE.TXT", data)
func (s *Session) SendFile(name string, data []byte) error {
	const op = "sendfile"

	if err := s.ensureConnected(op); err != nil {
		return err
	}
	if !validName(name) {
		return newError(op, CodeInvalidArgument, fmt.Errorf("invalid file name %q", name))
	}
	if uint64(len(data)) > 0xFFFFFFFF {
		return newError(op, CodeInvalidArgument, fmt.Errorf("file of %d bytes exceeds 4 GiB", len(data)))
	}

	nameHdr, err := wire.NameHeader(name, s.codec)
	if err != nil {
		return newError(op, CodeInvalidArgument, err)
	}
	if s.cname != nil {
		if s.cname.name != name {
			s.log.WithField("op", op).Warnf("cname binding %q does not match %q", s.cname.name, name)
		}
		s.cname = nil
	}

	total := int64(len(data))
	order := s.opts.order
	s.logf(1, op, "sending %s (%d bytes)", name, total)

	first := &wire.Frame{
		Code:    wire.OpPut,
		Headers: []wire.Header{nameHdr, wire.U32Header(wire.HdrLength, uint32(total), order)},
	}
	if total == 0 {
		first.Code |= wire.FinalBit
		first.Headers = append(first.Headers, wire.BytesHeader(wire.HdrEndOfBody, []byte{}))
		resp, err := s.exchange(op, first)
		if err != nil {
			return err
		}
		if err := s.expect(op, resp, CodeOK); err != nil {
			return err
		}
		return s.reportPut(op, Progress{Name: name})
	}

	resp, err := s.exchange(op, first)
	if err != nil {
		return err
	}
	if err := s.expect(op, resp, CodeContinue); err != nil {
		return err
	}

	m := s.chunkSize()
	for off := 0; off < len(data); {
		end := min(off+m, len(data))
		last := end == len(data)

		req := &wire.Frame{Code: wire.OpPut}
		if last {
			req.Code |= wire.FinalBit
			req.Headers = []wire.Header{wire.BytesHeader(wire.HdrEndOfBody, data[off:end])}
		} else {
			req.Headers = []wire.Header{wire.BytesHeader(wire.HdrBody, data[off:end])}
		}

		resp, err := s.exchange(op, req)
		if err != nil {
			return err
		}
		want := CodeContinue
		if last {
			want = CodeOK
		}
		if err := s.expect(op, resp, want); err != nil {
			return err
		}
		off = end

		s.logf(4, op, "%s: %d/%d bytes", name, off, total)
		if err := s.reportPut(op, Progress{Name: name, Transferred: int64(off), Total: total}); err != nil {
			if !last {
				s.abort(op)
			}
			return err
		}
	}

	s.logf(1, op, "sent %s", name)
	return nil
}

func (s *Session) reportPut(op string, p Progress) error {
	return report(op, s.onPut, p)
}

func report(op string, fn ProgressFunc, p Progress) error {
	if fn == nil {
		return nil
	}
	if err := fn(p); err != nil {
		return newError(op, CodeCancelled, fmt.Errorf("%w: %w", errCancelled, err))
	}
	return nil
}

// GetFile downloads name from the current directory. The returned slice
// belongs to the caller.
func (s *Session) GetFile(name string) ([]byte, error) {
	const op = "getfile"

	if err := s.ensureConnected(op); err != nil {
		return nil, err
	}
	if !validName(name) {
		return nil, newError(op, CodeInvalidArgument, fmt.Errorf("invalid file name %q", name))
	}

	nameHdr, err := wire.NameHeader(name, s.codec)
	if err != nil {
		return nil, newError(op, CodeInvalidArgument, err)
	}

	order := s.opts.order
	var (
		data     []byte
		total    int64 = -1
		finished bool
	)
	req := &wire.Frame{
		Code:    wire.OpGet | wire.FinalBit,
		Headers: []wire.Header{nameHdr},
	}
	s.logf(1, op, "receiving %s", name)

	err = s.pull(op, req, func(resp *wire.Frame) error {
		if h, ok := resp.Header(wire.HdrLength); ok && total < 0 {
			n, err := h.Uint32(order)
			if err != nil {
				return newError(op, CodeMalformed, err)
			}
			total = int64(n)
			data = make([]byte, 0, min(int64(n), maxPrealloc))
		}
		if total < 0 {
			return newError(op, CodeMalformed, errors.New("missing length header"))
		}

		data = append(data, resp.Body()...)
		if int64(len(data)) > total {
			return newError(op, CodeMalformed, fmt.Errorf("received %d bytes, length header says %d", len(data), total))
		}
		if ResponseCode(resp.Status()) == CodeOK {
			if !resp.HasEndOfBody() {
				return newError(op, CodeMalformed, errors.New("final response without end of body"))
			}
			if int64(len(data)) != total {
				return newError(op, CodeMalformed, fmt.Errorf("received %d bytes, length header says %d", len(data), total))
			}
			finished = true
		}

		s.logf(4, op, "%s: %d/%d bytes", name, len(data), total)
		return report(op, s.onGet, Progress{Name: name, Transferred: int64(len(data)), Total: total})
	})
	if err != nil {
		return nil, err
	}
	if !finished {
		return nil, newError(op, CodeMalformed, errors.New("transfer ended early"))
	}

	s.logf(1, op, "received %s (%d bytes)", name, len(data))
	return data, nil
}

// RemoveFile deletes name from the current directory.
func (s *Session) RemoveFile(name string) error {
	const op = "remove"

	if !validName(name) {
		return newError(op, CodeInvalidArgument, fmt.Errorf("invalid file name %q", name))
	}
	nameHdr, err := wire.NameHeader(name, s.codec)
	if err != nil {
		return newError(op, CodeInvalidArgument, err)
	}
	if err := s.putCommand(op, "_Remove", nil, nameHdr); err != nil {
		return err
	}
	s.logf(1, op, "removed %s", name)
	return nil
}

// ─── Local Files ────────────────────────────────────────────────────────────────

// UploadFile reads a local file and sends it under its base name.
//
//	err := s.UploadFile("/home/taro/NOTE.TXT")
func (s *Session) UploadFile(localPath string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return newError("sendfile", CodeLocalIO, err)
	}
	return s.SendFile(filepath.Base(localPath), data)
}

// DownloadFile fetches name and writes it to localPath.
func (s *Session) DownloadFile(name, localPath string) error {
	data, err := s.GetFile(name)
	if err != nil {
		return err
	}
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return newError("getfile", CodeLocalIO, err)
	}
	return nil
}
