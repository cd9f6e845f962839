// Package wire holds the byte-level encoding of the EX-word protocol:
// command/response frames, their headers, the fixed-layout records and the
// variable-length directory listing.
//
// Every encoder and decoder works on explicit byte offsets. Nothing here
// depends on the in-memory layout of a Go struct.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ─── Frame Layout ───────────────────────────────────────────────────────────────
//
// Request:
//   [1B] opcode (0x80 final bit on single-frame requests)
//   [2B] total frame length, this header included
//   [FB] opcode-specific fixed fields
//   [..] headers
//
// Response:
//   [1B] status (final bit set)
//   [2B] total frame length
//   [FB] fixed fields (CONNECT response only)
//   [..] headers

// FrameHeaderLen is the size of the opcode/status byte plus the length field.
const FrameHeaderLen = 3

// Opcodes.
const (
	OpConnect    byte = 0x80
	OpDisconnect byte = 0x81
	OpPut        byte = 0x02
	OpGet        byte = 0x03
	OpSetPath    byte = 0x85
	OpAbort      byte = 0xFF

	// FinalBit marks the last frame of a request, and every response.
	FinalBit byte = 0x80
)

// Device status values carried in the response byte (final bit cleared).
const (
	StatusContinue         byte = 0x10
	StatusOK               byte = 0x20
	StatusBadRequest       byte = 0x40
	StatusUnauthorized     byte = 0x41
	StatusForbidden        byte = 0x43
	StatusNotFound         byte = 0x44
	StatusMethodNotAllowed byte = 0x45
	StatusNotAcceptable    byte = 0x46
	StatusConflict         byte = 0x49
	StatusInternal         byte = 0x50
	StatusNotImplemented   byte = 0x51
	StatusUnavailable      byte = 0x53
	StatusStorageFull      byte = 0x60
	StatusLocked           byte = 0x61
)

// ProtocolVersion is sent in the CONNECT fixed fields.
const ProtocolVersion byte = 0x10

var (
	// ErrShort reports a buffer shorter than the layout requires.
	ErrShort = errors.New("wire: short buffer")

	// ErrFormat reports a structurally invalid frame or record.
	ErrFormat = errors.New("wire: malformed data")
)

// Frame is one decoded request or response.
type Frame struct {
	// Code is the opcode of a request or the raw status byte of a response.
	Code byte

	// Fields holds the opcode-specific fixed fields.
	Fields []byte

	Headers []Header
}

// Status returns the response status with the final bit cleared.
func (f *Frame) Status() byte {
	return f.Code &^ FinalBit
}

// Final reports whether the final bit is set.
func (f *Frame) Final() bool {
	return f.Code&FinalBit != 0
}

// Header returns the first header with the given id.
func (f *Frame) Header(id byte) (Header, bool) {
	for _, h := range f.Headers {
		if h.ID == id {
			return h, true
		}
	}
	return Header{}, false
}

// Body concatenates the Body and EndOfBody headers in order of appearance.
func (f *Frame) Body() []byte {
	var out []byte
	for _, h := range f.Headers {
		if h.ID == HdrBody || h.ID == HdrEndOfBody {
			out = append(out, h.Data...)
		}
	}
	return out
}

// HasEndOfBody reports whether the frame closes a body stream.
func (f *Frame) HasEndOfBody() bool {
	_, ok := f.Header(HdrEndOfBody)
	return ok
}

// Encode serializes the frame. The length field covers the whole frame.
func (f *Frame) Encode(order binary.ByteOrder) ([]byte, error) {
	size := FrameHeaderLen + len(f.Fields)
	for _, h := range f.Headers {
		n, err := h.encodedLen()
		if err != nil {
			return nil, err
		}
		size += n
	}
	if size > 0xFFFF {
		return nil, fmt.Errorf("%w: frame length %d exceeds 65535", ErrFormat, size)
	}

	buf := make([]byte, size)
	buf[0] = f.Code
	order.PutUint16(buf[1:3], uint16(size))
	off := FrameHeaderLen
	off += copy(buf[off:], f.Fields)
	for _, h := range f.Headers {
		off += h.put(buf[off:], order)
	}
	return buf, nil
}

// FrameLength reads the total length field from the first FrameHeaderLen
// bytes of a frame.
func FrameLength(hdr []byte, order binary.ByteOrder) (int, error) {
	if len(hdr) < FrameHeaderLen {
		return 0, fmt.Errorf("%w: frame header needs %d bytes, got %d", ErrShort, FrameHeaderLen, len(hdr))
	}
	n := int(order.Uint16(hdr[1:3]))
	if n < FrameHeaderLen {
		return 0, fmt.Errorf("%w: frame length %d below header size", ErrFormat, n)
	}
	return n, nil
}

// RequestFieldLen returns the fixed-field length of a request opcode.
func RequestFieldLen(op byte) int {
	switch op {
	case OpConnect:
		return 6
	case OpSetPath:
		return 2
	default:
		return 0
	}
}

// ResponseFieldLen returns the fixed-field length of a response to the
// given request opcode.
func ResponseFieldLen(reqOp byte) int {
	if reqOp == OpConnect {
		return 4
	}
	return 0
}

// DecodeRequest parses a complete request frame.
func DecodeRequest(b []byte, order binary.ByteOrder) (*Frame, error) {
	if len(b) < 1 {
		return nil, fmt.Errorf("%w: empty frame", ErrShort)
	}
	return decode(b, order, RequestFieldLen(b[0]))
}

// DecodeResponse parses a complete response to a request with opcode reqOp.
func DecodeResponse(b []byte, order binary.ByteOrder, reqOp byte) (*Frame, error) {
	return decode(b, order, ResponseFieldLen(reqOp))
}

func decode(b []byte, order binary.ByteOrder, fieldLen int) (*Frame, error) {
	n, err := FrameLength(b, order)
	if err != nil {
		return nil, err
	}
	if len(b) < n {
		return nil, fmt.Errorf("%w: frame declares %d bytes, got %d", ErrShort, n, len(b))
	}
	if len(b) > n {
		return nil, fmt.Errorf("%w: %d trailing bytes after frame", ErrFormat, len(b)-n)
	}

	f := &Frame{Code: b[0]}
	off := FrameHeaderLen
	if fieldLen > 0 {
		// Status-only error replies to CONNECT carry no fixed fields.
		if n-off < fieldLen {
			if n == off {
				return f, nil
			}
			return nil, fmt.Errorf("%w: fixed fields need %d bytes, got %d", ErrShort, fieldLen, n-off)
		}
		f.Fields = append([]byte(nil), b[off:off+fieldLen]...)
		off += fieldLen
	}

	for off < n {
		h, used, err := readHeader(b[off:n], order)
		if err != nil {
			return nil, err
		}
		f.Headers = append(f.Headers, h)
		off += used
	}
	return f, nil
}
