package wire

import (
	"encoding/binary"
	"fmt"
)

// Header ids. The two top bits select the encoding.
const (
	HdrName      byte = 0x01 // unicode, null-terminated
	HdrType      byte = 0x42 // byte sequence, ASCII command + NUL
	HdrBody      byte = 0x48 // byte sequence
	HdrEndOfBody byte = 0x49 // byte sequence
	HdrLength    byte = 0xC3 // 4 bytes

	hdrFormMask    byte = 0xC0
	hdrFormUnicode byte = 0x00
	hdrFormBytes   byte = 0x40
	hdrFormByte    byte = 0x80
	hdrFormQuad    byte = 0xC0

	// hdrPrefixLen is id + u16 length for the two variable forms.
	hdrPrefixLen = 3
)

// Header is one (id, value) pair. Data holds the value exactly as it sits
// on the wire, without the id and length prefix.
type Header struct {
	ID   byte
	Data []byte
}

// BytesHeader builds a byte-sequence header.
func BytesHeader(id byte, data []byte) Header {
	return Header{ID: id, Data: data}
}

// TypeHeader builds the Type header naming a device command such as "_List".
func TypeHeader(cmd string) Header {
	data := make([]byte, len(cmd)+1)
	copy(data, cmd)
	return Header{ID: HdrType, Data: data}
}

// U32Header builds a 4-byte header.
func U32Header(id byte, v uint32, order binary.ByteOrder) Header {
	data := make([]byte, 4)
	order.PutUint32(data, v)
	return Header{ID: id, Data: data}
}

// NameHeader builds the unicode Name header for s.
func NameHeader(s string, c *TextCodec) (Header, error) {
	u, err := c.ToUTF16(s)
	if err != nil {
		return Header{}, err
	}
	data := make([]byte, len(u)+2)
	copy(data, u)
	return Header{ID: HdrName, Data: data}, nil
}

// Uint32 decodes a 4-byte header value.
func (h Header) Uint32(order binary.ByteOrder) (uint32, error) {
	if len(h.Data) != 4 {
		return 0, fmt.Errorf("%w: header 0x%02x holds %d bytes, want 4", ErrFormat, h.ID, len(h.Data))
	}
	return order.Uint32(h.Data), nil
}

// Command returns a Type header value without its NUL terminator.
func (h Header) Command() string {
	b := h.Data
	for i, c := range b {
		if c == 0 {
			b = b[:i]
			break
		}
	}
	return string(b)
}

func (h Header) encodedLen() (int, error) {
	switch h.ID & hdrFormMask {
	case hdrFormByte:
		if len(h.Data) != 1 {
			return 0, fmt.Errorf("%w: 1-byte header 0x%02x holds %d bytes", ErrFormat, h.ID, len(h.Data))
		}
		return 2, nil
	case hdrFormQuad:
		if len(h.Data) != 4 {
			return 0, fmt.Errorf("%w: 4-byte header 0x%02x holds %d bytes", ErrFormat, h.ID, len(h.Data))
		}
		return 5, nil
	default:
		n := hdrPrefixLen + len(h.Data)
		if n > 0xFFFF {
			return 0, fmt.Errorf("%w: header 0x%02x length %d exceeds 65535", ErrFormat, h.ID, n)
		}
		return n, nil
	}
}

// put writes the header into b, which encodedLen has already sized.
func (h Header) put(b []byte, order binary.ByteOrder) int {
	b[0] = h.ID
	switch h.ID & hdrFormMask {
	case hdrFormByte, hdrFormQuad:
		return 1 + copy(b[1:], h.Data)
	default:
		n := hdrPrefixLen + len(h.Data)
		order.PutUint16(b[1:3], uint16(n))
		copy(b[hdrPrefixLen:], h.Data)
		return n
	}
}

func readHeader(b []byte, order binary.ByteOrder) (Header, int, error) {
	id := b[0]
	switch id & hdrFormMask {
	case hdrFormByte:
		if len(b) < 2 {
			return Header{}, 0, fmt.Errorf("%w: header 0x%02x needs 2 bytes, got %d", ErrShort, id, len(b))
		}
		return Header{ID: id, Data: []byte{b[1]}}, 2, nil
	case hdrFormQuad:
		if len(b) < 5 {
			return Header{}, 0, fmt.Errorf("%w: header 0x%02x needs 5 bytes, got %d", ErrShort, id, len(b))
		}
		return Header{ID: id, Data: append([]byte(nil), b[1:5]...)}, 5, nil
	default:
		if len(b) < hdrPrefixLen {
			return Header{}, 0, fmt.Errorf("%w: header 0x%02x prefix needs %d bytes, got %d", ErrShort, id, hdrPrefixLen, len(b))
		}
		n := int(order.Uint16(b[1:3]))
		if n < hdrPrefixLen {
			return Header{}, 0, fmt.Errorf("%w: header 0x%02x length %d below prefix size", ErrFormat, id, n)
		}
		if n > len(b) {
			return Header{}, 0, fmt.Errorf("%w: header 0x%02x declares %d bytes, got %d", ErrShort, id, n, len(b))
		}
		return Header{ID: id, Data: append([]byte(nil), b[hdrPrefixLen:n]...)}, n, nil
	}
}
