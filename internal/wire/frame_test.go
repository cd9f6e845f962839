package wire

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameEncodeLayout(t *testing.T) {
	f := &Frame{
		Code: OpGet | FinalBit,
		Headers: []Header{
			TypeHeader("_Cap"),
			U32Header(HdrLength, 0x01020304, binary.LittleEndian),
		},
	}

	b, err := f.Encode(binary.LittleEndian)
	require.NoError(t, err)

	want := []byte{
		0x83, 0x10, 0x00, // opcode, length 16
		0x42, 0x08, 0x00, '_', 'C', 'a', 'p', 0x00, // Type header
		0xC3, 0x04, 0x03, 0x02, 0x01, // Length header
	}
	assert.Equal(t, want, b)
}

func TestFrameRoundTrip(t *testing.T) {
	codec := NewTextCodec(binary.LittleEndian, LocaleJA)
	name, err := NameHeader("NOTE.TXT", codec)
	require.NoError(t, err)

	tests := []struct {
		name  string
		order binary.ByteOrder
		frame *Frame
	}{
		{
			name:  "connect",
			order: binary.LittleEndian,
			frame: &Frame{Code: OpConnect, Fields: []byte{ProtocolVersion, 0, 0x00, 0x40, 0x20, 0x00}},
		},
		{
			name:  "setpath big endian",
			order: binary.BigEndian,
			frame: &Frame{Code: OpSetPath, Fields: []byte{0x02, 0x00}, Headers: []Header{name}},
		},
		{
			name:  "put with body",
			order: binary.LittleEndian,
			frame: &Frame{Code: OpPut, Headers: []Header{name, BytesHeader(HdrBody, []byte("hello"))}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := tt.frame.Encode(tt.order)
			require.NoError(t, err)

			n, err := FrameLength(b, tt.order)
			require.NoError(t, err)
			assert.Equal(t, len(b), n)

			got, err := DecodeRequest(b, tt.order)
			require.NoError(t, err)
			assert.Equal(t, tt.frame.Code, got.Code)
			assert.Equal(t, len(tt.frame.Fields), len(got.Fields))
			assert.Equal(t, tt.frame.Headers, got.Headers)
		})
	}
}

func TestDecodeResponseConnectFields(t *testing.T) {
	resp := &Frame{Code: StatusOK | FinalBit, Fields: []byte{ProtocolVersion, 0, 0x00, 0x10}}
	b, err := resp.Encode(binary.LittleEndian)
	require.NoError(t, err)

	got, err := DecodeResponse(b, binary.LittleEndian, OpConnect)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, got.Status())
	assert.True(t, got.Final())
	assert.Equal(t, uint16(0x1000), binary.LittleEndian.Uint16(got.Fields[2:4]))

	// A bare status reply to CONNECT carries no fields.
	bare := []byte{StatusForbidden | FinalBit, 0x03, 0x00}
	got, err = DecodeResponse(bare, binary.LittleEndian, OpConnect)
	require.NoError(t, err)
	assert.Equal(t, StatusForbidden, got.Status())
	assert.Empty(t, got.Fields)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
	}{
		{"empty", nil},
		{"short header", []byte{0xA0, 0x03}},
		{"length below header", []byte{0xA0, 0x02, 0x00}},
		{"truncated frame", []byte{0xA0, 0x08, 0x00, 0x48}},
		{"trailing bytes", []byte{0xA0, 0x03, 0x00, 0xFF}},
		{"header overruns frame", []byte{0xA0, 0x07, 0x00, 0x48, 0x09, 0x00, 0x01}},
		{"header length below prefix", []byte{0xA0, 0x06, 0x00, 0x48, 0x01, 0x00}},
		{"short quad header", []byte{0xA0, 0x06, 0x00, 0xC3, 0x01, 0x02}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeResponse(tt.in, binary.LittleEndian, OpGet)
			assert.Error(t, err)
		})
	}
}

func TestFrameBodyConcatenation(t *testing.T) {
	f := &Frame{Headers: []Header{
		BytesHeader(HdrBody, []byte("ab")),
		TypeHeader("_List"),
		BytesHeader(HdrEndOfBody, []byte("cd")),
	}}
	assert.Equal(t, []byte("abcd"), f.Body())
	assert.True(t, f.HasEndOfBody())

	typ, ok := f.Header(HdrType)
	require.True(t, ok)
	assert.Equal(t, "_List", typ.Command())
}

func TestEncodeRejectsBadHeaderSizes(t *testing.T) {
	f := &Frame{Code: OpPut, Headers: []Header{{ID: HdrLength, Data: []byte{1, 2}}}}
	_, err := f.Encode(binary.LittleEndian)
	assert.ErrorIs(t, err, ErrFormat)

	big := &Frame{Code: OpPut, Headers: []Header{BytesHeader(HdrBody, make([]byte, 0x10000))}}
	_, err = big.Encode(binary.LittleEndian)
	assert.ErrorIs(t, err, ErrFormat)
}
