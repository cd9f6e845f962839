package wire

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syntheticEntries(t *testing.T, n int, codec *TextCodec) []Entry {
	t.Helper()
	entries := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		var e Entry
		if i%2 == 0 {
			e.Flags |= EntryFlagDir
		}
		if i%3 == 0 {
			name, err := codec.ToUTF16(fmt.Sprintf("辞書%02d", i))
			require.NoError(t, err)
			e.Flags |= EntryFlagUnicode
			e.Name = name
		} else {
			e.Name = []byte(fmt.Sprintf("FILE%02d.TXT", i))
		}
		entries = append(entries, e)
	}
	return entries
}

func TestEntriesRoundTrip(t *testing.T) {
	codec := NewTextCodec(binary.LittleEndian, LocaleJA)

	for _, n := range []int{0, 1, 50} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			in := syntheticEntries(t, n, codec)

			b, err := EncodeEntries(in, binary.LittleEndian)
			require.NoError(t, err)

			out, err := DecodeEntries(b, binary.LittleEndian)
			require.NoError(t, err)
			require.Len(t, out, n)
			for i := range in {
				assert.Equal(t, in[i].Flags, out[i].Flags, "entry %d flags", i)
				assert.Equal(t, in[i].Name, out[i].Name, "entry %d name", i)
			}
		})
	}
}

func TestEntrySizeIncludesHeader(t *testing.T) {
	b, err := EncodeEntries([]Entry{{Flags: EntryFlagDir, Name: []byte("DIR")}}, binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x00, 0x06, 0x00, 0x01, 'D', 'I', 'R'}, b)
}

func TestDecodeEntriesMalformed(t *testing.T) {
	good, err := EncodeEntries([]Entry{
		{Name: []byte("A.TXT")},
		{Name: []byte("B.TXT")},
	}, binary.LittleEndian)
	require.NoError(t, err)

	tests := []struct {
		name string
		in   []byte
	}{
		{"no count", []byte{0x01}},
		{"truncated last record", good[:len(good)-1]},
		{"missing record header", good[:2+8+1]},
		{"size below header", []byte{0x01, 0x00, 0x02, 0x00, 0x00}},
		{"trailing bytes", append(append([]byte(nil), good...), 0xEE)},
		{"count exceeds records", append([]byte{0x03, 0x00}, good[2:]...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := DecodeEntries(tt.in, binary.LittleEndian)
			assert.Error(t, err)
			assert.Nil(t, out)
		})
	}
}
