package wire

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUTF16ByteOrder(t *testing.T) {
	le := NewTextCodec(binary.LittleEndian, LocaleJA)
	be := NewTextCodec(binary.BigEndian, LocaleJA)

	b, err := le.ToUTF16("A辞")
	require.NoError(t, err)
	assert.Equal(t, []byte{'A', 0x00, 0x9E, 0x8F}, b)

	b, err = be.ToUTF16("A辞")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 'A', 0x8F, 0x9E}, b)

	s, err := be.FromUTF16(append(b, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, "A辞", s)
}

func TestFromUTF16RejectsOddLength(t *testing.T) {
	c := NewTextCodec(binary.LittleEndian, LocaleJA)
	_, err := c.FromUTF16([]byte{'A', 0, 'B'})
	assert.ErrorIs(t, err, ErrFormat)
}

func TestLocaleCodePages(t *testing.T) {
	tests := []struct {
		locale Locale
		text   string
		raw    []byte
	}{
		{LocaleJA, "辞書", []byte{0x8E, 0xAB, 0x8F, 0x91}},
		{LocaleDE, "Wörter", []byte{'W', 0xF6, 'r', 't', 'e', 'r'}},
		{LocaleRU, "Да", []byte{0xC4, 0xE0}},
		{LocaleFR, "NOTE.TXT", []byte("NOTE.TXT")},
	}

	for _, tt := range tests {
		t.Run(tt.locale.String(), func(t *testing.T) {
			c := NewTextCodec(binary.LittleEndian, tt.locale)

			raw, err := c.ToLocale(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.raw, raw)

			text, err := c.FromLocale(append(raw, 0, 'x'))
			require.NoError(t, err)
			assert.Equal(t, tt.text, text)
		})
	}
}

func TestLocaleValidity(t *testing.T) {
	for _, l := range []Locale{LocaleJA, LocaleKR, LocaleCN, LocaleDE, LocaleES, LocaleFR, LocaleRU} {
		assert.True(t, l.Valid(), l.String())
	}
	assert.False(t, Locale(0x10).Valid())
	assert.Equal(t, "locale(0x10)", Locale(0x10).String())
}
