package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
)

// Locale is the dictionary region selector carried in the open options word.
type Locale uint8

const (
	LocaleJA Locale = 0x20
	LocaleKR Locale = 0x40
	LocaleCN Locale = 0x60
	LocaleDE Locale = 0x80
	LocaleES Locale = 0xA0
	LocaleFR Locale = 0xC0
	LocaleRU Locale = 0xE0
)

// Valid reports whether l is one of the known region selectors.
func (l Locale) Valid() bool {
	return l.charset() != nil
}

// String returns the two-letter region code, as used on the command line.
func (l Locale) String() string {
	switch l {
	case LocaleJA:
		return "ja"
	case LocaleKR:
		return "kr"
	case LocaleCN:
		return "cn"
	case LocaleDE:
		return "de"
	case LocaleES:
		return "es"
	case LocaleFR:
		return "fr"
	case LocaleRU:
		return "ru"
	default:
		return fmt.Sprintf("locale(0x%02x)", uint8(l))
	}
}

// charset is the legacy code page the device uses for non-unicode names.
func (l Locale) charset() encoding.Encoding {
	switch l {
	case LocaleJA:
		return japanese.ShiftJIS
	case LocaleKR:
		return korean.EUCKR
	case LocaleCN:
		return simplifiedchinese.GBK
	case LocaleDE, LocaleES, LocaleFR:
		return charmap.Windows1252
	case LocaleRU:
		return charmap.Windows1251
	default:
		return nil
	}
}

// TextCodec converts between host strings (UTF-8) and the two encodings
// the device uses for names: UTF-16 in the session byte order and the
// locale's legacy code page.
type TextCodec struct {
	utf16   encoding.Encoding
	locale  Locale
	charset encoding.Encoding
}

// NewTextCodec returns a codec for the given byte order and locale. An
// unknown locale falls back to Shift-JIS, the device's factory default.
func NewTextCodec(order binary.ByteOrder, locale Locale) *TextCodec {
	endian := unicode.LittleEndian
	if order == binary.BigEndian {
		endian = unicode.BigEndian
	}
	cs := locale.charset()
	if cs == nil {
		cs = japanese.ShiftJIS
	}
	return &TextCodec{
		utf16:   unicode.UTF16(endian, unicode.IgnoreBOM),
		locale:  locale,
		charset: cs,
	}
}

// Locale returns the codec's region selector.
func (c *TextCodec) Locale() Locale {
	return c.locale
}

// ToUTF16 encodes s without a terminator.
func (c *TextCodec) ToUTF16(s string) ([]byte, error) {
	b, err := c.utf16.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("utf-16 encode %q: %w", s, err)
	}
	return b, nil
}

// FromUTF16 decodes b, dropping a trailing NUL terminator if present.
func (c *TextCodec) FromUTF16(b []byte) (string, error) {
	if len(b)%2 != 0 {
		return "", fmt.Errorf("%w: utf-16 name has odd length %d", ErrFormat, len(b))
	}
	for len(b) >= 2 && b[len(b)-1] == 0 && b[len(b)-2] == 0 {
		b = b[:len(b)-2]
	}
	out, err := c.utf16.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("utf-16 decode: %w", err)
	}
	return string(out), nil
}

// ToLocale encodes s in the locale code page.
func (c *TextCodec) ToLocale(s string) ([]byte, error) {
	b, err := c.charset.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("%s encode %q: %w", c.locale, s, err)
	}
	return b, nil
}

// FromLocale decodes locale code page bytes, stopping at the first NUL.
func (c *TextCodec) FromLocale(b []byte) (string, error) {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	out, err := c.charset.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("%s decode: %w", c.locale, err)
	}
	return string(out), nil
}
