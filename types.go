package exword

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alparslanahmed/go-exword/internal/wire"
)

// ─── Protocol Constants ─────────────────────────────────────────────────────────

const (
	// VendorID and ProductID identify EX-word dictionaries on the USB bus.
	VendorID  uint16 = 0x07CF
	ProductID uint16 = 0x6101

	// DefaultTimeout bounds each bulk transfer on transports that honour
	// SetTimeout.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxFrame is the largest frame the host offers at CONNECT.
	// The Linux USB stack moves 16 KiB per bulk call.
	DefaultMaxFrame = 0x4000

	// DefaultChunkSize is the file payload carried per PUT/GET frame:
	// one frame header plus one Body header fit around it.
	DefaultChunkSize = DefaultMaxFrame - chunkOverhead

	// minMaxFrame is the smallest frame size a device may negotiate.
	minMaxFrame = 0xFF

	chunkOverhead = wire.FrameHeaderLen + 3
)

// ─── Storage Roots ──────────────────────────────────────────────────────────────

// Root selects the storage medium a device path starts from.
type Root string

const (
	RootSD       Root = `\_SD_00`
	RootInternal Root = `\_INTERNAL_00`
	RootNone     Root = ""
)

// SetPathFlag modifies SetPath.
type SetPathFlag uint8

const (
	// SetPathNoCreate forbids the device from creating a missing directory.
	SetPathNoCreate SetPathFlag = 0x02
)

// ─── Open Options ───────────────────────────────────────────────────────────────

// Mode is the transfer mode half of the open options word.
type Mode uint16

const (
	ModeLibrary Mode = 0x0000
	ModeText    Mode = 0x0100
	ModeCD      Mode = 0x0200

	modeMask   uint16 = 0xFF00
	localeMask uint16 = 0x00FF
)

// Valid reports whether m is a known transfer mode.
func (m Mode) Valid() bool {
	return m == ModeLibrary || m == ModeText || m == ModeCD
}

func (m Mode) String() string {
	switch m {
	case ModeLibrary:
		return "library"
	case ModeText:
		return "text"
	case ModeCD:
		return "cd"
	default:
		return fmt.Sprintf("mode(0x%04x)", uint16(m))
	}
}

// Locale is the region half of the open options word. It also picks the
// code page used for non-unicode names.
type Locale = wire.Locale

const (
	LocaleJA = wire.LocaleJA
	LocaleKR = wire.LocaleKR
	LocaleCN = wire.LocaleCN
	LocaleDE = wire.LocaleDE
	LocaleES = wire.LocaleES
	LocaleFR = wire.LocaleFR
	LocaleRU = wire.LocaleRU
)

// ─── Session State ──────────────────────────────────────────────────────────────

// State is the connection progress of a Session. Authentication is tracked
// separately, see Session.Authenticated.
type State int

const (
	StateClosed State = iota
	StateOpened
	StateConnected
	StatePathSet
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpened:
		return "opened"
	case StateConnected:
		return "connected"
	case StatePathSet:
		return "path-set"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ─── Response Codes ─────────────────────────────────────────────────────────────

// ResponseCode is the single status every operation yields. Values 0x10 and
// up are sent by the device; 0x01-0x0F are raised by the host and never
// appear on the wire.
type ResponseCode uint8

const (
	CodeOK       ResponseCode = ResponseCode(wire.StatusOK)
	CodeContinue ResponseCode = ResponseCode(wire.StatusContinue)

	// Device rejections.
	CodeBadRequest       ResponseCode = ResponseCode(wire.StatusBadRequest)
	CodeUnauthorized     ResponseCode = ResponseCode(wire.StatusUnauthorized)
	CodeForbidden        ResponseCode = ResponseCode(wire.StatusForbidden)
	CodeNotFound         ResponseCode = ResponseCode(wire.StatusNotFound)
	CodeMethodNotAllowed ResponseCode = ResponseCode(wire.StatusMethodNotAllowed)
	CodeNotAcceptable    ResponseCode = ResponseCode(wire.StatusNotAcceptable)
	CodeConflict         ResponseCode = ResponseCode(wire.StatusConflict)
	CodeInternal         ResponseCode = ResponseCode(wire.StatusInternal)
	CodeNotImplemented   ResponseCode = ResponseCode(wire.StatusNotImplemented)
	CodeUnavailable      ResponseCode = ResponseCode(wire.StatusUnavailable)
	CodeStorageFull      ResponseCode = ResponseCode(wire.StatusStorageFull)
	CodeLocked           ResponseCode = ResponseCode(wire.StatusLocked)

	// Host-side codes.
	CodeInvalidArgument  ResponseCode = 0x01
	CodeNoMemory         ResponseCode = 0x02
	CodeLocalIO          ResponseCode = 0x03
	CodeDeviceNotFound   ResponseCode = 0x04
	CodeTransportIO      ResponseCode = 0x05
	CodeTimeout          ResponseCode = 0x06
	CodeMalformed        ResponseCode = 0x07
	CodeAuthMismatch     ResponseCode = 0x08
	CodeNotConnected     ResponseCode = 0x09
	CodeCancelled        ResponseCode = 0x0A
	CodeNotAuthenticated ResponseCode = 0x0B
)

var responseNames = map[ResponseCode]string{
	CodeOK:               "OK, Success",
	CodeContinue:         "Continue",
	CodeBadRequest:       "Bad Request",
	CodeUnauthorized:     "Unauthorized",
	CodeForbidden:        "Forbidden",
	CodeNotFound:         "Not Found",
	CodeMethodNotAllowed: "Method Not Allowed",
	CodeNotAcceptable:    "Not Acceptable",
	CodeConflict:         "Conflict",
	CodeInternal:         "Internal Error",
	CodeNotImplemented:   "Not Implemented",
	CodeUnavailable:      "Service Unavailable",
	CodeStorageFull:      "Insufficient Storage",
	CodeLocked:           "Write Protected",
	CodeInvalidArgument:  "Invalid Argument",
	CodeNoMemory:         "Insufficient Memory",
	CodeLocalIO:          "Local I/O Error",
	CodeDeviceNotFound:   "Device Not Found",
	CodeTransportIO:      "Transport I/O Error",
	CodeTimeout:          "Timed Out",
	CodeMalformed:        "Malformed Response",
	CodeAuthMismatch:     "Authentication Challenge Mismatch",
	CodeNotConnected:     "Not Connected",
	CodeCancelled:        "Transfer Cancelled",
	CodeNotAuthenticated: "Not Authenticated",
}

// String returns the display text for c. Unknown codes yield a generic
// message that still names the value.
func (c ResponseCode) String() string {
	if name, ok := responseNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Unknown response (0x%02x)", uint8(c))
}

// Error makes ResponseCode usable as an error value.
func (c ResponseCode) Error() string {
	return fmt.Sprintf("exword response 0x%02x: %s", uint8(c), c.String())
}

// Kind classifies c into the error taxonomy.
func (c ResponseCode) Kind() ErrorKind {
	switch c {
	case CodeOK, CodeContinue:
		return KindSuccess
	case CodeInvalidArgument, CodeNotConnected, CodeNotAuthenticated:
		return KindClientArgument
	case CodeNoMemory, CodeLocalIO:
		return KindResource
	case CodeDeviceNotFound, CodeTransportIO, CodeTimeout:
		return KindTransport
	case CodeMalformed, CodeAuthMismatch, CodeCancelled:
		return KindProtocol
	default:
		return KindDeviceRejection
	}
}

// ResponseString maps any integer status to display text. It never fails.
func ResponseString(rsp int) string {
	if rsp < 0 || rsp > 0xFF {
		return fmt.Sprintf("Unknown response (%d)", rsp)
	}
	return ResponseCode(rsp).String()
}

// ─── Records ────────────────────────────────────────────────────────────────────

// Capacity is the total and used byte count of the selected medium.
type Capacity = wire.Capacity

// Model is the fixed 15-byte model and 6-byte sub-model identifier.
type Model = wire.Model

// UserID is the 17-byte owner name field.
type UserID = wire.UserID

// AuthChallenge is the 20-byte nonce the device issues.
type AuthChallenge = wire.AuthChallenge

// AuthInfo is the CD key, username and challenge echo sent by the host.
type AuthInfo = wire.AuthInfo

// CryptKey is the key material for a username/directory pair.
type CryptKey = wire.CryptKey

// ─── Progress ───────────────────────────────────────────────────────────────────

// Progress reports one step of a file transfer.
type Progress struct {
	Name        string
	Transferred int64
	Total       int64
}

// Percent returns the completed share in the range 0-100.
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 100
	}
	return float64(p.Transferred) / float64(p.Total) * 100
}

// Done reports whether every byte has moved.
func (p Progress) Done() bool {
	return p.Transferred == p.Total
}

// ProgressFunc is called synchronously after each chunk. Returning a non-nil
// error abandons the transfer; the engine aborts and reports CodeCancelled.
type ProgressFunc func(Progress) error

// ─── Session Options ────────────────────────────────────────────────────────────

// Option configures a Session at open time.
type Option func(*sessionOptions)

type sessionOptions struct {
	mode      Mode
	locale    Locale
	order     binary.ByteOrder
	maxFrame  int
	chunkSize int
	timeout   time.Duration
	logger    logrus.FieldLogger
	debug     int
	onGet     ProgressFunc
	onPut     ProgressFunc
}

func defaultSessionOptions() sessionOptions {
	return sessionOptions{
		mode:      ModeLibrary,
		locale:    LocaleJA,
		order:     binary.LittleEndian,
		maxFrame:  DefaultMaxFrame,
		chunkSize: DefaultChunkSize,
		timeout:   DefaultTimeout,
	}
}

// word packs mode and locale into the 16-bit options word.
func (o sessionOptions) word() uint16 {
	return uint16(o.mode) | uint16(o.locale)
}

// WithMode selects the transfer mode.
//
//	s, err := exword.Open(usb.Enumerator{}, exword.WithMode(exword.ModeText))
func WithMode(m Mode) Option {
	return func(o *sessionOptions) {
		o.mode = m
	}
}

// WithLocale selects the dictionary region.
func WithLocale(l Locale) Option {
	return func(o *sessionOptions) {
		o.locale = l
	}
}

// WithOpenOptions sets mode and locale from a raw options word such as
// uint16(exword.ModeCD)|uint16(exword.LocaleDE).
func WithOpenOptions(word uint16) Option {
	return func(o *sessionOptions) {
		o.mode = Mode(word & modeMask)
		o.locale = Locale(word & localeMask)
	}
}

// WithByteOrder overrides the byte order of multi-byte integers and UTF-16
// names. The default is little-endian.
func WithByteOrder(order binary.ByteOrder) Option {
	return func(o *sessionOptions) {
		o.order = order
	}
}

// WithMaxFrame sets the frame size offered at CONNECT.
func WithMaxFrame(n int) Option {
	return func(o *sessionOptions) {
		o.maxFrame = n
	}
}

// WithChunkSize sets the file payload per frame. It is capped by the
// negotiated frame size.
func WithChunkSize(n int) Option {
	return func(o *sessionOptions) {
		o.chunkSize = n
	}
}

// WithTimeout sets the per-transfer timeout on transports that support it.
func WithTimeout(d time.Duration) Option {
	return func(o *sessionOptions) {
		o.timeout = d
	}
}

// WithLogger routes session tracing to l. Without it the session logs to
// its own logrus logger on stderr.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *sessionOptions) {
		o.logger = l
	}
}

// WithDebug sets the initial verbosity, 0 (quiet) to 5 (hex dumps).
func WithDebug(level int) Option {
	return func(o *sessionOptions) {
		o.debug = level
	}
}

// WithProgress registers the get and put progress callbacks. Either may
// be nil.
func WithProgress(get, put ProgressFunc) Option {
	return func(o *sessionOptions) {
		o.onGet = get
		o.onPut = put
	}
}
