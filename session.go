package exword

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/alparslanahmed/go-exword/internal/wire"
)

// Session drives one EX-word device over a Transport. It is not safe for
// concurrent use; callers serialize access.
//
// Usage:
//
//	s, err := exword.Open(usb.Enumerator{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	if err := s.Connect(); err != nil {
//	    log.Fatal(err)
//	}
//	if err := s.SetPath(exword.RootInternal, "/", 0); err != nil {
//	    log.Fatal(err)
//	}
//	list, err := s.List()
type Session struct {
	// id correlates log entries of one session.
	id uuid.UUID

	tr   Transport
	opts sessionOptions

	// codec converts names for the session's byte order and locale.
	codec *wire.TextCodec

	log   *logrus.Entry
	debug int

	state State

	// path is the device path of the last successful SetPath.
	path string

	// maxFrame is the frame size agreed at CONNECT.
	maxFrame int

	// challenge is the pending single-use nonce from AuthChallenge.
	challenge     *AuthChallenge
	authenticated bool
	unlocked      bool

	// cname is the encryption name binding for the next SendFile.
	cname *cnameBinding

	onGet ProgressFunc
	onPut ProgressFunc
}

type cnameBinding struct {
	name string
	dir  string
}

// Open enumerates devices, claims the first EX-word dictionary and returns
// an opened, not yet connected session.
//
//	// Internal memory, German dictionaries
//	s, err := exword.Open(usb.Enumerator{},
//	    exword.WithLocale(exword.LocaleDE),
//	    exword.WithDebug(2),
//	)
func Open(e Enumerator, options ...Option) (*Session, error) {
	const op = "open"

	opts, err := buildOptions(options)
	if err != nil {
		return nil, newError(op, CodeInvalidArgument, err)
	}
	if e == nil {
		return nil, newError(op, CodeInvalidArgument, errors.New("nil enumerator"))
	}

	t, err := e.OpenMatching(IsDictionary)
	if err != nil {
		if errors.Is(err, ErrNoDevice) {
			return nil, newError(op, CodeDeviceNotFound, err)
		}
		return nil, newError(op, transportCode(err), err)
	}
	return newSession(t, opts), nil
}

// OpenTransport binds a session to an already open transport.
func OpenTransport(t Transport, options ...Option) (*Session, error) {
	const op = "open"

	opts, err := buildOptions(options)
	if err != nil {
		return nil, newError(op, CodeInvalidArgument, err)
	}
	if t == nil {
		return nil, newError(op, CodeInvalidArgument, errors.New("nil transport"))
	}
	return newSession(t, opts), nil
}

func buildOptions(options []Option) (sessionOptions, error) {
	opts := defaultSessionOptions()
	for _, opt := range options {
		opt(&opts)
	}

	switch {
	case !opts.mode.Valid():
		return opts, fmt.Errorf("unknown transfer mode %s", opts.mode)
	case !opts.locale.Valid():
		return opts, fmt.Errorf("unknown locale %s", opts.locale)
	case opts.order == nil:
		return opts, errors.New("nil byte order")
	case opts.maxFrame < minMaxFrame || opts.maxFrame > 0xFFFF:
		return opts, fmt.Errorf("max frame %d out of range [%d, 65535]", opts.maxFrame, minMaxFrame)
	case opts.chunkSize <= 0:
		return opts, fmt.Errorf("chunk size %d must be positive", opts.chunkSize)
	case opts.debug < 0 || opts.debug > 5:
		return opts, fmt.Errorf("debug level %d out of range [0, 5]", opts.debug)
	}
	return opts, nil
}

func newSession(t Transport, opts sessionOptions) *Session {
	logger := opts.logger
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.TraceLevel)
		logger = l
	}

	id := uuid.New()
	s := &Session{
		id:       id,
		tr:       t,
		opts:     opts,
		codec:    wire.NewTextCodec(opts.order, opts.locale),
		log:      logger.WithField("session", id.String()),
		debug:    opts.debug,
		state:    StateOpened,
		maxFrame: opts.maxFrame,
		onGet:    opts.onGet,
		onPut:    opts.onPut,
	}
	if ts, ok := t.(timeoutSetter); ok && opts.timeout > 0 {
		ts.SetTimeout(opts.timeout)
	}
	s.logf(1, "open", "session opened (mode %s, locale %s)", opts.mode, opts.locale)
	return s
}

// ─── Lifecycle ──────────────────────────────────────────────────────────────────

// Connect performs the CONNECT exchange and agrees on a frame size.
// Calling it on a connected session is a no-op.
func (s *Session) Connect() error {
	const op = "connect"

	if s.state == StateClosed {
		return newError(op, CodeNotConnected, nil)
	}
	if s.state >= StateConnected {
		return nil
	}

	order := s.opts.order
	fields := make([]byte, wire.RequestFieldLen(wire.OpConnect))
	fields[0] = wire.ProtocolVersion
	order.PutUint16(fields[2:4], uint16(s.opts.maxFrame))
	order.PutUint16(fields[4:6], s.opts.word())

	resp, err := s.exchange(op, &wire.Frame{Code: wire.OpConnect, Fields: fields})
	if err != nil {
		return err
	}
	if err := s.expect(op, resp, CodeOK); err != nil {
		return err
	}
	if len(resp.Fields) < 4 {
		return newError(op, CodeMalformed, errors.New("connect response without fields"))
	}

	peer := int(order.Uint16(resp.Fields[2:4]))
	if peer < minMaxFrame {
		return newError(op, CodeMalformed, fmt.Errorf("device max frame %d below %d", peer, minMaxFrame))
	}
	s.maxFrame = min(peer, s.opts.maxFrame)
	s.state = StateConnected
	s.logf(1, op, "connected (device version 0x%02x, max frame %d)", resp.Fields[0], s.maxFrame)
	return nil
}

// Disconnect ends the protocol session. The transport stays open and the
// session may Connect again.
func (s *Session) Disconnect() error {
	const op = "disconnect"

	if err := s.ensureConnected(op); err != nil {
		return err
	}
	resp, err := s.exchange(op, &wire.Frame{Code: wire.OpDisconnect})
	if err != nil {
		return err
	}
	if err := s.expect(op, resp, CodeOK); err != nil {
		return err
	}
	s.reset(StateOpened)
	s.logf(1, op, "disconnected")
	return nil
}

// Close releases the transport. It is legal in any state and idempotent.
func (s *Session) Close() error {
	if s.state == StateClosed {
		return nil
	}
	s.reset(StateClosed)
	s.logf(1, "close", "session closed")
	if err := s.tr.Close(); err != nil {
		return newError("close", transportCode(err), err)
	}
	return nil
}

func (s *Session) reset(state State) {
	s.state = state
	s.path = ""
	s.maxFrame = s.opts.maxFrame
	s.challenge = nil
	s.authenticated = false
	s.unlocked = false
	s.cname = nil
}

// ─── Accessors ──────────────────────────────────────────────────────────────────

// ID returns the session's log correlation id.
func (s *Session) ID() uuid.UUID { return s.id }

// State returns the connection state.
func (s *Session) State() State { return s.state }

// Path returns the current device path, empty before SetPath.
func (s *Session) Path() string { return s.path }

// Authenticated reports whether AuthInfo succeeded in this connection.
func (s *Session) Authenticated() bool { return s.authenticated }

// Unlocked reports whether Unlock succeeded since the last Lock.
func (s *Session) Unlocked() bool { return s.unlocked }

// MaxFrame returns the frame size in effect.
func (s *Session) MaxFrame() int { return s.maxFrame }

// Locale returns the locale chosen at open time.
func (s *Session) Locale() Locale { return s.opts.locale }

// Mode returns the transfer mode chosen at open time.
func (s *Session) Mode() Mode { return s.opts.mode }

// Debug returns the verbosity level.
func (s *Session) Debug() int { return s.debug }

// SetDebug changes the verbosity level, clamped to 0-5. Level 0 keeps
// warnings only, 5 adds hex dumps of every frame.
func (s *Session) SetDebug(level int) {
	s.debug = max(0, min(level, 5))
}

// RegisterCallbacks replaces the progress callbacks for GetFile and
// SendFile. Either may be nil.
func (s *Session) RegisterCallbacks(get, put ProgressFunc) {
	s.onGet = get
	s.onPut = put
}

// ─── Frame Exchange ─────────────────────────────────────────────────────────────

func (s *Session) ensureConnected(op string) error {
	if s.state < StateConnected {
		return newError(op, CodeNotConnected, nil)
	}
	return nil
}

// exchange writes one request frame and reads its response.
func (s *Session) exchange(op string, req *wire.Frame) (*wire.Frame, error) {
	b, err := req.Encode(s.opts.order)
	if err != nil {
		return nil, newError(op, CodeInvalidArgument, err)
	}
	if len(b) > s.maxFrame {
		return nil, newError(op, CodeInvalidArgument, fmt.Errorf("frame of %d bytes exceeds max frame %d", len(b), s.maxFrame))
	}

	s.traceFrame(op, ">>", req, b)
	if _, err := s.tr.Write(b); err != nil {
		return nil, newError(op, transportCode(err), err)
	}

	resp, raw, err := s.readResponse(op, req.Code)
	if err != nil {
		return nil, err
	}
	s.traceFrame(op, "<<", resp, raw)
	return resp, nil
}

// readResponse reads the fixed 3-byte header first, then the remainder the
// length field announces.
func (s *Session) readResponse(op string, reqOp byte) (*wire.Frame, []byte, error) {
	order := s.opts.order

	hdr := make([]byte, wire.FrameHeaderLen)
	if _, err := io.ReadFull(s.tr, hdr); err != nil {
		return nil, nil, newError(op, transportCode(err), fmt.Errorf("read frame header: %w", err))
	}
	n, err := wire.FrameLength(hdr, order)
	if err != nil {
		return nil, nil, newError(op, CodeMalformed, err)
	}

	raw := make([]byte, n)
	copy(raw, hdr)
	if _, err := io.ReadFull(s.tr, raw[wire.FrameHeaderLen:]); err != nil {
		return nil, nil, newError(op, transportCode(err), fmt.Errorf("read frame body: %w", err))
	}

	f, err := wire.DecodeResponse(raw, order, reqOp)
	if err != nil {
		return nil, nil, newError(op, CodeMalformed, err)
	}
	return f, raw, nil
}

// expect checks the response status before any payload is trusted.
func (s *Session) expect(op string, resp *wire.Frame, want ...ResponseCode) error {
	code := ResponseCode(resp.Status())
	for _, w := range want {
		if code == w {
			return nil
		}
	}
	if code.Kind() == KindSuccess {
		return newError(op, CodeMalformed, fmt.Errorf("unexpected status %s", code))
	}
	s.logf(1, op, "device rejected request: %s", code)
	return newError(op, code, nil)
}

// pull runs a GET request and the continuation GETs that follow it,
// handing every response to chunk. A chunk error while the device still
// has data aborts the exchange.
func (s *Session) pull(op string, req *wire.Frame, chunk func(*wire.Frame) error) error {
	for {
		resp, err := s.exchange(op, req)
		if err != nil {
			return err
		}
		if err := s.expect(op, resp, CodeContinue, CodeOK); err != nil {
			return err
		}

		more := ResponseCode(resp.Status()) == CodeContinue
		if err := chunk(resp); err != nil {
			if more {
				s.abort(op)
			}
			return err
		}
		if !more {
			return nil
		}
		req = &wire.Frame{Code: wire.OpGet | wire.FinalBit}
	}
}

// abort tells the device to drop the operation in progress. Its outcome
// only gets logged; the caller already has an error to report.
func (s *Session) abort(op string) {
	resp, err := s.exchange(op, &wire.Frame{Code: wire.OpAbort})
	if err != nil {
		s.log.WithField("op", op).Warnf("abort failed: %v", err)
		return
	}
	if code := ResponseCode(resp.Status()); code != CodeOK {
		s.log.WithField("op", op).Warnf("abort answered with %s", code)
	}
}

// getCommand runs GET with a Type header and returns the whole body.
func (s *Session) getCommand(op, cmd string) ([]byte, error) {
	if err := s.ensureConnected(op); err != nil {
		return nil, err
	}

	var body []byte
	req := &wire.Frame{
		Code:    wire.OpGet | wire.FinalBit,
		Headers: []wire.Header{wire.TypeHeader(cmd)},
	}
	err := s.pull(op, req, func(resp *wire.Frame) error {
		body = append(body, resp.Body()...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// putCommand runs a single-frame PUT with a Type header, any extra headers
// and an optional body.
func (s *Session) putCommand(op, cmd string, body []byte, extra ...wire.Header) error {
	if err := s.ensureConnected(op); err != nil {
		return err
	}

	headers := append([]wire.Header{wire.TypeHeader(cmd)}, extra...)
	if body != nil {
		headers = append(headers, wire.BytesHeader(wire.HdrEndOfBody, body))
	}
	resp, err := s.exchange(op, &wire.Frame{Code: wire.OpPut | wire.FinalBit, Headers: headers})
	if err != nil {
		return err
	}
	return s.expect(op, resp, CodeOK)
}

// ─── Tracing ────────────────────────────────────────────────────────────────────

// logf writes at the logrus level matching a debug level.
func (s *Session) logf(level int, op, format string, args ...any) {
	if s.debug < level {
		return
	}
	entry := s.log.WithField("op", op)
	switch {
	case level <= 1:
		entry.Infof(format, args...)
	case level >= 5:
		entry.Tracef(format, args...)
	default:
		entry.Debugf(format, args...)
	}
}

func (s *Session) traceFrame(op, dir string, f *wire.Frame, raw []byte) {
	if s.debug < 2 {
		return
	}
	s.logf(2, op, "%s frame 0x%02x, %d bytes, %d headers", dir, f.Code, len(raw), len(f.Headers))
	if s.debug >= 3 {
		for _, h := range f.Headers {
			s.logf(3, op, "%s   header 0x%02x, %d bytes", dir, h.ID, len(h.Data))
		}
	}
	if s.debug >= 5 {
		s.logf(5, op, "%s\n%s", dir, hex.Dump(raw))
	}
}
