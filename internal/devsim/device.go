// Package devsim is an in-memory EX-word device. It speaks the same frames
// as the real dictionary and implements io.ReadWriteCloser, so a session
// can run against it without USB hardware.
//
//	dev := devsim.New(devsim.WithCard(64 << 20))
//	s, _ := exword.OpenTransport(dev)
package devsim

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/alparslanahmed/go-exword/internal/wire"
)

const (
	InternalRoot = `\_INTERNAL_00`
	CardRoot     = `\_SD_00`

	defaultMaxFrame = 0x4000
	defaultInternal = 100 << 20
)

// Option configures a Device.
type Option func(*options)

type options struct {
	order    binary.ByteOrder
	maxFrame int
	internal uint32
	card     uint32
	hasCard  bool
	model    wire.Model
	cdkey    []byte
	logger   logrus.FieldLogger
}

func defaultOptions() options {
	return options{
		order:    binary.LittleEndian,
		maxFrame: defaultMaxFrame,
		internal: defaultInternal,
		model:    wire.Model{Model: "XD-SP6600", SubModel: "GY6"},
	}
}

// WithByteOrder sets the byte order the device expects.
func WithByteOrder(order binary.ByteOrder) Option {
	return func(o *options) { o.order = order }
}

// WithMaxFrame sets the largest frame the device accepts and sends.
func WithMaxFrame(n int) Option {
	return func(o *options) { o.maxFrame = n }
}

// WithInternal sets the internal memory size.
func WithInternal(total uint32) Option {
	return func(o *options) { o.internal = total }
}

// WithCard inserts a card of the given size.
func WithCard(total uint32) Option {
	return func(o *options) {
		o.card = total
		o.hasCard = true
	}
}

// WithModel sets the identifiers returned for _Model.
func WithModel(model, sub string) Option {
	return func(o *options) { o.model = wire.Model{Model: model, SubModel: sub} }
}

// WithCDKey makes AuthInfo accept only the given CD key.
func WithCDKey(key []byte) Option {
	return func(o *options) { o.cdkey = key }
}

// WithLogger traces every request at debug level.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.logger = l }
}

// Request is one frame the device received.
type Request struct {
	Code    byte
	Command string
	Name    string
	BodyLen int
}

// Final reports whether the request carried the final bit.
func (r Request) Final() bool {
	return r.Code&wire.FinalBit != 0
}

type node struct {
	dir  bool
	data []byte
}

type putState struct {
	path   string
	length int
	buf    []byte
}

type getState struct {
	data   []byte
	off    int
	length bool
}

// Device is not safe for concurrent use, like the session driving it.
type Device struct {
	opts  options
	log   logrus.FieldLogger
	codec *wire.TextCodec

	nodes map[string]*node
	cwd   string

	connected     bool
	maxFrame      int
	locked        bool
	authenticated bool
	challenge     *wire.AuthChallenge
	username      []byte
	cnameDir      string
	userID        wire.UserID

	put *putState
	get *getState

	faults    map[string]byte
	stalls    map[string]bool
	overrides map[string][]byte

	in       []byte
	out      bytes.Buffer
	requests []Request
	closed   bool
}

// New returns a device with empty internal memory and, if requested, an
// empty card.
func New(opts ...Option) *Device {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}

	d := &Device{
		opts:      o,
		log:       logger.WithField("component", "devsim"),
		codec:     wire.NewTextCodec(o.order, wire.LocaleJA),
		nodes:     map[string]*node{`\`: {dir: true}, InternalRoot: {dir: true}},
		maxFrame:  o.maxFrame,
		faults:    make(map[string]byte),
		stalls:    make(map[string]bool),
		overrides: make(map[string][]byte),
	}
	if o.hasCard {
		d.nodes[CardRoot] = &node{dir: true}
	}
	return d
}

// ─── io.ReadWriteCloser ─────────────────────────────────────────────────────────

// Write accepts request bytes and queues a response for every complete
// frame.
func (d *Device) Write(p []byte) (int, error) {
	if d.closed {
		return 0, os.ErrClosed
	}
	d.in = append(d.in, p...)
	for len(d.in) >= wire.FrameHeaderLen {
		n, err := wire.FrameLength(d.in, d.opts.order)
		if err != nil {
			d.in = nil
			d.reply(&wire.Frame{Code: wire.StatusBadRequest | wire.FinalBit})
			break
		}
		if len(d.in) < n {
			break
		}
		frame := d.in[:n]
		d.in = d.in[n:]
		d.handle(frame)
	}
	return len(p), nil
}

// Read returns queued response bytes. With nothing queued it reports a
// deadline error, as a bulk read on a silent device would time out.
func (d *Device) Read(p []byte) (int, error) {
	if d.out.Len() == 0 {
		if d.closed {
			return 0, io.EOF
		}
		return 0, os.ErrDeadlineExceeded
	}
	return d.out.Read(p)
}

// Close detaches the device. Later writes fail.
func (d *Device) Close() error {
	d.closed = true
	return nil
}

// ─── Test Controls ──────────────────────────────────────────────────────────────

// FailOn makes the next request matching label answer with status instead
// of being served. Labels are "connect", "disconnect", "setpath", "abort",
// "put", "get" for file transfer frames, or a command such as "_List".
func (d *Device) FailOn(label string, status byte) {
	d.faults[label] = status
}

// StallOn drops the response to the next request matching label.
func (d *Device) StallOn(label string) {
	d.stalls[label] = true
}

// OverrideBody replaces the body of the next GET for command, e.g. to send
// a truncated record.
func (d *Device) OverrideBody(command string, body []byte) {
	d.overrides[command] = body
}

// Requests returns every frame received so far.
func (d *Device) Requests() []Request {
	return slices.Clone(d.requests)
}

// Connected reports whether a CONNECT succeeded and no DISCONNECT followed.
func (d *Device) Connected() bool { return d.connected }

// Cwd returns the current directory.
func (d *Device) Cwd() string { return d.cwd }

// Locked reports the write protection state.
func (d *Device) Locked() bool { return d.locked }

// UserID returns the last stored owner name.
func (d *Device) UserID() wire.UserID { return d.userID }

// PutFile stores data at path, creating parent directories.
func (d *Device) PutFile(path string, data []byte) {
	path = clean(path)
	d.mkdirAll(parent(path))
	d.nodes[path] = &node{data: slices.Clone(data)}
}

// File returns the content stored at path.
func (d *Device) File(path string) ([]byte, bool) {
	n, ok := d.nodes[clean(path)]
	if !ok || n.dir {
		return nil, false
	}
	return slices.Clone(n.data), true
}

// Mkdir creates path and its parents.
func (d *Device) Mkdir(path string) {
	d.mkdirAll(clean(path))
}

// ─── Storage ────────────────────────────────────────────────────────────────────

// clean collapses separators and drops a trailing one.
func clean(p string) string {
	p = strings.ReplaceAll(p, "/", `\`)
	for strings.Contains(p, `\\`) {
		p = strings.ReplaceAll(p, `\\`, `\`)
	}
	if !strings.HasPrefix(p, `\`) {
		p = `\` + p
	}
	if len(p) > 1 {
		p = strings.TrimSuffix(p, `\`)
	}
	return p
}

func parent(p string) string {
	i := strings.LastIndex(p, `\`)
	if i <= 0 {
		return `\`
	}
	return p[:i]
}

func join(dir, name string) string {
	if dir == `\` {
		return `\` + name
	}
	return dir + `\` + name
}

func (d *Device) mkdirAll(p string) {
	for q := p; q != `\`; q = parent(q) {
		if _, ok := d.nodes[q]; !ok {
			d.nodes[q] = &node{dir: true}
		}
	}
}

// medium returns the root a path lives on.
func medium(p string) string {
	if p == CardRoot || strings.HasPrefix(p, CardRoot+`\`) {
		return CardRoot
	}
	return InternalRoot
}

func (d *Device) capacity(root string) wire.Capacity {
	total := d.opts.internal
	if root == CardRoot {
		total = d.opts.card
	}
	var used uint32
	for p, n := range d.nodes {
		if !n.dir && medium(p) == root {
			used += uint32(len(n.data))
		}
	}
	return wire.Capacity{Total: total, Used: used}
}

// children lists the names directly under dir, sorted.
func (d *Device) children(dir string) []string {
	var names []string
	for p := range d.nodes {
		if p != `\` && parent(p) == dir {
			names = append(names, p[strings.LastIndex(p, `\`)+1:])
		}
	}
	slices.Sort(names)
	return names
}
