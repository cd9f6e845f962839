package devsim

import (
	"crypto/rand"

	"github.com/alparslanahmed/go-exword/internal/wire"
)

func (d *Device) reply(f *wire.Frame) {
	b, err := f.Encode(d.opts.order)
	if err != nil {
		d.log.Warnf("encode response: %v", err)
		b, _ = (&wire.Frame{Code: wire.StatusInternal | wire.FinalBit}).Encode(d.opts.order)
	}
	d.out.Write(b)
}

func (d *Device) status(code byte) {
	d.reply(&wire.Frame{Code: code | wire.FinalBit})
}

// handle serves one complete request frame.
func (d *Device) handle(b []byte) {
	req, err := wire.DecodeRequest(b, d.opts.order)
	if err != nil {
		d.log.Debugf("bad request: %v", err)
		d.status(wire.StatusBadRequest)
		return
	}
	d.record(req)

	label := d.label(req)
	if d.stalls[label] {
		delete(d.stalls, label)
		d.log.Debugf("%s: stalled", label)
		return
	}
	if code, ok := d.faults[label]; ok {
		delete(d.faults, label)
		d.log.Debugf("%s: injected status 0x%02x", label, code)
		d.put, d.get = nil, nil
		d.status(code)
		return
	}

	switch req.Code {
	case wire.OpConnect:
		d.connect(req)
		return
	case wire.OpAbort:
		d.put, d.get = nil, nil
		d.status(wire.StatusOK)
		return
	}
	if !d.connected {
		d.status(wire.StatusForbidden)
		return
	}

	switch req.Code &^ wire.FinalBit {
	case wire.OpDisconnect &^ wire.FinalBit:
		d.disconnect()
	case wire.OpSetPath &^ wire.FinalBit:
		d.setPath(req)
	case wire.OpGet:
		d.serveGet(req)
	case wire.OpPut:
		d.servePut(req)
	default:
		d.status(wire.StatusNotImplemented)
	}
}

func (d *Device) record(req *wire.Frame) {
	r := Request{Code: req.Code, BodyLen: len(req.Body())}
	if h, ok := req.Header(wire.HdrType); ok {
		r.Command = h.Command()
	}
	if h, ok := req.Header(wire.HdrName); ok {
		r.Name, _ = d.codec.FromUTF16(h.Data)
	}
	d.requests = append(d.requests, r)
}

func (d *Device) label(req *wire.Frame) string {
	if h, ok := req.Header(wire.HdrType); ok {
		return h.Command()
	}
	switch req.Code {
	case wire.OpConnect:
		return "connect"
	case wire.OpDisconnect:
		return "disconnect"
	case wire.OpSetPath:
		return "setpath"
	case wire.OpAbort:
		return "abort"
	}
	if req.Code&^wire.FinalBit == wire.OpPut {
		return "put"
	}
	return "get"
}

// ─── Session ────────────────────────────────────────────────────────────────────

func (d *Device) connect(req *wire.Frame) {
	if len(req.Fields) != wire.RequestFieldLen(wire.OpConnect) || req.Fields[0] != wire.ProtocolVersion {
		d.status(wire.StatusBadRequest)
		return
	}
	order := d.opts.order
	host := int(order.Uint16(req.Fields[2:4]))
	word := order.Uint16(req.Fields[4:6])

	mode := word & 0xFF00
	locale := wire.Locale(word & 0x00FF)
	if mode > 0x0200 || !locale.Valid() {
		d.status(wire.StatusNotAcceptable)
		return
	}

	d.maxFrame = min(host, d.opts.maxFrame)
	d.codec = wire.NewTextCodec(order, locale)
	d.connected = true
	d.cwd = ""

	fields := make([]byte, wire.ResponseFieldLen(wire.OpConnect))
	fields[0] = wire.ProtocolVersion
	order.PutUint16(fields[2:4], uint16(d.opts.maxFrame))
	d.log.Debugf("connected: mode 0x%04x, locale %s, max frame %d", mode, locale, d.maxFrame)
	d.reply(&wire.Frame{Code: wire.StatusOK | wire.FinalBit, Fields: fields})
}

func (d *Device) disconnect() {
	d.connected = false
	d.authenticated = false
	d.challenge = nil
	d.put, d.get = nil, nil
	d.cwd = ""
	d.status(wire.StatusOK)
}

func (d *Device) setPath(req *wire.Frame) {
	h, ok := req.Header(wire.HdrName)
	if !ok || len(req.Fields) != 2 {
		d.status(wire.StatusBadRequest)
		return
	}
	raw, err := d.codec.FromUTF16(h.Data)
	if err != nil {
		d.status(wire.StatusBadRequest)
		return
	}

	p := clean(raw)
	if n, ok := d.nodes[p]; ok {
		if !n.dir {
			d.status(wire.StatusNotFound)
			return
		}
		d.cwd = p
		d.status(wire.StatusOK)
		return
	}

	const noCreate = 0x02
	pn, ok := d.nodes[parent(p)]
	if req.Fields[0]&noCreate != 0 || !ok || !pn.dir || parent(p) == `\` {
		d.status(wire.StatusNotFound)
		return
	}
	if d.locked {
		d.status(wire.StatusLocked)
		return
	}
	d.nodes[p] = &node{dir: true}
	d.cwd = p
	d.status(wire.StatusOK)
}

// ─── GET ────────────────────────────────────────────────────────────────────────

func (d *Device) serveGet(req *wire.Frame) {
	if len(req.Headers) == 0 {
		d.continueGet()
		return
	}
	d.get = nil

	if h, ok := req.Header(wire.HdrType); ok {
		body, status := d.command(h.Command())
		if status != wire.StatusOK {
			d.status(status)
			return
		}
		d.get = &getState{data: body}
		d.continueGet()
		return
	}

	h, ok := req.Header(wire.HdrName)
	if !ok || d.cwd == "" {
		d.status(wire.StatusBadRequest)
		return
	}
	name, err := d.codec.FromUTF16(h.Data)
	if err != nil {
		d.status(wire.StatusBadRequest)
		return
	}
	n, ok := d.nodes[join(d.cwd, name)]
	if !ok || n.dir {
		d.status(wire.StatusNotFound)
		return
	}
	d.get = &getState{data: n.data, length: true}
	d.continueGet()
}

// continueGet sends the next slice of the pending GET body.
func (d *Device) continueGet() {
	g := d.get
	if g == nil {
		d.status(wire.StatusBadRequest)
		return
	}

	var headers []wire.Header
	room := d.maxFrame - wire.FrameHeaderLen - 3
	if g.length && g.off == 0 {
		headers = append(headers, wire.U32Header(wire.HdrLength, uint32(len(g.data)), d.opts.order))
		room -= 5
	}

	end := min(g.off+room, len(g.data))
	chunk := g.data[g.off:end]
	g.off = end
	if end == len(g.data) {
		d.get = nil
		headers = append(headers, wire.BytesHeader(wire.HdrEndOfBody, chunk))
		d.reply(&wire.Frame{Code: wire.StatusOK | wire.FinalBit, Headers: headers})
		return
	}
	headers = append(headers, wire.BytesHeader(wire.HdrBody, chunk))
	d.reply(&wire.Frame{Code: wire.StatusContinue | wire.FinalBit, Headers: headers})
}

// command returns the body of a GET command.
func (d *Device) command(cmd string) ([]byte, byte) {
	if body, ok := d.overrides[cmd]; ok {
		delete(d.overrides, cmd)
		return body, wire.StatusOK
	}

	switch cmd {
	case "_Model":
		return d.opts.model.Encode(), wire.StatusOK
	case "_Cap":
		if d.cwd == "" {
			return nil, wire.StatusBadRequest
		}
		return d.capacity(medium(d.cwd)).Encode(d.opts.order), wire.StatusOK
	case "_List":
		return d.listing()
	case "_AuthChallenge":
		var c wire.AuthChallenge
		if _, err := rand.Read(c[:]); err != nil {
			return nil, wire.StatusInternal
		}
		d.challenge = &c
		d.authenticated = false
		return c[:], wire.StatusOK
	case "_CryptKey":
		if !d.authenticated {
			return nil, wire.StatusUnauthorized
		}
		return d.cryptKey().Encode(), wire.StatusOK
	default:
		return nil, wire.StatusNotImplemented
	}
}

func (d *Device) listing() ([]byte, byte) {
	if d.cwd == "" {
		return nil, wire.StatusBadRequest
	}

	var entries []wire.Entry
	for _, name := range d.children(d.cwd) {
		var e wire.Entry
		if d.nodes[join(d.cwd, name)].dir {
			e.Flags |= wire.EntryFlagDir
		}
		if isASCII(name) {
			e.Name = []byte(name)
		} else {
			u, err := d.codec.ToUTF16(name)
			if err != nil {
				return nil, wire.StatusInternal
			}
			e.Flags |= wire.EntryFlagUnicode
			e.Name = u
		}
		entries = append(entries, e)
	}

	body, err := wire.EncodeEntries(entries, d.opts.order)
	if err != nil {
		return nil, wire.StatusInternal
	}
	return body, wire.StatusOK
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

func (d *Device) cryptKey() wire.CryptKey {
	var k wire.CryptKey
	copy(k.Username[:], d.username)
	dir, _ := d.codec.ToLocale(d.cnameDir)
	copy(k.Directory[:], dir)
	for i := range k.Key {
		k.Key[i] = k.Username[i] ^ k.Directory[i] ^ byte(0x5A+i)
	}
	return k
}

// ─── PUT ────────────────────────────────────────────────────────────────────────

func (d *Device) servePut(req *wire.Frame) {
	final := req.Code&wire.FinalBit != 0

	if h, ok := req.Header(wire.HdrType); ok {
		d.put = nil
		d.status(d.putCommand(h.Command(), req))
		return
	}

	if nh, ok := req.Header(wire.HdrName); ok {
		d.beginPut(req, nh, final)
		return
	}

	p := d.put
	if p == nil {
		d.status(wire.StatusBadRequest)
		return
	}
	p.buf = append(p.buf, req.Body()...)
	if len(p.buf) > p.length {
		d.put = nil
		d.status(wire.StatusBadRequest)
		return
	}
	if !final {
		d.status(wire.StatusContinue)
		return
	}
	d.finishPut()
}

func (d *Device) beginPut(req *wire.Frame, nh wire.Header, final bool) {
	d.put = nil
	if d.cwd == "" {
		d.status(wire.StatusBadRequest)
		return
	}
	name, err := d.codec.FromUTF16(nh.Data)
	if err != nil || name == "" {
		d.status(wire.StatusBadRequest)
		return
	}
	lh, ok := req.Header(wire.HdrLength)
	if !ok {
		d.status(wire.StatusBadRequest)
		return
	}
	length, err := lh.Uint32(d.opts.order)
	if err != nil {
		d.status(wire.StatusBadRequest)
		return
	}
	if d.locked {
		d.status(wire.StatusLocked)
		return
	}

	path := join(d.cwd, name)
	if n, ok := d.nodes[path]; ok && n.dir {
		d.status(wire.StatusConflict)
		return
	}
	c := d.capacity(medium(d.cwd))
	if uint64(c.Used)+uint64(length) > uint64(c.Total) {
		d.status(wire.StatusStorageFull)
		return
	}

	d.put = &putState{path: path, length: int(length), buf: req.Body()}
	if !final {
		d.status(wire.StatusContinue)
		return
	}
	d.finishPut()
}

func (d *Device) finishPut() {
	p := d.put
	d.put = nil
	if len(p.buf) != p.length {
		d.status(wire.StatusBadRequest)
		return
	}
	d.nodes[p.path] = &node{data: append([]byte{}, p.buf...)}
	d.log.Debugf("stored %s (%d bytes)", p.path, p.length)
	d.status(wire.StatusOK)
}

func (d *Device) putCommand(cmd string, req *wire.Frame) byte {
	switch cmd {
	case "_SdFormat":
		if _, ok := d.nodes[CardRoot]; !ok {
			return wire.StatusNotFound
		}
		for p := range d.nodes {
			if p != CardRoot && medium(p) == CardRoot {
				delete(d.nodes, p)
			}
		}
		if medium(d.cwd) == CardRoot {
			d.cwd = CardRoot
		}
		return wire.StatusOK

	case "_Lock":
		d.locked = true
		return wire.StatusOK

	case "_Unlock":
		d.locked = false
		return wire.StatusOK

	case "_UserId":
		u, err := wire.DecodeUserID(req.Body())
		if err != nil {
			return wire.StatusBadRequest
		}
		d.userID = u
		return wire.StatusOK

	case "_AuthInfo":
		info, err := wire.DecodeAuthInfo(req.Body())
		if err != nil {
			return wire.StatusBadRequest
		}
		pending := d.challenge
		d.challenge = nil
		if pending == nil || info.Challenge != *pending {
			return wire.StatusUnauthorized
		}
		if d.opts.cdkey != nil {
			var want [16]byte
			copy(want[:], d.opts.cdkey)
			if info.CDKey != want {
				return wire.StatusUnauthorized
			}
		}
		d.authenticated = true
		d.username = append([]byte(nil), info.Username[:]...)
		return wire.StatusOK

	case "_CName":
		if _, ok := req.Header(wire.HdrName); !ok {
			return wire.StatusBadRequest
		}
		dir, err := d.codec.FromLocale(req.Body())
		if err != nil {
			return wire.StatusBadRequest
		}
		d.cnameDir = dir
		return wire.StatusOK

	case "_Remove":
		h, ok := req.Header(wire.HdrName)
		if !ok || d.cwd == "" {
			return wire.StatusBadRequest
		}
		name, err := d.codec.FromUTF16(h.Data)
		if err != nil {
			return wire.StatusBadRequest
		}
		p := join(d.cwd, name)
		n, ok := d.nodes[p]
		if !ok || n.dir {
			return wire.StatusNotFound
		}
		if d.locked {
			return wire.StatusLocked
		}
		delete(d.nodes, p)
		return wire.StatusOK

	default:
		return wire.StatusNotImplemented
	}
}
