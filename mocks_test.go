package exword

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alparslanahmed/go-exword/internal/wire"
)

// scriptedTransport answers each Write with the next queued reply and
// records every frame written.
type scriptedTransport struct {
	replies  [][]byte
	writes   [][]byte
	out      bytes.Buffer
	writeErr error
	closed   int
	timeout  time.Duration
}

func (m *scriptedTransport) Write(p []byte) (int, error) {
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	m.writes = append(m.writes, append([]byte(nil), p...))
	if len(m.replies) > 0 {
		m.out.Write(m.replies[0])
		m.replies = m.replies[1:]
	}
	return len(p), nil
}

func (m *scriptedTransport) Read(p []byte) (int, error) {
	if m.out.Len() == 0 {
		return 0, os.ErrDeadlineExceeded
	}
	return m.out.Read(p)
}

func (m *scriptedTransport) Close() error {
	m.closed++
	return nil
}

func (m *scriptedTransport) SetTimeout(d time.Duration) {
	m.timeout = d
}

func (m *scriptedTransport) queue(replies ...[]byte) {
	m.replies = append(m.replies, replies...)
}

// written decodes the i-th request frame.
func (m *scriptedTransport) written(t *testing.T, i int) *wire.Frame {
	t.Helper()
	require.Less(t, i, len(m.writes))
	f, err := wire.DecodeRequest(m.writes[i], binary.LittleEndian)
	require.NoError(t, err)
	return f
}

// reply encodes a little-endian response frame.
func reply(t *testing.T, status byte, headers ...wire.Header) []byte {
	t.Helper()
	b, err := (&wire.Frame{Code: status | wire.FinalBit, Headers: headers}).Encode(binary.LittleEndian)
	require.NoError(t, err)
	return b
}

func connectReply(t *testing.T, maxFrame uint16) []byte {
	t.Helper()
	fields := []byte{wire.ProtocolVersion, 0, 0, 0}
	binary.LittleEndian.PutUint16(fields[2:4], maxFrame)
	b, err := (&wire.Frame{Code: wire.StatusOK | wire.FinalBit, Fields: fields}).Encode(binary.LittleEndian)
	require.NoError(t, err)
	return b
}

func bodyReply(t *testing.T, body []byte) []byte {
	t.Helper()
	return reply(t, wire.StatusOK, wire.BytesHeader(wire.HdrEndOfBody, body))
}

// connectedScripted returns a connected session over a scripted transport.
func connectedScripted(t *testing.T, opts ...Option) (*Session, *scriptedTransport) {
	t.Helper()
	tr := &scriptedTransport{}
	s, err := OpenTransport(tr, opts...)
	require.NoError(t, err)

	tr.queue(connectReply(t, DefaultMaxFrame))
	require.NoError(t, s.Connect())
	tr.writes = nil
	return s, tr
}

// fakeEnumerator hands out a fixed transport or error.
type fakeEnumerator struct {
	tr  Transport
	err error
	ids []DeviceID
}

func (f *fakeEnumerator) OpenMatching(match func(DeviceID) bool) (Transport, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, id := range f.ids {
		if match(id) {
			return f.tr, nil
		}
	}
	return nil, ErrNoDevice
}

var errBrokenPipe = errors.New("broken pipe")
