package exword

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alparslanahmed/go-exword/internal/devsim"
	"github.com/alparslanahmed/go-exword/internal/wire"
)

func TestModel(t *testing.T) {
	dev := devsim.New(devsim.WithModel("XD-D10000", "EN1"))
	s := simSession(t, dev)

	m, err := s.Model()
	require.NoError(t, err)
	assert.Equal(t, "XD-D10000", m.Model)
	assert.Equal(t, "EN1", m.SubModel)
}

func TestCapacity(t *testing.T) {
	dev := devsim.New(devsim.WithInternal(1000), devsim.WithCard(5000))
	dev.PutFile(devsim.InternalRoot+`\A.TXT`, make([]byte, 100))
	dev.PutFile(devsim.CardRoot+`\B.TXT`, make([]byte, 250))
	s := simSession(t, dev)

	require.NoError(t, s.SetPath(RootInternal, "/", 0))
	c, err := s.Capacity()
	require.NoError(t, err)
	assert.Equal(t, Capacity{Total: 1000, Used: 100}, c)

	require.NoError(t, s.SetPath(RootSD, "/", 0))
	c, err = s.Capacity()
	require.NoError(t, err)
	assert.Equal(t, Capacity{Total: 5000, Used: 250}, c)
	assert.Equal(t, uint32(4750), c.Free())
}

func TestShortPayloadsAreMalformed(t *testing.T) {
	tests := []struct {
		name string
		cmd  string
		call func(s *Session) error
	}{
		{"model", "_Model", func(s *Session) error { _, err := s.Model(); return err }},
		{"capacity", "_Cap", func(s *Session) error { _, err := s.Capacity(); return err }},
		{"cryptkey", "_CryptKey", func(s *Session) error { _, err := s.CryptKey(); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := devsim.New()
			s := simSession(t, dev)
			require.NoError(t, s.SetPath(RootInternal, "/", 0))

			c, err := s.AuthChallenge()
			require.NoError(t, err)
			require.NoError(t, s.AuthInfo(NewAuthInfo(nil, nil, c)))

			dev.OverrideBody(tt.cmd, []byte{0x01, 0x02, 0x03})
			err = tt.call(s)
			assert.ErrorIs(t, err, CodeMalformed)
		})
	}
}

func TestSDFormat(t *testing.T) {
	dev := devsim.New(devsim.WithCard(1 << 20))
	dev.PutFile(devsim.CardRoot+`\dict\A.TXT`, []byte("a"))
	s := simSession(t, dev)
	require.NoError(t, s.SetPath(RootSD, "/", 0))

	require.NoError(t, s.SDFormat())
	list, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, 0, list.Len())

	// Without a card the device refuses.
	bare := simSession(t, devsim.New())
	assert.ErrorIs(t, bare.SDFormat(), CodeNotFound)
}

func TestSetUserID(t *testing.T) {
	dev := devsim.New()
	s := simSession(t, dev)

	require.NoError(t, s.SetUserID(UserID{Name: "CASIO TARO"}))
	assert.Equal(t, "CASIO TARO", dev.UserID().Name)
}

func TestCommandFrames(t *testing.T) {
	s, tr := connectedScripted(t)

	tr.queue(bodyReply(t, (Capacity{Total: 8, Used: 2}).Encode(s.opts.order)))
	_, err := s.Capacity()
	require.NoError(t, err)

	req := tr.written(t, 0)
	assert.Equal(t, wire.OpGet|wire.FinalBit, req.Code)
	assert.Equal(t, "_Cap", mustCommand(t, req))

	tr.queue(reply(t, wire.StatusOK))
	require.NoError(t, s.SDFormat())
	req = tr.written(t, 1)
	assert.Equal(t, wire.OpPut|wire.FinalBit, req.Code)
	assert.Equal(t, "_SdFormat", mustCommand(t, req))
	assert.Empty(t, req.Body())
}
