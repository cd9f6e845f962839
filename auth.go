package exword

import (
	"errors"
	"fmt"

	"github.com/alparslanahmed/go-exword/internal/wire"
)

// ─── Authentication ─────────────────────────────────────────────────────────────
//
// Add-on content is installed after a challenge-response exchange:
//
//	c, err := s.AuthChallenge()
//	info := exword.NewAuthInfo(cdkey, []byte("taro"), c)
//	err = s.AuthInfo(info)
//	key, err := s.CryptKey()
//
// A challenge answers exactly one AuthInfo call.

// AuthChallenge asks the device for a fresh 20-byte nonce and makes it the
// pending challenge, replacing any earlier one.
func (s *Session) AuthChallenge() (AuthChallenge, error) {
	const op = "authchallenge"

	body, err := s.getCommand(op, "_AuthChallenge")
	if err != nil {
		return AuthChallenge{}, err
	}
	c, err := wire.DecodeAuthChallenge(body)
	if err != nil {
		return AuthChallenge{}, newError(op, CodeMalformed, err)
	}

	s.challenge = &c
	s.authenticated = false
	s.logf(1, op, "challenge issued")
	return c, nil
}

// NewAuthInfo builds an AuthInfo record. Fields are zero-padded and cut at
// their fixed widths.
func NewAuthInfo(cdkey, username []byte, c AuthChallenge) AuthInfo {
	var info AuthInfo
	copy(info.CDKey[:], cdkey)
	copy(info.Username[:], username)
	info.Challenge = c
	return info
}

// AuthInfo answers the pending challenge. A missing challenge or a
// mismatched echo fails with CodeAuthMismatch before anything is sent.
// The challenge is single use: any call that finds one pending spends it,
// so a failed AuthInfo needs a new AuthChallenge before retrying.
func (s *Session) AuthInfo(info AuthInfo) error {
	const op = "authinfo"

	if err := s.ensureConnected(op); err != nil {
		return err
	}
	if s.challenge == nil {
		return newError(op, CodeAuthMismatch, errors.New("no pending challenge"))
	}
	pending := *s.challenge
	s.challenge = nil
	if info.Challenge != pending {
		return newError(op, CodeAuthMismatch, errors.New("challenge echo differs from issued challenge"))
	}

	resp, err := s.exchange(op, &wire.Frame{
		Code: wire.OpPut | wire.FinalBit,
		Headers: []wire.Header{
			wire.TypeHeader("_AuthInfo"),
			wire.BytesHeader(wire.HdrEndOfBody, info.Encode()),
		},
	})
	if err != nil {
		return err
	}
	if err := s.expect(op, resp, CodeOK); err != nil {
		return err
	}

	s.authenticated = true
	s.logf(1, op, "authenticated")
	return nil
}

// CryptKey fetches the key for the current CName binding. The session must
// be authenticated.
func (s *Session) CryptKey() (CryptKey, error) {
	const op = "cryptkey"

	if err := s.ensureConnected(op); err != nil {
		return CryptKey{}, err
	}
	if !s.authenticated {
		return CryptKey{}, newError(op, CodeNotAuthenticated, nil)
	}

	body, err := s.getCommand(op, "_CryptKey")
	if err != nil {
		return CryptKey{}, err
	}
	k, err := wire.DecodeCryptKey(body)
	if err != nil {
		return CryptKey{}, newError(op, CodeMalformed, err)
	}
	return k, nil
}

// CName binds an encryption name and target directory for the next
// SendFile. SetPath drops the binding.
func (s *Session) CName(name, dir string) error {
	const op = "cname"

	if !validName(name) {
		return newError(op, CodeInvalidArgument, fmt.Errorf("invalid file name %q", name))
	}
	nameHdr, err := wire.NameHeader(name, s.codec)
	if err != nil {
		return newError(op, CodeInvalidArgument, err)
	}
	rawDir, err := s.codec.ToLocale(dir)
	if err != nil {
		return newError(op, CodeInvalidArgument, err)
	}

	if err := s.putCommand(op, "_CName", append(rawDir, 0), nameHdr); err != nil {
		return err
	}
	s.cname = &cnameBinding{name: name, dir: dir}
	s.logf(1, op, "bound %s to %s", name, dir)
	return nil
}

// Lock write-protects the installed content.
func (s *Session) Lock() error {
	if err := s.putCommand("lock", "_Lock", nil); err != nil {
		return err
	}
	s.unlocked = false
	return nil
}

// Unlock lifts the write protection until Lock or Disconnect.
func (s *Session) Unlock() error {
	if err := s.putCommand("unlock", "_Unlock", nil); err != nil {
		return err
	}
	s.unlocked = true
	return nil
}
