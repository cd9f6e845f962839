package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ─── Fixed-Layout Records ───────────────────────────────────────────────────────
//
// All records are packed. Field order and sizes:
//
//	Capacity       8  total:u32 used:u32
//	Model         21  model:char[15] sub_model:char[6]
//	UserID        17  name:char[17]
//	AuthChallenge 20  challenge:byte[20]
//	AuthInfo      60  cdkey:byte[16] username:byte[24] challenge:byte[20]
//	CryptKey      40  username:byte[16] directory:byte[12] key:byte[12]

const (
	CapacitySize      = 8
	ModelSize         = 21
	modelNameSize     = 15
	modelSubSize      = 6
	UserIDSize        = 17
	ChallengeSize     = 20
	AuthInfoSize      = 60
	authCDKeySize     = 16
	authUserSize      = 24
	CryptKeySize      = 40
	cryptUserSize     = 16
	cryptDirSize      = 12
	cryptKeyBytesSize = 12
)

func need(what string, b []byte, n int) error {
	if len(b) < n {
		return fmt.Errorf("%w: %s needs %d bytes, got %d", ErrShort, what, n, len(b))
	}
	return nil
}

// cstring returns the bytes of a fixed char field up to the first NUL.
func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// Capacity is the storage usage of the selected medium.
type Capacity struct {
	Total uint32
	Used  uint32
}

// Free returns Total-Used, or zero if the device reports more used than total.
func (c Capacity) Free() uint32 {
	if c.Used > c.Total {
		return 0
	}
	return c.Total - c.Used
}

func (c Capacity) Encode(order binary.ByteOrder) []byte {
	b := make([]byte, CapacitySize)
	order.PutUint32(b[0:4], c.Total)
	order.PutUint32(b[4:8], c.Used)
	return b
}

func DecodeCapacity(b []byte, order binary.ByteOrder) (Capacity, error) {
	if err := need("capacity", b, CapacitySize); err != nil {
		return Capacity{}, err
	}
	return Capacity{
		Total: order.Uint32(b[0:4]),
		Used:  order.Uint32(b[4:8]),
	}, nil
}

// Model identifies the dictionary hardware.
type Model struct {
	Model    string
	SubModel string
}

func (m Model) Encode() []byte {
	b := make([]byte, ModelSize)
	copy(b[0:modelNameSize], m.Model)
	copy(b[modelNameSize:ModelSize], m.SubModel)
	return b
}

func DecodeModel(b []byte) (Model, error) {
	if err := need("model", b, ModelSize); err != nil {
		return Model{}, err
	}
	return Model{
		Model:    cstring(b[0:modelNameSize]),
		SubModel: cstring(b[modelNameSize:ModelSize]),
	}, nil
}

// UserID is the owner name registered on the device.
type UserID struct {
	Name string
}

func (u UserID) Encode() []byte {
	b := make([]byte, UserIDSize)
	copy(b, u.Name)
	return b
}

func DecodeUserID(b []byte) (UserID, error) {
	if err := need("user id", b, UserIDSize); err != nil {
		return UserID{}, err
	}
	return UserID{Name: cstring(b[:UserIDSize])}, nil
}

// AuthChallenge is the nonce issued by the device.
type AuthChallenge [ChallengeSize]byte

func DecodeAuthChallenge(b []byte) (AuthChallenge, error) {
	var c AuthChallenge
	if err := need("auth challenge", b, ChallengeSize); err != nil {
		return c, err
	}
	copy(c[:], b)
	return c, nil
}

// AuthInfo completes the challenge-response handshake.
type AuthInfo struct {
	CDKey     [authCDKeySize]byte
	Username  [authUserSize]byte
	Challenge AuthChallenge
}

func (a AuthInfo) Encode() []byte {
	b := make([]byte, AuthInfoSize)
	copy(b[0:16], a.CDKey[:])
	copy(b[16:40], a.Username[:])
	copy(b[40:60], a.Challenge[:])
	return b
}

func DecodeAuthInfo(b []byte) (AuthInfo, error) {
	var a AuthInfo
	if err := need("auth info", b, AuthInfoSize); err != nil {
		return a, err
	}
	copy(a.CDKey[:], b[0:16])
	copy(a.Username[:], b[16:40])
	copy(a.Challenge[:], b[40:60])
	return a, nil
}

// CryptKey is the key material bound to a username/directory pair.
type CryptKey struct {
	Username  [cryptUserSize]byte
	Directory [cryptDirSize]byte
	Key       [cryptKeyBytesSize]byte
}

func (k CryptKey) Encode() []byte {
	b := make([]byte, CryptKeySize)
	copy(b[0:16], k.Username[:])
	copy(b[16:28], k.Directory[:])
	copy(b[28:40], k.Key[:])
	return b
}

func DecodeCryptKey(b []byte) (CryptKey, error) {
	var k CryptKey
	if err := need("crypt key", b, CryptKeySize); err != nil {
		return k, err
	}
	copy(k.Username[:], b[0:16])
	copy(k.Directory[:], b[16:28])
	copy(k.Key[:], b[28:40])
	return k, nil
}
