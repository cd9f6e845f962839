package exword

import (
	"github.com/alparslanahmed/go-exword/internal/wire"
)

// ─── Device Information ─────────────────────────────────────────────────────────

// Model queries the model and sub-model identifiers.
//
//	m, err := s.Model()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Model: %s (%s)\n", m.Model, m.SubModel)
func (s *Session) Model() (Model, error) {
	const op = "model"

	body, err := s.getCommand(op, "_Model")
	if err != nil {
		return Model{}, err
	}
	m, err := wire.DecodeModel(body)
	if err != nil {
		return Model{}, newError(op, CodeMalformed, err)
	}
	return m, nil
}

// ─── Storage ────────────────────────────────────────────────────────────────────

// Capacity queries total and used bytes of the medium the current path
// lives on.
//
//	c, err := s.Capacity()
//	fmt.Printf("Capacity: %d / %d\n", c.Total, c.Used)
func (s *Session) Capacity() (Capacity, error) {
	const op = "capacity"

	body, err := s.getCommand(op, "_Cap")
	if err != nil {
		return Capacity{}, err
	}
	c, err := wire.DecodeCapacity(body, s.opts.order)
	if err != nil {
		return Capacity{}, newError(op, CodeMalformed, err)
	}
	return c, nil
}

// SDFormat erases the removable card. Everything on it is lost.
func (s *Session) SDFormat() error {
	const op = "sdformat"

	if err := s.putCommand(op, "_SdFormat", nil); err != nil {
		return err
	}
	s.logf(1, op, "card formatted")
	return nil
}

// ─── Owner ──────────────────────────────────────────────────────────────────────

// SetUserID stores the owner name on the device. Names longer than the
// 17-byte field are cut.
func (s *Session) SetUserID(u UserID) error {
	return s.putCommand("userid", "_UserId", u.Encode())
}
