package exword

import (
	"errors"
	"fmt"
	"os"
)

// ErrorKind groups response codes by who is at fault.
type ErrorKind int

const (
	KindSuccess ErrorKind = iota
	KindClientArgument
	KindResource
	KindTransport
	KindProtocol
	KindDeviceRejection
)

func (k ErrorKind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindClientArgument:
		return "client argument"
	case KindResource:
		return "resource"
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindDeviceRejection:
		return "device rejection"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is the error type returned by Session operations.
//
//	if err := s.SetPath(exword.RootSD, "/", 0); err != nil {
//	    if errors.Is(err, exword.CodeNotFound) {
//	        // no card inserted
//	    }
//	}
type Error struct {
	// Op names the failing operation, e.g. "sendfile".
	Op string

	// Code is the single status the operation yields.
	Code ResponseCode

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("exword %s: %s: %v", e.Op, e.Code.String(), e.Err)
	}
	return fmt.Sprintf("exword %s: %s", e.Op, e.Code.String())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches a bare ResponseCode target, so errors.Is(err, CodeNotFound)
// works through any wrapping.
func (e *Error) Is(target error) bool {
	c, ok := target.(ResponseCode)
	return ok && c == e.Code
}

// Kind returns the taxonomy class of the error code.
func (e *Error) Kind() ErrorKind {
	return e.Code.Kind()
}

// IsTimeout reports whether the transport timed out.
func (e *Error) IsTimeout() bool {
	return e.Code == CodeTimeout
}

func newError(op string, code ResponseCode, err error) *Error {
	return &Error{Op: op, Code: code, Err: err}
}

// CodeOf extracts the response code from err. A nil error is CodeOK.
func CodeOf(err error) ResponseCode {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var c ResponseCode
	if errors.As(err, &c) {
		return c
	}
	return transportCode(err)
}

// transportCode classifies an error raised by the Transport.
func transportCode(err error) ResponseCode {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return CodeTimeout
	}
	var te interface{ Timeout() bool }
	if errors.As(err, &te) && te.Timeout() {
		return CodeTimeout
	}
	return CodeTransportIO
}
