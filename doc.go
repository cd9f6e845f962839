// Package exword provides a Go client for Casio EX-word electronic
// dictionaries over their USB bulk protocol.
//
// # Overview
//
// The package drives one device per Session. It manages connection and path
// state, directory listings, chunked file upload and download, model and
// capacity queries, card formatting and the challenge-response exchange
// used to install add-on content.
//
// # Protocol Architecture
//
// The device speaks an OBEX-style request/response protocol over bulk
// endpoints:
//
//   - Each frame is [1B opcode or status][2B length][fixed fields][headers]
//   - Headers carry a name (UTF-16), a command type, a length or body data
//   - Device commands such as "_List" and "_Cap" ride in the Type header
//   - Bodies larger than one frame continue with status 0x10 (Continue)
//
// Multi-byte integers and UTF-16 names are little-endian by default, see
// WithByteOrder.
//
// # Connection Flow
//
//  1. The USB device 07cf:6101 is claimed (package usb)
//  2. CONNECT carries the open options: transfer mode and locale
//  3. SETPATH selects \_INTERNAL_00 or \_SD_00 and a directory
//  4. Listing, transfer and metadata commands act on that directory
//
// # Quick Start
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
//	err = s.UploadFile("NOTE.TXT")
//
// # Errors
//
// Every failure is an *Error carrying a single ResponseCode. Device
// statuses and host-side conditions share the code space, so
//
//	errors.Is(err, exword.CodeNotFound)
//
// works for both. ResponseString turns any code into display text.
//
// # Thread Safety
//
// A Session is not safe for concurrent use. Progress callbacks run on the
// calling goroutine between chunks.
package exword
