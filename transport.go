package exword

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// Transport is a bidirectional bulk link to the device. Each Write carries
// one complete frame; responses are read back with io.ReadFull.
type Transport interface {
	io.ReadWriteCloser
}

// timeoutSetter is implemented by transports with a per-transfer timeout.
type timeoutSetter interface {
	SetTimeout(d time.Duration)
}

// DeviceID is the identity an Enumerator offers to a match predicate.
type DeviceID struct {
	Vendor  uint16
	Product uint16
	Bus     int
	Address int
}

func (id DeviceID) String() string {
	return fmt.Sprintf("%04x:%04x (bus %d, address %d)", id.Vendor, id.Product, id.Bus, id.Address)
}

// IsDictionary matches the EX-word vendor and product ids.
func IsDictionary(id DeviceID) bool {
	return id.Vendor == VendorID && id.Product == ProductID
}

// ErrNoDevice is returned by an Enumerator when nothing matched.
var ErrNoDevice = errors.New("exword: no matching device")

// Enumerator finds and claims a device. The usb package provides the real
// implementation.
type Enumerator interface {
	OpenMatching(match func(DeviceID) bool) (Transport, error)
}
