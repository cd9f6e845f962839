// Package usb opens EX-word dictionaries through libusb and exposes their
// bulk endpoints as an exword.Transport.
package usb

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"
	"github.com/sirupsen/logrus"

	exword "github.com/alparslanahmed/go-exword"
)

var (
	_ exword.Enumerator = Enumerator{}
	_ exword.Transport  = (*Transport)(nil)
)

// readBufferSize matches the 16 KiB the Linux stack moves per bulk call.
const readBufferSize = 0x4000

// Enumerator scans the bus for a matching device. The zero value is ready
// to use.
type Enumerator struct {
	// Logger receives enumeration tracing. Nil disables it.
	Logger logrus.FieldLogger
}

// OpenMatching claims the first device accepted by match.
func (e Enumerator) OpenMatching(match func(exword.DeviceID) bool) (exword.Transport, error) {
	ctx := gousb.NewContext()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		id := exword.DeviceID{
			Vendor:  uint16(desc.Vendor),
			Product: uint16(desc.Product),
			Bus:     desc.Bus,
			Address: desc.Address,
		}
		ok := match(id)
		if ok && e.Logger != nil {
			e.Logger.WithField("device", id.String()).Debug("usb device matched")
		}
		return ok
	})
	if len(devs) == 0 {
		ctx.Close()
		if err != nil {
			return nil, fmt.Errorf("usb enumerate: %w", err)
		}
		return nil, exword.ErrNoDevice
	}
	for _, d := range devs[1:] {
		d.Close()
	}

	t, err := claim(ctx, devs[0])
	if err != nil {
		devs[0].Close()
		ctx.Close()
		return nil, err
	}
	return t, nil
}

func claim(ctx *gousb.Context, dev *gousb.Device) (*Transport, error) {
	if err := dev.SetAutoDetach(true); err != nil {
		return nil, fmt.Errorf("usb auto detach: %w", err)
	}

	intf, done, err := dev.DefaultInterface()
	if err != nil {
		return nil, fmt.Errorf("usb claim interface: %w", err)
	}

	in, out := -1, -1
	for _, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		if ep.Direction == gousb.EndpointDirectionIn && in < 0 {
			in = ep.Number
		}
		if ep.Direction == gousb.EndpointDirectionOut && out < 0 {
			out = ep.Number
		}
	}
	if in < 0 || out < 0 {
		done()
		return nil, errors.New("usb: device has no bulk endpoint pair")
	}

	inEp, err := intf.InEndpoint(in)
	if err != nil {
		done()
		return nil, fmt.Errorf("usb in endpoint %d: %w", in, err)
	}
	outEp, err := intf.OutEndpoint(out)
	if err != nil {
		done()
		return nil, fmt.Errorf("usb out endpoint %d: %w", out, err)
	}

	t := &Transport{
		ctx:     ctx,
		dev:     dev,
		done:    done,
		in:      inEp,
		out:     outEp,
		timeout: exword.DefaultTimeout,
	}
	t.rd = bufio.NewReaderSize(endpointReader{t}, readBufferSize)
	return t, nil
}

// Transport is a claimed device. Reads are buffered so the session can
// take the frame header and remainder separately.
type Transport struct {
	ctx     *gousb.Context
	dev     *gousb.Device
	done    func()
	in      *gousb.InEndpoint
	out     *gousb.OutEndpoint
	rd      *bufio.Reader
	timeout time.Duration
	closed  bool
}

// SetTimeout bounds every bulk transfer.
func (t *Transport) SetTimeout(d time.Duration) {
	t.timeout = d
}

func (t *Transport) Read(p []byte) (int, error) {
	return t.rd.Read(p)
}

func (t *Transport) Write(p []byte) (int, error) {
	ctx, cancel := t.transferContext()
	defer cancel()
	n, err := t.out.WriteContext(ctx, p)
	return n, deadline(ctx, err)
}

// Close releases the interface, the device and the libusb context.
func (t *Transport) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.done()
	err := t.dev.Close()
	if cerr := t.ctx.Close(); err == nil {
		err = cerr
	}
	return err
}

func (t *Transport) transferContext() (context.Context, context.CancelFunc) {
	if t.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), t.timeout)
}

// endpointReader performs one bulk IN transfer per Read.
type endpointReader struct{ t *Transport }

func (r endpointReader) Read(p []byte) (int, error) {
	ctx, cancel := r.t.transferContext()
	defer cancel()
	n, err := r.t.in.ReadContext(ctx, p)
	return n, deadline(ctx, err)
}

// deadline reports a cancelled transfer as the context's timeout, which
// the session maps to CodeTimeout.
func deadline(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ctx.Err(), err)
	}
	return err
}
