// Package host is the host-side client of the adapter: it speaks the
// i2c-tiny-usb control-transfer protocol over an abstract transport and
// exposes the remote bus as a tinygo drivers.I2C, so ordinary device drivers
// can run against it unchanged.
package host

import (
	"encoding/binary"

	"tinygo.org/x/drivers"

	"usbi2c-go/errcode"
	"usbi2c-go/types"
)

// ControlTransport issues one class-type, device-recipient control transfer
// and reports how many data-stage bytes moved. usbsim.Host implements it for
// tests and the demo; a real USB stack binding slots in the same way.
type ControlTransport interface {
	Control(request uint8, value, index uint16, out, in []byte) (int, error)
}

// Adapter is a client for one attached adapter.
type Adapter struct {
	t ControlTransport
}

func New(t ControlTransport) *Adapter {
	return &Adapter{t: t}
}

var _ drivers.I2C = (*Adapter)(nil)

// Tx runs one bus transaction against the 7-bit address addr. A combined
// write+read issues the read with a repeated start, which is what register
// oriented device drivers expect. The bus is released at the end either way.
func (a *Adapter) Tx(addr uint16, w, r []byte) error {
	const begin = types.CmdI2CIO | types.CmdI2CIOBegin
	const beginEnd = types.CmdI2CIO | types.CmdI2CIOBegin | types.CmdI2CIOEnd

	switch {
	case len(w) > 0 && len(r) > 0:
		if err := a.segment(begin, addr, w, nil); err != nil {
			return err
		}
		return a.segment(beginEnd, addr, nil, r)
	case len(r) > 0:
		return a.segment(beginEnd, addr, nil, r)
	default:
		// Covers plain writes and the zero-length probe.
		return a.segment(beginEnd, addr, w, nil)
	}
}

// segment issues one streaming request and checks the status latch for its
// address-phase outcome.
func (a *Adapter) segment(request uint8, addr uint16, out, in []byte) error {
	var value uint16
	if in != nil {
		value = types.FlagRead
	}
	if _, err := a.t.Control(request, value, addr, out, in); err != nil {
		return err
	}
	st, err := a.Status()
	if err != nil {
		return err
	}
	if st == types.StatusAddressNak {
		return errcode.AddressNak
	}
	return nil
}

// Echo round-trips v through the adapter.
func (a *Adapter) Echo(v uint16) (uint16, error) {
	var reply [2]byte
	if _, err := a.t.Control(types.CmdEcho, v, 0, nil, reply[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(reply[:]), nil
}

// Functionality reads the adapter's capability bitmap.
func (a *Adapter) Functionality() (uint32, error) {
	var reply [4]byte
	if _, err := a.t.Control(types.CmdGetFunc, 0, 0, nil, reply[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(reply[:]), nil
}

// Status reads the bus status latch.
func (a *Adapter) Status() (types.BusStatus, error) {
	var reply [1]byte
	if _, err := a.t.Control(types.CmdGetStatus, 0, 0, nil, reply[:]); err != nil {
		return types.StatusIdle, err
	}
	return types.BusStatus(reply[0]), nil
}

// SetDelay stores the advisory inter-clock delay, in microseconds.
func (a *Adapter) SetDelay(us uint16) error {
	_, err := a.t.Control(types.CmdSetDelay, us, 0, nil, nil)
	return err
}

// SetSpeed reprograms the bus clock, in kHz.
func (a *Adapter) SetSpeed(khz uint16) error {
	_, err := a.t.Control(types.CmdSetBaudrate, khz, 0, nil, nil)
	return err
}

// StartBootloader asks the adapter to jump to its bootloader.
func (a *Adapter) StartBootloader() error {
	_, err := a.t.Control(types.CmdStartBootloader, 0, 0, nil, nil)
	return err
}
