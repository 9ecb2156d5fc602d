// Package twi implements a polled two-wire (I2C) bus master over an abstract
// register file. It exposes the exact primitive set the transfer engine
// pipelines against:
//
//	err := d.Start(addr, false, 25*time.Millisecond) // address phase
//	d.BeginWrite(v)                                  // kick off, non-blocking
//	for !d.Done() { }                                // poll completion
//	d.Stop()
//
// The ACK/NAK policy for an incoming byte must be armed with BeginRead
// *before* that byte's clock cycles are generated; the bus signals "stop
// sending" to the slave via NAK on the byte being received, not after it.
package twi

import (
	"runtime"
	"time"

	"usbi2c-go/errcode"
	"usbi2c-go/x/mathx"
)

// Bus is the capability surface the adapter core drives. Device implements
// it against hardware registers; twisim implements it in memory.
type Bus interface {
	// Start opens a transaction at the 7-bit address, or re-opens one as
	// a repeated start when the bus is already held. It blocks up to
	// budget for the address-phase result; a nil error is an ACK. A
	// timeout is reported as errcode.Timeout and is treated by callers
	// exactly like an explicit NAK.
	Start(addr uint8, read bool, budget time.Duration) error
	// Stop closes the transaction. Unconditional, no failure mode.
	Stop()
	// BeginWrite hands one byte to the shifter and returns immediately.
	BeginWrite(v uint8)
	// BeginRead arms the ACK (true) or NAK (false) policy for the next
	// incoming byte and starts clocking it.
	BeginRead(ack bool)
	// Done polls whether the in-flight byte operation has completed.
	Done() bool
	// Read returns the byte captured by the last completed read.
	Read() uint8
	// SetSpeed reprograms the clock rate, reinitializing the bus.
	SetSpeed(khz uint16)
}

// Config controls non-hardware behaviour. All fields are optional.
type Config struct {
	// CPUKHz is the core clock feeding the bit-rate divider.
	// Default 16 MHz.
	CPUKHz uint32
}

// Device drives a two-wire master peripheral through its register file.
type Device struct {
	regs   Registers
	cpuKHz uint32
}

// New creates a driver over regs. The peripheral is left untouched until
// SetSpeed programs and enables it.
func New(regs Registers) *Device {
	return &Device{regs: regs, cpuKHz: 16_000}
}

var _ Bus = (*Device)(nil)

// Configure applies optional config.
func (d *Device) Configure(cfg Config) {
	if cfg.CPUKHz != 0 {
		d.cpuKHz = cfg.CPUKHz
	}
}

func (d *Device) Start(addr uint8, read bool, budget time.Duration) error {
	deadline := time.Now().Add(budget)

	d.regs.SetControl(ctlIntFlag | ctlStart | ctlEnable)
	if err := d.waitInt(deadline); err != nil {
		return err
	}
	if st := d.regs.Status(); st != statStart && st != statRepStart {
		return errcode.AddressNak
	}

	sla := addr << 1
	if read {
		sla |= 1
	}
	d.regs.SetData(sla)
	d.regs.SetControl(ctlIntFlag | ctlEnable)
	if err := d.waitInt(deadline); err != nil {
		return err
	}
	switch d.regs.Status() {
	case statSlaWAck, statSlaRAck:
		return nil
	default:
		return errcode.AddressNak
	}
}

func (d *Device) Stop() {
	d.regs.SetControl(ctlIntFlag | ctlStop | ctlEnable)
}

func (d *Device) BeginWrite(v uint8) {
	d.regs.SetData(v)
	d.regs.SetControl(ctlIntFlag | ctlEnable)
}

func (d *Device) BeginRead(ack bool) {
	c := ctlIntFlag | ctlEnable
	if ack {
		c |= ctlEnAck
	}
	d.regs.SetControl(c)
}

func (d *Device) Done() bool {
	done := d.regs.Control()&ctlIntFlag != 0
	if !done {
		runtime.Gosched()
	}
	return done
}

func (d *Device) Read() uint8 {
	return d.regs.Data()
}

// SetSpeed walks the prescaler stages from fastest to slowest and programs
// the first one whose bit-rate value is representable; if none fits, the
// slowest stage is programmed with the value clamped (best effort, not an
// error). The peripheral is disabled first and reprogrammed from scratch so
// a rate change can never corrupt a byte mid-clock.
func (d *Device) SetSpeed(khz uint16) {
	if khz == 0 {
		khz = 1
	}
	d.regs.SetControl(0)

	var stage uint8
	var bitRate int
	for stage = 0; ; stage++ {
		bitRate = (int(d.cpuKHz>>(2*stage))/int(khz) - 16) / 2
		if bitRate < 256 || stage == 3 {
			break
		}
	}
	d.regs.SetPrescaler(stage)
	d.regs.SetBitRate(uint8(mathx.Clamp(bitRate, 0, 255)))
	d.regs.SetControl(ctlEnable)
}

func (d *Device) waitInt(deadline time.Time) error {
	for d.regs.Control()&ctlIntFlag == 0 {
		if time.Now().After(deadline) {
			return errcode.Timeout
		}
		runtime.Gosched()
	}
	return nil
}
