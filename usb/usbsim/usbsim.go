// Package usbsim provides an in-memory usb.ControlPort/usb.BulkPort pair with
// a host-side handle, so the adapter core and its tests can run without USB
// hardware. The device side is polled exactly like the real controller; the
// host side drives SETUP/data/status stages from another goroutine.
package usbsim

import (
	"runtime"
	"sync"
	"time"

	"usbi2c-go/errcode"
	"usbi2c-go/usb"
)

// DefaultMaxPacket matches a classic 8-byte control endpoint bank.
const DefaultMaxPacket = 8

// Port is the device-side endpoint state. All methods are mutex-guarded;
// polled methods yield the scheduler on a negative answer so the single
// threaded device loop cannot starve the host goroutine.
type Port struct {
	mu  sync.Mutex
	max int

	link         usb.LinkState
	setup        usb.SetupPacket
	setupPending bool

	outQ   [][]byte // host -> device packets; an empty packet is a ZLP
	outPos int      // read offset into outQ[0]

	inBank []byte   // bank the device is filling
	inQ    [][]byte // transmitted, not yet taken by the host

	bulkOut [][]byte
	bulkIn  [][]byte
}

func New(maxPacket int) *Port {
	if maxPacket <= 0 {
		maxPacket = DefaultMaxPacket
	}
	return &Port{max: maxPacket}
}

var _ usb.ControlPort = (*Port)(nil)
var _ usb.BulkPort = (*Port)(nil)

// -----------------------------------------------------------------------------
// Device side: usb.ControlPort
// -----------------------------------------------------------------------------

func (p *Port) Link() usb.LinkState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.link
}

func (p *Port) SetupReceived() bool {
	p.mu.Lock()
	pending := p.setupPending
	p.mu.Unlock()
	if !pending {
		runtime.Gosched()
	}
	return pending
}

func (p *Port) ReadSetup(out *usb.SetupPacket) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.setupPending {
		return false
	}
	*out = p.setup
	return true
}

func (p *Port) AcceptSetup() {
	p.mu.Lock()
	p.setupPending = false
	p.mu.Unlock()
}

func (p *Port) OutReceived() bool {
	p.mu.Lock()
	ok := len(p.outQ) > 0
	p.mu.Unlock()
	if !ok {
		runtime.Gosched()
	}
	return ok
}

func (p *Port) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.outQ) == 0 {
		return 0
	}
	return len(p.outQ[0]) - p.outPos
}

func (p *Port) ReadByte() byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.outQ) == 0 || p.outPos >= len(p.outQ[0]) {
		return 0
	}
	v := p.outQ[0][p.outPos]
	p.outPos++
	return v
}

func (p *Port) ReleaseOut() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.outQ) == 0 {
		return // harmless on an empty bank, like the hardware
	}
	p.outQ = p.outQ[1:]
	p.outPos = 0
}

func (p *Port) InReady() bool {
	p.mu.Lock()
	ready := len(p.inQ) == 0 // single bank: host must take the last packet
	p.mu.Unlock()
	if !ready {
		runtime.Gosched()
	}
	return ready
}

func (p *Port) WriteByte(v byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.inBank) < p.max {
		p.inBank = append(p.inBank, v)
	}
}

func (p *Port) SendIn() {
	p.mu.Lock()
	defer p.mu.Unlock()
	pkt := make([]byte, len(p.inBank))
	copy(pkt, p.inBank)
	p.inBank = p.inBank[:0]
	p.inQ = append(p.inQ, pkt)
}

func (p *Port) MaxPacketSize() int { return p.max }

// -----------------------------------------------------------------------------
// Device side: usb.BulkPort (loopback pair)
// -----------------------------------------------------------------------------

func (p *Port) Recv(buf []byte) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.bulkOut) == 0 {
		return 0, false
	}
	pkt := p.bulkOut[0]
	p.bulkOut = p.bulkOut[1:]
	n := copy(buf, pkt)
	return n, true
}

func (p *Port) Send(data []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	pkt := make([]byte, len(data))
	copy(pkt, data)
	p.bulkIn = append(p.bulkIn, pkt)
	return true
}

// -----------------------------------------------------------------------------
// Host side
// -----------------------------------------------------------------------------

// Host drives the port from the host end of the cable.
type Host struct {
	p       *Port
	Timeout time.Duration // per control transfer; default 2s
}

func (p *Port) Host() *Host {
	return &Host{p: p, Timeout: 2 * time.Second}
}

// Submit delivers a new SETUP packet. Any in-flight transfer state is
// discarded, which is how the hardware models host preemption.
func (h *Host) Submit(sp usb.SetupPacket) {
	h.p.mu.Lock()
	defer h.p.mu.Unlock()
	h.p.setup = sp
	h.p.setupPending = true
	h.p.outQ = nil
	h.p.outPos = 0
	h.p.inQ = nil
	h.p.inBank = h.p.inBank[:0]
}

// SendOut queues a data stage toward the device, split into max-packet banks.
func (h *Host) SendOut(data []byte) {
	h.p.mu.Lock()
	defer h.p.mu.Unlock()
	for len(data) > 0 {
		n := min(len(data), h.p.max)
		pkt := make([]byte, n)
		copy(pkt, data[:n])
		h.p.outQ = append(h.p.outQ, pkt)
		data = data[n:]
	}
}

// SendStatusOut queues the zero-length OUT packet closing an IN transfer.
func (h *Host) SendStatusOut() {
	h.p.mu.Lock()
	defer h.p.mu.Unlock()
	h.p.outQ = append(h.p.outQ, []byte{})
}

// TakeIn waits for and removes the next IN packet sent by the device.
func (h *Host) TakeIn(deadline time.Time) ([]byte, error) {
	for {
		h.p.mu.Lock()
		if len(h.p.inQ) > 0 {
			pkt := h.p.inQ[0]
			h.p.inQ = h.p.inQ[1:]
			h.p.mu.Unlock()
			return pkt, nil
		}
		h.p.mu.Unlock()
		if time.Now().After(deadline) {
			return nil, errcode.Timeout
		}
		time.Sleep(50 * time.Microsecond)
	}
}

// WaitStatusIn consumes the device's zero-length status handshake.
func (h *Host) WaitStatusIn(deadline time.Time) error {
	pkt, err := h.TakeIn(deadline)
	if err != nil {
		return err
	}
	if len(pkt) != 0 {
		return errcode.InvalidPayload
	}
	return nil
}

// SetupStillPending reports whether the device left the SETUP unhandled.
func (h *Host) SetupStillPending() bool {
	h.p.mu.Lock()
	defer h.p.mu.Unlock()
	return h.p.setupPending
}

// Detach, Suspend and Resume flip the link state observed by the device.
func (h *Host) Detach() { h.setLink(usb.LinkDetached) }

func (h *Host) Suspend() { h.setLink(usb.LinkSuspended) }

func (h *Host) Resume() { h.setLink(usb.LinkAttached) }

func (h *Host) setLink(s usb.LinkState) {
	h.p.mu.Lock()
	h.p.link = s
	h.p.mu.Unlock()
}

// BulkSend queues one packet on the loopback OUT endpoint.
func (h *Host) BulkSend(data []byte) {
	h.p.mu.Lock()
	defer h.p.mu.Unlock()
	pkt := make([]byte, len(data))
	copy(pkt, data)
	h.p.bulkOut = append(h.p.bulkOut, pkt)
}

// BulkRecv waits for one packet on the loopback IN endpoint.
func (h *Host) BulkRecv(deadline time.Time) ([]byte, error) {
	for {
		h.p.mu.Lock()
		if len(h.p.bulkIn) > 0 {
			pkt := h.p.bulkIn[0]
			h.p.bulkIn = h.p.bulkIn[1:]
			h.p.mu.Unlock()
			return pkt, nil
		}
		h.p.mu.Unlock()
		if time.Now().After(deadline) {
			return nil, errcode.Timeout
		}
		time.Sleep(50 * time.Microsecond)
	}
}

// Control runs one complete class/device control transfer. Exactly one of
// out/in should be non-nil; a nil in with a nil out is a zero-length write.
// The data stage follows length-implicit framing: an IN transfer is complete
// at the first short packet.
func (h *Host) Control(request uint8, value, index uint16, out, in []byte) (int, error) {
	sp := usb.SetupPacket{
		RequestType: usb.RequestTypeClass | usb.RequestRecipientDevice,
		Request:     request,
		Value:       value,
		Index:       index,
	}
	if in != nil {
		sp.RequestType |= usb.RequestDirectionDeviceToHost
		sp.Length = uint16(len(in))
	} else {
		sp.Length = uint16(len(out))
	}
	h.Submit(sp)
	deadline := time.Now().Add(h.Timeout)

	if in == nil {
		h.SendOut(out)
		if err := h.WaitStatusIn(deadline); err != nil {
			return 0, err
		}
		return len(out), nil
	}

	got := 0
	for {
		pkt, err := h.TakeIn(deadline)
		if err != nil {
			return got, err
		}
		got += copy(in[got:], pkt)
		if len(pkt) < h.p.max {
			break
		}
	}
	h.SendStatusOut()
	return got, nil
}
