package usb

// LinkState classifies the host link at a poll point. It is queried, never
// stored: the adapter re-checks it ahead of every data-readiness check.
type LinkState uint8

const (
	LinkAttached LinkState = iota
	LinkDetached
	LinkSuspended
)

func (s LinkState) String() string {
	switch s {
	case LinkAttached:
		return "attached"
	case LinkDetached:
		return "detached"
	case LinkSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// ControlPort is the polled control-endpoint surface the adapter core drives.
// The shape follows the classic single-banked control endpoint model: the
// caller reads or fills the current bank one byte at a time and releases it
// explicitly. All methods are non-blocking; waiting is the caller's loop.
//
// Implementations must be safe against a concurrent host side, but the device
// side is driven from a single goroutine only.
type ControlPort interface {
	// Link reports the host link state.
	Link() LinkState

	// SetupReceived reports whether a SETUP packet is pending. A pending
	// SETUP during an in-flight transfer means the host preempted it.
	SetupReceived() bool
	// ReadSetup copies the pending SETUP packet into out without
	// acknowledging it. Returns false if none is pending.
	ReadSetup(out *SetupPacket) bool
	// AcceptSetup acknowledges the pending SETUP packet and begins the
	// data stage. Requests the adapter does not handle are left pending
	// for the framework's generic handling.
	AcceptSetup()

	// OutReceived reports whether an OUT bank is ready to read.
	OutReceived() bool
	// Pending returns the unread byte count of the current OUT bank.
	Pending() int
	// ReadByte pops one byte from the current OUT bank.
	ReadByte() byte
	// ReleaseOut hands the OUT bank back to the controller.
	ReleaseOut()

	// InReady reports whether the IN bank is free to fill.
	InReady() bool
	// WriteByte appends one byte to the IN bank.
	WriteByte(v byte)
	// SendIn transmits the IN bank; an empty bank goes out as a ZLP.
	SendIn()

	// MaxPacketSize is the control endpoint's packet size.
	MaxPacketSize() int
}

// BulkPort is the secondary endpoint pair used by the loopback self-test.
// It carries whole packets and never touches bus state.
type BulkPort interface {
	// Recv copies a received packet into buf, reporting its length.
	// ok is false when no packet is pending.
	Recv(buf []byte) (n int, ok bool)
	// Send queues one packet toward the host. Reports false if the
	// endpoint bank is busy; the loopback path just drops in that case.
	Send(data []byte) bool
}
