package types

// ------------------------
// Adapter control protocol
// ------------------------

// Control request opcodes understood by the adapter. The wire protocol is the
// i2c-tiny-usb one, so unmodified host drivers keep working: class-type,
// device-recipient control transfers only.
const (
	CmdEcho            uint8 = 0
	CmdGetFunc         uint8 = 1
	CmdSetDelay        uint8 = 2
	CmdGetStatus       uint8 = 3
	CmdI2CIO           uint8 = 4
	CmdStartBootloader uint8 = 0x10
	CmdSetBaudrate     uint8 = 0x11
)

// CmdI2CIO packs two flags into its low bits. All four combinations are
// valid opcodes (4, 5, 6, 7) and decode independently.
const (
	CmdI2CIOBegin uint8 = 1 // open a bus transaction before streaming
	CmdI2CIOEnd   uint8 = 2 // close the bus transaction after streaming
)

// FlagRead in wValue selects the transfer direction (I2C_M_RD).
// The target 7-bit address travels in wIndex, the payload size in wLength.
const FlagRead uint16 = 1

// ------------------------
// Bus status latch
// ------------------------

// BusStatus records the outcome of the most recent transaction-start attempt.
// It is overwritten only by begin-flagged I/O requests and read (never
// cleared) by CmdGetStatus.
type BusStatus uint8

const (
	StatusIdle       BusStatus = 0
	StatusAddressAck BusStatus = 1
	StatusAddressNak BusStatus = 2
)

func (s BusStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusAddressAck:
		return "address_ack"
	case StatusAddressNak:
		return "address_nak"
	default:
		return "unknown"
	}
}

// ------------------------
// Capability bitmap
// ------------------------

// Linux i2c functionality bits advertised by CmdGetFunc.
const (
	FuncI2C       uint32 = 0x00000001
	FuncSMBusEmul uint32 = 0x0EFF0008
)

// FuncBitmap is the 4-byte little-endian value returned by CmdGetFunc.
const FuncBitmap = FuncI2C | FuncSMBusEmul

// DefaultClockKHz is programmed at boot before the first request.
const DefaultClockKHz uint16 = 100
