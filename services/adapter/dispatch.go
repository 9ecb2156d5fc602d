package adapter

import (
	"encoding/binary"
	"time"

	"usbi2c-go/types"
	"usbi2c-go/usb"
)

// addressBudget bounds the address-phase handshake. A bus that answers no
// later than this is treated as having NAKed.
const addressBudget = 25 * time.Millisecond

// -----------------------------------------------------------------------------
// Control request dispatcher
// -----------------------------------------------------------------------------

// handleSetup decodes one SETUP packet. Only class-type, device-recipient
// requests belong to the adapter; everything else is left pending for the
// USB framework and handled is false.
func (s *service) handleSetup(sp *usb.SetupPacket) (handled bool) {
	if sp.Type() != usb.RequestTypeClass || sp.Recipient() != usb.RequestRecipientDevice {
		return false
	}

	switch sp.Request {
	case types.CmdEcho:
		s.port.AcceptSetup()
		var reply [2]byte
		binary.LittleEndian.PutUint16(reply[:], sp.Value)
		s.sendShortIn(reply[:])

	case types.CmdGetFunc:
		s.port.AcceptSetup()
		var reply [4]byte
		binary.LittleEndian.PutUint32(reply[:], types.FuncBitmap)
		s.sendShortIn(reply[:])

	case types.CmdSetDelay:
		s.port.AcceptSetup()
		s.delayUS = sp.Value
		s.ackStatus()
		s.publishState()

	case types.CmdGetStatus:
		s.port.AcceptSetup()
		s.sendShortIn([]byte{byte(s.status)})

	case types.CmdStartBootloader:
		s.port.AcceptSetup()
		s.ackStatus()
		if s.bootloader != nil {
			s.bootloader()
		}

	case types.CmdSetBaudrate:
		s.port.AcceptSetup()
		s.tw.SetSpeed(sp.Value)
		s.clockKHz = sp.Value
		s.ackStatus()
		s.publishState()

	case types.CmdI2CIO,
		types.CmdI2CIO | types.CmdI2CIOBegin,
		types.CmdI2CIO | types.CmdI2CIOEnd,
		types.CmdI2CIO | types.CmdI2CIOBegin | types.CmdI2CIOEnd:
		s.port.AcceptSetup()
		s.handleIO(sp)

	default:
		return false
	}
	return true
}

// handleIO runs one I/O request of the streaming family. The begin flag opens
// (or reopens, as a repeated start) the bus transaction and is the only thing
// that moves the status latch; a NAK or address-phase timeout arms skip mode
// for this request, so the host sees identical USB framing either way.
func (s *service) handleIO(sp *usb.SetupPacket) {
	begin := sp.Request&types.CmdI2CIOBegin != 0
	end := sp.Request&types.CmdI2CIOEnd != 0
	read := sp.Value&types.FlagRead != 0
	addr := uint8(sp.Index)

	if begin {
		if err := s.tw.Start(addr, read, addressBudget); err != nil {
			s.setStatus(types.StatusAddressNak)
		} else {
			s.setStatus(types.StatusAddressAck)
		}
	}

	skip := s.status == types.StatusAddressNak

	var err error
	if read {
		err = readStream(s.port, s.tw, int(sp.Length), skip, end)
	} else {
		err = writeStream(s.port, s.tw, int(sp.Length), skip)
	}

	// The stop decision ignores stream aborts: a transaction that was opened
	// must be closed, or the bus is left held against the next request.
	if end && !skip {
		s.tw.Stop()
	}

	s.publishTxn(addr, read, begin, end, int(sp.Length), err)
}

// sendShortIn services a short device-to-host request in one bank: fill,
// transmit, then consume the host's OUT status handshake.
func (s *service) sendShortIn(data []byte) {
	for !s.port.InReady() {
		if linkAbort(s.port, false) != nil {
			return
		}
	}
	for _, v := range data {
		s.port.WriteByte(v)
	}
	s.port.SendIn()

	for !s.port.OutReceived() {
		if linkAbort(s.port, true) != nil {
			return
		}
	}
	s.port.ReleaseOut()
}

// ackStatus completes a host-to-device request with no data stage by sending
// the zero-length IN status handshake.
func (s *service) ackStatus() {
	for !s.port.InReady() {
		if linkAbort(s.port, false) != nil {
			return
		}
	}
	s.port.SendIn()
}
