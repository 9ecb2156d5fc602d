package adapter

import (
	"usbi2c-go/drivers/twi"
	"usbi2c-go/errcode"
	"usbi2c-go/usb"
)

// -----------------------------------------------------------------------------
// Transfer engine
// -----------------------------------------------------------------------------
//
// Both streams pipeline the control endpoint against the two-wire shifter: a
// byte is in flight on the bus while the next one is exchanged with the host.
// They run to completion on the adapter goroutine; an abort unwinds exactly
// one frame, to the dispatcher, which never retries.

// linkAbort classifies the link at a poll point. Detach outranks suspend,
// suspend outranks host preemption; a pending SETUP only counts where the
// stream is allowed to notice it.
func linkAbort(port usb.ControlPort, checkSetup bool) error {
	switch port.Link() {
	case usb.LinkDetached:
		return errcode.Detached
	case usb.LinkSuspended:
		return errcode.Suspended
	}
	if checkSetup && port.SetupReceived() {
		return errcode.Preempted
	}
	return nil
}

// writeStream drains wLength bytes of the OUT data stage into the bus. Each
// byte waits for its predecessor to finish shifting before it is handed over,
// so host reception of byte N+1 overlaps bus transmission of byte N. In skip
// mode the data stage is drained byte for byte with no bus access at all.
// Ends with the zero-length IN status handshake, whose wait does not treat a
// pending SETUP as an abort.
func writeStream(port usb.ControlPort, tw twi.Bus, length int, skip bool) error {
	if length == 0 {
		port.ReleaseOut()
	}

	remaining := length
	for remaining > 0 {
		if err := linkAbort(port, true); err != nil {
			return err
		}
		if !port.OutReceived() {
			continue
		}
		for remaining > 0 && port.Pending() > 0 {
			v := port.ReadByte()
			if !skip {
				for !tw.Done() {
				}
				tw.BeginWrite(v)
			}
			remaining--
		}
		port.ReleaseOut()
	}
	if !skip {
		for !tw.Done() {
		}
	}

	for !port.InReady() {
		if err := linkAbort(port, false); err != nil {
			return err
		}
	}
	port.SendIn()
	return nil
}

// armRead starts clocking the next incoming byte. The slave is told to stop
// sending (NAK) only on the final byte, and only when this request closes the
// transaction; otherwise the stream ACKs so a later request can continue.
func armRead(tw twi.Bus, endTxn bool, remaining int) {
	tw.BeginRead(!(endTxn && remaining == 1))
}

// readStream feeds wLength bytes from the bus into the IN data stage. The
// ACK/NAK policy for a byte is armed before its clock cycles start, which is
// why the next byte is armed as soon as the previous value is captured. A
// data stage whose final packet is exactly max-packet sized is closed with
// one zero-length packet; an early OUT token means the host cut the data
// stage short. Ends by consuming the OUT status handshake.
func readStream(port usb.ControlPort, tw twi.Bus, length int, skip, endTxn bool) error {
	remaining := length
	lastFull := false

	if remaining == 0 {
		port.SendIn()
	} else if !skip {
		armRead(tw, endTxn, remaining)
	}

	for remaining > 0 || lastFull {
		if err := linkAbort(port, true); err != nil {
			return err
		}
		if port.OutReceived() {
			break
		}
		if !port.InReady() {
			continue
		}

		filled := 0
		for remaining > 0 && filled < port.MaxPacketSize() {
			remaining--

			var v byte
			if !skip {
				for !tw.Done() {
				}
				v = tw.Read()
				if remaining > 0 {
					armRead(tw, endTxn, remaining)
				}
			}

			port.WriteByte(v)
			filled++
		}
		lastFull = filled == port.MaxPacketSize()
		port.SendIn()
	}

	for !port.OutReceived() {
		if err := linkAbort(port, true); err != nil {
			return err
		}
	}
	port.ReleaseOut()
	return nil
}
