package adapter

import (
	"testing"
	"time"

	"usbi2c-go/drivers/twi/twisim"
	"usbi2c-go/errcode"
	"usbi2c-go/usb"
	"usbi2c-go/usb/usbsim"
)

const testBudget = time.Second

func startedBus(t *testing.T, read bool) (*twisim.Bus, *twisim.Mem) {
	t.Helper()
	tw := twisim.New()
	mem := twisim.NewMem(32)
	tw.AddSlave(0x50, mem)
	if err := tw.Start(0x50, read, testBudget); err != nil {
		t.Fatalf("Start: %v", err)
	}
	tw.ResetLog()
	return tw, mem
}

func opKinds(ops []twisim.Op) []twisim.OpKind {
	kinds := make([]twisim.OpKind, len(ops))
	for i, op := range ops {
		kinds[i] = op.Kind
	}
	return kinds
}

func TestWriteStreamPipelinesBytes(t *testing.T) {
	port := usbsim.New(usbsim.DefaultMaxPacket)
	h := port.Host()
	tw, mem := startedBus(t, false)
	tw.SetLatency(3) // byte N must finish before byte N+1 is handed over

	data := []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99}
	h.SendOut(data)

	if err := writeStream(port, tw, len(data), false); err != nil {
		t.Fatalf("writeStream: %v", err)
	}

	ops := tw.Ops()
	if len(ops) != len(data) {
		t.Fatalf("bus ops = %d, want %d", len(ops), len(data))
	}
	for i, op := range ops {
		if op.Kind != twisim.OpWrite || op.Value != data[i] {
			t.Fatalf("op[%d] = %+v, want write of %#x", i, op, data[i])
		}
	}
	// cursor byte 0x00, then payload
	for i, want := range data[1:] {
		if mem.Data[i] != want {
			t.Errorf("mem[%d] = %#x, want %#x", i, mem.Data[i], want)
		}
	}
	if err := h.WaitStatusIn(time.Now().Add(testBudget)); err != nil {
		t.Fatalf("status stage: %v", err)
	}
}

func TestWriteStreamSkipDrainsWithoutBusOps(t *testing.T) {
	port := usbsim.New(usbsim.DefaultMaxPacket)
	h := port.Host()
	tw := twisim.New()

	h.SendOut(make([]byte, 20))

	if err := writeStream(port, tw, 20, true); err != nil {
		t.Fatalf("writeStream: %v", err)
	}
	if ops := tw.Ops(); len(ops) != 0 {
		t.Fatalf("bus ops in skip mode: %v", ops)
	}
	if err := h.WaitStatusIn(time.Now().Add(testBudget)); err != nil {
		t.Fatalf("status stage: %v", err)
	}
}

func TestReadStreamArmsNakOnFinalByteOnly(t *testing.T) {
	port := usbsim.New(usbsim.DefaultMaxPacket)
	h := port.Host()
	tw, mem := startedBus(t, true)
	copy(mem.Data, []byte{0xAA, 0xBB, 0xCC})

	done := make(chan error, 1)
	go func() { done <- readStream(port, tw, 3, false, true) }()

	pkt, err := h.TakeIn(time.Now().Add(testBudget))
	if err != nil {
		t.Fatalf("TakeIn: %v", err)
	}
	h.SendStatusOut()
	if err := <-done; err != nil {
		t.Fatalf("readStream: %v", err)
	}

	if string(pkt) != "\xAA\xBB\xCC" {
		t.Fatalf("data = % x, want AA BB CC", pkt)
	}
	wantAck := []bool{true, true, false}
	ops := tw.Ops()
	if len(ops) != len(wantAck) {
		t.Fatalf("bus ops = %v, want %d read arms", ops, len(wantAck))
	}
	for i, op := range ops {
		if op.Kind != twisim.OpReadArm || op.Ack != wantAck[i] {
			t.Fatalf("op[%d] = %+v, want read arm ack=%v", i, op, wantAck[i])
		}
	}
}

func TestReadStreamAcksAllWhenTransactionContinues(t *testing.T) {
	port := usbsim.New(usbsim.DefaultMaxPacket)
	h := port.Host()
	tw, _ := startedBus(t, true)

	done := make(chan error, 1)
	go func() { done <- readStream(port, tw, 3, false, false) }()

	if _, err := h.TakeIn(time.Now().Add(testBudget)); err != nil {
		t.Fatalf("TakeIn: %v", err)
	}
	h.SendStatusOut()
	if err := <-done; err != nil {
		t.Fatalf("readStream: %v", err)
	}

	for i, op := range tw.Ops() {
		if !op.Ack {
			t.Fatalf("op[%d] NAKed with the transaction still open", i)
		}
	}
}

func TestReadStreamTrailingZLPAfterFullFinalPacket(t *testing.T) {
	port := usbsim.New(usbsim.DefaultMaxPacket)
	h := port.Host()
	tw, _ := startedBus(t, true)

	done := make(chan error, 1)
	go func() { done <- readStream(port, tw, usbsim.DefaultMaxPacket, false, true) }()

	deadline := time.Now().Add(testBudget)
	pkt, err := h.TakeIn(deadline)
	if err != nil {
		t.Fatalf("TakeIn: %v", err)
	}
	if len(pkt) != usbsim.DefaultMaxPacket {
		t.Fatalf("first packet = %d bytes, want %d", len(pkt), usbsim.DefaultMaxPacket)
	}
	zlp, err := h.TakeIn(deadline)
	if err != nil {
		t.Fatalf("TakeIn (ZLP): %v", err)
	}
	if len(zlp) != 0 {
		t.Fatalf("trailing packet = %d bytes, want 0", len(zlp))
	}
	h.SendStatusOut()
	if err := <-done; err != nil {
		t.Fatalf("readStream: %v", err)
	}
}

func TestReadStreamSkipFeedsZerosWithoutBusOps(t *testing.T) {
	port := usbsim.New(usbsim.DefaultMaxPacket)
	h := port.Host()
	tw := twisim.New()

	done := make(chan error, 1)
	go func() { done <- readStream(port, tw, 5, true, true) }()

	pkt, err := h.TakeIn(time.Now().Add(testBudget))
	if err != nil {
		t.Fatalf("TakeIn: %v", err)
	}
	h.SendStatusOut()
	if err := <-done; err != nil {
		t.Fatalf("readStream: %v", err)
	}

	if len(pkt) != 5 {
		t.Fatalf("packet = %d bytes, want 5", len(pkt))
	}
	for i, v := range pkt {
		if v != 0 {
			t.Errorf("pkt[%d] = %#x, want 0", i, v)
		}
	}
	if ops := tw.Ops(); len(ops) != 0 {
		t.Fatalf("bus ops in skip mode: %v", ops)
	}
}

func TestReadStreamEarlyOutEndsDataStage(t *testing.T) {
	port := usbsim.New(usbsim.DefaultMaxPacket)
	h := port.Host()
	tw, _ := startedBus(t, true)

	done := make(chan error, 1)
	go func() { done <- readStream(port, tw, 3*usbsim.DefaultMaxPacket, false, true) }()

	if _, err := h.TakeIn(time.Now().Add(testBudget)); err != nil {
		t.Fatalf("TakeIn: %v", err)
	}
	h.SendStatusOut()
	if err := <-done; err != nil {
		t.Fatalf("readStream after early OUT: %v", err)
	}
}

func TestZeroLengthStreams(t *testing.T) {
	t.Run("write", func(t *testing.T) {
		port := usbsim.New(usbsim.DefaultMaxPacket)
		h := port.Host()
		tw := twisim.New()

		if err := writeStream(port, tw, 0, false); err != nil {
			t.Fatalf("writeStream: %v", err)
		}
		if err := h.WaitStatusIn(time.Now().Add(testBudget)); err != nil {
			t.Fatalf("status stage: %v", err)
		}
	})

	t.Run("read", func(t *testing.T) {
		port := usbsim.New(usbsim.DefaultMaxPacket)
		h := port.Host()
		tw := twisim.New()

		done := make(chan error, 1)
		go func() { done <- readStream(port, tw, 0, false, true) }()

		if _, err := h.TakeIn(time.Now().Add(testBudget)); err != nil {
			t.Fatalf("TakeIn: %v", err)
		}
		h.SendStatusOut()
		if err := <-done; err != nil {
			t.Fatalf("readStream: %v", err)
		}
		if ops := tw.Ops(); len(ops) != 0 {
			t.Fatalf("bus ops on zero-length read: %v", ops)
		}
	})
}

func TestLinkAbortPrecedence(t *testing.T) {
	newPending := func() (*usbsim.Port, *usbsim.Host) {
		port := usbsim.New(usbsim.DefaultMaxPacket)
		h := port.Host()
		h.Submit(usb.SetupPacket{}) // pending SETUP in every case
		return port, h
	}

	t.Run("detach outranks preemption", func(t *testing.T) {
		port, h := newPending()
		h.Detach()
		if err := linkAbort(port, true); err != errcode.Detached {
			t.Fatalf("linkAbort = %v, want %v", err, errcode.Detached)
		}
	})

	t.Run("suspend outranks preemption", func(t *testing.T) {
		port, h := newPending()
		h.Suspend()
		if err := linkAbort(port, true); err != errcode.Suspended {
			t.Fatalf("linkAbort = %v, want %v", err, errcode.Suspended)
		}
	})

	t.Run("preemption last", func(t *testing.T) {
		port, _ := newPending()
		if err := linkAbort(port, true); err != errcode.Preempted {
			t.Fatalf("linkAbort = %v, want %v", err, errcode.Preempted)
		}
	})

	t.Run("setup ignored where not allowed", func(t *testing.T) {
		port, _ := newPending()
		if err := linkAbort(port, false); err != nil {
			t.Fatalf("linkAbort = %v, want nil", err)
		}
	})
}

func TestWriteStreamAborts(t *testing.T) {
	t.Run("detached", func(t *testing.T) {
		port := usbsim.New(usbsim.DefaultMaxPacket)
		port.Host().Detach()
		if err := writeStream(port, twisim.New(), 4, true); err != errcode.Detached {
			t.Fatalf("writeStream = %v, want %v", err, errcode.Detached)
		}
	})

	t.Run("suspended", func(t *testing.T) {
		port := usbsim.New(usbsim.DefaultMaxPacket)
		port.Host().Suspend()
		if err := writeStream(port, twisim.New(), 4, true); err != errcode.Suspended {
			t.Fatalf("writeStream = %v, want %v", err, errcode.Suspended)
		}
	})

	t.Run("preempted by new setup", func(t *testing.T) {
		port := usbsim.New(usbsim.DefaultMaxPacket)
		port.Host().Submit(usb.SetupPacket{})
		if err := writeStream(port, twisim.New(), 4, true); err != errcode.Preempted {
			t.Fatalf("writeStream = %v, want %v", err, errcode.Preempted)
		}
	})
}

func TestReadStreamAborts(t *testing.T) {
	t.Run("detached", func(t *testing.T) {
		port := usbsim.New(usbsim.DefaultMaxPacket)
		port.Host().Detach()
		if err := readStream(port, twisim.New(), 4, true, true); err != errcode.Detached {
			t.Fatalf("readStream = %v, want %v", err, errcode.Detached)
		}
	})

	t.Run("suspended", func(t *testing.T) {
		port := usbsim.New(usbsim.DefaultMaxPacket)
		port.Host().Suspend()
		if err := readStream(port, twisim.New(), 4, true, true); err != errcode.Suspended {
			t.Fatalf("readStream = %v, want %v", err, errcode.Suspended)
		}
	})

	t.Run("preempted by new setup", func(t *testing.T) {
		port := usbsim.New(usbsim.DefaultMaxPacket)
		port.Host().Submit(usb.SetupPacket{})
		if err := readStream(port, twisim.New(), 4, true, true); err != errcode.Preempted {
			t.Fatalf("readStream = %v, want %v", err, errcode.Preempted)
		}
	})
}
