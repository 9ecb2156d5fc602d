package main

import (
	"context"
	"time"

	"usbi2c-go/bus"
	"usbi2c-go/drivers/twi/twisim"
	"usbi2c-go/host"
	"usbi2c-go/services/adapter"
	"usbi2c-go/services/config"
	"usbi2c-go/services/diag"
	"usbi2c-go/usb/usbsim"
	"usbi2c-go/x/conv"
)

// Simulation-backed demo: full adapter stack against an in-memory bus with an
// EEPROM-style slave at 0x50, driven from this process as the host.
func main() {
	println("boot")

	ctx := context.WithValue(context.Background(), config.CtxDeviceKey, "sim")

	b := bus.NewBus(8)
	tw := twisim.New()
	eeprom := twisim.NewMem(256)
	copy(eeprom.Data, []byte("usbi2c"))
	tw.AddSlave(0x50, eeprom)

	port := usbsim.New(usbsim.DefaultMaxPacket)
	go adapter.Run(ctx, b.NewConnection("adapter"), port, tw, adapter.Options{Loopback: port})

	config.NewConfigService().Start(ctx, b.NewConnection("config"))
	d := &diag.Service{LED: func(on bool) {
		if on {
			println("led: on")
		} else {
			println("led: off")
		}
	}}
	_ = d.Start(ctx, b.NewConnection("diag"))

	a := host.New(port.Host())
	var hexbuf [8]byte

	fn, err := a.Functionality()
	if err != nil {
		println("func: error:", err.Error())
		return
	}
	println("func: 0x" + string(conv.U32Hex(hexbuf[:], fn)))

	buf := make([]byte, 6)
	if err := a.Tx(0x50, []byte{0}, buf); err != nil {
		println("eeprom read: error:", err.Error())
		return
	}
	println("eeprom:", string(buf))

	if err := a.Tx(0x20, nil, nil); err != nil {
		println("probe 0x20:", err.Error())
	}

	time.Sleep(100 * time.Millisecond)
}
