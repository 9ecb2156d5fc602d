//go:build pico

package main

import (
	"context"
	"machine"
	"time"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"usbi2c-go/bus"
	"usbi2c-go/drivers/twi/twisim"
	"usbi2c-go/host"
	"usbi2c-go/services/adapter"
	"usbi2c-go/services/config"
	"usbi2c-go/services/diag"
	"usbi2c-go/usb/usbsim"
)

// Board bring-up for the Pico: boots the full adapter stack against the
// simulated bus and runs the protocol self-test, reporting on UART0 and the
// board LED. Swapping twisim for a hardware twi.Registers binding is the only
// change needed to talk to a real bus.
func main() {
	println("[usbi2c] boot …")
	time.Sleep(1500 * time.Millisecond)

	_ = uartx.UART0.Configure(uartx.UARTConfig{
		BaudRate: 115200,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	})
	logln := func(s string) { _, _ = uartx.UART0.Write([]byte(s + "\r\n")) }

	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})

	ctx := context.WithValue(context.Background(), config.CtxDeviceKey, "pico")

	b := bus.NewBus(4)
	tw := twisim.New()
	tw.AddSlave(0x50, twisim.NewMem(256))

	port := usbsim.New(usbsim.DefaultMaxPacket)
	go adapter.Run(ctx, b.NewConnection("adapter"), port, tw, adapter.Options{Loopback: port})
	config.NewConfigService().Start(ctx, b.NewConnection("config"))
	d := &diag.Service{LED: led.Set}
	_ = d.Start(ctx, b.NewConnection("diag"))

	a := host.New(port.Host())

	logln("[usbi2c] self-test …")

	if v, err := a.Echo(0x55AA); err == nil && v == 0x55AA {
		logln("[usbi2c] echo: PASS")
	} else {
		logln("[usbi2c] echo: FAIL")
	}

	wr := []byte{0x10, 0xDE, 0xAD, 0xBE, 0xEF}
	rd := make([]byte, 4)
	err := a.Tx(0x50, wr, nil)
	if err == nil {
		err = a.Tx(0x50, []byte{0x10}, rd)
	}
	if err == nil && rd[0] == 0xDE && rd[1] == 0xAD && rd[2] == 0xBE && rd[3] == 0xEF {
		logln("[usbi2c] eeprom: PASS")
	} else {
		logln("[usbi2c] eeprom: FAIL")
	}

	if err := a.Tx(0x20, nil, nil); err != nil {
		logln("[usbi2c] probe-nak: PASS")
	} else {
		logln("[usbi2c] probe-nak: FAIL")
	}

	tick := time.NewTicker(5 * time.Second)
	defer tick.Stop()
	for range tick.C {
		logln("[usbi2c] alive")
	}
}
