// i2ctool is an interactive exerciser for the adapter protocol. It boots the
// simulated stack (an EEPROM-style slave at 0x50) and drives it through the
// host client, one command per line; pipe a script in for batch use.
package main

import (
	"bufio"
	"context"
	"os"
	"strconv"

	"github.com/google/shlex"

	"usbi2c-go/bus"
	"usbi2c-go/drivers/twi/twisim"
	"usbi2c-go/errcode"
	"usbi2c-go/host"
	"usbi2c-go/services/adapter"
	"usbi2c-go/usb/usbsim"
	"usbi2c-go/x/conv"
)

const help = `commands:
  scan              probe all 7-bit addresses
  status            read the bus status latch
  func              read the capability bitmap
  echo <v>          round-trip a 16-bit value
  speed <khz>       reprogram the bus clock
  delay <us>        store the advisory delay
  w <addr> <b>...   write bytes to addr
  r <addr> <n>      read n bytes from addr
  wr <addr> <b> <n> write one byte, then read n with a repeated start
  quit`

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := bus.NewBus(8)
	tw := twisim.New()
	tw.AddSlave(0x50, twisim.NewMem(256))

	port := usbsim.New(usbsim.DefaultMaxPacket)
	go adapter.Run(ctx, b.NewConnection("adapter"), port, tw, adapter.Options{})

	a := host.New(port.Host())

	in := bufio.NewScanner(os.Stdin)
	for in.Scan() {
		args, err := shlex.Split(in.Text())
		if err != nil {
			println("parse error:", err.Error())
			continue
		}
		if len(args) == 0 {
			continue
		}
		if args[0] == "quit" || args[0] == "exit" {
			return
		}
		run(a, args)
	}
}

func run(a *host.Adapter, args []string) {
	var hexbuf [8]byte

	switch args[0] {
	case "help":
		println(help)

	case "scan":
		found := 0
		for addr := uint16(0x03); addr <= 0x77; addr++ {
			if a.Tx(addr, nil, nil) == nil {
				println("found: 0x" + string(conv.U8Hex(hexbuf[:], uint8(addr))))
				found++
			}
		}
		println(found, "device(s)")

	case "status":
		st, err := a.Status()
		if err != nil {
			println("error:", err.Error())
			return
		}
		println("status:", st.String())

	case "func":
		fn, err := a.Functionality()
		if err != nil {
			println("error:", err.Error())
			return
		}
		println("func: 0x" + string(conv.U32Hex(hexbuf[:], fn)))

	case "echo":
		v, ok := argU16(args, 1)
		if !ok {
			println(help)
			return
		}
		got, err := a.Echo(v)
		if err != nil {
			println("error:", err.Error())
			return
		}
		println("echo:", got)

	case "speed":
		khz, ok := argU16(args, 1)
		if !ok {
			println(help)
			return
		}
		if err := a.SetSpeed(khz); err != nil {
			println("error:", err.Error())
		}

	case "delay":
		us, ok := argU16(args, 1)
		if !ok {
			println(help)
			return
		}
		if err := a.SetDelay(us); err != nil {
			println("error:", err.Error())
		}

	case "w":
		addr, ok := argU16(args, 1)
		if !ok || len(args) < 3 {
			println(help)
			return
		}
		data := make([]byte, 0, len(args)-2)
		for _, s := range args[2:] {
			v, err := strconv.ParseUint(s, 0, 8)
			if err != nil {
				println("bad byte:", s)
				return
			}
			data = append(data, byte(v))
		}
		report(a.Tx(addr, data, nil))

	case "r":
		addr, aok := argU16(args, 1)
		n, nok := argU16(args, 2)
		if !aok || !nok {
			println(help)
			return
		}
		buf := make([]byte, n)
		if err := a.Tx(addr, nil, buf); err != nil {
			report(err)
			return
		}
		dump(buf)

	case "wr":
		addr, aok := argU16(args, 1)
		reg, rok := argU16(args, 2)
		n, nok := argU16(args, 3)
		if !aok || !rok || !nok {
			println(help)
			return
		}
		buf := make([]byte, n)
		if err := a.Tx(addr, []byte{byte(reg)}, buf); err != nil {
			report(err)
			return
		}
		dump(buf)

	default:
		println(help)
	}
}

func argU16(args []string, i int) (uint16, bool) {
	if i >= len(args) {
		return 0, false
	}
	v, err := strconv.ParseUint(args[i], 0, 16)
	if err != nil {
		return 0, false
	}
	return uint16(v), true
}

func report(err error) {
	switch errcode.Of(err) {
	case errcode.OK:
		println("ok")
	case errcode.AddressNak:
		println("nak")
	default:
		println("error:", err.Error())
	}
}

func dump(data []byte) {
	var hexbuf [2]byte
	line := make([]byte, 0, 3*len(data))
	for i, v := range data {
		if i > 0 {
			line = append(line, ' ')
		}
		line = append(line, conv.U8Hex(hexbuf[:], v)...)
	}
	println(string(line))
}
