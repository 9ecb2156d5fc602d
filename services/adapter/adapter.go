// Package adapter is the firmware core: it bridges class-type control
// requests on a USB port to a two-wire bus master, wire-compatible with the
// i2c-tiny-usb adapter protocol. One goroutine owns the port, the bus and the
// status latch; a request runs to completion before the next is looked at.
package adapter

import (
	"context"
	"encoding/json"
	"runtime"
	"time"

	"usbi2c-go/bus"
	"usbi2c-go/drivers/twi"
	"usbi2c-go/types"
	"usbi2c-go/usb"
)

var (
	topicConfig = bus.Topic{"config", "adapter"}
	topicState  = bus.Topic{"adapter", "state"}
	topicTxn    = bus.Topic{"adapter", "event", "txn"}
)

// Options carries the optional platform hooks.
type Options struct {
	// Bootloader is invoked by CmdStartBootloader after the request is
	// acknowledged. Nil means the request is acknowledged and ignored.
	Bootloader func()
	// Loopback, when non-nil, is the secondary endpoint pair echoed by the
	// self-test path between requests.
	Loopback usb.BulkPort
}

// -----------------------------------------------------------------------------
// Entry point
// -----------------------------------------------------------------------------

func Run(ctx context.Context, conn *bus.Connection, port usb.ControlPort, tw twi.Bus, opts Options) {
	s := &service{
		conn:       conn,
		port:       port,
		tw:         tw,
		loop:       opts.Loopback,
		bootloader: opts.Bootloader,
		clockKHz:   types.DefaultClockKHz,
	}
	s.tw.SetSpeed(s.clockKHz)
	s.run(ctx)
}

type service struct {
	conn *bus.Connection
	port usb.ControlPort
	tw   twi.Bus
	loop usb.BulkPort

	bootloader func()

	status   types.BusStatus
	clockKHz uint16
	delayUS  uint16

	lbuf [loopbackPacketSize]byte
}

// -----------------------------------------------------------------------------
// Main loop
// -----------------------------------------------------------------------------

func (s *service) run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(topicConfig)
	defer s.conn.Unsubscribe(cfgSub)

	s.publishState()

	for {
		select {
		case <-ctx.Done():
			s.pubRet(topicState, map[string]any{
				"link":  "down",
				"ts_ms": time.Now().UnixMilli(),
			})
			return
		case msg := <-cfgSub.Channel():
			s.applyConfig(msg.Payload)
			continue
		default:
		}

		var sp usb.SetupPacket
		if s.port.ReadSetup(&sp) && s.handleSetup(&sp) {
			continue
		}
		s.serviceLoopback()
		runtime.Gosched()
	}
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

func (s *service) applyConfig(payload any) {
	var cfg types.AdapterConfig
	if err := decodeJSON(payload, &cfg); err != nil {
		println("Error: adapter config decode failed:", err.Error())
		return
	}
	if cfg.ClockKHz == 0 {
		cfg.ClockKHz = types.DefaultClockKHz
	}
	s.tw.SetSpeed(cfg.ClockKHz)
	s.clockKHz = cfg.ClockKHz
	s.delayUS = cfg.DelayUS
	s.publishState()
}

// -----------------------------------------------------------------------------
// Status latch and telemetry
// -----------------------------------------------------------------------------

func (s *service) setStatus(st types.BusStatus) {
	s.status = st
}

func (s *service) publishState() {
	s.pubRet(topicState, map[string]any{
		"link":      "up",
		"status":    s.status.String(),
		"clock_khz": s.clockKHz,
		"delay_us":  s.delayUS,
		"ts_ms":     time.Now().UnixMilli(),
	})
}

func (s *service) publishTxn(addr uint8, read, begin, end bool, length int, err error) {
	payload := map[string]any{
		"addr":   addr,
		"read":   read,
		"begin":  begin,
		"end":    end,
		"len":    length,
		"status": s.status.String(),
		"ts_ms":  time.Now().UnixMilli(),
	}
	if err != nil {
		payload["abort"] = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(topicTxn, payload, false))
}

func (s *service) pubRet(t bus.Topic, p any) {
	s.conn.Publish(s.conn.NewMessage(t, p, true))
}

func decodeJSON[T any](src any, dst *T) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, dst)
	}
}
