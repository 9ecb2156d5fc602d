// Package diag watches adapter telemetry on the message bus and drives the
// board LED plus a periodic heartbeat print. It never touches endpoint or bus
// hardware state.
package diag

import (
	"context"
	"time"

	"usbi2c-go/bus"
)

var (
	topicConfigDiag = bus.Topic{"config", "diag"}
	topicTxn        = bus.Topic{"adapter", "event", "txn"}
)

// LED sets the board LED. Nil is fine when the board has none.
type LED func(on bool)

type Service struct {
	LED LED
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigDiag)
	txnSub := conn.Subscribe(topicTxn)
	defer conn.Unsubscribe(cfgSub)
	defer conn.Unsubscribe(txnSub)

	tick := time.NewTicker(2 * time.Second)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			println("Info: diag service stopping")
			return
		case t := <-tick.C:
			println("Info:", t.Format("15:04:05"), "adapter alive")
		case msg := <-txnSub.Channel():
			// LED on while the last address phase NAKed, like the
			// reference adapter boards.
			if m, ok := msg.Payload.(map[string]any); ok {
				if st, ok := m["status"].(string); ok && s.LED != nil {
					s.LED(st == "address_nak")
				}
			}
		case msg := <-cfgSub.Channel():
			if m, ok := msg.Payload.(map[string]any); ok {
				if iv, ok := m["interval"]; ok {
					if interval, ok := iv.(float64); ok && interval > 0 {
						tick.Reset(time.Duration(interval) * time.Second)
					}
				}
			}
		}
	}
}

// Start the diag service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
