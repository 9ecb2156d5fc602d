// Package twisim is an in-memory twi.Bus with scriptable slaves and an
// operation log, for deterministic tests of everything above the register
// level. Absent slaves NAK their address phase, like an empty bus.
package twisim

import (
	"runtime"
	"sync"
	"time"

	"usbi2c-go/drivers/twi"
	"usbi2c-go/errcode"
)

// Slave models one addressed device on the simulated bus.
type Slave interface {
	// Addressed is the address phase. Returning false NAKs it.
	Addressed(read bool) bool
	// WriteByte receives one byte from the master.
	WriteByte(v uint8)
	// ReadByte supplies one byte to the master.
	ReadByte() uint8
	// Stop is the stop condition.
	Stop()
}

// OpKind discriminates logged operations.
type OpKind uint8

const (
	OpStart OpKind = iota
	OpStop
	OpWrite
	OpReadArm
	OpSpeed
)

// Op is one logged bus primitive.
type Op struct {
	Kind  OpKind
	Addr  uint8
	Read  bool
	Ack   bool // ReadArm policy
	Value uint8
	KHz   uint16
}

// Bus implements twi.Bus in memory.
type Bus struct {
	mu      sync.Mutex
	slaves  map[uint8]Slave
	active  Slave
	pending uint8 // byte captured for the in-flight read
	polls   int   // Done() polls left before the byte completes
	latency int
	ops     []Op
}

func New() *Bus {
	return &Bus{slaves: map[uint8]Slave{}}
}

var _ twi.Bus = (*Bus)(nil)

// AddSlave attaches a slave at a 7-bit address.
func (b *Bus) AddSlave(addr uint8, s Slave) {
	b.mu.Lock()
	b.slaves[addr] = s
	b.mu.Unlock()
}

// SetLatency makes every byte operation take n Done() polls to complete,
// which is what exposes ordering bugs in the pipelining.
func (b *Bus) SetLatency(n int) {
	b.mu.Lock()
	b.latency = n
	b.mu.Unlock()
}

// Ops returns a copy of the operation log.
func (b *Bus) Ops() []Op {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Op, len(b.ops))
	copy(out, b.ops)
	return out
}

// ResetLog clears the operation log.
func (b *Bus) ResetLog() {
	b.mu.Lock()
	b.ops = nil
	b.mu.Unlock()
}

func (b *Bus) Start(addr uint8, read bool, budget time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, Op{Kind: OpStart, Addr: addr, Read: read})
	s, ok := b.slaves[addr]
	if !ok || !s.Addressed(read) {
		b.active = nil
		return errcode.AddressNak
	}
	b.active = s
	b.polls = 0
	return nil
}

func (b *Bus) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, Op{Kind: OpStop})
	if b.active != nil {
		b.active.Stop()
		b.active = nil
	}
}

func (b *Bus) BeginWrite(v uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, Op{Kind: OpWrite, Value: v})
	if b.active != nil {
		b.active.WriteByte(v)
	}
	b.polls = b.latency
}

func (b *Bus) BeginRead(ack bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, Op{Kind: OpReadArm, Ack: ack})
	if b.active != nil {
		b.pending = b.active.ReadByte()
	} else {
		b.pending = 0xFF // floating bus
	}
	b.polls = b.latency
}

func (b *Bus) Done() bool {
	b.mu.Lock()
	if b.polls > 0 {
		b.polls--
		b.mu.Unlock()
		runtime.Gosched()
		return false
	}
	b.mu.Unlock()
	return true
}

func (b *Bus) Read() uint8 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

func (b *Bus) SetSpeed(khz uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, Op{Kind: OpSpeed, KHz: khz})
}
