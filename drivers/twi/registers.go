package twi

// Registers is the two-wire peripheral register file. The hardware adapter
// maps it onto the real TWCR/TWSR/TWDR/TWBR registers; twisim and the tests
// provide in-memory implementations.
type Registers interface {
	Control() uint8
	SetControl(v uint8)
	// Status returns the status bits with the prescaler bits masked off.
	Status() uint8
	Data() uint8
	SetData(v uint8)
	SetBitRate(v uint8)
	SetPrescaler(v uint8)
}

// Control register bits.
const (
	ctlIntFlag uint8 = 1 << 7 // operation complete, cleared by writing 1
	ctlEnAck   uint8 = 1 << 6 // send ACK on the byte about to be received
	ctlStart   uint8 = 1 << 5
	ctlStop    uint8 = 1 << 4
	ctlEnable  uint8 = 1 << 2
)

// Status codes (prescaler bits masked off).
const (
	statStart     uint8 = 0x08 // START transmitted
	statRepStart  uint8 = 0x10 // repeated START transmitted
	statSlaWAck   uint8 = 0x18 // SLA+W transmitted, ACK received
	statSlaWNak   uint8 = 0x20
	statDataWAck  uint8 = 0x28
	statSlaRAck   uint8 = 0x40 // SLA+R transmitted, ACK received
	statSlaRNak   uint8 = 0x48
	statDataRAck  uint8 = 0x50
	statDataRNak  uint8 = 0x58
	statArbLost   uint8 = 0x38
	statBusClosed uint8 = 0xF8 // no relevant state, int flag clear
)
