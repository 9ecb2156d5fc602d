package twisim

// Mem is an EEPROM-style slave: the first written byte of a transaction sets
// the cursor, further writes store through it, reads stream from it. The
// cursor survives a stop, so write-address-then-read works with either a
// repeated start or separate transactions.
type Mem struct {
	Data   []byte
	cur    int
	curset bool
}

func NewMem(size int) *Mem {
	return &Mem{Data: make([]byte, size)}
}

var _ Slave = (*Mem)(nil)

func (m *Mem) Addressed(read bool) bool {
	if !read {
		m.curset = false
	}
	return true
}

func (m *Mem) WriteByte(v uint8) {
	if !m.curset {
		m.cur = int(v) % len(m.Data)
		m.curset = true
		return
	}
	m.Data[m.cur] = v
	m.cur = (m.cur + 1) % len(m.Data)
}

func (m *Mem) ReadByte() uint8 {
	v := m.Data[m.cur]
	m.cur = (m.cur + 1) % len(m.Data)
	return v
}

func (m *Mem) Stop() {}

// Absent is a slave that never ACKs its address, for NAK-path tests.
type Absent struct{}

func (Absent) Addressed(bool) bool { return false }
func (Absent) WriteByte(uint8)     {}
func (Absent) ReadByte() uint8     { return 0xFF }
func (Absent) Stop()               {}
