package adapter

// loopbackPacketSize matches the bulk endpoint bank.
const loopbackPacketSize = 64

// serviceLoopback echoes one pending packet on the self-test endpoint pair,
// zero-padded to a full bank. Best effort, between control requests; it never
// touches bus or latch state.
func (s *service) serviceLoopback() {
	if s.loop == nil {
		return
	}
	n, ok := s.loop.Recv(s.lbuf[:])
	if !ok {
		return
	}
	for i := n; i < len(s.lbuf); i++ {
		s.lbuf[i] = 0
	}
	s.loop.Send(s.lbuf[:])
}
