package host

import (
	"testing"

	"usbi2c-go/errcode"
	"usbi2c-go/types"
)

// fakeTransport records the control transfers it sees and answers GetStatus
// from a scripted status byte.
type fakeTransport struct {
	status types.BusStatus
	calls  []call
	err    error
}

type call struct {
	request      uint8
	value, index uint16
	out          []byte
	inLen        int
}

func (f *fakeTransport) Control(request uint8, value, index uint16, out, in []byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	c := call{request: request, value: value, index: index, inLen: len(in)}
	if out != nil {
		c.out = append([]byte(nil), out...)
	}
	f.calls = append(f.calls, c)

	switch request {
	case types.CmdGetStatus:
		in[0] = byte(f.status)
		return 1, nil
	case types.CmdEcho:
		in[0] = byte(value)
		in[1] = byte(value >> 8)
		return 2, nil
	}
	return len(out) + len(in), nil
}

// ioCalls filters out the status polls.
func (f *fakeTransport) ioCalls() []call {
	var out []call
	for _, c := range f.calls {
		if c.request&^0x03 == types.CmdI2CIO {
			out = append(out, c)
		}
	}
	return out
}

func TestTxCombinedWriteReadSegments(t *testing.T) {
	f := &fakeTransport{status: types.StatusAddressAck}
	a := New(f)

	w := []byte{0x10, 0x20}
	r := make([]byte, 3)
	if err := a.Tx(0x50, w, r); err != nil {
		t.Fatalf("Tx: %v", err)
	}

	io := f.ioCalls()
	if len(io) != 2 {
		t.Fatalf("io transfers = %d, want 2", len(io))
	}

	if io[0].request != types.CmdI2CIO|types.CmdI2CIOBegin {
		t.Errorf("segment 1 request = %#x, want begin-only", io[0].request)
	}
	if io[0].value != 0 || io[0].index != 0x50 || string(io[0].out) != string(w) {
		t.Errorf("segment 1 = %+v", io[0])
	}

	if io[1].request != types.CmdI2CIO|types.CmdI2CIOBegin|types.CmdI2CIOEnd {
		t.Errorf("segment 2 request = %#x, want begin+end", io[1].request)
	}
	if io[1].value != types.FlagRead || io[1].index != 0x50 || io[1].inLen != len(r) {
		t.Errorf("segment 2 = %+v", io[1])
	}
}

func TestTxSingleSegmentShapes(t *testing.T) {
	const beginEnd = types.CmdI2CIO | types.CmdI2CIOBegin | types.CmdI2CIOEnd

	cases := []struct {
		name  string
		w, r  []byte
		value uint16
	}{
		{"write only", []byte{1}, nil, 0},
		{"read only", nil, make([]byte, 2), types.FlagRead},
		{"zero-length probe", nil, nil, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakeTransport{status: types.StatusAddressAck}
			if err := New(f).Tx(0x3C, tc.w, tc.r); err != nil {
				t.Fatalf("Tx: %v", err)
			}
			io := f.ioCalls()
			if len(io) != 1 {
				t.Fatalf("io transfers = %d, want 1", len(io))
			}
			if io[0].request != beginEnd || io[0].value != tc.value {
				t.Errorf("transfer = %+v", io[0])
			}
		})
	}
}

func TestTxMapsNakToError(t *testing.T) {
	f := &fakeTransport{status: types.StatusAddressNak}
	a := New(f)

	if err := a.Tx(0x2A, []byte{1}, nil); errcode.Of(err) != errcode.AddressNak {
		t.Fatalf("Tx = %v, want %v", err, errcode.AddressNak)
	}
}

func TestEchoFraming(t *testing.T) {
	f := &fakeTransport{}
	a := New(f)

	v, err := a.Echo(0xA55A)
	if err != nil {
		t.Fatalf("Echo: %v", err)
	}
	if v != 0xA55A {
		t.Fatalf("echo = %#x, want 0xA55A", v)
	}
	if f.calls[0].request != types.CmdEcho || f.calls[0].value != 0xA55A {
		t.Fatalf("call = %+v", f.calls[0])
	}
}
