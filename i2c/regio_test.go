package i2c_test

import (
	"strings"
	"testing"

	"i2ccore-go/errcode"
	"i2ccore-go/i2c"
	"i2ccore-go/i2c/i2csim"

	"tinygo.org/x/drivers"
)

type faultCounter struct {
	n   int
	loc i2c.FaultLoc
}

func (f *faultCounter) Report(loc i2c.FaultLoc, a, b, c uint32) {
	f.n++
	f.loc = loc
}

func newSimMaster() (*i2c.Master, *i2csim.Sim, *faultCounter) {
	s := i2csim.New()
	m := i2c.New(s)
	fc := &faultCounter{}
	m.Configure(i2c.Config{Clock: &i2csim.StepClock{}, Fault: fc})
	s.ClearTrace()
	return m, s, fc
}

func TestWriteRegReadRegRoundTrip(t *testing.T) {
	m, s, fc := newSimMaster()
	sl := s.AddSlave(0x48)

	if err := m.WriteReg(0x48, 0x10, 0xAB); err != nil {
		t.Fatalf("WriteReg: %v", err)
	}
	if got := sl.Reg(0x10); got != 0xAB {
		t.Fatalf("register = %#x, want 0xAB", got)
	}
	got, err := m.ReadReg(0x48, 0x10)
	if err != nil {
		t.Fatalf("ReadReg: %v", err)
	}
	if got != 0xAB {
		t.Errorf("ReadReg = %#x, want 0xAB", got)
	}
	if fc.n != 0 {
		t.Errorf("faults = %d, want 0", fc.n)
	}
}

func TestReg16BigEndian(t *testing.T) {
	m, s, _ := newSimMaster()
	sl := s.AddSlave(0x21)
	sl.Load(0x20, 0x12, 0x34)

	got, err := m.ReadReg16(0x21, 0x20)
	if err != nil {
		t.Fatalf("ReadReg16: %v", err)
	}
	if got != 0x1234 {
		t.Errorf("ReadReg16 = %#x, want 0x1234", got)
	}

	if err := m.WriteReg16(0x21, 0x30, 0xBEEF); err != nil {
		t.Fatalf("WriteReg16: %v", err)
	}
	if sl.Reg(0x30) != 0xBE || sl.Reg(0x31) != 0xEF {
		t.Errorf("registers = %#x %#x, want high byte first", sl.Reg(0x30), sl.Reg(0x31))
	}
}

func TestBlockRoundTrip(t *testing.T) {
	m, s, _ := newSimMaster()
	sl := s.AddSlave(0x68)
	out := []byte{1, 2, 3, 4, 5}

	if err := m.WriteRegBlock(0x68, 0x00, out); err != nil {
		t.Fatalf("WriteRegBlock: %v", err)
	}
	for i, b := range out {
		if sl.Reg(uint8(i)) != b {
			t.Fatalf("register %d = %#x, want %#x", i, sl.Reg(uint8(i)), b)
		}
	}
	in := make([]byte, len(out))
	if err := m.ReadRegBlock(0x68, 0x00, in); err != nil {
		t.Fatalf("ReadRegBlock: %v", err)
	}
	if string(in) != string(out) {
		t.Errorf("ReadRegBlock = %v, want %v", in, out)
	}
}

// A one-byte block read must be indistinguishable on the bus from a plain
// single-register read.
func TestOneByteBlockMatchesReadReg(t *testing.T) {
	mA, sA, _ := newSimMaster()
	mB, sB, _ := newSimMaster()
	sA.AddSlave(0x50).Load(0x07, 0x99)
	sB.AddSlave(0x50).Load(0x07, 0x99)

	single, err := mA.ReadReg(0x50, 0x07)
	if err != nil {
		t.Fatalf("ReadReg: %v", err)
	}
	var block [1]byte
	if err := mB.ReadRegBlock(0x50, 0x07, block[:]); err != nil {
		t.Fatalf("ReadRegBlock: %v", err)
	}
	if single != 0x99 || block[0] != single {
		t.Fatalf("values differ: %#x vs %#x", single, block[0])
	}
	a := strings.Join(sA.Trace, ",")
	b := strings.Join(sB.Trace, ",")
	if a != b {
		t.Errorf("bus traces differ:\n  ReadReg:      %s\n  ReadRegBlock: %s", a, b)
	}
}

// Multi-byte reads must assert STOP exactly once, before draining the
// second-to-last byte, or the double-buffered receiver admits an extra byte.
func TestBlockReadStopPlacement(t *testing.T) {
	m, s, _ := newSimMaster()
	s.AddSlave(0x40).Load(0x40, 0xDE, 0xAD, 0xBE, 0xEF)

	buf := make([]byte, 4)
	if err := m.ReadRegBlock(0x40, 0x40, buf); err != nil {
		t.Fatalf("ReadRegBlock: %v", err)
	}
	if string(buf) != "\xde\xad\xbe\xef" {
		t.Fatalf("buf = %x", buf)
	}
	stops, stopIdx := 0, -1
	for i, ev := range s.Trace {
		if ev == "setctl:stop" {
			stops++
			stopIdx = i
		}
	}
	if stops != 1 {
		t.Fatalf("STOP asserted %d times: %v", stops, s.Trace)
	}
	if stopIdx+1 >= len(s.Trace) || s.Trace[stopIdx+1] != "read:BE" {
		t.Errorf("STOP not placed before the second-to-last drain: %v", s.Trace)
	}
}

func TestBlockOperationsRejectEmptyBuffer(t *testing.T) {
	m, s, _ := newSimMaster()
	s.AddSlave(0x48)

	if err := m.ReadRegBlock(0x48, 0x00, nil); err != errcode.InvalidParams {
		t.Errorf("ReadRegBlock(nil) = %v, want InvalidParams", err)
	}
	if err := m.WriteRegBlock(0x48, 0x00, nil); err != errcode.InvalidParams {
		t.Errorf("WriteRegBlock(nil) = %v, want InvalidParams", err)
	}
	if err := m.Tx(0x48, nil, nil); err != errcode.InvalidParams {
		t.Errorf("Tx(nil, nil) = %v, want InvalidParams", err)
	}
	if len(s.Trace) != 0 {
		t.Errorf("bus touched on rejected operation: %v", s.Trace)
	}
}

func TestPresent(t *testing.T) {
	m, s, fc := newSimMaster()
	s.AddSlave(0x48)

	ok, err := m.Present(0x48)
	if err != nil {
		t.Fatalf("Present(0x48): %v", err)
	}
	if !ok {
		t.Errorf("Present(0x48) = false, device attached")
	}
	ok, err = m.Present(0x50)
	if err != nil {
		t.Fatalf("Present(0x50): %v", err)
	}
	if ok {
		t.Errorf("Present(0x50) = true, nothing attached there")
	}
	// The pending NACK from the failed probe must not bleed into the next one.
	ok, err = m.Present(0x48)
	if err != nil || !ok {
		t.Errorf("Present(0x48) after a NACK = %v, %v", ok, err)
	}
	if fc.n != 0 {
		t.Errorf("faults = %d; an address NACK during a probe is not a fault", fc.n)
	}
}

func TestNackPropagatesAndEscalatesOnce(t *testing.T) {
	m, _, fc := newSimMaster()

	_, err := m.ReadReg(0x50, 0x00)
	if err != errcode.Nack {
		t.Fatalf("ReadReg(absent) = %v, want Nack", err)
	}
	if fc.n != 1 {
		t.Errorf("faults = %d, want exactly 1", fc.n)
	}
}

func TestDeadBusTimesOutAndEscalatesOnce(t *testing.T) {
	m, s, fc := newSimMaster()
	s.AddSlave(0x48)
	s.Mute = true

	_, err := m.ReadReg(0x48, 0x00)
	if err != errcode.Timeout {
		t.Fatalf("ReadReg on a dead bus = %v, want Timeout", err)
	}
	if fc.n != 1 || fc.loc != i2c.FaultWaitFlag {
		t.Errorf("faults=%d loc=%v, want one WaitFlag escalation", fc.n, fc.loc)
	}
}

func TestTxWriteThenRead(t *testing.T) {
	m, s, _ := newSimMaster()
	sl := s.AddSlave(0x76)
	sl.Load(0x10, 0xCA, 0xFE)

	var bus drivers.I2C = m

	r := make([]byte, 2)
	if err := bus.Tx(0x76, []byte{0x10}, r); err != nil {
		t.Fatalf("Tx(write+read): %v", err)
	}
	if r[0] != 0xCA || r[1] != 0xFE {
		t.Errorf("Tx read %x, want cafe", r)
	}

	if err := bus.Tx(0x76, []byte{0x20, 0x55}, nil); err != nil {
		t.Fatalf("Tx(write): %v", err)
	}
	if sl.Reg(0x20) != 0x55 {
		t.Errorf("register = %#x, want 0x55", sl.Reg(0x20))
	}

	sl.SetPointer(0x10)
	one := make([]byte, 1)
	if err := bus.Tx(0x76, nil, one); err != nil {
		t.Fatalf("Tx(read): %v", err)
	}
	if one[0] != 0xCA {
		t.Errorf("Tx read %#x, want 0xCA", one[0])
	}
}
