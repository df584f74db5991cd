package i2csim

import (
	"testing"

	"i2ccore-go/errcode"
	"i2ccore-go/i2c"
)

type doneRec struct {
	reads, writes int
	code          errcode.Code
	addr          uint16
	buf           []byte
}

func (d *doneRec) ReadDone(code errcode.Code, addr uint16, buf []byte) {
	d.reads++
	d.code, d.addr, d.buf = code, addr, buf
}
func (d *doneRec) WriteDone(code errcode.Code, addr uint16, buf []byte) {
	d.writes++
	d.code, d.addr, d.buf = code, addr, buf
}

type faultCount struct{ n int }

func (f *faultCount) Report(i2c.FaultLoc, uint32, uint32, uint32) { f.n++ }

func newRig() (*i2c.Master, *Sim, *doneRec, *faultCount) {
	s := New()
	m := i2c.New(s)
	fc := &faultCount{}
	m.Configure(i2c.Config{Clock: &StepClock{}, Fault: fc})
	rec := &doneRec{}
	m.Bind(0, rec)
	return m, s, rec, fc
}

func TestAsyncWriteThenRead(t *testing.T) {
	m, s, rec, fc := newRig()
	sl := s.AddSlave(0x48)

	// Register 0x05 selected by the first byte, three values behind it.
	out := []byte{0x05, 0x11, 0x22, 0x33}
	if err := m.Write(i2c.Start|i2c.Stop, 0x48, out); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !s.Pump(m, 0) {
		t.Fatal("bus did not quiesce after the write")
	}
	if rec.writes != 1 || rec.code != errcode.OK {
		t.Fatalf("writes=%d code=%v", rec.writes, rec.code)
	}
	if sl.Reg(0x05) != 0x11 || sl.Reg(0x06) != 0x22 || sl.Reg(0x07) != 0x33 {
		t.Fatalf("registers not written: %#x %#x %#x", sl.Reg(0x05), sl.Reg(0x06), sl.Reg(0x07))
	}

	sl.SetPointer(0x05)
	in := make([]byte, 3)
	if err := m.Read(i2c.Start|i2c.Stop, 0x48, in); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !s.Pump(m, 0) {
		t.Fatal("bus did not quiesce after the read")
	}
	if rec.reads != 1 || rec.code != errcode.OK {
		t.Fatalf("reads=%d code=%v", rec.reads, rec.code)
	}
	if in[0] != 0x11 || in[1] != 0x22 || in[2] != 0x33 {
		t.Errorf("read back %x", in)
	}
	if fc.n != 0 {
		t.Errorf("faults = %d, want 0", fc.n)
	}
}

// A single-byte read with STOP must admit exactly one byte: the slave's
// pointer may advance by one position only.
func TestAsyncSingleByteReadAdmitsOneByte(t *testing.T) {
	m, s, rec, _ := newRig()
	sl := s.AddSlave(0x31)
	sl.Load(0x00, 0xAA, 0xBB)
	sl.SetPointer(0x00)

	buf := make([]byte, 1)
	if err := m.Read(i2c.Start|i2c.Stop, 0x31, buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !s.Pump(m, 0) {
		t.Fatal("bus did not quiesce")
	}
	if rec.reads != 1 || rec.code != errcode.OK || buf[0] != 0xAA {
		t.Fatalf("reads=%d code=%v buf=%#x", rec.reads, rec.code, buf[0])
	}
	if sl.ptr != 0x01 {
		t.Errorf("slave pointer at %#x: a late STOP let a second byte clock in", sl.ptr)
	}
}

func TestAsyncNackCompletesWithFailure(t *testing.T) {
	m, s, rec, fc := newRig()

	if err := m.Write(i2c.Start|i2c.Stop, 0x3C, []byte{1, 2}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !s.Pump(m, 0) {
		t.Fatal("bus did not quiesce")
	}
	if rec.writes != 1 || rec.code != errcode.Nack {
		t.Fatalf("writes=%d code=%v, want one Nack completion", rec.writes, rec.code)
	}
	if fc.n != 1 {
		t.Errorf("faults = %d, want exactly 1", fc.n)
	}
	// The machine must be usable again immediately.
	s.AddSlave(0x3C)
	if err := m.Write(i2c.Start|i2c.Stop, 0x3C, []byte{0x09, 0x42}); err != nil {
		t.Fatalf("Write after abort: %v", err)
	}
	if !s.Pump(m, 0) {
		t.Fatal("bus did not quiesce after recovery")
	}
	if rec.writes != 2 || rec.code != errcode.OK {
		t.Errorf("recovery writes=%d code=%v", rec.writes, rec.code)
	}
}

func TestHeldBusRejectsCommand(t *testing.T) {
	m, s, rec, fc := newRig()
	s.AddSlave(0x48)
	s.HoldBusy = true

	if err := m.Read(i2c.Start|i2c.Stop, 0x48, make([]byte, 1)); err != errcode.Busy {
		t.Fatalf("Read on a held bus = %v, want Busy", err)
	}
	if fc.n != 1 {
		t.Errorf("faults = %d, want 1", fc.n)
	}
	if rec.reads != 0 {
		t.Errorf("completion fired for a rejected command")
	}
}

func TestAddSlaveRejectsReservedAddress(t *testing.T) {
	s := New()
	defer func() {
		if recover() == nil {
			t.Error("AddSlave(0x03) did not panic")
		}
	}()
	s.AddSlave(0x03)
}
