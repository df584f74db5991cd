// cmd/selftest/main.go — host-runnable bus driver self-test over the
// software peripheral model. Prints one PASS/FAIL line per scenario and
// exits non-zero on any failure.
package main

import (
	"os"

	"i2ccore-go/drivers/tmp102"
	"i2ccore-go/errcode"
	"i2ccore-go/i2c"
	"i2ccore-go/i2c/i2csim"
	"i2ccore-go/x/conv"

	"tinygo.org/x/drivers"
)

func logln(s string) { println(s) }

// --- completion and fault recorders -------------------------------------------

type done struct {
	reads, writes int
	code          errcode.Code
}

func (d *done) ReadDone(code errcode.Code, addr uint16, buf []byte)  { d.reads++; d.code = code }
func (d *done) WriteDone(code errcode.Code, addr uint16, buf []byte) { d.writes++; d.code = code }

type loudFaults struct{ n int }

func (f *loudFaults) Report(loc i2c.FaultLoc, a, b, c uint32) {
	f.n++
	var buf [8]byte
	logln("  fault loc=" + conv.ByteHex(byte(loc)) + " a=" + string(conv.U32Hex(buf[:], a)))
}

func newRig() (*i2c.Master, *i2csim.Sim, *done, *loudFaults) {
	s := i2csim.New()
	m := i2c.New(s)
	lf := &loudFaults{}
	m.Configure(i2c.Config{Clock: &i2csim.StepClock{}, Fault: lf})
	d := &done{}
	m.Bind(0, d)
	return m, s, d, lf
}

// --- scenarios ----------------------------------------------------------------

func TestRegisterRoundTrip() bool {
	m, s, _, lf := newRig()
	sl := s.AddSlave(0x48)

	if err := m.WriteReg(0x48, 0x10, 0xA5); err != nil {
		logln("  WriteReg failed")
		return false
	}
	if sl.Reg(0x10) != 0xA5 {
		logln("  register not written")
		return false
	}
	b, err := m.ReadReg(0x48, 0x10)
	if err != nil || b != 0xA5 {
		logln("  ReadReg mismatch: " + conv.ByteHex(b))
		return false
	}
	return lf.n == 0
}

func TestWordAndBlock() bool {
	m, s, _, _ := newRig()
	sl := s.AddSlave(0x21)

	if err := m.WriteReg16(0x21, 0x20, 0x1234); err != nil {
		logln("  WriteReg16 failed")
		return false
	}
	w, err := m.ReadReg16(0x21, 0x20)
	if err != nil || w != 0x1234 {
		logln("  ReadReg16 mismatch")
		return false
	}
	out := []byte{9, 8, 7, 6}
	if err := m.WriteRegBlock(0x21, 0x40, out); err != nil {
		logln("  WriteRegBlock failed")
		return false
	}
	in := make([]byte, 4)
	if err := m.ReadRegBlock(0x21, 0x40, in); err != nil {
		logln("  ReadRegBlock failed")
		return false
	}
	for i := range out {
		if in[i] != out[i] || sl.Reg(0x40+uint8(i)) != out[i] {
			logln("  block byte mismatch at " + conv.ByteHex(byte(i)))
			return false
		}
	}
	return true
}

func TestPresence() bool {
	m, s, _, _ := newRig()
	s.AddSlave(0x76)

	here, err := m.Present(0x76)
	if err != nil || !here {
		logln("  attached device not detected")
		return false
	}
	gone, err := m.Present(0x5A)
	if err != nil || gone {
		logln("  phantom device detected")
		return false
	}
	return true
}

func TestAsyncTransfer() bool {
	m, s, d, lf := newRig()
	sl := s.AddSlave(0x31)

	if err := m.Write(i2c.Start|i2c.Stop, 0x31, []byte{0x00, 0x11, 0x22}); err != nil {
		logln("  Write not accepted")
		return false
	}
	if !s.Pump(m, 0) || d.writes != 1 || d.code != errcode.OK {
		logln("  write completion missing")
		return false
	}
	sl.SetPointer(0x00)
	buf := make([]byte, 2)
	if err := m.Read(i2c.Start|i2c.Stop, 0x31, buf); err != nil {
		logln("  Read not accepted")
		return false
	}
	if !s.Pump(m, 0) || d.reads != 1 || d.code != errcode.OK {
		logln("  read completion missing")
		return false
	}
	if buf[0] != 0x11 || buf[1] != 0x22 {
		logln("  readback mismatch: " + conv.ByteHex(buf[0]) + conv.ByteHex(buf[1]))
		return false
	}
	return lf.n == 0
}

func TestNackAbort() bool {
	m, s, d, lf := newRig()

	if err := m.Write(i2c.Start|i2c.Stop, 0x3C, []byte{1}); err != nil {
		logln("  Write not accepted")
		return false
	}
	if !s.Pump(m, 0) {
		logln("  bus did not quiesce")
		return false
	}
	if d.writes != 1 || d.code != errcode.Nack {
		logln("  expected a Nack completion")
		return false
	}
	return lf.n == 1
}

func TestDeadBusTimeout() bool {
	m, s, _, lf := newRig()
	s.AddSlave(0x48)
	s.Mute = true

	if _, err := m.ReadReg(0x48, 0x00); err != errcode.Timeout {
		logln("  expected Timeout on a dead bus")
		return false
	}
	return lf.n == 1
}

func TestGenericBusInterface() bool {
	m, s, _, _ := newRig()
	sl := s.AddSlave(0x68)
	sl.Load(0x3B, 0x40, 0x00)

	var bus drivers.I2C = m
	r := make([]byte, 2)
	if err := bus.Tx(0x68, []byte{0x3B}, r); err != nil {
		logln("  Tx failed")
		return false
	}
	return r[0] == 0x40 && r[1] == 0x00
}

func TestTemperatureSensor() bool {
	m, s, _, _ := newRig()
	sl := s.AddSlave(tmp102.Address)
	sl.Load(0x00, 0x1F, 0x90) // 31.5625 degC

	d := tmp102.New(m)
	ok, err := d.Connected()
	if err != nil || !ok {
		logln("  sensor not detected")
		return false
	}
	deci, err := d.DeciCelsius()
	if err != nil || deci != 315 {
		logln("  temperature mismatch")
		return false
	}
	return true
}

// --- main ---------------------------------------------------------------------

type testFn struct {
	name string
	fn   func() bool
}

func main() {
	tests := []testFn{
		{"TestRegisterRoundTrip", TestRegisterRoundTrip},
		{"TestWordAndBlock", TestWordAndBlock},
		{"TestPresence", TestPresence},
		{"TestAsyncTransfer", TestAsyncTransfer},
		{"TestNackAbort", TestNackAbort},
		{"TestDeadBusTimeout", TestDeadBusTimeout},
		{"TestGenericBusInterface", TestGenericBusInterface},
		{"TestTemperatureSensor", TestTemperatureSensor},
	}

	passed, failed := 0, 0
	logln("== i2c self-test starting ==")
	for _, tc := range tests {
		if tc.fn() {
			logln("[PASS] " + tc.name)
			passed++
		} else {
			logln("[FAIL] " + tc.name)
			failed++
		}
	}
	println("== done:", passed, "passed,", failed, "failed ==")
	if failed != 0 {
		os.Exit(1)
	}
}
