// Package i2csim is a software model of a double-buffered, single-master
// I2C peripheral wired to register-bank slave devices. It implements
// i2c.Port for host tests and self-tests: no hardware, no goroutines, no
// real time. The model advances one bus action per register query, which
// reproduces the double-buffered receive pipeline closely enough that a
// late STOP really does admit an extra byte.
package i2csim

import (
	"i2ccore-go/i2c"
	"i2ccore-go/x/conv"
	"i2ccore-go/x/mathx"
)

// Slave is a register-bank device: the first byte written in a transaction
// selects the register pointer, later bytes write through it, reads stream
// from it. The pointer auto-increments and wraps at 0xFF.
type Slave struct {
	regs   [256]byte
	ptr    uint8
	ptrSet bool
}

func (sl *Slave) write(b byte) {
	if !sl.ptrSet {
		sl.ptr, sl.ptrSet = b, true
		return
	}
	sl.regs[sl.ptr] = b
	sl.ptr++
}

func (sl *Slave) read() byte {
	b := sl.regs[sl.ptr]
	sl.ptr++
	return b
}

// Load stores data into consecutive registers starting at reg.
func (sl *Slave) Load(reg uint8, data ...byte) {
	for i, b := range data {
		sl.regs[reg+uint8(i)] = b
	}
}

// Reg returns the current value of one register.
func (sl *Slave) Reg(reg uint8) byte { return sl.regs[reg] }

// SetPointer positions the register pointer, as a prior transaction would.
func (sl *Slave) SetPointer(reg uint8) { sl.ptr = reg }

// Sim implements i2c.Port over an in-memory bus.
type Sim struct {
	slaves map[uint16]*Slave
	active *Slave

	target  uint16
	ctl     i2c.Ctl
	flags   i2c.Flag
	mask    i2c.Flag
	inReset bool

	addrPending bool // START accepted, address byte on the wire
	txMode      bool
	txActive    bool
	txBusy      bool
	txByte      byte

	rxActive    bool
	rxShift     byte
	rxShiftFull bool
	rxBuf       byte
	rxBufFull   bool

	// HoldBusy forces the bus-busy indicator on.
	HoldBusy bool
	// Mute leaves the address phase unresolved forever, so every bounded
	// wait runs out its budget.
	Mute bool

	// Trace records every mutating port call plus data movement, in order.
	Trace []string
}

func New() *Sim {
	return &Sim{slaves: make(map[uint16]*Slave)}
}

// AddSlave attaches a register-bank device at a 7-bit address.
func (s *Sim) AddSlave(addr uint16) *Slave {
	if !mathx.Between(addr, 0x08, 0x77) {
		panic("i2csim: address outside the assignable 7-bit range")
	}
	sl := &Slave{}
	s.slaves[addr] = sl
	return sl
}

// ClearTrace drops the recorded call trace.
func (s *Sim) ClearTrace() { s.Trace = nil }

func (s *Sim) trace(ev string) { s.Trace = append(s.Trace, ev) }

// step performs at most one bus action and reports whether it did anything.
func (s *Sim) step() bool {
	if s.inReset {
		return false
	}
	switch {
	case s.addrPending:
		if s.Mute {
			return false
		}
		s.addrPending = false
		s.ctl &^= i2c.CtlStart
		sl, ok := s.slaves[s.target]
		if !ok {
			s.flags |= i2c.FlagNack
			s.ctl &^= i2c.CtlStop // a combined frame still releases the bus
			return true
		}
		s.active = sl
		if s.txMode {
			s.txActive = true
			sl.ptrSet = false
			s.flags |= i2c.FlagTxReady
		} else {
			// Reception of the first byte begins the moment START clears.
			s.rxActive = true
			s.rxShift, s.rxShiftFull = sl.read(), true
		}
		return true
	case s.txBusy:
		s.txBusy = false
		s.active.write(s.txByte)
		s.flags |= i2c.FlagTxReady
		return true
	case s.rxActive && s.rxShiftFull && !s.rxBufFull:
		// Shift register hands over to the buffer register. Unless a STOP
		// is already pending the next byte starts clocking in right away.
		s.rxBuf, s.rxBufFull = s.rxShift, true
		s.rxShiftFull = false
		s.flags |= i2c.FlagRxReady
		if !s.ctl.Has(i2c.CtlStop) {
			s.rxShift, s.rxShiftFull = s.active.read(), true
		}
		return true
	case s.rxActive && !s.rxShiftFull && !s.rxBufFull && s.ctl.Has(i2c.CtlStop):
		s.rxActive = false
		s.finishStop()
		return true
	case !s.rxActive && s.ctl.Has(i2c.CtlStop):
		// Covers the transmit tail and a bare STOP forced after a NACK.
		s.txActive = false
		s.finishStop()
		return true
	}
	return false
}

func (s *Sim) finishStop() {
	s.ctl &^= i2c.CtlStop
	s.flags &^= i2c.FlagTxReady | i2c.FlagRxReady
	s.active = nil
}

// Pump advances the bus and services enabled interrupts until nothing is
// left to do or maxSteps elapses. It reports whether the bus quiesced.
// maxSteps <= 0 selects a default generous enough for any single transfer.
func (s *Sim) Pump(m *i2c.Master, maxSteps int) bool {
	if maxSteps <= 0 {
		maxSteps = 1024
	}
	for i := 0; i < maxSteps; i++ {
		progress := s.step()
		if s.flags&s.mask != 0 {
			m.Service()
			continue
		}
		if !progress {
			return true
		}
	}
	return false
}

// i2c.Port implementation.

func (s *Sim) Reset() {
	s.trace("reset")
	s.inReset = true
	s.ctl = 0
	s.flags = 0
	s.mask = 0
	s.active = nil
	s.addrPending = false
	s.txActive, s.txBusy = false, false
	s.rxActive, s.rxShiftFull, s.rxBufFull = false, false, false
}

func (s *Sim) Unreset() {
	s.trace("unreset")
	s.inReset = false
}

func (s *Sim) SelectPins() { s.trace("pins") }

func (s *Sim) SetTarget(addr uint16) {
	s.trace("target:" + conv.ByteHex(byte(addr)))
	s.target = addr
}

func (s *Sim) SetCtl(bits i2c.Ctl) {
	s.trace("setctl:" + ctlName(bits))
	if s.inReset {
		return
	}
	s.ctl |= bits
	if bits.Has(i2c.CtlStart) {
		// A (re)START aborts whatever direction was active.
		s.addrPending = true
		s.txMode = s.ctl.Has(i2c.CtlTransmit)
		s.txActive, s.txBusy = false, false
		s.rxActive, s.rxShiftFull, s.rxBufFull = false, false, false
		s.flags &^= i2c.FlagTxReady | i2c.FlagRxReady
	}
}

func (s *Sim) ClearCtl(bits i2c.Ctl) {
	s.trace("clearctl:" + ctlName(bits))
	if s.inReset {
		return
	}
	s.ctl &^= bits
}

func (s *Sim) CtlSet(bits i2c.Ctl) bool {
	s.step()
	return s.ctl&bits != 0
}

func (s *Sim) Busy() bool {
	s.step()
	return s.HoldBusy || s.addrPending || s.txActive || s.rxActive
}

func (s *Sim) WriteData(b byte) {
	s.trace("write:" + conv.ByteHex(b))
	if s.inReset || s.active == nil {
		return
	}
	s.flags &^= i2c.FlagTxReady
	s.txByte, s.txBusy = b, true
}

func (s *Sim) ReadData() byte {
	if !s.rxBufFull {
		s.trace("read:empty")
		return 0
	}
	b := s.rxBuf
	s.rxBufFull = false
	s.flags &^= i2c.FlagRxReady
	s.trace("read:" + conv.ByteHex(b))
	return b
}

func (s *Sim) Flags() i2c.Flag {
	s.step()
	return s.flags
}

func (s *Sim) EnableIRQ(mask i2c.Flag) {
	s.trace("irq:" + flagName(mask))
	s.mask |= mask
}

func (s *Sim) DisableIRQ() {
	s.trace("irq:off")
	s.mask = 0
}

var _ i2c.Port = (*Sim)(nil)

func ctlName(bits i2c.Ctl) string {
	var out string
	if bits.Has(i2c.CtlTransmit) {
		out += "tx|"
	}
	if bits.Has(i2c.CtlStart) {
		out += "start|"
	}
	if bits.Has(i2c.CtlStop) {
		out += "stop|"
	}
	if out == "" {
		return "none"
	}
	return out[:len(out)-1]
}

func flagName(mask i2c.Flag) string {
	var out string
	if mask.Has(i2c.FlagTxReady) {
		out += "txrdy|"
	}
	if mask.Has(i2c.FlagRxReady) {
		out += "rxrdy|"
	}
	if mask.Has(i2c.FlagNack) {
		out += "nack|"
	}
	if out == "" {
		return "none"
	}
	return out[:len(out)-1]
}

// StepClock is a deterministic i2c.Clock for tests: every reading advances
// one tick, so a bounded wait consumes its budget in poll iterations rather
// than wall time.
type StepClock struct{ T uint32 }

func (c *StepClock) Now() uint32 { c.T++; return c.T }
