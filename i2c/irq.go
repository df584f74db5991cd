// i2c/irq.go — interrupt service. Everything here runs in interrupt
// context; the transfer context is mutated without locks because commands
// keep the peripheral's interrupt sources disabled while they touch it.
package i2c

import "i2ccore-go/errcode"

// Service dispatches one pending interrupt for this peripheral. Platform
// bindings call it from the hardware vector; host code calls it from an
// interrupt pump. A vector that matches no expected condition for the
// in-flight transfer is escalated as an internal fault.
func (m *Master) Service() {
	f := m.port.Flags()
	switch {
	case f.Has(FlagNack):
		m.onNack()
	case f.Has(FlagRxReady):
		if m.dir != dirReading {
			m.escalate(FaultSpuriousIRQ, uint32(f), uint32(m.dir), 0)
			return
		}
		m.onRxReady()
	case f.Has(FlagTxReady):
		if m.dir != dirWriting {
			m.escalate(FaultSpuriousIRQ, uint32(f), uint32(m.dir), 0)
			return
		}
		m.onTxReady()
	default:
		m.escalate(FaultSpuriousIRQ, uint32(f), uint32(m.dir), 0)
	}
}

// onTxReady advances a transmit transfer by one byte. After the last byte
// has been pushed, the flag fires once more while that byte sits in the
// shift register; that final service closes out the transfer.
func (m *Master) onTxReady() {
	if m.left > 0 {
		m.port.WriteData(m.buf[m.pos])
		m.pos++
		m.left--
		return
	}
	code := errcode.OK
	if m.xfer.Has(Stop) {
		m.port.SetCtl(CtlStop)
		if err := m.waitClears(CtlStop); err != nil {
			code = errcode.Of(err)
		}
		m.started = false
	}
	m.port.DisableIRQ()
	m.dir = dirIdle
	buf := m.buf
	m.buf = nil
	m.completion().WriteDone(code, m.addr, buf)
}

// onRxReady drains one received byte. While the byte being delivered sits
// in the buffer register, the next one is already clocking into the shift
// register, so when exactly one byte will remain after this one the STOP
// must go out before the drain, not after.
func (m *Master) onRxReady() {
	m.left--
	if m.left == 1 && m.xfer.Has(Stop) {
		m.port.SetCtl(CtlStop)
	}
	m.buf[m.pos] = m.port.ReadData()
	m.pos++
	if m.left != 0 {
		return
	}
	m.port.DisableIRQ()
	code := errcode.OK
	if m.xfer.Has(Stop) {
		if err := m.waitClears(CtlStop); err != nil {
			code = errcode.Of(err)
		}
		m.started = false
	}
	m.dir = dirIdle
	buf := m.buf
	m.buf = nil
	m.completion().ReadDone(code, m.addr, buf)
}

// onNack aborts the in-flight transfer: release the bus with a best-effort
// STOP, escalate (which resets the peripheral and idles the machine), then
// deliver the failure on whichever completion matches the old direction.
func (m *Master) onNack() {
	wasReading := m.dir == dirReading
	addr, buf := m.addr, m.buf
	m.port.SetCtl(CtlStop)
	m.pollClears(CtlStop)
	m.escalate(FaultNackAbort, uint32(addr), uint32(m.pos), uint32(m.left))
	m.buf = nil
	if wasReading {
		m.completion().ReadDone(errcode.Nack, addr, buf)
	} else {
		m.completion().WriteDone(errcode.Nack, addr, buf)
	}
}
