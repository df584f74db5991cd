// i2c/regio.go — blocking register-transaction helpers. These talk to the
// peripheral directly, never arm the asynchronous machine, and block the
// calling context for up to several timeout budgets. Wait timeouts propagate
// unchanged to the caller.
package i2c

import (
	"i2ccore-go/errcode"

	"tinygo.org/x/drivers"
)

var _ drivers.I2C = (*Master)(nil)

// regStart wins the bus and pushes the register offset: busy check, target
// address programmed, transmit+START, then two transmit-ready handshakes —
// the first when the address byte reaches the shift register, the second
// confirming the offset byte was taken and acknowledged.
func (m *Master) regStart(addr uint16, reg uint8) error {
	if err := m.checkNotBusy(); err != nil {
		return err
	}
	m.port.SetTarget(addr)
	m.port.SetCtl(CtlTransmit | CtlStart)
	if err := m.waitFlag(FlagTxReady); err != nil {
		return err
	}
	m.port.WriteData(reg)
	return m.waitFlag(FlagTxReady)
}

// rxInto restarts into receive mode and drains buf with the early-STOP
// discipline the double-buffered receiver demands: for a single byte, STOP
// chases START the moment it deasserts; for longer reads, STOP goes out
// while one byte still remains, before the current byte is drained.
func (m *Master) rxInto(buf []byte) error {
	m.port.ClearCtl(CtlTransmit)
	m.port.SetCtl(CtlStart)
	if len(buf) == 1 {
		if err := m.waitClears(CtlStart); err != nil {
			return err
		}
		m.port.SetCtl(CtlStop)
		if err := m.waitFlag(FlagRxReady); err != nil {
			return err
		}
		buf[0] = m.port.ReadData()
		return nil
	}
	for i := range buf {
		if err := m.waitFlag(FlagRxReady); err != nil {
			return err
		}
		if i == len(buf)-2 {
			m.port.SetCtl(CtlStop)
		}
		buf[i] = m.port.ReadData()
	}
	return m.waitClears(CtlStop)
}

// Present probes addr with an empty write frame: transmit, START and STOP
// asserted in one shot, then a check for a pending NACK once the STOP has
// gone out. No pending NACK means a device acknowledged its address.
func (m *Master) Present(addr uint16) (bool, error) {
	if err := m.checkNotBusy(); err != nil {
		return false, err
	}
	m.port.SetTarget(addr)
	m.port.SetCtl(CtlTransmit | CtlStart | CtlStop)
	if err := m.waitClears(CtlStop); err != nil {
		return false, err
	}
	return !m.port.Flags().Has(FlagNack), nil
}

// ReadReg reads one byte from register reg of the device at addr.
func (m *Master) ReadReg(addr uint16, reg uint8) (byte, error) {
	var b [1]byte
	if err := m.regStart(addr, reg); err != nil {
		return 0, err
	}
	if err := m.rxInto(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadReg16 reads two bytes from reg, assembled big-endian. STOP is
// asserted only after the first of the two buffered bytes is consumed, or
// the second would be truncated.
func (m *Master) ReadReg16(addr uint16, reg uint8) (uint16, error) {
	if err := m.regStart(addr, reg); err != nil {
		return 0, err
	}
	m.port.ClearCtl(CtlTransmit)
	m.port.SetCtl(CtlStart)
	if err := m.waitClears(CtlStart); err != nil {
		return 0, err
	}
	if err := m.waitFlag(FlagRxReady); err != nil {
		return 0, err
	}
	hi := m.port.ReadData()
	m.port.SetCtl(CtlStop)
	if err := m.waitFlag(FlagRxReady); err != nil {
		return 0, err
	}
	lo := m.port.ReadData()
	return uint16(hi)<<8 | uint16(lo), nil
}

// ReadRegBlock reads len(buf) bytes starting at reg. A one-byte block takes
// the same path as ReadReg.
func (m *Master) ReadRegBlock(addr uint16, reg uint8, buf []byte) error {
	if len(buf) == 0 {
		return errcode.InvalidParams
	}
	if len(buf) == 1 {
		b, err := m.ReadReg(addr, reg)
		if err != nil {
			return err
		}
		buf[0] = b
		return nil
	}
	if err := m.regStart(addr, reg); err != nil {
		return err
	}
	return m.rxInto(buf)
}

// WriteReg writes one byte to register reg of the device at addr.
func (m *Master) WriteReg(addr uint16, reg uint8, val byte) error {
	if err := m.regStart(addr, reg); err != nil {
		return err
	}
	m.port.WriteData(val)
	if err := m.waitFlag(FlagTxReady); err != nil {
		return err
	}
	m.port.SetCtl(CtlStop)
	return m.waitClears(CtlStop)
}

// WriteReg16 writes val to reg big-endian, high byte first.
func (m *Master) WriteReg16(addr uint16, reg uint8, val uint16) error {
	if err := m.regStart(addr, reg); err != nil {
		return err
	}
	m.port.WriteData(byte(val >> 8))
	if err := m.waitFlag(FlagTxReady); err != nil {
		return err
	}
	m.port.WriteData(byte(val))
	if err := m.waitFlag(FlagTxReady); err != nil {
		return err
	}
	m.port.SetCtl(CtlStop)
	return m.waitClears(CtlStop)
}

// WriteRegBlock writes len(buf) bytes starting at reg.
func (m *Master) WriteRegBlock(addr uint16, reg uint8, buf []byte) error {
	if len(buf) == 0 {
		return errcode.InvalidParams
	}
	if err := m.regStart(addr, reg); err != nil {
		return err
	}
	for _, b := range buf {
		m.port.WriteData(b)
		if err := m.waitFlag(FlagTxReady); err != nil {
			return err
		}
	}
	m.port.SetCtl(CtlStop)
	return m.waitClears(CtlStop)
}

// Tx implements tinygo.org/x/drivers.I2C: write w, then read r behind a
// repeated START without releasing the bus in between. Either slice may be
// nil to skip that phase; both empty is rejected.
func (m *Master) Tx(addr uint16, w, r []byte) error {
	if len(w) == 0 && len(r) == 0 {
		return errcode.InvalidParams
	}
	if err := m.checkNotBusy(); err != nil {
		return err
	}
	m.port.SetTarget(addr)
	if len(w) > 0 {
		m.port.SetCtl(CtlTransmit | CtlStart)
		if err := m.waitFlag(FlagTxReady); err != nil {
			return err
		}
		for _, b := range w {
			m.port.WriteData(b)
			if err := m.waitFlag(FlagTxReady); err != nil {
				return err
			}
		}
		if len(r) == 0 {
			m.port.SetCtl(CtlStop)
			return m.waitClears(CtlStop)
		}
	}
	return m.rxInto(r)
}
