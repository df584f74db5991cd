// i2c/wait.go — bounded polling primitives. All waits measure elapsed time
// with uint32 subtraction on the injected microsecond clock, so clock
// wraparound is harmless.
package i2c

import "i2ccore-go/errcode"

// waitClears polls until none of the given control bits is asserted. On
// budget expiry it escalates and reports Timeout.
func (m *Master) waitClears(bits Ctl) error {
	if !m.pollClears(bits) {
		m.escalate(FaultWaitClears, uint32(bits), 0, 0)
		return errcode.Timeout
	}
	return nil
}

// pollClears is the non-escalating variant backing best-effort waits.
func (m *Master) pollClears(bits Ctl) bool {
	start := m.clock.Now()
	for m.port.CtlSet(bits) {
		if m.clock.Now()-start > m.timeout {
			return false
		}
	}
	return true
}

// waitFlag polls the interrupt-flag register for mask. A pending NACK is
// always fatal and wins over the requested flag.
func (m *Master) waitFlag(mask Flag) error {
	start := m.clock.Now()
	for {
		f := m.port.Flags()
		if f.Has(FlagNack) {
			m.escalate(FaultWaitFlag, uint32(mask), uint32(f), 0)
			return errcode.Nack
		}
		if f.Has(mask) {
			return nil
		}
		if m.clock.Now()-start > m.timeout {
			m.escalate(FaultWaitFlag, uint32(mask), uint32(f), 1)
			return errcode.Timeout
		}
	}
}

// checkNotBusy cycles the peripheral through reset to drop stale interrupt
// state, then waits out the bus-busy indicator.
func (m *Master) checkNotBusy() error {
	m.port.Reset()
	m.port.Unreset()
	start := m.clock.Now()
	for m.port.Busy() {
		if m.clock.Now()-start > m.timeout {
			m.escalate(FaultBusBusy, 0, 0, 0)
			return errcode.Busy
		}
	}
	return nil
}
