// Package i2c implements a single-master I2C bus driver as a split-phase,
// interrupt-driven transaction state machine, with blocking register-access
// helpers layered on the same peripheral.
//
// Read and Write arm a transfer and return immediately; completion is
// delivered later, from interrupt context, through the Completion hooks
// bound per client id. The register helpers (Present, ReadReg, WriteReg,
// the block variants and the drivers.I2C-shaped Tx) block the calling
// context for the whole transaction and bypass the asynchronous machine.
//
// The hardware is reached through the Port capability; platforms provide a
// binding, tests and host builds use i2csim. The driver assumes it is the
// only bus master: arbitration loss is neither detected nor recovered.
package i2c

import (
	"i2ccore-go/errcode"
	"i2ccore-go/x/mathx"
	"i2ccore-go/x/timex"
)

// Timeout budget for every bounded wait, in microseconds. 400 comfortably
// exceeds one register-level transaction at the fastest supported bus clock.
const defaultTimeoutMicros = 400

const (
	minTimeoutMicros = 50
	maxTimeoutMicros = 1_000_000
)

type direction uint8

const (
	dirIdle direction = iota
	dirReading
	dirWriting
)

// Config controls non-hardware behaviour. All fields are optional;
// zero values keep the defaults set by New.
type Config struct {
	Clock   Clock
	Fault   FaultSink
	Arbiter Arbiter
	// TimeoutMicros bounds every polled wait. Default 400.
	TimeoutMicros uint32
}

// Master drives one I2C peripheral. It is not reentrant: the external bus
// arbiter must ensure no second command is issued while a transfer is in
// flight. Commands disable the peripheral's interrupt sources while they
// mutate the transfer context directly; all other mutation happens in
// interrupt context.
type Master struct {
	port    Port
	clock   Clock
	fault   FaultSink
	arb     Arbiter
	clients map[ClientID]Completion
	timeout uint32

	// Transfer context. Set at command issuance, mutated by the interrupt
	// handlers while a transfer is in flight, returned to idle by the
	// finalize path or by fault escalation.
	dir     direction
	buf     []byte
	pos     int
	left    int
	xfer    Flags
	addr    uint16
	started bool
}

// New creates a Master bound to port with default collaborators: a
// wall-clock microsecond source, a silent fault sink and a single-client
// arbiter. It does not touch the hardware; call Configure.
func New(port Port) *Master {
	return &Master{
		port:    port,
		clock:   ClockFunc(timex.NowMicros),
		fault:   nopFault{},
		arb:     soloArbiter{},
		clients: make(map[ClientID]Completion),
		timeout: defaultTimeoutMicros,
	}
}

// Configure applies optional collaborators and brings the peripheral out of
// reset with its pins routed to the bus.
func (m *Master) Configure(cfg Config) {
	if cfg.Clock != nil {
		m.clock = cfg.Clock
	}
	if cfg.Fault != nil {
		m.fault = cfg.Fault
	}
	if cfg.Arbiter != nil {
		m.arb = cfg.Arbiter
	}
	if cfg.TimeoutMicros != 0 {
		m.timeout = mathx.Clamp(cfg.TimeoutMicros, minTimeoutMicros, maxTimeoutMicros)
	}
	m.port.Reset()
	m.port.SelectPins()
	m.port.Unreset()
}

// Bind registers the completion sink for a logical client id. A nil
// Completion unbinds; completions for unbound clients are dropped.
func (m *Master) Bind(id ClientID, c Completion) {
	if c == nil {
		delete(m.clients, id)
		return
	}
	m.clients[id] = c
}

// completion resolves the sink for the client the arbiter currently blames.
func (m *Master) completion() Completion {
	if c, ok := m.clients[m.arb.CurrentClient()]; ok {
		return c
	}
	return nopCompletion{}
}

// Read arms an asynchronous receive transfer of len(buf) bytes from addr.
// A nil return means accepted: exactly one ReadDone will fire later from
// interrupt context, and the caller must not touch buf until it does. A
// non-nil return (InvalidParams, Busy, Protocol, Timeout) means nothing was
// armed and no completion will fire.
func (m *Master) Read(flags Flags, addr uint16, buf []byte) error {
	if len(buf) == 0 {
		return errcode.InvalidParams
	}
	if !flags.Has(Start|Restart) && !m.started {
		return errcode.Protocol
	}
	m.port.DisableIRQ()
	m.dir = dirReading
	m.buf = buf
	m.pos = 0
	m.left = len(buf)
	m.xfer = flags
	m.addr = addr
	if flags.Has(Start | Restart) {
		if !flags.Has(Restart) {
			if err := m.checkNotBusy(); err != nil {
				return err
			}
		}
		m.port.SetTarget(addr)
		m.port.ClearCtl(CtlTransmit)
		m.port.SetCtl(CtlStart)
		m.started = true
		if m.left == 1 && flags.Has(Stop) {
			// The receiver is double-buffered: the first byte starts
			// clocking in the moment START deasserts. STOP has to chase it
			// immediately or a second unwanted byte is admitted.
			if err := m.waitClears(CtlStart); err != nil {
				return err
			}
			m.port.SetCtl(CtlStop)
		}
	} else if m.left == 1 && flags.Has(Stop) {
		// Continuation of an already-started transfer, last byte.
		m.port.SetCtl(CtlStop)
	}
	m.port.EnableIRQ(FlagNack | FlagRxReady)
	return nil
}

// Write arms an asynchronous transmit transfer of len(buf) bytes to addr.
// Accept/reject semantics mirror Read; on acceptance exactly one WriteDone
// fires later from interrupt context.
func (m *Master) Write(flags Flags, addr uint16, buf []byte) error {
	if len(buf) == 0 {
		return errcode.InvalidParams
	}
	if !flags.Has(Start|Restart) && !m.started {
		return errcode.Protocol
	}
	m.port.DisableIRQ()
	m.dir = dirWriting
	m.buf = buf
	m.pos = 0
	m.left = len(buf)
	m.xfer = flags
	m.addr = addr
	if flags.Has(Start | Restart) {
		if !flags.Has(Restart) {
			if err := m.checkNotBusy(); err != nil {
				return err
			}
		}
		m.port.SetTarget(addr)
		m.port.SetCtl(CtlTransmit | CtlStart)
		m.started = true
	}
	m.port.EnableIRQ(FlagNack | FlagTxReady)
	return nil
}

// escalate forwards a fault to the sink and parks the peripheral in a safe
// reset-and-idle state. The reset drops any outstanding START, so started is
// cleared too: continuations must not be accepted against a reset peripheral.
func (m *Master) escalate(loc FaultLoc, a, b, c uint32) {
	m.fault.Report(loc, a, b, c)
	m.port.Reset()
	m.port.Unreset()
	m.dir = dirIdle
	m.started = false
}
