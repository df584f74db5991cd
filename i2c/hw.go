// i2c/hw.go — the collaborator boundary: peripheral register capability,
// clock, fault sink and bus arbiter, with null-object defaults.
package i2c

import "i2ccore-go/errcode"

// Ctl is the peripheral's control-bit register viewed as a typed bitset.
type Ctl uint8

const (
	CtlTransmit Ctl = 1 << iota // transmitter direction selected
	CtlStart                    // START condition requested / outstanding
	CtlStop                     // STOP condition requested / outstanding
)

func (c Ctl) Has(flag Ctl) bool { return c&flag != 0 }

// Flag is the peripheral's interrupt-flag register viewed as a typed bitset.
type Flag uint8

const (
	FlagTxReady Flag = 1 << iota // transmit buffer free for the next byte
	FlagRxReady                  // receive buffer holds a byte
	FlagNack                     // addressed device did not acknowledge
)

func (f Flag) Has(flag Flag) bool { return f&flag != 0 }

// Flags describes how a Read or Write call relates to bus framing.
type Flags uint8

const (
	Start   Flags = 1 << iota // begin with a START condition
	Stop                      // end with a STOP condition
	Restart                   // START without the preceding busy check
)

func (f Flags) Has(flag Flags) bool { return f&flag != 0 }

// Port is the peripheral register capability. The driver never reasons about
// the electrical layer; platforms bind a real peripheral, tests and host
// builds use i2csim.
type Port interface {
	// Reset holds the peripheral in reset, dropping any pending interrupt
	// state. Unreset releases it again.
	Reset()
	Unreset()
	// SelectPins routes SDA/SCL to the peripheral function.
	SelectPins()
	// SetTarget programs the device address register.
	SetTarget(addr uint16)
	SetCtl(bits Ctl)
	ClearCtl(bits Ctl)
	// CtlSet reports whether any of the given control bits is still asserted.
	CtlSet(bits Ctl) bool
	// Busy reports the bus-busy indicator.
	Busy() bool
	WriteData(b byte)
	ReadData() byte
	Flags() Flag
	EnableIRQ(mask Flag)
	DisableIRQ()
}

// Clock is a monotonic microsecond source. The value wraps; callers measure
// elapsed time by subtraction only.
type Clock interface {
	Now() uint32
}

// ClockFunc adapts a plain function to the Clock interface.
type ClockFunc func() uint32

func (f ClockFunc) Now() uint32 { return f() }

// FaultLoc identifies the code path that escalated a fault.
type FaultLoc uint8

const (
	FaultWaitClears FaultLoc = iota + 1
	FaultWaitFlag
	FaultBusBusy
	FaultNackAbort
	FaultSpuriousIRQ
)

// FaultSink receives escalated hardware faults. Escalation is an
// observability side effect; the triggering operation still returns its
// error to the caller, so a no-op sink loses nothing but diagnostics.
type FaultSink interface {
	Report(loc FaultLoc, a, b, c uint32)
}

type nopFault struct{}

func (nopFault) Report(FaultLoc, uint32, uint32, uint32) {}

// ClientID names a logical client multiplexed onto this bus by the arbiter.
type ClientID uint8

// Arbiter identifies which logical client owns the bus right now. It is
// consulted only to route completion signals.
type Arbiter interface {
	CurrentClient() ClientID
}

type soloArbiter struct{}

func (soloArbiter) CurrentClient() ClientID { return 0 }

// Completion receives split-phase transfer results. Both hooks run in
// interrupt context and must not block. code is errcode.OK on success,
// errcode.Nack or errcode.Timeout otherwise; buf is the caller-supplied
// storage from the matching Read or Write call.
type Completion interface {
	ReadDone(code errcode.Code, addr uint16, buf []byte)
	WriteDone(code errcode.Code, addr uint16, buf []byte)
}

type nopCompletion struct{}

func (nopCompletion) ReadDone(errcode.Code, uint16, []byte)  {}
func (nopCompletion) WriteDone(errcode.Code, uint16, []byte) {}
