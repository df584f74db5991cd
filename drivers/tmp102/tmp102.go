// Package tmp102 provides a driver for the TMP102 digital temperature
// sensor, built on the blocking register-transaction layer of the bus
// driver. Temperatures are fixed-point: deci-°C (tenths of a degree), with
// float accessors for callers that can afford them.
//
// Bus failures come back wrapped in *errcode.E with the operation name;
// errcode.Of recovers the underlying code.
package tmp102

import "i2ccore-go/errcode"

// Default I2C address (ADD0 tied to ground).
const Address = 0x48

// Register map.
const (
	regTemp   = 0x00
	regConfig = 0x01
	regLow    = 0x02
	regHigh   = 0x03
)

// ConfigBits is the 16-bit configuration register viewed as a typed bitset.
type ConfigBits uint16

const (
	ExtendedMode   ConfigBits = 1 << 4  // 13-bit conversions
	Shutdown       ConfigBits = 1 << 8  // conversions stopped
	ThermostatMode ConfigBits = 1 << 9  // interrupt rather than comparator
	Polarity       ConfigBits = 1 << 10 // alert pin active high
	OneShot        ConfigBits = 1 << 15 // single conversion while shut down
)

func (c ConfigBits) Has(flag ConfigBits) bool { return c&flag != 0 }

// Bus is the register-level connection the driver needs. *i2c.Master
// satisfies it.
type Bus interface {
	Present(addr uint16) (bool, error)
	ReadReg16(addr uint16, reg uint8) (uint16, error)
	WriteReg16(addr uint16, reg uint8, val uint16) error
}

// Config controls non-hardware behaviour. All fields are optional.
type Config struct {
	// Address defaults to 0x48 if zero.
	Address uint16
	// Extended selects 13-bit conversions for readings above 128 °C.
	Extended bool
}

// Device wraps a register-level connection to a TMP102.
type Device struct {
	bus      Bus
	Address  uint16
	extended bool
}

// New creates the Device object only; it does not touch the sensor.
// The bus must already be configured.
func New(bus Bus) Device {
	return Device{bus: bus, Address: Address}
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &errcode.E{C: errcode.Of(err), Op: op, Err: err}
}

// Configure applies optional config and programs the conversion mode with a
// read-modify-write of the configuration register.
func (d *Device) Configure(cfgs ...Config) error {
	if len(cfgs) > 0 {
		c := cfgs[0]
		if c.Address != 0 {
			d.Address = c.Address
		}
		d.extended = c.Extended
	}
	cfg, err := d.ReadConfig()
	if err != nil {
		return err
	}
	if d.extended {
		cfg |= ExtendedMode
	} else {
		cfg &^= ExtendedMode
	}
	return wrap("tmp102.configure", d.bus.WriteReg16(d.Address, regConfig, uint16(cfg)))
}

// Connected probes the sensor's address.
func (d *Device) Connected() (bool, error) {
	ok, err := d.bus.Present(d.Address)
	return ok, wrap("tmp102.connected", err)
}

// ReadConfig returns the configuration register.
func (d *Device) ReadConfig() (ConfigBits, error) {
	w, err := d.bus.ReadReg16(d.Address, regConfig)
	return ConfigBits(w), wrap("tmp102.config", err)
}

// RawTemperature returns the signed conversion result in sensor counts,
// 0.0625 °C per count.
func (d *Device) RawTemperature() (int16, error) {
	w, err := d.bus.ReadReg16(d.Address, regTemp)
	if err != nil {
		return 0, wrap("tmp102.temperature", err)
	}
	if d.extended {
		return int16(w) >> 3, nil
	}
	return int16(w) >> 4, nil
}

// DeciCelsius returns the temperature in tenths of °C. One count is
// 0.625 deci-degrees.
func (d *Device) DeciCelsius() (int32, error) {
	raw, err := d.RawTemperature()
	if err != nil {
		return 0, err
	}
	return int32(raw) * 5 / 8, nil
}

// Celsius returns °C as a float. Prefer DeciCelsius for fixed-point.
func (d *Device) Celsius() (float32, error) {
	raw, err := d.RawTemperature()
	if err != nil {
		return 0, err
	}
	return float32(raw) * 0.0625, nil
}

// SetAlertLimits programs the comparator window, in deci-°C.
func (d *Device) SetAlertLimits(lowDeci, highDeci int32) error {
	if err := d.bus.WriteReg16(d.Address, regLow, d.encode(lowDeci)); err != nil {
		return wrap("tmp102.alert_limits", err)
	}
	return wrap("tmp102.alert_limits", d.bus.WriteReg16(d.Address, regHigh, d.encode(highDeci)))
}

func (d *Device) encode(deci int32) uint16 {
	raw := deci * 8 / 5
	if d.extended {
		return uint16(raw << 3)
	}
	return uint16(raw << 4)
}
