// Package adc drives MCP3008-style SPI analog-to-digital converters:
// build the 3-byte command frame, transfer it over the shared SPI
// bus, and extract the 10-bit result. Ported from the channel-framing
// logic of the teacher's pkg/nodes/gpio/mcp3008.go readChannel, with
// the averaging/voltage-conversion options it offered for generic
// flow nodes dropped — this controller always wants exactly one raw
// 10-bit sample per call (spec.md §4.B).
package adc

import (
	"fmt"

	"github.com/hotfire/controller/internal/hal"
)

// SensorFailError wraps a transport failure reading a single channel,
// identified by the caller-supplied sensor ID (spec.md §4.B, §7).
type SensorFailError struct {
	SensorID int
	Err      error
}

func (e *SensorFailError) Error() string {
	return fmt.Sprintf("adc: sensor %d: %v", e.SensorID, e.Err)
}

func (e *SensorFailError) Unwrap() error { return e.Err }

// Driver reads MCP3008-style ADCs addressed by (adcIndex, channel)
// over a shared SPI bus, where adcIndex selects one of the
// configured chip-select lines.
type Driver struct {
	spi    hal.SPIProvider
	adcCS  []int // adcCS[i] is the chip-select line for adc index i
}

// NewDriver builds a Driver against the given SPI bus and the
// ordered chip-select pins from the configuration's adc_cs list.
func NewDriver(spi hal.SPIProvider, adcCS []int) *Driver {
	return &Driver{spi: spi, adcCS: append([]int(nil), adcCS...)}
}

// Read performs one MCP3008-style single-ended conversion on
// (adcIndex, channel) and returns the raw 10-bit result in [0, 1023].
// sensorID is only used to attribute a transport failure; it is not
// part of the ADC protocol.
func (d *Driver) Read(sensorID, adcIndex, channel int) (int, error) {
	if adcIndex < 0 || adcIndex >= len(d.adcCS) {
		return 0, &SensorFailError{SensorID: sensorID, Err: fmt.Errorf("adc index %d out of range", adcIndex)}
	}
	if channel < 0 || channel > 7 {
		return 0, &SensorFailError{SensorID: sensorID, Err: fmt.Errorf("channel %d out of range", channel)}
	}

	cs := d.adcCS[adcIndex]
	tx := []byte{0x01, 0x80 | byte(channel<<4), 0x00}

	d.spi.Acquire()
	rx, err := d.spi.Transfer(cs, tx)
	d.spi.Release()

	if err != nil {
		return 0, &SensorFailError{SensorID: sensorID, Err: err}
	}
	if len(rx) != 3 {
		return 0, &SensorFailError{SensorID: sensorID, Err: fmt.Errorf("short spi reply: %d bytes", len(rx))}
	}

	raw := int(rx[1]&0x03)<<8 | int(rx[2])
	return raw, nil
}
