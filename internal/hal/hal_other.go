//go:build !linux

package hal

import "fmt"

// NewRaspberryPiHAL exists on every platform so cmd/hotfire-controller
// builds everywhere, but it only succeeds on Linux (go-rpio and the
// periph.io spidev driver are Linux-only). Non-Linux builds are for
// running the test suite against MockHAL, never for driving real
// hardware.
func NewRaspberryPiHAL(bus int, adcCS []int, clockHz int) (*RaspberryPiHAL, error) {
	return nil, fmt.Errorf("hal: GPIO/SPI hardware access requires Linux")
}

// RaspberryPiHAL is declared here too so the symbol exists for the
// above constructor's return type on non-Linux builds.
type RaspberryPiHAL struct{}

func (h *RaspberryPiHAL) GPIO() GPIOProvider { return nil }
func (h *RaspberryPiHAL) SPI() SPIProvider   { return nil }
func (h *RaspberryPiHAL) Close() error       { return nil }
