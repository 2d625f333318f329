//go:build linux

package hal

import (
	"fmt"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// RaspberryPiHAL is the Linux GPIO/SPI backend: GPIO through go-rpio's
// direct /dev/gpiomem mapping, SPI through periph.io's spidev driver.
// Both are real wiring; this is what the supervisor constructs in
// production.
type RaspberryPiHAL struct {
	gpio *rpiGPIO
	spi  *rpiSPI
}

// NewRaspberryPiHAL opens go-rpio and, for each chip-select in
// adcCS, a periph.io SPI connection at the given clock frequency.
// bus is the Linux SPI bus number (almost always 0 on a Raspberry
// Pi); adcCS maps the configuration's ordered chip-select list to
// /dev/spidevBUS.N device files.
func NewRaspberryPiHAL(bus int, adcCS []int, clockHz int) (*RaspberryPiHAL, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("hal: periph.io host init: %w", err)
	}
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("hal: go-rpio open: %w", err)
	}

	conns := make(map[int]spi.Conn, len(adcCS))
	for _, cs := range adcCS {
		port, err := spireg.Open(fmt.Sprintf("/dev/spidev%d.%d", bus, cs))
		if err != nil {
			return nil, fmt.Errorf("hal: open spi cs %d: %w", cs, err)
		}
		conn, err := port.Connect(physic.Frequency(clockHz)*physic.Hertz, spi.Mode0, 8)
		if err != nil {
			return nil, fmt.Errorf("hal: connect spi cs %d: %w", cs, err)
		}
		conns[cs] = conn
	}

	return &RaspberryPiHAL{
		gpio: &rpiGPIO{pins: make(map[int]rpio.Pin)},
		spi:  &rpiSPI{conns: conns},
	}, nil
}

func (h *RaspberryPiHAL) GPIO() GPIOProvider { return h.gpio }
func (h *RaspberryPiHAL) SPI() SPIProvider   { return h.spi }

func (h *RaspberryPiHAL) Close() error {
	return rpio.Close()
}

type rpiGPIO struct {
	mu   sync.Mutex
	pins map[int]rpio.Pin
}

func (g *rpiGPIO) SetMode(pin int, mode PinMode) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	p := rpio.Pin(pin)
	switch mode {
	case Input:
		p.Input()
	case Output:
		p.Output()
	default:
		return fmt.Errorf("hal: unsupported pin mode %v", mode)
	}
	g.pins[pin] = p
	return nil
}

func (g *rpiGPIO) DigitalWrite(pin int, value bool) error {
	g.mu.Lock()
	p, ok := g.pins[pin]
	g.mu.Unlock()
	if !ok {
		return fmt.Errorf("hal: pin %d not configured", pin)
	}
	if value {
		p.High()
	} else {
		p.Low()
	}
	return nil
}

func (g *rpiGPIO) DigitalRead(pin int) (bool, error) {
	g.mu.Lock()
	p, ok := g.pins[pin]
	g.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("hal: pin %d not configured", pin)
	}
	return p.Read() == rpio.High, nil
}

func (g *rpiGPIO) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pins = make(map[int]rpio.Pin)
	return nil
}

// rpiSPI serializes access to the shared SPI bus behind a single
// mutex — the "one shared, serialized acquisition primitive" of
// spec.md §4.A. Each chip-select has its own periph.io connection,
// but only one Transfer across all of them runs at a time.
type rpiSPI struct {
	mu    sync.Mutex
	conns map[int]spi.Conn
}

func (s *rpiSPI) Acquire() { s.mu.Lock() }
func (s *rpiSPI) Release() { s.mu.Unlock() }

func (s *rpiSPI) Transfer(chipSelect int, tx []byte) ([]byte, error) {
	conn, ok := s.conns[chipSelect]
	if !ok {
		return nil, fmt.Errorf("hal: chip-select %d not opened", chipSelect)
	}
	rx := make([]byte, len(tx))
	if err := conn.Tx(tx, rx); err != nil {
		return nil, fmt.Errorf("hal: spi transfer on cs %d: %w", chipSelect, err)
	}
	return rx, nil
}

func (s *rpiSPI) Close() error {
	return nil
}
