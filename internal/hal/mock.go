package hal

import (
	"fmt"
	"sync"
)

// MockHAL is a fully in-memory HAL used by tests; it never touches the
// OS and records every GPIO write and SPI transfer so tests can assert
// on the exact sequence of hardware effects a command produced.
type MockHAL struct {
	gpio *MockGPIO
	spi  *MockSPI
}

// NewMockHAL creates a MockHAL with empty pin state and no scripted
// SPI replies.
func NewMockHAL() *MockHAL {
	return &MockHAL{
		gpio: &MockGPIO{pins: make(map[int]*MockPin)},
		spi:  &MockSPI{replies: make(map[int][][]byte)},
	}
}

func (m *MockHAL) GPIO() GPIOProvider { return m.gpio }
func (m *MockHAL) SPI() SPIProvider   { return m.spi }
func (m *MockHAL) Close() error       { return nil }

// MockGPIO is exported for callers that need the concrete type (e.g.
// to inspect WriteLog); most code should depend on GPIOProvider.
func (m *MockHAL) MockGPIO() *MockGPIO { return m.gpio }
func (m *MockHAL) MockSPI() *MockSPI   { return m.spi }

// MockPin tracks the state of one simulated GPIO pin.
type MockPin struct {
	mode  PinMode
	value bool
}

// PinWrite is one recorded DigitalWrite call, in call order.
type PinWrite struct {
	Pin   int
	Value bool
}

// MockGPIO is an in-memory GPIOProvider.
type MockGPIO struct {
	mu       sync.Mutex
	pins     map[int]*MockPin
	WriteLog []PinWrite
}

func (g *MockGPIO) SetMode(pin int, mode PinMode) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pins[pin] == nil {
		g.pins[pin] = &MockPin{}
	}
	g.pins[pin].mode = mode
	return nil
}

func (g *MockGPIO) DigitalRead(pin int) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.pins[pin]
	if !ok {
		return false, fmt.Errorf("hal: pin %d not initialized", pin)
	}
	return p.value, nil
}

func (g *MockGPIO) DigitalWrite(pin int, value bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pins[pin] == nil {
		g.pins[pin] = &MockPin{}
	}
	g.pins[pin].value = value
	g.WriteLog = append(g.WriteLog, PinWrite{Pin: pin, Value: value})
	return nil
}

func (g *MockGPIO) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pins = make(map[int]*MockPin)
	return nil
}

// Level returns the last value written to pin (false if never
// written), for tests that want the state without the full log.
func (g *MockGPIO) Level(pin int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.pins[pin]; ok {
		return p.value
	}
	return false
}

// MockSPI is an in-memory SPIProvider with per-chip-select scripted
// reply queues, so a test can make the Nth transfer on a given
// chip-select return a chosen raw ADC frame (or an error).
type MockSPI struct {
	mu      sync.Mutex
	replies map[int][][]byte
	errs    map[int][]error
	// TransferLog records every (chipSelect, tx) pair in call order.
	TransferLog []MockTransfer
}

// MockTransfer is one recorded SPI transfer.
type MockTransfer struct {
	ChipSelect int
	TX         []byte
}

// QueueReply appends a scripted full-duplex reply for chipSelect; the
// next Transfer on that chip-select consumes the oldest queued reply.
func (s *MockSPI) QueueReply(chipSelect int, rx []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[chipSelect] = append(s.replies[chipSelect], rx)
}

// QueueRawADC is a convenience for tests: queues a reply that makes
// the MCP3008-style command frame decode to the given 10-bit raw
// value.
func (s *MockSPI) QueueRawADC(chipSelect int, raw int) {
	s.QueueReply(chipSelect, []byte{0x00, byte((raw >> 8) & 0x03), byte(raw & 0xFF)})
}

// QueueError makes the next Transfer on chipSelect fail with err.
func (s *MockSPI) QueueError(chipSelect int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errs == nil {
		s.errs = make(map[int][]error)
	}
	s.errs[chipSelect] = append(s.errs[chipSelect], err)
}

func (s *MockSPI) Acquire() { s.mu.Lock() }
func (s *MockSPI) Release() { s.mu.Unlock() }

func (s *MockSPI) Transfer(chipSelect int, tx []byte) ([]byte, error) {
	// Transfer takes no lock itself: callers bracket it with
	// Acquire/Release, which hold the same mutex.
	s.TransferLog = append(s.TransferLog, MockTransfer{ChipSelect: chipSelect, TX: append([]byte(nil), tx...)})

	if errs := s.errs[chipSelect]; len(errs) > 0 {
		err := errs[0]
		s.errs[chipSelect] = errs[1:]
		return nil, err
	}

	queue := s.replies[chipSelect]
	if len(queue) == 0 {
		return make([]byte, len(tx)), nil
	}
	rx := queue[0]
	s.replies[chipSelect] = queue[1:]
	return rx, nil
}

func (s *MockSPI) Close() error { return nil }
