package logsink

import (
	"fmt"

	"github.com/hotfire/controller/internal/config"
)

// Manager owns one Sink per sensor (keyed by sensor ID) and one per
// driver (keyed by driver ID), opened once at supervisor start
// (spec.md §4.K "Log files are opened at supervisor start").
type Manager struct {
	sensors []*Sink
	drivers []*Sink
}

// NewManager opens every sensor and driver log file named after its
// stable configuration label, under dir.
func NewManager(dir string, cfg *config.Config) (*Manager, error) {
	m := &Manager{
		sensors: make([]*Sink, cfg.SensorCount()),
		drivers: make([]*Sink, len(cfg.Drivers)),
	}

	for _, s := range cfg.AllSensors() {
		sink, err := Open(dir, sanitize(s.Label), cfg.LogBufferSize)
		if err != nil {
			return nil, fmt.Errorf("logsink: sensor %q: %w", s.Label, err)
		}
		m.sensors[s.ID] = sink
	}

	for i, d := range cfg.Drivers {
		sink, err := Open(dir, sanitize(d.Label), cfg.LogBufferSize)
		if err != nil {
			return nil, fmt.Errorf("logsink: driver %q: %w", d.Label, err)
		}
		m.drivers[i] = sink
	}

	return m, nil
}

// Sensor returns the sink for sensor id.
func (m *Manager) Sensor(id int) *Sink { return m.sensors[id] }

// Driver returns the sink for driver id.
func (m *Manager) Driver(id int) *Sink { return m.drivers[id] }

// LogSensor appends one (timestamp, raw_reading) entry for sensor id.
func (m *Manager) LogSensor(id int, secs, nanos int64, raw int) error {
	return m.sensors[id].Append(fmt.Sprintf("%d.%09d %d", secs, nanos, raw))
}

// LogDriver appends one (timestamp, level) entry for driver id.
func (m *Manager) LogDriver(id int, secs, nanos int64, level bool) error {
	return m.drivers[id].Append(fmt.Sprintf("%d.%09d %t", secs, nanos, level))
}

// Close flushes and closes every sink, collecting the first error
// encountered (shutdown is best-effort across the rest, per spec.md
// §7's "best-effort shutdown" policy for E-stop sequences, applied
// here to log flushing too).
func (m *Manager) Close() error {
	var first error
	for _, s := range m.sensors {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	for _, s := range m.drivers {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func sanitize(label string) string {
	out := make([]rune, 0, len(label))
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
