// Package config loads and validates the controller's configuration:
// a single JSON document, fixed for the life of the process (spec.md
// §3 "configuration is fixed at startup"). Unlike the teacher's
// internal/config, which layers a YAML file, environment variables,
// and defaults through spf13/viper for a server whose configuration
// can be overridden at each deployment, this controller's wire format
// is specified exactly (spec.md §6: "Configuration file: JSON") and
// never merged with anything else, so a plain encoding/json decode
// plus explicit validation is the correct tool — see DESIGN.md for the
// per-dependency rationale.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config is the root configuration object (spec.md §3).
type Config struct {
	FrequencyStatus  float64       `json:"frequency_status"`
	LogBufferSize    int           `json:"log_buffer_size"`
	SensorGroups     []SensorGroup `json:"sensor_groups"`
	Drivers          []Driver      `json:"drivers"`
	PreIgniteTimeMS  int64         `json:"pre_ignite_time"`
	PostIgniteTimeMS int64         `json:"post_ignite_time"`
	IgnitionSequence []Step        `json:"ignition_sequence"`
	EstopSequence    []Step        `json:"estop_sequence"`
	SPI              SPIConfig     `json:"spi"`
	AdcCS            []int         `json:"adc_cs"`
	PinHeartbeat     int           `json:"pin_heartbeat"`
	DashboardPort    int           `json:"dashboard_port"`
}

// SPIConfig names the shared SPI bus pins and clock (spec.md §3: "SPI
// pin quartet and clock frequency"). The pin fields document the
// physical wiring; the Linux SPI backend (internal/hal) talks to the
// kernel spidev character device rather than bit-banging these pins
// directly, exactly as the teacher's MCP3008 node does via periph.io.
type SPIConfig struct {
	PinSCLK  int `json:"pin_sclk"`
	PinMOSI  int `json:"pin_mosi"`
	PinMISO  int `json:"pin_miso"`
	PinCE    int `json:"pin_ce"`
	Bus      int `json:"bus"`
	ClockHz  int `json:"clock_hz"`
}

// SensorGroup is a set of sensors sampled together at common rates by
// one dedicated worker (spec.md §3).
type SensorGroup struct {
	Label                 string   `json:"label"`
	FrequencyStandby      float64  `json:"frequency_standby"`
	FrequencyIgnition     float64  `json:"frequency_ignition"`
	FrequencyTransmission float64  `json:"frequency_transmission"`
	Sensors               []Sensor `json:"sensors"`
}

// Sensor describes one ADC channel and its calibration (spec.md §3).
// ID is not part of the wire format; it is assigned by Load as the
// sensor's zero-based position across the flattened, group-ordered
// sensor list — "the wire identifiers" spec.md §3 specifies.
type Sensor struct {
	ID                   int        `json:"-"`
	Label                string     `json:"label"`
	Color                string     `json:"color,omitempty"`
	Units                string     `json:"units,omitempty"`
	Range                *[2]float64 `json:"range,omitempty"`
	CalibrationIntercept float64    `json:"calibration_intercept"`
	CalibrationSlope     float64    `json:"calibration_slope"`
	RollingAverageWidth  int        `json:"rolling_average_width,omitempty"`
	ADC                  int        `json:"adc"`
	Channel              int        `json:"channel"`
}

// Calibrate converts a raw ADC reading to calibrated units:
// reading = m*raw + b (spec.md §3).
func (s Sensor) Calibrate(raw int) float64 {
	return s.CalibrationSlope*float64(raw) + s.CalibrationIntercept
}

// InRange reports whether v falls within the sensor's configured
// safety range; sensors without a range never trip.
func (s Sensor) InRange(v float64) bool {
	if s.Range == nil {
		return true
	}
	return v >= s.Range[0] && v <= s.Range[1]
}

// Driver is one GPIO-controlled actuator (spec.md §3). ID is its
// zero-based index in Config.Drivers.
type Driver struct {
	Label     string `json:"label"`
	Pin       int    `json:"pin"`
	Protected bool   `json:"protected"`
}

// StepKind distinguishes the two ignition/E-stop script step shapes.
type StepKind int

const (
	StepActuate StepKind = iota
	StepSleep
)

// Step is one instruction in an ignition_sequence or estop_sequence
// (spec.md §3): either Actuate{driver_id, value} or Sleep{secs, nanos}.
type Step struct {
	Kind     StepKind
	DriverID int
	Value    bool
	Secs     int64
	Nanos    int64
}

type stepWire struct {
	Type     string `json:"type"`
	DriverID int    `json:"driver_id"`
	Value    bool   `json:"value"`
	Secs     int64  `json:"secs"`
	Nanos    int64  `json:"nanos"`
}

func (s Step) MarshalJSON() ([]byte, error) {
	w := stepWire{DriverID: s.DriverID, Value: s.Value, Secs: s.Secs, Nanos: s.Nanos}
	switch s.Kind {
	case StepActuate:
		w.Type = "actuate"
	case StepSleep:
		w.Type = "sleep"
	}
	return json.Marshal(w)
}

func (s *Step) UnmarshalJSON(data []byte) error {
	var w stepWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Type {
	case "actuate":
		s.Kind = StepActuate
	case "sleep":
		s.Kind = StepSleep
	default:
		return fmt.Errorf("config: unknown step type %q", w.Type)
	}
	s.DriverID = w.DriverID
	s.Value = w.Value
	s.Secs = w.Secs
	s.Nanos = w.Nanos
	return nil
}

// Load reads and validates the configuration file at path. The checks
// of validate (non-positive rates or sizes, an empty adc_cs list,
// missing or duplicate labels, an ADC index or channel out of range,
// two drivers on one pin, an out-of-bounds driver ID referenced by a
// script step) abort with a diagnostic. A field whose zero value passes
// those checks (pin_heartbeat, the spi block, the pre/post ignite
// times, the two sequences) is not detected when it is absent.
// Unknown JSON fields are tolerated (spec.md §6), since Config's
// fields are a strict subset of what encoding/json will decode.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	assignSensorIDs(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &cfg, nil
}

func assignSensorIDs(cfg *Config) {
	id := 0
	for gi := range cfg.SensorGroups {
		for si := range cfg.SensorGroups[gi].Sensors {
			cfg.SensorGroups[gi].Sensors[si].ID = id
			id++
		}
	}
}

// SensorCount returns the total number of sensors across all groups.
func (c *Config) SensorCount() int {
	n := 0
	for _, g := range c.SensorGroups {
		n += len(g.Sensors)
	}
	return n
}

// AllSensors returns every sensor across every group, in flattened
// (group order, then in-group order) ID order.
func (c *Config) AllSensors() []Sensor {
	out := make([]Sensor, 0, c.SensorCount())
	for _, g := range c.SensorGroups {
		out = append(out, g.Sensors...)
	}
	return out
}
