package config

import "fmt"

// validate checks the structural invariants spec.md §3 and §6 require
// before the supervisor is allowed to start: unique labels, in-range
// channels/IDs, and positive rates. Type errors are left to the JSON
// decoder. An absent field is caught only where its zero value fails
// one of these checks; absence as such is not tracked.
func validate(cfg *Config) error {
	if cfg.FrequencyStatus <= 0 {
		return fmt.Errorf("frequency_status must be positive")
	}
	if cfg.LogBufferSize <= 0 {
		return fmt.Errorf("log_buffer_size must be positive")
	}
	if len(cfg.AdcCS) == 0 {
		return fmt.Errorf("adc_cs must list at least one chip-select")
	}
	if cfg.DashboardPort <= 0 {
		return fmt.Errorf("dashboard_port must be a valid TCP port")
	}

	groupLabels := make(map[string]bool, len(cfg.SensorGroups))
	for _, g := range cfg.SensorGroups {
		if g.Label == "" {
			return fmt.Errorf("sensor group has empty label")
		}
		if groupLabels[g.Label] {
			return fmt.Errorf("duplicate sensor group label %q", g.Label)
		}
		groupLabels[g.Label] = true

		if g.FrequencyStandby <= 0 || g.FrequencyIgnition <= 0 || g.FrequencyTransmission <= 0 {
			return fmt.Errorf("sensor group %q: all frequencies must be positive", g.Label)
		}

		sensorLabels := make(map[string]bool, len(g.Sensors))
		for _, s := range g.Sensors {
			if s.Label == "" {
				return fmt.Errorf("sensor group %q: sensor has empty label", g.Label)
			}
			if sensorLabels[s.Label] {
				return fmt.Errorf("sensor group %q: duplicate sensor label %q", g.Label, s.Label)
			}
			sensorLabels[s.Label] = true

			if s.ADC < 0 || s.ADC >= len(cfg.AdcCS) {
				return fmt.Errorf("sensor %q: adc index %d out of range", s.Label, s.ADC)
			}
			if s.Channel < 0 || s.Channel > 7 {
				return fmt.Errorf("sensor %q: channel %d out of range 0-7", s.Label, s.Channel)
			}
			if s.Range != nil && s.Range[0] > s.Range[1] {
				return fmt.Errorf("sensor %q: range lo > hi", s.Label)
			}
			if s.RollingAverageWidth < 0 {
				return fmt.Errorf("sensor %q: rolling_average_width must be non-negative", s.Label)
			}
		}
	}
	if len(cfg.SensorGroups) == 0 {
		return fmt.Errorf("at least one sensor group is required")
	}

	driverLabels := make(map[string]bool, len(cfg.Drivers))
	pins := make(map[int]string, len(cfg.Drivers))
	for _, d := range cfg.Drivers {
		if d.Label == "" {
			return fmt.Errorf("driver has empty label")
		}
		if driverLabels[d.Label] {
			return fmt.Errorf("duplicate driver label %q", d.Label)
		}
		driverLabels[d.Label] = true
		if owner, ok := pins[d.Pin]; ok {
			return fmt.Errorf("driver %q and %q share pin %d", owner, d.Label, d.Pin)
		}
		pins[d.Pin] = d.Label
	}
	if len(cfg.Drivers) == 0 {
		return fmt.Errorf("at least one driver is required")
	}

	if err := validateSequence("ignition_sequence", cfg.IgnitionSequence, len(cfg.Drivers)); err != nil {
		return err
	}
	if err := validateSequence("estop_sequence", cfg.EstopSequence, len(cfg.Drivers)); err != nil {
		return err
	}

	if cfg.PreIgniteTimeMS < 0 || cfg.PostIgniteTimeMS < 0 {
		return fmt.Errorf("pre_ignite_time and post_ignite_time must be non-negative")
	}

	return nil
}

func validateSequence(name string, steps []Step, driverCount int) error {
	for i, st := range steps {
		if st.Kind == StepActuate {
			if st.DriverID < 0 || st.DriverID >= driverCount {
				return fmt.Errorf("%s[%d]: driver_id %d out of range", name, i, st.DriverID)
			}
		}
	}
	return nil
}
