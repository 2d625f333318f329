// Package sensor implements the per-SensorGroup sampling worker of
// spec.md §4.E: one goroutine per configured group, each running the
// read-calibrate-range_check-log-transmit algorithm at a mode-dependent
// rate over the shared SPI bus. Grounded on the single-sample read
// path of the teacher's pkg/nodes/gpio/mcp3008.go and the
// ticker-plus-done-channel worker loop shape of
// internal/resources/monitor.go, generalized to one worker per
// configured sensor group instead of one goroutine per flow-node
// invocation.
package sensor

import (
	"context"
	"time"

	"github.com/hotfire/controller/internal/adc"
	"github.com/hotfire/controller/internal/applog"
	"github.com/hotfire/controller/internal/config"
	"github.com/hotfire/controller/internal/dashboard"
	"github.com/hotfire/controller/internal/logsink"
	"github.com/hotfire/controller/internal/state"
	"go.uber.org/zap"
)

// Worker samples every sensor in one SensorGroup.
type Worker struct {
	groupID int
	group   config.SensorGroup
	adc     *adc.Driver
	state   *state.State
	sinks   *logsink.Manager
	outbox  *dashboard.Outbox
	log     *zap.Logger

	pending      []dashboard.Reading
	lastTransmit time.Time
}

// NewWorker constructs a Worker for groupID's configured sensors.
func NewWorker(groupID int, group config.SensorGroup, adcDriver *adc.Driver, st *state.State, sinks *logsink.Manager, outbox *dashboard.Outbox) *Worker {
	return &Worker{
		groupID: groupID,
		group:   group,
		adc:     adcDriver,
		state:   st,
		sinks:   sinks,
		outbox:  outbox,
		log:     applog.With("sensor").With(zap.String("group", group.Label)),
	}
}

// Run drives the sampling loop until ctx is cancelled. The tick period
// is recomputed after every tick from the current mode (non-accumulating
// realignment: the next deadline is armed from "now" whenever the
// previous tick overran its period, per spec.md §4.E so a stalled tick
// never causes a burst of catch-up ticks).
func (w *Worker) Run(ctx context.Context) {
	w.lastTransmit = time.Now()

	period := w.periodFor(w.state.Mode())
	next := time.Now().Add(period)
	timer := time.NewTimer(period)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			w.tick()

			now := time.Now()
			period = w.periodFor(w.state.Mode())
			next = next.Add(period)
			if next.Before(now) {
				next = now.Add(period)
			}
			timer.Reset(time.Until(next))
		}
	}
}

// periodFor returns the sampling period for the current mode: the
// Ignite rate while igniting, the standby rate in every other mode
// (PreIgnite/PostIgnite/EStopping sample no differently than Standby —
// spec.md §4.E names only the two rates explicitly).
func (w *Worker) periodFor(mode state.Mode) time.Duration {
	rate := w.group.FrequencyStandby
	if mode == state.Ignite {
		rate = w.group.FrequencyIgnition
	}
	if rate <= 0 {
		rate = 1
	}
	return time.Duration(float64(time.Second) / rate)
}

// tick performs one sampling pass over every sensor in the group: read,
// calibrate, push to the rolling window, range check, log, and
// accumulate into the pending transmission batch. One sensor's
// SensorFail does not skip the rest (spec.md §4.E.3, §4.E tie-breaks).
func (w *Worker) tick() {
	now := time.Now()
	mode := w.state.Mode()

	for _, s := range w.group.Sensors {
		raw, err := w.adc.Read(s.ID, s.ADC, s.Channel)
		if err != nil {
			w.log.Warn("sensor read failed", zap.Int("sensor_id", s.ID), zap.Error(err))
			w.outbox.EnqueueSafety(dashboard.NewErrorMsg(dashboard.SensorFailCause(s.ID), err.Error()))
			continue
		}

		calibrated := s.Calibrate(raw)
		w.state.PushSample(s.ID, calibrated)

		if mode == state.Ignite && s.Range != nil {
			if mean, full := w.state.WindowMean(s.ID); full && !s.InRange(mean) {
				w.state.SetTrip()
				diag := zap.Float64("mean", mean)
				w.log.Warn("sensor range trip", zap.Int("sensor_id", s.ID), diag)
				w.outbox.EnqueueSafety(dashboard.NewErrorMsg(dashboard.SensorFailCause(s.ID), "range trip"))
			}
		}

		if err := w.sinks.LogSensor(s.ID, now.Unix(), int64(now.Nanosecond()), raw); err != nil {
			w.log.Warn("sensor log write failed", zap.Int("sensor_id", s.ID), zap.Error(err))
			w.outbox.EnqueueSafety(dashboard.NewErrorMsg(dashboard.PermissionCause(), err.Error()))
		}

		w.pending = append(w.pending, dashboard.Reading{
			SensorID: s.ID,
			Reading:  calibrated,
			Time: dashboard.Time{
				Secs:  now.Unix(),
				Nanos: int64(now.Nanosecond()),
			},
		})
	}

	w.maybeTransmit(now, mode)
}

// maybeTransmit flushes the pending batch when the configured
// transmission period has elapsed, or every tick if the sampling
// period is already no shorter than the transmission period (spec.md
// §4.E.6: "if sampling rate < transmission rate, emit at sampling
// rate").
func (w *Worker) maybeTransmit(now time.Time, mode state.Mode) {
	if len(w.pending) == 0 {
		return
	}

	transmitPeriod := time.Duration(float64(time.Second) / w.group.FrequencyTransmission)
	samplingPeriod := w.periodFor(mode)

	if samplingPeriod >= transmitPeriod || now.Sub(w.lastTransmit) >= transmitPeriod {
		batch := w.pending
		w.pending = nil
		w.lastTransmit = now
		w.outbox.EnqueueSensorValue(dashboard.NewSensorValueMsg(w.groupID, batch))
	}
}
