// Package command applies the dashboard's authority rules of spec.md
// §4.H to parsed inbound messages: Actuate, Ignition, EmergencyStop.
// Grounded on the request-validation-then-apply shape of the teacher's
// internal/api/handlers.go, generalized from HTTP handlers to
// dashboard-message handlers.
package command

import (
	"time"

	"github.com/hotfire/controller/internal/applog"
	"github.com/hotfire/controller/internal/config"
	"github.com/hotfire/controller/internal/dashboard"
	"github.com/hotfire/controller/internal/hal"
	"github.com/hotfire/controller/internal/ignition"
	"github.com/hotfire/controller/internal/logsink"
	"github.com/hotfire/controller/internal/state"
	"go.uber.org/zap"
)

// Dispatcher enforces spec.md §4.H's authority rules and applies
// accepted commands.
type Dispatcher struct {
	cfg    *config.Config
	state  *state.State
	gpio   hal.GPIOProvider
	sinks  *logsink.Manager
	outbox *dashboard.Outbox
	engine *ignition.Engine
	log    *zap.Logger
}

// NewDispatcher constructs a Dispatcher wired to the shared runtime
// state, GPIO backend, log sinks, outbox, and ignition engine.
func NewDispatcher(cfg *config.Config, st *state.State, gpio hal.GPIOProvider, sinks *logsink.Manager, outbox *dashboard.Outbox, engine *ignition.Engine) *Dispatcher {
	return &Dispatcher{
		cfg:    cfg,
		state:  st,
		gpio:   gpio,
		sinks:  sinks,
		outbox: outbox,
		engine: engine,
		log:    applog.With("command"),
	}
}

// Handle dispatches one parsed inbound message, as produced by
// dashboard.ParseInbound.
func (d *Dispatcher) Handle(msg interface{}) {
	switch m := msg.(type) {
	case *dashboard.Actuate:
		d.handleActuate(m)
	case *dashboard.Ignition:
		d.handleIgnition()
	case *dashboard.EmergencyStop:
		d.handleEmergencyStop()
	}
}

func (d *Dispatcher) reject(diagnostic string) {
	d.log.Warn("command rejected", zap.String("reason", diagnostic))
	d.outbox.EnqueueSafety(dashboard.NewErrorMsg(dashboard.MalformedCause(), diagnostic))
}

// handleActuate accepts Actuate iff mode == Standby and the addressed
// driver is not protected (spec.md §4.H, invariants 1-2).
func (d *Dispatcher) handleActuate(m *dashboard.Actuate) {
	if d.state.Mode() != state.Standby {
		d.reject("actuation is only permitted while in Standby")
		return
	}
	if m.DriverID < 0 || m.DriverID >= len(d.cfg.Drivers) {
		d.reject("driver_id out of range")
		return
	}
	driver := d.cfg.Drivers[m.DriverID]
	if driver.Protected {
		d.reject("driver is protected")
		return
	}

	if err := d.gpio.DigitalWrite(driver.Pin, m.Value); err != nil {
		d.log.Warn("actuate GPIO write failed", zap.Int("driver_id", m.DriverID), zap.Error(err))
		d.outbox.EnqueueSafety(dashboard.NewErrorMsg(dashboard.PermissionCause(), err.Error()))
		return
	}
	d.state.SetDriverLevel(m.DriverID, m.Value)

	now := time.Now()
	if err := d.sinks.LogDriver(m.DriverID, now.Unix(), int64(now.Nanosecond()), m.Value); err != nil {
		d.log.Warn("actuate log write failed", zap.Int("driver_id", m.DriverID), zap.Error(err))
		d.outbox.EnqueueSafety(dashboard.NewErrorMsg(dashboard.PermissionCause(), err.Error()))
	}
}

// handleIgnition accepts Ignition iff mode == Standby and no ignition
// engine task is already running (spec.md §3, §4.H).
func (d *Dispatcher) handleIgnition() {
	if d.state.Mode() != state.Standby {
		d.reject("ignition is only permitted while in Standby")
		return
	}
	if err := d.engine.Ignite(); err != nil {
		d.reject(err.Error())
	}
}

// handleEmergencyStop is accepted in every mode (spec.md §4.H).
func (d *Dispatcher) handleEmergencyStop() {
	d.engine.EmergencyStop()
}
