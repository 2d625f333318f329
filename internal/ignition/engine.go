// Package ignition implements the scripted ignition/E-stop state
// machine of spec.md §4.I: Standby → PreIgnite → Ignite → PostIgnite →
// Standby on the happy path, or → EStopping → Standby whenever an
// operator E-stop or a range trip interrupts it. Grounded on the
// "one attempt at a time, cancellable via context" idea of the
// teacher's internal/engine/scheduler.go executeFlow dispatch, reworked
// from cron-triggered flow runs to a single one-shot, mode-driving
// state machine (this controller has no recurring schedule, so
// robfig/cron has no role here — see DESIGN.md).
package ignition

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hotfire/controller/internal/applog"
	"github.com/hotfire/controller/internal/config"
	"github.com/hotfire/controller/internal/dashboard"
	"github.com/hotfire/controller/internal/hal"
	"github.com/hotfire/controller/internal/logsink"
	"github.com/hotfire/controller/internal/state"
	"go.uber.org/zap"
)

// ErrAlreadyRunning is returned by Ignite when an ignition or E-stop
// task already owns the engine (spec.md §3: "Only one ignition engine
// task may exist at a time").
var ErrAlreadyRunning = errors.New("ignition: engine already running")

// tickInterval bounds how long a Sleep step or an inter-step pause can
// take to notice a cancellation or a range trip (spec.md §9
// "scheduler tick", exercised by scenario S5's "within one scheduler
// tick").
const tickInterval = 10 * time.Millisecond

// Engine runs at most one ignition or E-stop task at a time.
type Engine struct {
	ctx    context.Context
	cfg    *config.Config
	state  *state.State
	gpio   hal.GPIOProvider
	sinks  *logsink.Manager
	outbox *dashboard.Outbox
	log    *zap.Logger

	mu     sync.Mutex
	cancel chan struct{}
	active bool
}

// NewEngine constructs an Engine bound to ctx; ctx cancellation aborts
// any in-flight task without running the E-stop script (the process is
// shutting down, not the test stand).
func NewEngine(ctx context.Context, cfg *config.Config, st *state.State, gpio hal.GPIOProvider, sinks *logsink.Manager, outbox *dashboard.Outbox) *Engine {
	return &Engine{
		ctx:    ctx,
		cfg:    cfg,
		state:  st,
		gpio:   gpio,
		sinks:  sinks,
		outbox: outbox,
		log:    applog.With("ignition"),
	}
}

// Running reports whether an ignition or E-stop task currently owns
// the engine.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Ignite starts the ignition sequence. It fails if a task is already
// running; the caller (internal/command) is responsible for also
// checking mode == Standby (spec.md §4.H).
func (e *Engine) Ignite() error {
	cancelCh, err := e.claim()
	if err != nil {
		return err
	}
	go e.runIgnition(cancelCh)
	return nil
}

// EmergencyStop is always accepted (spec.md §4.H). If a task is
// already running, it is cancelled at its next suspension point and
// that task's own goroutine runs the E-stop script. Otherwise a fresh
// E-stop-only task is spawned directly from the current mode.
func (e *Engine) EmergencyStop() {
	e.mu.Lock()
	if e.active {
		select {
		case <-e.cancel:
			// already cancelled by an earlier EmergencyStop
		default:
			close(e.cancel)
		}
		e.mu.Unlock()
		return
	}
	e.active = true
	cancelCh := make(chan struct{})
	e.cancel = cancelCh
	e.mu.Unlock()

	go func() {
		defer e.release()
		e.runEstop()
	}()
}

func (e *Engine) claim() (chan struct{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active {
		return nil, ErrAlreadyRunning
	}
	e.active = true
	cancelCh := make(chan struct{})
	e.cancel = cancelCh
	return cancelCh, nil
}

func (e *Engine) release() {
	e.mu.Lock()
	e.active = false
	e.cancel = nil
	e.mu.Unlock()
}

func (e *Engine) runIgnition(cancel chan struct{}) {
	defer e.release()

	e.state.ClearTrip()
	e.state.SetMode(state.PreIgnite)
	e.log.Info("entering PreIgnite")

	if e.cancellableSleep(time.Duration(e.cfg.PreIgniteTimeMS)*time.Millisecond, cancel) {
		if e.ctx.Err() == nil {
			e.runEstop()
		}
		return
	}

	e.state.SetMode(state.Ignite)
	e.log.Info("entering Ignite")

	for i, step := range e.cfg.IgnitionSequence {
		if e.interrupted(cancel) {
			e.log.Warn("ignition sequence interrupted", zap.Int("step", i))
			e.runEstop()
			return
		}

		if step.Kind == config.StepSleep {
			if e.interruptibleSleep(time.Duration(step.Secs)*time.Second+time.Duration(step.Nanos), cancel) {
				if e.ctx.Err() == nil {
					e.runEstop()
				}
				return
			}
			continue
		}

		e.executeActuate(step)
	}

	e.state.SetMode(state.PostIgnite)
	e.log.Info("entering PostIgnite")

	if e.cancellableSleep(time.Duration(e.cfg.PostIgniteTimeMS)*time.Millisecond, cancel) {
		if e.ctx.Err() == nil {
			e.runEstop()
		}
		return
	}

	e.state.SetMode(state.Standby)
	e.log.Info("returned to Standby")
}

// runEstop executes the configured estop_sequence best-effort: a
// failure during one step is logged but the sequence proceeds (spec.md
// §7 "best-effort shutdown"). Called either after an ignition task is
// interrupted, or standalone from an already-Standby/idle mode.
func (e *Engine) runEstop() {
	e.state.SetMode(state.EStopping)
	e.log.Warn("entering EStopping")

	for i, step := range e.cfg.EstopSequence {
		if step.Kind == config.StepSleep {
			e.sleepBestEffort(time.Duration(step.Secs)*time.Second + time.Duration(step.Nanos))
			continue
		}
		if err := e.executeActuateErr(step); err != nil {
			e.log.Warn("estop step failed, continuing", zap.Int("step", i), zap.Error(err))
			e.outbox.EnqueueSafety(dashboard.NewErrorMsg(dashboard.PermissionCause(), err.Error()))
		}
	}

	e.state.SetMode(state.Standby)
	e.log.Info("returned to Standby after E-stop")
}

func (e *Engine) executeActuate(step config.Step) {
	if err := e.executeActuateErr(step); err != nil {
		e.log.Warn("ignition step failed", zap.Error(err))
		e.outbox.EnqueueSafety(dashboard.NewErrorMsg(dashboard.PermissionCause(), err.Error()))
	}
}

func (e *Engine) executeActuateErr(step config.Step) error {
	driver := e.cfg.Drivers[step.DriverID]
	if err := e.gpio.DigitalWrite(driver.Pin, step.Value); err != nil {
		return err
	}
	e.state.SetDriverLevel(step.DriverID, step.Value)
	if err := e.sinks.LogDriver(step.DriverID, time.Now().Unix(), int64(time.Now().Nanosecond()), step.Value); err != nil {
		return err
	}
	return nil
}

// cancellableSleep blocks for dur, returning early only on cancellation
// or a process-shutdown context — never on a range trip.
// Used for the PreIgnite/PostIgnite waits, since spec.md §4.I scopes
// trip_signal handling to the Ignite script only ("outside Ignite the
// flag is ignored"); a trip latched right at a mode-transition
// boundary must not be consumed here.
func (e *Engine) cancellableSleep(dur time.Duration, cancel <-chan struct{}) bool {
	timer := time.NewTimer(dur)
	defer timer.Stop()
	select {
	case <-e.ctx.Done():
		return true
	case <-cancel:
		return true
	case <-timer.C:
		return false
	}
}

// interruptibleSleep blocks for dur, polling for cancellation, a
// process-shutdown context, or a range trip every tickInterval. It
// returns true if the sleep was cut short by any of them. Used only for
// Sleep steps inside the Ignite script itself (spec.md §4.I): between
// steps, trips are checked by interrupted; the PreIgnite/PostIgnite
// waits use cancellableSleep, which ignores trips.
func (e *Engine) interruptibleSleep(dur time.Duration, cancel <-chan struct{}) bool {
	deadline := time.Now().Add(dur)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		select {
		case <-e.ctx.Done():
			return true
		case <-cancel:
			return true
		case <-ticker.C:
			if e.state.TakeTrip() {
				return true
			}
		}
	}
}

// interrupted reports, without blocking, whether cancel has fired or a
// range trip is pending (checked between every ignition step, per
// spec.md §4.I "between steps, the engine must sample trip_signal and
// honor pending E-stop").
func (e *Engine) interrupted(cancel <-chan struct{}) bool {
	select {
	case <-cancel:
		return true
	default:
	}
	if e.state.TakeTrip() {
		return true
	}
	return false
}

// sleepBestEffort is a plain, uninterruptible sleep used only inside
// the E-stop sequence itself, which must run to completion.
func (e *Engine) sleepBestEffort(dur time.Duration) {
	timer := time.NewTimer(dur)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-e.ctx.Done():
	}
}
