// Package supervisor builds, wires, and runs every worker of the
// control plane, and owns its shutdown path. Grounded on the
// construct-wire-start sequencing of the teacher's cmd/edgeflow/main.go
// (initialize HAL, storage, registry, hub, then serve), generalized
// from "build an HTTP app and listen" to "build the control-plane
// workers and join them on cancellation" (spec.md §4.K).
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hotfire/controller/internal/adc"
	"github.com/hotfire/controller/internal/applog"
	"github.com/hotfire/controller/internal/command"
	"github.com/hotfire/controller/internal/config"
	"github.com/hotfire/controller/internal/dashboard"
	"github.com/hotfire/controller/internal/driverstatus"
	"github.com/hotfire/controller/internal/hal"
	"github.com/hotfire/controller/internal/heartbeat"
	"github.com/hotfire/controller/internal/ignition"
	"github.com/hotfire/controller/internal/logsink"
	"github.com/hotfire/controller/internal/sensor"
	"github.com/hotfire/controller/internal/state"
	"go.uber.org/zap"
)

// Run loads cfg from configPath, wires every component (A-K), and
// blocks until ctx is cancelled. When ctx is cancelled, every driver is
// set to its unpowered level and every log sink is flushed before Run
// returns nil. A construction failure closes whatever was already
// opened and returns the error; it does not write any driver pin.
// No runtime failure of a worker makes Run return early.
func Run(ctx context.Context, configPath, logDir string) error {
	log := applog.With("supervisor")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("supervisor: load config: %w", err)
	}

	h, err := hal.NewRaspberryPiHAL(cfg.SPI.Bus, cfg.AdcCS, cfg.SPI.ClockHz)
	if err != nil {
		return fmt.Errorf("supervisor: initialize HAL: %w", err)
	}
	hal.SetGlobalHAL(h)

	for _, d := range cfg.Drivers {
		if err := h.GPIO().SetMode(d.Pin, hal.Output); err != nil {
			_ = h.Close()
			return fmt.Errorf("supervisor: configure driver pin %d: %w", d.Pin, err)
		}
	}
	if err := h.GPIO().SetMode(cfg.PinHeartbeat, hal.Output); err != nil {
		_ = h.Close()
		return fmt.Errorf("supervisor: configure heartbeat pin: %w", err)
	}

	sinks, err := logsink.NewManager(logDir, cfg)
	if err != nil {
		_ = h.Close()
		return fmt.Errorf("supervisor: open log sinks: %w", err)
	}

	rollingWidths := make([]int, cfg.SensorCount())
	for _, s := range cfg.AllSensors() {
		rollingWidths[s.ID] = s.RollingAverageWidth
	}
	st := state.New(len(cfg.Drivers), rollingWidths)

	outbox := dashboard.NewOutbox()
	adcDriver := adc.NewDriver(h.SPI(), cfg.AdcCS)
	engine := ignition.NewEngine(ctx, cfg, st, h.GPIO(), sinks, outbox)
	dispatcher := command.NewDispatcher(cfg, st, h.GPIO(), sinks, outbox, engine)

	listener, err := dashboard.Listen(cfg, outbox, dispatcher.Handle)
	if err != nil {
		_ = sinks.Close()
		_ = h.Close()
		return fmt.Errorf("supervisor: bind dashboard listener: %w", err)
	}

	var wg sync.WaitGroup

	for gi, group := range cfg.SensorGroups {
		w := sensor.NewWorker(gi, group, adcDriver, st, sinks, outbox)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx)
		}()
	}

	statusWorker := driverstatus.NewWorker(st, outbox, cfg.FrequencyStatus)
	wg.Add(1)
	go func() {
		defer wg.Done()
		statusWorker.Run(ctx)
	}()

	heartbeatWorker := heartbeat.NewWorker(h.GPIO(), cfg.PinHeartbeat)
	wg.Add(1)
	go func() {
		defer wg.Done()
		heartbeatWorker.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		listener.Run(ctx)
	}()

	log.Info("supervisor started", zap.Int("sensor_groups", len(cfg.SensorGroups)), zap.Int("drivers", len(cfg.Drivers)))

	<-ctx.Done()
	log.Info("supervisor shutting down")

	_ = listener.Close()
	shutdown(cfg, st, h.GPIO(), sinks, log)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Warn("supervisor: workers did not exit within grace period")
	}

	_ = h.Close()
	return nil
}

// shutdown unpowers every driver and flushes every log sink, the
// safety action spec.md §4.K requires before the process exits on any
// fatal condition or on a normal shutdown request.
func shutdown(cfg *config.Config, st *state.State, gpio hal.GPIOProvider, sinks *logsink.Manager, log *zap.Logger) {
	for i, d := range cfg.Drivers {
		if err := gpio.DigitalWrite(d.Pin, false); err != nil {
			log.Warn("shutdown: failed to unpower driver", zap.Int("driver_id", i), zap.Error(err))
			continue
		}
		st.SetDriverLevel(i, false)
	}
	if err := sinks.Close(); err != nil {
		log.Warn("shutdown: failed to flush log sinks", zap.Error(err))
	}
}
