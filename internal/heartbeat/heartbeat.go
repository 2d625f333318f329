// Package heartbeat toggles a fixed GPIO pin at 1 Hz for the life of
// the process, independent of operating mode (spec.md §4.J) — an
// external watchdog's signal that the control loop is still alive.
// Same ticker shape as internal/driverstatus.
package heartbeat

import (
	"context"
	"time"

	"github.com/hotfire/controller/internal/applog"
	"github.com/hotfire/controller/internal/hal"
	"go.uber.org/zap"
)

// Worker toggles pin once per second.
type Worker struct {
	gpio hal.GPIOProvider
	pin  int
}

// NewWorker constructs a Worker for the given heartbeat pin.
func NewWorker(gpio hal.GPIOProvider, pin int) *Worker {
	return &Worker{gpio: gpio, pin: pin}
}

// Run toggles the heartbeat pin every second until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	log := applog.With("heartbeat")
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	level := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			level = !level
			if err := w.gpio.DigitalWrite(w.pin, level); err != nil {
				log.Warn("heartbeat write failed", zap.Error(err))
			}
		}
	}
}
