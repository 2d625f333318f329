// Package driverstatus periodically snapshots every driver's level and
// enqueues a DriverValue message (spec.md §4.F), the simplest of the
// ticker-driven workers: grounded on the same ticker/done-channel
// shape as internal/sensor and internal/resources/monitor.go, but with
// no per-item work beyond a slice copy.
package driverstatus

import (
	"context"
	"time"

	"github.com/hotfire/controller/internal/dashboard"
	"github.com/hotfire/controller/internal/state"
)

// Worker emits DriverValue at a fixed rate, independent of mode.
type Worker struct {
	state  *state.State
	outbox *dashboard.Outbox
	period time.Duration
}

// NewWorker constructs a Worker that emits at frequencyHz.
func NewWorker(st *state.State, outbox *dashboard.Outbox, frequencyHz float64) *Worker {
	if frequencyHz <= 0 {
		frequencyHz = 1
	}
	return &Worker{
		state:  st,
		outbox: outbox,
		period: time.Duration(float64(time.Second) / frequencyHz),
	}
}

// Run drives the emission loop until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.outbox.EnqueueSafety(dashboard.NewDriverValueMsg(w.state.DriverLevels()))
		}
	}
}
