package ignition

import (
	"context"
	"testing"
	"time"

	"github.com/hotfire/controller/internal/config"
	"github.com/hotfire/controller/internal/dashboard"
	"github.com/hotfire/controller/internal/hal"
	"github.com/hotfire/controller/internal/logsink"
	"github.com/hotfire/controller/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, cfg *config.Config) (*Engine, *hal.MockGPIO, *state.State) {
	t.Helper()
	dir := t.TempDir()
	sinks, err := logsink.NewManager(dir, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { sinks.Close() })

	mockHAL := hal.NewMockHAL()
	for _, d := range cfg.Drivers {
		require.NoError(t, mockHAL.GPIO().SetMode(d.Pin, hal.Output))
	}

	st := state.New(len(cfg.Drivers), nil)
	outbox := dashboard.NewOutbox()
	e := NewEngine(context.Background(), cfg, st, mockHAL.GPIO(), sinks, outbox)
	return e, mockHAL.MockGPIO(), st
}

// S3 — ignition happy path: mode trace Standby -> PreIgnite -> Ignite
// -> PostIgnite -> Standby, with GPIO writes (17,hi) then (17,lo).
func TestIgnitionHappyPath(t *testing.T) {
	cfg := &config.Config{
		Drivers:          []config.Driver{{Label: "igniter", Pin: 17}},
		PreIgniteTimeMS:  20,
		PostIgniteTimeMS: 20,
		IgnitionSequence: []config.Step{
			{Kind: config.StepActuate, DriverID: 0, Value: true},
			{Kind: config.StepSleep, Nanos: 50_000_000},
			{Kind: config.StepActuate, DriverID: 0, Value: false},
		},
		EstopSequence: []config.Step{{Kind: config.StepActuate, DriverID: 0, Value: false}},
	}
	e, gpio, st := newTestEngine(t, cfg)

	require.NoError(t, e.Ignite())

	require.Eventually(t, func() bool { return st.Mode() == state.Standby }, 2*time.Second, 5*time.Millisecond)

	require.Len(t, gpio.WriteLog, 2)
	assert.Equal(t, 17, gpio.WriteLog[0].Pin)
	assert.True(t, gpio.WriteLog[0].Value)
	assert.Equal(t, 17, gpio.WriteLog[1].Pin)
	assert.False(t, gpio.WriteLog[1].Value)
}

func TestIgniteRejectsConcurrentStart(t *testing.T) {
	cfg := &config.Config{
		Drivers:          []config.Driver{{Label: "igniter", Pin: 17}},
		IgnitionSequence: []config.Step{{Kind: config.StepSleep, Secs: 1}},
		EstopSequence:    []config.Step{{Kind: config.StepActuate, DriverID: 0, Value: false}},
	}
	e, _, _ := newTestEngine(t, cfg)

	require.NoError(t, e.Ignite())
	err := e.Ignite()
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

// S5 — operator E-stop mid-sleep: during a long Sleep, EmergencyStop
// must interrupt it within one scheduler tick, discard remaining
// ignition steps, run estop_sequence, and return to Standby.
func TestEmergencyStopDuringIgnitionSleep(t *testing.T) {
	cfg := &config.Config{
		Drivers:         []config.Driver{{Label: "igniter", Pin: 17}},
		PreIgniteTimeMS: 0,
		IgnitionSequence: []config.Step{
			{Kind: config.StepActuate, DriverID: 0, Value: true},
			{Kind: config.StepSleep, Secs: 10},
			{Kind: config.StepActuate, DriverID: 0, Value: false},
		},
		EstopSequence: []config.Step{{Kind: config.StepActuate, DriverID: 0, Value: false}},
	}
	e, gpio, st := newTestEngine(t, cfg)

	require.NoError(t, e.Ignite())
	require.Eventually(t, func() bool { return st.Mode() == state.Ignite }, time.Second, 5*time.Millisecond)

	e.EmergencyStop()

	require.Eventually(t, func() bool { return st.Mode() == state.Standby }, 2*time.Second, 5*time.Millisecond)

	require.Len(t, gpio.WriteLog, 2)
	assert.True(t, gpio.WriteLog[0].Value)  // ignition_sequence's first Actuate
	assert.False(t, gpio.WriteLog[1].Value) // estop_sequence's Actuate, not ignition's second
}

func TestEmergencyStopFromIdleRunsEstopSequence(t *testing.T) {
	cfg := &config.Config{
		Drivers:       []config.Driver{{Label: "igniter", Pin: 17}},
		EstopSequence: []config.Step{{Kind: config.StepActuate, DriverID: 0, Value: false}},
	}
	e, gpio, st := newTestEngine(t, cfg)

	e.EmergencyStop()

	require.Eventually(t, func() bool { return st.Mode() == state.Standby }, time.Second, 5*time.Millisecond)
	require.Len(t, gpio.WriteLog, 1)
	assert.False(t, gpio.WriteLog[0].Value)
}

// Invariant 5 / S4-adjacent: a range trip detected mid-Ignite must be
// honored at the next step boundary, moving to EStopping before the
// next scripted step executes.
func TestRangeTripDuringIgniteTriggersEstop(t *testing.T) {
	cfg := &config.Config{
		Drivers:         []config.Driver{{Label: "igniter", Pin: 17}},
		PreIgniteTimeMS: 0,
		IgnitionSequence: []config.Step{
			{Kind: config.StepSleep, Nanos: 5_000_000},
			{Kind: config.StepActuate, DriverID: 0, Value: true},
		},
		EstopSequence: []config.Step{{Kind: config.StepActuate, DriverID: 0, Value: false}},
	}
	e, gpio, st := newTestEngine(t, cfg)

	require.NoError(t, e.Ignite())
	require.Eventually(t, func() bool { return st.Mode() == state.Ignite }, time.Second, 5*time.Millisecond)

	st.SetTrip()

	require.Eventually(t, func() bool { return st.Mode() == state.Standby }, 2*time.Second, 5*time.Millisecond)

	// The trip must be caught during the Sleep step, so the
	// Actuate{true} step is never reached.
	for _, w := range gpio.WriteLog {
		assert.False(t, w.Value)
	}
}
