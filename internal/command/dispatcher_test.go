package command

import (
	"context"
	"testing"

	"github.com/hotfire/controller/internal/config"
	"github.com/hotfire/controller/internal/dashboard"
	"github.com/hotfire/controller/internal/hal"
	"github.com/hotfire/controller/internal/ignition"
	"github.com/hotfire/controller/internal/logsink"
	"github.com/hotfire/controller/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T, cfg *config.Config) (*Dispatcher, *hal.MockGPIO, *state.State, *dashboard.Outbox) {
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
	engine := ignition.NewEngine(context.Background(), cfg, st, mockHAL.GPIO(), sinks, outbox)
	d := NewDispatcher(cfg, st, mockHAL.GPIO(), sinks, outbox, engine)

	return d, mockHAL.MockGPIO(), st, outbox
}

// S1 — simple actuation: an unprotected driver accepts Actuate from
// Standby and the write reaches GPIO and shared state.
func TestActuateAcceptedFromStandbyOnUnprotectedDriver(t *testing.T) {
	cfg := &config.Config{Drivers: []config.Driver{{Label: "igniter", Pin: 17, Protected: false}}}
	d, gpio, st, _ := newTestDispatcher(t, cfg)

	d.Handle(&dashboard.Actuate{DriverID: 0, Value: true})

	assert.True(t, st.DriverLevel(0))
	assert.True(t, gpio.Level(17))
}

// S2 — protected driver refused: no GPIO write occurs and an
// Error{Malformed} is enqueued.
func TestActuateRejectedOnProtectedDriver(t *testing.T) {
	cfg := &config.Config{Drivers: []config.Driver{
		{Label: "valve", Pin: 17, Protected: false},
		{Label: "igniter", Pin: 23, Protected: true},
	}}
	d, gpio, st, outbox := newTestDispatcher(t, cfg)

	d.Handle(&dashboard.Actuate{DriverID: 1, Value: true})

	assert.False(t, st.DriverLevel(1))
	assert.False(t, gpio.Level(23))

	msg, ok := outbox.Next(neverDone(t))
	require.True(t, ok)
	errMsg, ok := msg.(dashboard.ErrorMsg)
	require.True(t, ok)
	assert.Equal(t, "Malformed", errMsg.Cause.Type)
}

func TestActuateRejectedOutsideStandby(t *testing.T) {
	cfg := &config.Config{Drivers: []config.Driver{{Label: "igniter", Pin: 17}}}
	d, gpio, st, outbox := newTestDispatcher(t, cfg)
	st.SetMode(state.Ignite)

	d.Handle(&dashboard.Actuate{DriverID: 0, Value: true})

	assert.False(t, st.DriverLevel(0))
	assert.False(t, gpio.Level(17))

	msg, ok := outbox.Next(neverDone(t))
	require.True(t, ok)
	errMsg := msg.(dashboard.ErrorMsg)
	assert.Equal(t, "Malformed", errMsg.Cause.Type)
}

func TestIgnitionRejectedWhenAlreadyRunning(t *testing.T) {
	cfg := &config.Config{
		Drivers:          []config.Driver{{Label: "igniter", Pin: 17}},
		IgnitionSequence: []config.Step{{Kind: config.StepSleep, Secs: 1}},
		EstopSequence:    []config.Step{{Kind: config.StepActuate, DriverID: 0, Value: false}},
	}
	d, _, _, outbox := newTestDispatcher(t, cfg)

	d.Handle(&dashboard.Ignition{})
	d.Handle(&dashboard.Ignition{})

	msg, ok := outbox.Next(neverDone(t))
	require.True(t, ok)
	errMsg := msg.(dashboard.ErrorMsg)
	assert.Equal(t, "Malformed", errMsg.Cause.Type)
}

func neverDone(t *testing.T) <-chan struct{} {
	t.Helper()
	ch := make(chan struct{})
	return ch
}
