package driverstatus

import (
	"context"
	"testing"
	"time"

	"github.com/hotfire/controller/internal/dashboard"
	"github.com/hotfire/controller/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerEmitsDriverValueSnapshot(t *testing.T) {
	st := state.New(2, nil)
	st.SetDriverLevel(1, true)
	outbox := dashboard.NewOutbox()

	w := NewWorker(st, outbox, 200)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	done := make(chan struct{})
	msgCh := make(chan interface{}, 1)
	go func() {
		if msg, ok := outbox.Next(done); ok {
			msgCh <- msg
		}
	}()

	select {
	case msg := <-msgCh:
		dv, ok := msg.(dashboard.DriverValueMsg)
		require.True(t, ok)
		assert.Equal(t, []bool{false, true}, dv.Values)
	case <-time.After(time.Second):
		close(done)
		t.Fatal("expected a DriverValue within one status period")
	}
}
