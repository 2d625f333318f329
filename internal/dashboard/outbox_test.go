package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueSensorValueDropsOldestWhenFull(t *testing.T) {
	o := NewOutbox()
	for i := 0; i < sensorValueCapacity+5; i++ {
		o.EnqueueSensorValue(NewSensorValueMsg(i, nil))
	}

	var last SensorValueMsg
	count := 0
	for {
		msg, ok := o.Next(nonClosedDone())
		if !ok {
			break
		}
		sv, ok := msg.(SensorValueMsg)
		require.True(t, ok)
		last = sv
		count++
		if count == sensorValueCapacity {
			break
		}
	}

	assert.Equal(t, sensorValueCapacity, count)
	assert.Equal(t, sensorValueCapacity+4, last.GroupID)
}

func TestSafetyLaneNeverDropsUnderCapacity(t *testing.T) {
	o := NewOutbox()
	for i := 0; i < 10; i++ {
		o.EnqueueSafety(NewDriverValueMsg([]bool{i%2 == 0}))
	}

	for i := 0; i < 10; i++ {
		msg, ok := o.Next(nonClosedDone())
		require.True(t, ok)
		dv, ok := msg.(DriverValueMsg)
		require.True(t, ok)
		assert.Equal(t, i%2 == 0, dv.Values[0])
	}
}

func TestNextPrefersSafetyLane(t *testing.T) {
	o := NewOutbox()
	o.EnqueueSensorValue(NewSensorValueMsg(1, nil))
	o.EnqueueSafety(NewDriverValueMsg([]bool{true}))

	msg, ok := o.Next(nonClosedDone())
	require.True(t, ok)
	_, isDriverValue := msg.(DriverValueMsg)
	assert.True(t, isDriverValue)
}

func nonClosedDone() <-chan struct{} {
	return make(chan struct{})
}
