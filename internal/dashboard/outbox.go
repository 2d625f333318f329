package dashboard

import "github.com/hotfire/controller/internal/applog"

// sensorValueCapacity bounds the drop-oldest SensorValue lane; at this
// depth a connected dashboard that cannot keep up loses only its
// oldest unsent batches rather than stalling sampling (spec.md §4.G,
// §9).
const sensorValueCapacity = 64

// safetyCapacity is generous headroom for the never-drop lane:
// Error/DriverValue/mode-transition traffic is low-volume and this
// repo chooses to block a producer briefly over dropping one of these
// messages (spec.md §4.G: "never-drop for Error, DriverValue, and
// mode-transition messages").
const safetyCapacity = 256

// Outbox is the controller's outbound side of the dashboard protocol:
// a bounded, drop-oldest lane for SensorValue batches and a large,
// effectively never-drop lane for everything else. Grounded on the
// teacher's internal/websocket/hub.go buffered Send channel per
// client, split here into two lanes because spec.md §4.G and §9
// require different overflow policies per message class.
type Outbox struct {
	sensor chan interface{}
	safety chan interface{}
}

// NewOutbox constructs an empty Outbox.
func NewOutbox() *Outbox {
	return &Outbox{
		sensor: make(chan interface{}, sensorValueCapacity),
		safety: make(chan interface{}, safetyCapacity),
	}
}

// EnqueueSensorValue enqueues msg on the drop-oldest lane, discarding
// the oldest pending batch if the lane is full.
func (o *Outbox) EnqueueSensorValue(msg SensorValueMsg) {
	select {
	case o.sensor <- msg:
		return
	default:
	}
	select {
	case <-o.sensor:
	default:
	}
	select {
	case o.sensor <- msg:
	default:
	}
}

// EnqueueSafety enqueues msg on the never-drop lane, blocking if it is
// momentarily full rather than discarding an Error, DriverValue, or
// mode-transition message.
func (o *Outbox) EnqueueSafety(msg interface{}) {
	select {
	case o.safety <- msg:
	default:
		applog.Warn("dashboard: safety outbox lane full, blocking producer")
		o.safety <- msg
	}
}

// Next blocks until a message is available on either lane or done is
// closed, preferring the safety lane when both are ready.
func (o *Outbox) Next(done <-chan struct{}) (interface{}, bool) {
	select {
	case m := <-o.safety:
		return m, true
	default:
	}
	select {
	case m := <-o.safety:
		return m, true
	case m := <-o.sensor:
		return m, true
	case <-done:
		return nil, false
	}
}
