// Package dashboard implements the single-connection TCP wire protocol
// of spec.md §6: newline/whitespace-delimited JSON objects in both
// directions, no length framing. Grounded on the teacher's
// internal/websocket/hub.go (Client/Hub, register/unregister channels,
// buffered Send channel, separate read/write goroutines), ported from
// a WebSocket upgrade to a raw net.Listener/net.Conn pair since this
// protocol runs over plain TCP.
package dashboard

import (
	"encoding/json"
	"fmt"

	"github.com/hotfire/controller/internal/config"
)

// Time is the wire timestamp shape used by SensorValue readings
// (spec.md §6: "time:{secs_since_epoch, nanos_since_epoch}").
type Time struct {
	Secs  int64 `json:"secs_since_epoch"`
	Nanos int64 `json:"nanos_since_epoch"`
}

// Reading is one sample inside a SensorValue batch.
type Reading struct {
	SensorID int     `json:"sensor_id"`
	Reading  float64 `json:"reading"`
	Time     Time    `json:"time"`
}

// ConfigMsg is sent once, immediately after accept (spec.md §4.G.1).
type ConfigMsg struct {
	Type   string         `json:"type"`
	Config *config.Config `json:"config"`
}

// NewConfigMsg builds a ConfigMsg for cfg.
func NewConfigMsg(cfg *config.Config) ConfigMsg {
	return ConfigMsg{Type: "Config", Config: cfg}
}

// SensorValueMsg carries one group's accumulated readings since the
// previous transmission (spec.md §4.E.6, §6).
type SensorValueMsg struct {
	Type     string    `json:"type"`
	GroupID  int       `json:"group_id"`
	Readings []Reading `json:"readings"`
}

// NewSensorValueMsg builds a SensorValueMsg for groupID.
func NewSensorValueMsg(groupID int, readings []Reading) SensorValueMsg {
	return SensorValueMsg{Type: "SensorValue", GroupID: groupID, Readings: readings}
}

// DriverValueMsg is the full snapshot of every driver's level, in
// driver-ID order (spec.md §4.F, §6).
type DriverValueMsg struct {
	Type   string `json:"type"`
	Values []bool `json:"values"`
}

// NewDriverValueMsg builds a DriverValueMsg from a driver-level snapshot.
func NewDriverValueMsg(values []bool) DriverValueMsg {
	return DriverValueMsg{Type: "DriverValue", Values: values}
}

// Cause is the tagged union spec.md §7 names: Malformed, SensorFail,
// or Permission. SensorID is only populated for SensorFail.
type Cause struct {
	Type     string `json:"type"`
	SensorID *int   `json:"sensor_id,omitempty"`
}

// MalformedCause builds a Malformed cause.
func MalformedCause() Cause { return Cause{Type: "Malformed"} }

// SensorFailCause builds a SensorFail cause naming sensorID.
func SensorFailCause(sensorID int) Cause {
	id := sensorID
	return Cause{Type: "SensorFail", SensorID: &id}
}

// PermissionCause builds a Permission cause.
func PermissionCause() Cause { return Cause{Type: "Permission"} }

// ErrorMsg is the outbound fault report of spec.md §6/§7. OriginalMessage
// is only set for a Malformed cause raised by an unparsable inbound
// message (spec.md §6: "Unknown or malformed messages yield an
// Error{Malformed, original_message}").
type ErrorMsg struct {
	Type            string `json:"type"`
	Cause           Cause  `json:"cause"`
	Diagnostic      string `json:"diagnostic"`
	OriginalMessage string `json:"original_message,omitempty"`
}

// NewErrorMsg builds an ErrorMsg with the given cause and diagnostic.
func NewErrorMsg(cause Cause, diagnostic string) ErrorMsg {
	return ErrorMsg{Type: "Error", Cause: cause, Diagnostic: diagnostic}
}

// NewMalformedMsg builds the Error{Malformed, original_message} shape
// for an inbound message that failed to parse.
func NewMalformedMsg(diagnostic, original string) ErrorMsg {
	return ErrorMsg{Type: "Error", Cause: MalformedCause(), Diagnostic: diagnostic, OriginalMessage: original}
}

// Actuate is the inbound command to set a driver's level (spec.md §4.H).
type Actuate struct {
	Type     string `json:"type"`
	DriverID int    `json:"driver_id"`
	Value    bool   `json:"value"`
}

// Ignition is the inbound command to start the ignition engine.
type Ignition struct {
	Type string `json:"type"`
}

// EmergencyStop is the inbound command to abort and run the E-stop
// sequence.
type EmergencyStop struct {
	Type string `json:"type"`
}

type envelope struct {
	Type string `json:"type"`
}

// ParseInbound decodes one JSON object from the dashboard into one of
// *Actuate, *Ignition, or *EmergencyStop (spec.md §6: "Recognized:
// Actuate{driver_id, value}, Ignition, EmergencyStop"). Any decode
// failure or unrecognized type returns an error; the caller is
// responsible for turning that into an Error{Malformed, original_message}
// (spec.md §6).
func ParseInbound(data []byte) (interface{}, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}

	switch env.Type {
	case "Actuate":
		var m Actuate
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("dashboard: %w", err)
		}
		return &m, nil
	case "Ignition":
		return &Ignition{Type: "Ignition"}, nil
	case "EmergencyStop":
		return &EmergencyStop{Type: "EmergencyStop"}, nil
	default:
		return nil, fmt.Errorf("dashboard: unrecognized message type %q", env.Type)
	}
}
