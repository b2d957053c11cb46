package serialmux

import "strings"

const (
	EventTypeAck    = "ack"
	EventTypeFault  = "fault"
	EventTypeStatus = "status"
	EventTypeLog    = "log"
)

// ClassifyPayload inspects a telemetry line from the firmware and returns a
// simple event type token. The firmware acknowledges applied frames with
// "OK ...", reports actuator faults with "ERR ...", and emits one JSON
// status object per second; everything else is free-form log output.
func ClassifyPayload(payload string) string {
	trimmed := strings.TrimSpace(payload)
	switch {
	case strings.HasPrefix(trimmed, "OK"):
		return EventTypeAck
	case strings.HasPrefix(trimmed, "ERR"):
		return EventTypeFault
	case strings.HasPrefix(trimmed, "{"):
		return EventTypeStatus
	default:
		return EventTypeLog
	}
}
