package serialmux

import (
	"encoding/json"
	"fmt"

	"github.com/canflyzhou/Stewart-Platform/internal/db"
	"github.com/canflyzhou/Stewart-Platform/internal/monitoring"
)

// CurrentState holds the latest status values received from the firmware
// and is intentionally package-level so admin routes or tests can inspect it.
var CurrentState map[string]any

// HandleStatus merges a JSON status line from the firmware into
// CurrentState.
func HandleStatus(payload string) error {
	var statusValues map[string]any
	if err := json.Unmarshal([]byte(payload), &statusValues); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %v", err)
	}

	if CurrentState == nil {
		CurrentState = make(map[string]any)
	}
	for k, v := range statusValues {
		CurrentState[k] = v
	}

	monitoring.Logf("Status Line: %+v", payload)
	return nil
}

// HandleTelemetry classifies one telemetry line, logs it, and records it
// against the session. Faults are logged loudly; everything is persisted so
// a session replay shows what the firmware saw.
func HandleTelemetry(d *db.DB, sessionID, payload string) error {
	kind := ClassifyPayload(payload)

	switch kind {
	case EventTypeFault:
		monitoring.Logf("firmware fault: %s", payload)
	case EventTypeStatus:
		if err := HandleStatus(payload); err != nil {
			return fmt.Errorf("failed to handle status line: %v", err)
		}
	default:
		monitoring.Logf("firmware: %s", payload)
	}

	if err := d.RecordTelemetry(sessionID, kind, payload); err != nil {
		return fmt.Errorf("failed to record telemetry: %v", err)
	}
	return nil
}
