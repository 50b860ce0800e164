package models

import "time"

// Device event types.
const (
	EventRegister   = "REGISTER"
	EventDisconnect = "DISCONNECT"
	EventUpdate     = "UPDATE"
	EventSync       = "SYNC"
	EventSyncFailed = "SYNC_FAILED"
)

// DeviceEvent is a single log entry about a device.
type DeviceEvent struct {
	EventID     string    `json:"event_id"`
	DeviceID    string    `json:"device_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}
