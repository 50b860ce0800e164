package models

const (
	TimerOnce   = "once"
	TimerRepeat = "repeat"
)

// Timer is a scheduled switch action stored on a device.
type Timer struct {
	ID      string      `json:"id"`
	Enabled bool        `json:"enabled"`
	Type    string      `json:"type"` // once | repeat
	At      string      `json:"at"`   // RFC3339 for once, cron pattern for repeat
	Do      TimerAction `json:"do"`
}

type TimerAction struct {
	Switch string `json:"switch"`
}
