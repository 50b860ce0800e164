package gateway

import (
	"time"

	"sonoff_server/internal/models"
)

// WireTimer is the timer shape understood by the firmware.
type WireTimer struct {
	Enabled *int               `json:"enabled,omitempty"`
	At      string             `json:"at"`
	Type    string             `json:"type"`
	Do      models.TimerAction `json:"do"`
}

// IsActive reports whether the device still has to act on t: repeat timers
// always, one-shot timers only while their time is strictly in the future.
// A one-shot timer whose time cannot be parsed is treated as expired.
func IsActive(t models.Timer, now time.Time) bool {
	switch t.Type {
	case models.TimerRepeat:
		return true
	case models.TimerOnce:
		at, err := time.Parse(time.RFC3339, t.At)
		if err != nil {
			return false
		}
		return at.After(now)
	default:
		return false
	}
}

// ActiveTimers filters timers down to the ones IsActive accepts, keeping order.
func ActiveTimers(timers []models.Timer, now time.Time) []models.Timer {
	out := make([]models.Timer, 0, len(timers))
	for _, t := range timers {
		if IsActive(t, now) {
			out = append(out, t)
		}
	}
	return out
}

// WireTimers projects stored timers onto the wire shape, dropping store ids.
// enabled is only emitted when withEnabled is set.
func WireTimers(timers []models.Timer, withEnabled bool) []WireTimer {
	out := make([]WireTimer, 0, len(timers))
	for _, t := range timers {
		w := WireTimer{
			At:   t.At,
			Type: t.Type,
			Do:   models.TimerAction{Switch: t.Do.Switch},
		}
		if withEnabled {
			e := boolToWire(t.Enabled)
			w.Enabled = &e
		}
		out = append(out, w)
	}
	return out
}

// TimersParam returns the value to send for a timer collection: the literal 0
// when there are none, the projected list otherwise.
func TimersParam(timers []models.Timer, withEnabled bool) any {
	if len(timers) == 0 {
		return 0
	}
	return WireTimers(timers, withEnabled)
}
