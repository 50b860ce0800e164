package models

// Switch and startup values accepted by the firmware.
const (
	SwitchOn  = "on"
	SwitchOff = "off"

	StartupOn   = "on"
	StartupOff  = "off"
	StartupKeep = "keep"
)

// Device is the stored record of a smart plug.
type Device struct {
	ID               string      `json:"id"`
	Model            string      `json:"model"`
	ManufacturerName string      `json:"manufacturerName"`
	Version          string      `json:"version"` // firmware
	Name             string      `json:"name"`
	State            DeviceState `json:"state"`
}

type DeviceState struct {
	Switch  string  `json:"switch"`  // on | off
	Startup string  `json:"startup"` // on | off | keep
	RSSI    string  `json:"rssi,omitempty"`
	Timers  []Timer `json:"timers"`
}

// StatePatch is a partial state change requested through the API.
// Nil fields are left untouched.
type StatePatch struct {
	Switch  *string  `json:"switch,omitempty"`
	Startup *string  `json:"startup,omitempty"`
	Timers  *[]Timer `json:"timers,omitempty"`
}

// Empty reports whether the patch carries no change.
func (p StatePatch) Empty() bool {
	return p.Switch == nil && p.Startup == nil && p.Timers == nil
}

// NewDevice returns a device with firmware defaults applied.
func NewDevice(id string) *Device {
	return &Device{
		ID:   id,
		Name: id,
		State: DeviceState{
			Switch:  SwitchOff,
			Startup: StartupKeep,
			Timers:  []Timer{},
		},
	}
}

// Telemetry is what a device reports about itself. Empty fields mean
// "not reported" and leave the stored value alone.
type Telemetry struct {
	Version string
	Switch  string
	Startup string
	RSSI    string
}

// ApplyTelemetry copies the reported fields onto d.
func (d *Device) ApplyTelemetry(t Telemetry) {
	if t.Version != "" {
		d.Version = t.Version
	}
	if t.Switch != "" {
		d.State.Switch = t.Switch
	}
	if t.Startup != "" {
		d.State.Startup = t.Startup
	}
	if t.RSSI != "" {
		d.State.RSSI = t.RSSI
	}
}
