package gateway

import (
	"bytes"
	"encoding/json"
	"time"
)

// Protocol constants.
const (
	actionRegister = "register"
	actionQuery    = "query"
	actionUpdate   = "update"
	actionDate     = "date"

	queryTimers = "timers"

	appAgent = "app"

	// Date format the firmware expects: ISO-8601 UTC with milliseconds.
	dateLayout = "2006-01-02T15:04:05.000Z"
)

// command is a server initiated message. The device acknowledges it by
// echoing sequence.
type command struct {
	APIKey    string `json:"apikey"`
	Action    string `json:"action"`
	DeviceID  string `json:"deviceid"`
	Params    any    `json:"params"`
	UserAgent string `json:"userAgent"`
	From      string `json:"from"`
	Sequence  string `json:"sequence"`
	TS        int    `json:"ts"`
}

// frame covers both inbound shapes: an action (action set) or an ack
// (no action, sequence set).
type frame struct {
	Action     string          `json:"action"`
	DeviceID   string          `json:"deviceid"`
	APIKey     string          `json:"apikey"`
	Sequence   string          `json:"sequence"`
	Model      string          `json:"model"`
	RomVersion string          `json:"romVersion"`
	Params     json.RawMessage `json:"params"`
	Error      int             `json:"error"`
}

// Ack is a device acknowledgement of a command.
type Ack struct {
	Sequence string
	Error    int // non-zero when the device refused the command
	Raw      json.RawMessage
}

// response is the reply to a device action. Build it with newResponse and
// the with* helpers rather than filling fields by hand.
type response struct {
	Error    int    `json:"error"`
	APIKey   string `json:"apikey"`
	DeviceID string `json:"deviceid"`
	Params   any    `json:"params,omitempty"`
	Date     string `json:"date,omitempty"`
}

func newResponse(apiKey, deviceID string) response {
	return response{APIKey: apiKey, DeviceID: deviceID}
}

func (r response) failed() response {
	r.Error = 1
	return r
}

func (r response) withParams(p any) response {
	r.Params = p
	return r
}

func (r response) withDate(t time.Time) response {
	r.Date = t.UTC().Format(dateLayout)
	return r
}

// updateParams is the telemetry snapshot pushed by the device.
type updateParams struct {
	FWVersion string     `json:"fwVersion"`
	Switch    string     `json:"switch"`
	Startup   string     `json:"startup"`
	RSSI      flexString `json:"rssi"`
}

// flexString accepts a JSON string or number. Firmware revisions disagree on
// how rssi is encoded.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

func (f flexString) String() string { return string(f) }

// boolToWire encodes a bool the way the firmware expects.
func boolToWire(b bool) int {
	if b {
		return 1
	}
	return 0
}
