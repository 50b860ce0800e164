package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"sonoff_server/internal/models"
	"sonoff_server/internal/service"
)

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return m
}

func sampleView(online bool) *service.DeviceView {
	d := models.NewDevice("1000abcdef")
	d.State.Switch = models.SwitchOn
	return &service.DeviceView{Device: *d, Online: online}
}

func TestDevicesHandler_GetIncludesOnline(t *testing.T) {
	devices := &mockDevices{device: sampleView(true)}
	r := newTestRouter(&service.Service{Devices: devices})

	w := doJSON(t, r, http.MethodGet, "/devices/1000abcdef", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	m := decodeBody(t, w)
	if m["online"] != true || m["id"] != "1000abcdef" {
		t.Fatalf("unexpected body: %v", m)
	}
	state := m["state"].(map[string]any)
	if state["switch"] != "on" {
		t.Fatalf("unexpected state: %v", state)
	}
	if devices.lastID != "1000abcdef" {
		t.Fatalf("lastID=%q", devices.lastID)
	}
}

func TestDevicesHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "not found", err: fmt.Errorf("%w: x", service.ErrDeviceNotFound), want: http.StatusNotFound},
		{name: "storage", err: errors.New("disk full"), want: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(&service.Service{Devices: &mockDevices{err: tc.err}})
			if w := doJSON(t, r, http.MethodGet, "/devices/x", ""); w.Code != tc.want {
				t.Fatalf("status=%d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestDevicesHandler_Create(t *testing.T) {
	devices := &mockDevices{device: sampleView(false)}
	r := newTestRouter(&service.Service{Devices: devices})

	w := doJSON(t, r, http.MethodPost, "/devices", `{"id":"1000abcdef","name":"Lamp"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if devices.lastInput.ID != "1000abcdef" || devices.lastInput.Name != "Lamp" {
		t.Fatalf("unexpected input: %+v", devices.lastInput)
	}

	devices.err = fmt.Errorf("%w: 1000abcdef", service.ErrDeviceExists)
	if w := doJSON(t, r, http.MethodPost, "/devices", `{"id":"1000abcdef"}`); w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}

	if w := doJSON(t, r, http.MethodPost, "/devices", `{"id":`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", w.Code)
	}
}

func TestDevicesHandler_UpdatePassesPatch(t *testing.T) {
	devices := &mockDevices{device: sampleView(true)}
	r := newTestRouter(&service.Service{Devices: devices})

	w := doJSON(t, r, http.MethodPatch, "/devices/1000abcdef", `{"state":{"switch":"on","timers":[]}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	st := devices.lastUpdate.State
	if st == nil || st.Switch == nil || *st.Switch != "on" || st.Timers == nil || len(*st.Timers) != 0 || st.Startup != nil {
		t.Fatalf("unexpected patch: %+v", st)
	}
	if devices.lastUpdate.Name != nil {
		t.Fatalf("name should be absent")
	}
}

func TestDevicesHandler_UpdateSyncFailures(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "offline", err: service.ErrDeviceOffline, want: http.StatusServiceUnavailable},
		{name: "rejected", err: fmt.Errorf("%w: error 400", service.ErrDeviceRejected), want: http.StatusBadGateway},
		{name: "timeout", err: errors.New("sync timeout"), want: http.StatusGatewayTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			devices := &mockDevices{
				device: sampleView(false),
				err:    &service.SyncError{DeviceID: "1000abcdef", Err: tc.err},
			}
			r := newTestRouter(&service.Service{Devices: devices})

			w := doJSON(t, r, http.MethodPatch, "/devices/1000abcdef", `{"state":{"switch":"on"}}`)
			if w.Code != tc.want {
				t.Fatalf("status=%d, want %d", w.Code, tc.want)
			}
			m := decodeBody(t, w)
			if m["stored"] != true || m["error"] == "" {
				t.Fatalf("expected stored=true with error, got %v", m)
			}
			dev, ok := m["device"].(map[string]any)
			if !ok || dev["id"] != "1000abcdef" {
				t.Fatalf("expected stored device in body, got %v", m["device"])
			}
		})
	}
}

func TestDevicesHandler_UpdateInvalidState(t *testing.T) {
	devices := &mockDevices{err: fmt.Errorf("%w: switch", service.ErrInvalidState)}
	r := newTestRouter(&service.Service{Devices: devices})

	if w := doJSON(t, r, http.MethodPatch, "/devices/x", `{"state":{"switch":"up"}}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestDevicesHandler_Delete(t *testing.T) {
	devices := &mockDevices{}
	r := newTestRouter(&service.Service{Devices: devices})

	if w := doJSON(t, r, http.MethodDelete, "/devices/a", ""); w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	devices.deleteErr = service.ErrDeviceNotFound
	if w := doJSON(t, r, http.MethodDelete, "/devices/a", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestDevicesHandler_List(t *testing.T) {
	devices := &mockDevices{list: []service.DeviceView{*sampleView(true), *sampleView(false)}}
	r := newTestRouter(&service.Service{Devices: devices})

	w := doJSON(t, r, http.MethodGet, "/devices", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var out []map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if len(out) != 2 || out[0]["online"] != true || out[1]["online"] != false {
		t.Fatalf("unexpected list: %v", out)
	}
}
