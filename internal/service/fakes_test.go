package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"sonoff_server/internal/gateway"
	"sonoff_server/internal/models"

	"github.com/google/uuid"
)

// memDeviceRepo is an in-memory repository.DeviceRepo.
type memDeviceRepo struct {
	mu      sync.Mutex
	devices map[string]models.Device
	saves   int
	// timerDeletes counts DeleteTimers calls.
	timerDeletes int
	findErr      error
	saveErr error
	listErr error
}

func newMemDeviceRepo(devs ...*models.Device) *memDeviceRepo {
	r := &memDeviceRepo{devices: make(map[string]models.Device)}
	for _, d := range devs {
		r.devices[d.ID] = cloneDevice(*d)
	}
	return r
}

func cloneDevice(d models.Device) models.Device {
	d.State.Timers = append([]models.Timer{}, d.State.Timers...)
	return d
}

func (r *memDeviceRepo) FindByID(ctx context.Context, id string) (*models.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	d, ok := r.devices[id]
	if !ok {
		return nil, nil
	}
	c := cloneDevice(d)
	return &c, nil
}

func (r *memDeviceRepo) List(ctx context.Context) ([]models.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]models.Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, cloneDevice(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memDeviceRepo) Save(ctx context.Context, d *models.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	if r.saveErr != nil {
		return r.saveErr
	}
	for i := range d.State.Timers {
		if d.State.Timers[i].ID == "" {
			d.State.Timers[i].ID = uuid.NewString()
		}
	}
	r.devices[d.ID] = cloneDevice(*d)
	return nil
}

func (r *memDeviceRepo) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.devices[id]
	delete(r.devices, id)
	return ok, nil
}

func (r *memDeviceRepo) UpdateHandshake(ctx context.Context, id, model, version string) error {
	return r.update(id, func(d *models.Device) {
		d.ApplyTelemetry(models.Telemetry{Version: version})
		if model != "" {
			d.Model = model
		}
	})
}

func (r *memDeviceRepo) UpdateTelemetry(ctx context.Context, id string, t models.Telemetry) error {
	return r.update(id, func(d *models.Device) { d.ApplyTelemetry(t) })
}

func (r *memDeviceRepo) update(id string, fn func(d *models.Device)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if !ok {
		return fmt.Errorf("device %q: not found", id)
	}
	fn(&d)
	r.devices[id] = d
	return nil
}

func (r *memDeviceRepo) DeleteTimers(ctx context.Context, deviceID string, ids []string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timerDeletes++
	if r.saveErr != nil {
		return 0, r.saveErr
	}
	d, ok := r.devices[deviceID]
	if !ok {
		return 0, nil
	}
	kept := make([]models.Timer, 0, len(d.State.Timers))
	for _, t := range d.State.Timers {
		if !slices.Contains(ids, t.ID) {
			kept = append(kept, t)
		}
	}
	n := len(d.State.Timers) - len(kept)
	d.State.Timers = kept
	r.devices[deviceID] = d
	return n, nil
}

func (r *memDeviceRepo) has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.devices[id]
	return ok
}

func (r *memDeviceRepo) stored(id string) models.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneDevice(r.devices[id])
}

// fakeSync records every patch it is asked to push.
type fakeSync struct {
	mu      sync.Mutex
	patches []models.StatePatch
	err     error
}

func (f *fakeSync) SyncState(ctx context.Context, deviceID string, patch models.StatePatch) (*gateway.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches = append(f.patches, patch)
	if f.err != nil {
		return nil, f.err
	}
	return &gateway.Ack{Sequence: "1"}, nil
}

func (f *fakeSync) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.patches)
}

// deviceTransport plays the device side of a session: it records commands
// and, unless silent, acks them through the router with ackError.
type deviceTransport struct {
	mu       sync.Mutex
	open     bool
	router   *gateway.Router
	commands []map[string]any
	ackError int
	silent   bool
}

func (d *deviceTransport) WriteJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}

	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return errors.New("closed")
	}
	isCommand := m["from"] == "app"
	if isCommand {
		d.commands = append(d.commands, m)
	}
	router, silent, ackErr := d.router, d.silent, d.ackError
	d.mu.Unlock()

	if isCommand && !silent && router != nil {
		ack := fmt.Sprintf(`{"error":%d,"deviceid":%q,"apikey":%q,"sequence":%q}`,
			ackErr, m["deviceid"], m["apikey"], m["sequence"])
		go router.HandleMessage([]byte(ack))
	}
	return nil
}

func (d *deviceTransport) Open() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

func (d *deviceTransport) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	return nil
}

func (d *deviceTransport) lastCommand() map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.commands) == 0 {
		return nil
	}
	return d.commands[len(d.commands)-1]
}

func (d *deviceTransport) commandCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.commands)
}

// connectDevice registers deviceID over a fresh session and returns the
// device side of it.
func connectDevice(gw *gateway.Gateway, deviceID string) *deviceTransport {
	tr := &deviceTransport{open: true}
	router := gw.NewRouter(tr)
	tr.mu.Lock()
	tr.router = router
	tr.mu.Unlock()
	router.HandleMessage([]byte(fmt.Sprintf(
		`{"action":"register","deviceid":%q,"apikey":"x","model":"ITA-GZ1-GL","romVersion":"1.5.5"}`, deviceID)))
	return tr
}
