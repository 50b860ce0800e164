package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"sonoff_server/internal/logger"
	"sonoff_server/internal/models"
)

const storeTimeout = 5 * time.Second

var errMissingDeviceID = errors.New("register frame without deviceid")

// DeviceStore is the persistence the protocol needs.
// FindByID returns (nil, nil) when the device does not exist. Save is only
// used for freshly provisioned devices; known devices get targeted updates
// so timers written through the API in the meantime survive.
type DeviceStore interface {
	FindByID(ctx context.Context, id string) (*models.Device, error)
	Save(ctx context.Context, d *models.Device) error
	UpdateHandshake(ctx context.Context, id, model, version string) error
	UpdateTelemetry(ctx context.Context, id string, t models.Telemetry) error
}

// EventLog records device lifecycle events. Failures are logged, never
// surfaced to the device.
type EventLog interface {
	Append(ctx context.Context, e models.DeviceEvent) error
}

// Router handles inbound frames for one session.
type Router struct {
	session  *Session
	registry *Registry
	store    DeviceStore
	policy   RegistrationPolicy
	events   EventLog
	log      *logger.Logger
	now      func() time.Time
}

// HandleMessage decodes one frame and dispatches it. Nothing a device sends
// can tear the session down from here.
func (r *Router) HandleMessage(data []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Errorw("ws_handler_panic", "panic", rec, "frame", string(data))
		}
	}()

	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		r.log.Warnw("ws_bad_frame", "err", err, "frame", string(data))
		return
	}
	switch {
	case f.Action != "":
		r.handleAction(f)
	case f.Sequence != "":
		r.handleAck(f, data)
	default:
		r.log.Warnw("ws_unexpected_frame", "frame", string(data))
	}
}

func (r *Router) handleAction(f frame) {
	r.log.Infow("ws_action", "action", f.Action, "deviceid", f.DeviceID)
	switch f.Action {
	case actionRegister:
		r.handleRegister(f)
	case actionQuery:
		r.handleQuery(f)
	case actionUpdate:
		r.handleUpdate(f)
	case actionDate:
		r.session.write(r.base().withDate(r.now()))
	default:
		r.log.Warnw("ws_unknown_action", "action", f.Action, "deviceid", f.DeviceID)
	}
}

func (r *Router) handleAck(f frame, raw []byte) {
	if r.session.DeviceID() == "" {
		r.log.Warnw("ws_ack_before_register", "sequence", f.Sequence)
		return
	}
	r.session.OnAck(Ack{Sequence: f.Sequence, Error: f.Error, Raw: json.RawMessage(raw)})
}

func (r *Router) handleRegister(f frame) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	dev, err := r.register(ctx, f)
	if err != nil {
		r.log.Warnw("device_register_failed", "deviceid", f.DeviceID, "err", err)
		r.session.write(newResponse(r.session.APIKey(), f.DeviceID).failed())
		return
	}
	r.log.Infow("device_registered", "deviceid", dev.ID, "model", dev.Model, "version", dev.Version)
	r.session.write(r.base())
}

// register resolves the device behind a register frame, persists the
// handshake details and binds the session to it.
func (r *Router) register(ctx context.Context, f frame) (*models.Device, error) {
	if f.DeviceID == "" {
		return nil, errMissingDeviceID
	}
	dev, err := r.store.FindByID(ctx, f.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("find device: %w", err)
	}
	if dev == nil {
		if dev, err = r.policy.Provision(f.DeviceID); err != nil {
			return nil, err
		}
		applyHandshake(dev, f)
		if err := r.store.Save(ctx, dev); err != nil {
			return nil, fmt.Errorf("save device: %w", err)
		}
		r.log.Infow("device_provisioned", "deviceid", f.DeviceID)
	} else {
		applyHandshake(dev, f)
		if err := r.store.UpdateHandshake(ctx, dev.ID, f.Model, f.RomVersion); err != nil {
			return nil, fmt.Errorf("update device: %w", err)
		}
	}

	if old := r.session.DeviceID(); old != "" && old != dev.ID {
		r.registry.RemoveSession(old, r.session)
	}
	r.session.bind(dev.ID)
	if prev := r.registry.Set(dev.ID, r.session); prev != nil && prev != r.session {
		r.log.Infow("device_session_replaced", "deviceid", dev.ID, "prev_apikey", prev.APIKey())
	}
	r.record(ctx, models.DeviceEvent{
		DeviceID:    dev.ID,
		Type:        models.EventRegister,
		Description: "Device registered",
		Metadata:    map[string]any{"model": dev.Model, "version": dev.Version},
	})
	return dev, nil
}

func applyHandshake(dev *models.Device, f frame) {
	if f.Model != "" {
		dev.Model = f.Model
	}
	if f.RomVersion != "" {
		dev.Version = f.RomVersion
	}
}

func (r *Router) handleQuery(f frame) {
	dev, ok := r.boundDevice(f)
	if !ok {
		return
	}
	var keys []string
	if err := json.Unmarshal(f.Params, &keys); err != nil || !slices.Contains(keys, queryTimers) {
		r.log.Warnw("ws_unknown_query", "deviceid", dev.ID, "params", string(f.Params))
		r.session.write(r.base().failed())
		return
	}
	active := ActiveTimers(dev.State.Timers, r.now())
	if len(active) == 0 {
		r.session.write(r.base().withParams(0))
		return
	}
	r.session.write(r.base().withParams([]map[string]any{
		{queryTimers: WireTimers(active, true)},
	}))
}

func (r *Router) handleUpdate(f frame) {
	dev, ok := r.boundDevice(f)
	if !ok {
		return
	}
	var p updateParams
	if len(f.Params) > 0 {
		if err := json.Unmarshal(f.Params, &p); err != nil {
			r.log.Warnw("ws_bad_update", "deviceid", dev.ID, "err", err)
			r.session.write(r.base().failed())
			return
		}
	}
	t := models.Telemetry{
		Version: p.FWVersion,
		Switch:  p.Switch,
		Startup: p.Startup,
		RSSI:    p.RSSI.String(),
	}
	dev.ApplyTelemetry(t)

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := r.store.UpdateTelemetry(ctx, dev.ID, t); err != nil {
		r.log.Errorw("device_update_save_failed", "deviceid", dev.ID, "err", err)
		r.session.write(r.base().failed())
		return
	}
	r.record(ctx, models.DeviceEvent{
		DeviceID:    dev.ID,
		Type:        models.EventUpdate,
		Description: "Device reported state",
		Metadata: map[string]any{
			"switch":  dev.State.Switch,
			"startup": dev.State.Startup,
			"rssi":    dev.State.RSSI,
		},
	})
	r.session.write(r.base())
}

// boundDevice loads the device this session registered as. It replies with
// an error and returns false when the session is unbound or the load fails.
func (r *Router) boundDevice(f frame) (*models.Device, bool) {
	id := r.session.DeviceID()
	if id == "" {
		r.log.Warnw("ws_action_before_register", "action", f.Action, "deviceid", f.DeviceID)
		r.session.write(newResponse(r.session.APIKey(), f.DeviceID).failed())
		return nil, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	dev, err := r.store.FindByID(ctx, id)
	if err != nil || dev == nil {
		r.log.Errorw("device_load_failed", "deviceid", id, "err", err)
		r.session.write(r.base().failed())
		return nil, false
	}
	return dev, true
}

// OnClose tears the session down and unbinds it from the registry.
func (r *Router) OnClose() {
	r.session.Close()
	id := r.session.DeviceID()
	if id == "" {
		return
	}
	r.registry.RemoveSession(id, r.session)
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	r.record(ctx, models.DeviceEvent{
		DeviceID:    id,
		Type:        models.EventDisconnect,
		Description: "Connection closed",
	})
	r.log.Infow("device_disconnected", "deviceid", id)
}

func (r *Router) base() response {
	return newResponse(r.session.APIKey(), r.session.DeviceID())
}

func (r *Router) record(ctx context.Context, e models.DeviceEvent) {
	if r.events == nil {
		return
	}
	if err := r.events.Append(ctx, e); err != nil {
		r.log.Warnw("device_event_append_failed", "deviceid", e.DeviceID, "type", e.Type, "err", err)
	}
}
