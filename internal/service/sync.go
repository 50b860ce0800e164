package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sonoff_server/internal/gateway"
	"sonoff_server/internal/logger"
	"sonoff_server/internal/models"
	"sonoff_server/internal/repository"
)

// SyncService pushes state patches to live devices through their sessions.
type SyncService struct {
	registry    *gateway.Registry
	events      repository.EventRepo
	withEnabled bool
	log         *logger.Logger
	now         func() time.Time
}

// NewSyncService returns a facade over registry. When withEnabled is false
// timers go out as {at, type, do} only.
func NewSyncService(registry *gateway.Registry, events repository.EventRepo, withEnabled bool, log *logger.Logger) *SyncService {
	if log == nil {
		log = logger.Nop()
	}
	return &SyncService{
		registry:    registry,
		events:      events,
		withEnabled: withEnabled,
		log:         log,
		now:         time.Now,
	}
}

// SyncState sends patch to the device and waits for its ack. It never sends
// when the device has no live session.
func (s *SyncService) SyncState(ctx context.Context, deviceID string, patch models.StatePatch) (*gateway.Ack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sess, ok := s.registry.Get(deviceID)
	if !ok || !sess.IsAlive() {
		s.record(ctx, deviceID, models.EventSyncFailed, ErrDeviceOffline.Error(), nil)
		return nil, ErrDeviceOffline
	}

	params := s.params(patch)
	ack, err := sess.SendCommand(params)
	if err != nil {
		if errors.Is(err, gateway.ErrConnectionNotOpen) {
			err = ErrDeviceOffline
		}
		s.record(ctx, deviceID, models.EventSyncFailed, err.Error(), params)
		return nil, err
	}
	if ack.Error != 0 {
		err := fmt.Errorf("%w: error %d", ErrDeviceRejected, ack.Error)
		s.record(ctx, deviceID, models.EventSyncFailed, err.Error(), params)
		return ack, err
	}

	s.record(ctx, deviceID, models.EventSync, "state synced", params)
	return ack, nil
}

// params builds the update payload. Only fields present in patch are sent.
func (s *SyncService) params(patch models.StatePatch) map[string]any {
	out := make(map[string]any, 3)
	if patch.Switch != nil {
		out["switch"] = *patch.Switch
	}
	if patch.Startup != nil {
		out["startup"] = *patch.Startup
	}
	if patch.Timers != nil {
		out["timers"] = gateway.TimersParam(*patch.Timers, s.withEnabled)
	}
	return out
}

func (s *SyncService) record(ctx context.Context, deviceID, typ, msg string, params any) {
	if s.events == nil {
		return
	}
	err := s.events.Append(ctx, models.DeviceEvent{
		DeviceID:    deviceID,
		OccurredAt:  s.now().UTC(),
		Type:        typ,
		Description: msg,
		Metadata:    params,
	})
	if err != nil {
		s.log.Warnw("event_append_failed", "deviceid", deviceID, "type", typ, "err", err)
	}
}
