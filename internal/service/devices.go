package service

import (
	"context"
	"fmt"
	"strings"

	"sonoff_server/internal/gateway"
	"sonoff_server/internal/models"
	"sonoff_server/internal/repository"
)

// DeviceView is a stored device plus its connection status.
type DeviceView struct {
	models.Device
	Online bool `json:"online"`
}

// DeviceInput describes a device created through the API.
type DeviceInput struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Model            string `json:"model"`
	ManufacturerName string `json:"manufacturerName"`
}

// DeviceUpdate is a partial device change. A non-empty State is synced to
// the device once stored.
type DeviceUpdate struct {
	Name  *string            `json:"name,omitempty"`
	State *models.StatePatch `json:"state,omitempty"`
}

type DeviceService struct {
	repo     repository.DeviceRepo
	registry *gateway.Registry
	sync     Sync
}

func NewDeviceService(repo repository.DeviceRepo, registry *gateway.Registry, sync Sync) *DeviceService {
	return &DeviceService{repo: repo, registry: registry, sync: sync}
}

func (s *DeviceService) view(d models.Device) DeviceView {
	return DeviceView{Device: d, Online: s.registry.IsOnline(d.ID)}
}

func (s *DeviceService) List(ctx context.Context) ([]DeviceView, error) {
	devices, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]DeviceView, 0, len(devices))
	for _, d := range devices {
		out = append(out, s.view(d))
	}
	return out, nil
}

func (s *DeviceService) Get(ctx context.Context, id string) (*DeviceView, error) {
	d, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	v := s.view(*d)
	return &v, nil
}

func (s *DeviceService) Create(ctx context.Context, in DeviceInput) (*DeviceView, error) {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidDevice)
	}
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrDeviceExists, id)
	}

	d := models.NewDevice(id)
	if name := strings.TrimSpace(in.Name); name != "" {
		d.Name = name
	}
	d.Model = in.Model
	d.ManufacturerName = in.ManufacturerName
	if err := s.repo.Save(ctx, d); err != nil {
		return nil, err
	}
	v := s.view(*d)
	return &v, nil
}

// Update stores the change first. If the state changed and the device could
// not apply it, the stored device is returned together with a *SyncError.
func (s *DeviceService) Update(ctx context.Context, id string, in DeviceUpdate) (*DeviceView, error) {
	if in.State != nil {
		if err := validatePatch(*in.State); err != nil {
			return nil, err
		}
	}

	d, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidDevice)
		}
		d.Name = name
	}
	if in.State != nil {
		applyPatch(&d.State, *in.State)
	}

	if err := s.repo.Save(ctx, d); err != nil {
		return nil, err
	}

	if in.State != nil && !in.State.Empty() {
		patch := *in.State
		if patch.Timers != nil {
			patch.Timers = &d.State.Timers
		}
		if _, err := s.sync.SyncState(ctx, id, patch); err != nil {
			v := s.view(*d)
			return &v, &SyncError{DeviceID: id, Err: err}
		}
	}

	v := s.view(*d)
	return &v, nil
}

func (s *DeviceService) Delete(ctx context.Context, id string) error {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return nil
}

func (s *DeviceService) find(ctx context.Context, id string) (*models.Device, error) {
	d, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return d, nil
}

// validatePatch checks the enumerated state values and every timer.
func validatePatch(p models.StatePatch) error {
	if p.Switch != nil && *p.Switch != models.SwitchOn && *p.Switch != models.SwitchOff {
		return fmt.Errorf("%w: switch must be on or off, got %q", ErrInvalidState, *p.Switch)
	}
	if p.Startup != nil {
		switch *p.Startup {
		case models.StartupOn, models.StartupOff, models.StartupKeep:
		default:
			return fmt.Errorf("%w: startup must be on, off or keep, got %q", ErrInvalidState, *p.Startup)
		}
	}
	if p.Timers != nil {
		for i, t := range *p.Timers {
			if err := validateTimer(t); err != nil {
				return fmt.Errorf("timers[%d]: %w", i, err)
			}
		}
	}
	return nil
}

func applyPatch(st *models.DeviceState, p models.StatePatch) {
	if p.Switch != nil {
		st.Switch = *p.Switch
	}
	if p.Startup != nil {
		st.Startup = *p.Startup
	}
	if p.Timers != nil {
		st.Timers = append([]models.Timer{}, *p.Timers...)
	}
}
