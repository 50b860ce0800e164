package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"sonoff_server/internal/models"
	"sonoff_server/internal/repository"

	"github.com/robfig/cron/v3"
)

// repeatParser accepts the firmware's cron patterns, with or without seconds.
var repeatParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// TimerInput carries timer fields from the API. On update, nil fields keep
// their stored value.
type TimerInput struct {
	Enabled *bool               `json:"enabled,omitempty"`
	Type    *string             `json:"type,omitempty"`
	At      *string             `json:"at,omitempty"`
	Do      *models.TimerAction `json:"do,omitempty"`
}

type TimerService struct {
	repo repository.DeviceRepo
	sync Sync
}

func NewTimerService(repo repository.DeviceRepo, sync Sync) *TimerService {
	return &TimerService{repo: repo, sync: sync}
}

func (s *TimerService) List(ctx context.Context, deviceID string) ([]models.Timer, error) {
	d, err := s.device(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return d.State.Timers, nil
}

func (s *TimerService) Get(ctx context.Context, deviceID, timerID string) (*models.Timer, error) {
	d, err := s.device(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	i, err := timerIndex(d, timerID)
	if err != nil {
		return nil, err
	}
	t := d.State.Timers[i]
	return &t, nil
}

// Create appends a timer (enabled unless stated otherwise), stores the device
// and syncs the full timer list.
func (s *TimerService) Create(ctx context.Context, deviceID string, in TimerInput) (*models.Timer, error) {
	t := models.Timer{Enabled: true}
	mergeTimer(&t, in)
	if err := validateTimer(t); err != nil {
		return nil, err
	}

	d, err := s.device(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	d.State.Timers = append(d.State.Timers, t)
	if err := s.repo.Save(ctx, d); err != nil {
		return nil, err
	}

	created := d.State.Timers[len(d.State.Timers)-1]
	return &created, s.push(ctx, d)
}

func (s *TimerService) Update(ctx context.Context, deviceID, timerID string, in TimerInput) (*models.Timer, error) {
	d, err := s.device(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	i, err := timerIndex(d, timerID)
	if err != nil {
		return nil, err
	}

	t := d.State.Timers[i]
	mergeTimer(&t, in)
	if err := validateTimer(t); err != nil {
		return nil, err
	}
	d.State.Timers[i] = t
	if err := s.repo.Save(ctx, d); err != nil {
		return nil, err
	}
	return &t, s.push(ctx, d)
}

func (s *TimerService) Delete(ctx context.Context, deviceID, timerID string) error {
	d, err := s.device(ctx, deviceID)
	if err != nil {
		return err
	}
	i, err := timerIndex(d, timerID)
	if err != nil {
		return err
	}
	d.State.Timers = slices.Delete(d.State.Timers, i, i+1)
	if err := s.repo.Save(ctx, d); err != nil {
		return err
	}
	return s.push(ctx, d)
}

// push syncs the stored timer list. A failure is returned as *SyncError.
func (s *TimerService) push(ctx context.Context, d *models.Device) error {
	timers := d.State.Timers
	if _, err := s.sync.SyncState(ctx, d.ID, models.StatePatch{Timers: &timers}); err != nil {
		return &SyncError{DeviceID: d.ID, Err: err}
	}
	return nil
}

func (s *TimerService) device(ctx context.Context, id string) (*models.Device, error) {
	d, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return d, nil
}

func timerIndex(d *models.Device, timerID string) (int, error) {
	i := slices.IndexFunc(d.State.Timers, func(t models.Timer) bool { return t.ID == timerID })
	if i < 0 {
		return -1, fmt.Errorf("%w: %s", ErrTimerNotFound, timerID)
	}
	return i, nil
}

func mergeTimer(t *models.Timer, in TimerInput) {
	if in.Enabled != nil {
		t.Enabled = *in.Enabled
	}
	if in.Type != nil {
		t.Type = *in.Type
	}
	if in.At != nil {
		t.At = *in.At
	}
	if in.Do != nil {
		t.Do = *in.Do
	}
}

// validateTimer checks type, action and the format of at: RFC3339 for
// one-shot timers, a cron pattern for repeating ones.
func validateTimer(t models.Timer) error {
	if t.Do.Switch != models.SwitchOn && t.Do.Switch != models.SwitchOff {
		return fmt.Errorf("%w: do.switch must be on or off, got %q", ErrInvalidTimer, t.Do.Switch)
	}
	switch t.Type {
	case models.TimerOnce:
		if _, err := time.Parse(time.RFC3339, t.At); err != nil {
			return fmt.Errorf("%w: at must be an RFC3339 time for once timers: %v", ErrInvalidTimer, err)
		}
	case models.TimerRepeat:
		if _, err := repeatParser.Parse(t.At); err != nil {
			return fmt.Errorf("%w: at must be a cron pattern for repeat timers: %v", ErrInvalidTimer, err)
		}
	default:
		return fmt.Errorf("%w: type must be once or repeat, got %q", ErrInvalidTimer, t.Type)
	}
	return nil
}
