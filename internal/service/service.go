package service

import (
	"context"
	"time"

	"sonoff_server/internal/gateway"
	"sonoff_server/internal/logger"
	"sonoff_server/internal/models"
	"sonoff_server/internal/repository"
)

type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Devices manages stored devices. Changes to state are pushed to the device
// after they are stored.
type Devices interface {
	List(ctx context.Context) ([]DeviceView, error)
	Get(ctx context.Context, id string) (*DeviceView, error)
	Create(ctx context.Context, in DeviceInput) (*DeviceView, error)
	Update(ctx context.Context, id string, in DeviceUpdate) (*DeviceView, error)
	Delete(ctx context.Context, id string) error
}

// Timers manages the timer list of one device.
type Timers interface {
	List(ctx context.Context, deviceID string) ([]models.Timer, error)
	Get(ctx context.Context, deviceID, timerID string) (*models.Timer, error)
	Create(ctx context.Context, deviceID string, in TimerInput) (*models.Timer, error)
	Update(ctx context.Context, deviceID, timerID string, in TimerInput) (*models.Timer, error)
	Delete(ctx context.Context, deviceID, timerID string) error
}

// Sync pushes state changes to a connected device.
type Sync interface {
	SyncState(ctx context.Context, deviceID string, patch models.StatePatch) (*gateway.Ack, error)
}

// EventLog exposes the device event history.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.DeviceEvent, error)
}

type Service struct {
	Devices
	Timers
	Sync
	EventLog
	Authorization
}

// Options carries the settings services need from config.
type Options struct {
	SigningKey         string
	TokenTTL           time.Duration
	TimerEnabledOnWire bool
	Log                *logger.Logger
}

// NewService wires the repository layer and the live session registry into
// concrete services.
func NewService(repos *repository.Repository, registry *gateway.Registry, opts Options) *Service {
	syncer := NewSyncService(registry, repos.EventRepo, opts.TimerEnabledOnWire, opts.Log)
	return &Service{
		Devices:       NewDeviceService(repos.DeviceRepo, registry, syncer),
		Timers:        NewTimerService(repos.DeviceRepo, syncer),
		Sync:          syncer,
		EventLog:      NewEventLogService(repos.EventRepo),
		Authorization: NewAuthService(repos.Auth, opts.SigningKey, opts.TokenTTL),
	}
}
