package repository

import (
	"context"
	"database/sql"
	"time"

	"sonoff_server/internal/models"
	sqlitedb "sonoff_server/internal/repository/db"
)

type Authorization interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// DeviceRepo stores devices together with their timers.
// FindByID returns (nil, nil) when the device does not exist.
// Save rewrites the whole device including its timer list; the Update*
// and DeleteTimers methods touch only what they name.
type DeviceRepo interface {
	FindByID(ctx context.Context, id string) (*models.Device, error)
	List(ctx context.Context) ([]models.Device, error)
	Save(ctx context.Context, d *models.Device) error
	Delete(ctx context.Context, id string) (bool, error)
	UpdateHandshake(ctx context.Context, id, model, version string) error
	UpdateTelemetry(ctx context.Context, id string, t models.Telemetry) error
	DeleteTimers(ctx context.Context, deviceID string, ids []string) (int, error)
}

type EventRepo interface {
	Append(ctx context.Context, e models.DeviceEvent) error
	List(ctx context.Context, deviceID string, from, to time.Time, typ string) ([]models.DeviceEvent, error)
}

type Repository struct {
	DeviceRepo DeviceRepo
	EventRepo  EventRepo
	Auth       Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		DeviceRepo: NewDeviceSQLite(db),
		EventRepo:  NewEventSQLite(db),
		Auth:       NewUserRepository(db),
	}
}

// InitDB opens the SQLite database at path and applies the schema.
func InitDB(path string) (*sql.DB, error) {
	return sqlitedb.InitDB(path)
}
