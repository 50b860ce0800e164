package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"sonoff_server/internal/models"

	"github.com/google/uuid"
)

const (
	selectDeviceSQL  = `SELECT id, model, manufacturer_name, version, name, switch, startup, rssi FROM devices WHERE id = ?`
	selectDevicesSQL = `SELECT id, model, manufacturer_name, version, name, switch, startup, rssi FROM devices ORDER BY id ASC`

	selectTimersSQL    = `SELECT id, enabled, type, at, do_switch FROM device_timers WHERE device_id = ? ORDER BY position ASC`
	selectAllTimersSQL = `SELECT device_id, id, enabled, type, at, do_switch FROM device_timers ORDER BY device_id ASC, position ASC`

	upsertDeviceSQL = `INSERT INTO devices (id, model, manufacturer_name, version, name, switch, startup, rssi)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    model = excluded.model,
    manufacturer_name = excluded.manufacturer_name,
    version = excluded.version,
    name = excluded.name,
    switch = excluded.switch,
    startup = excluded.startup,
    rssi = excluded.rssi`

	deleteTimersSQL = `DELETE FROM device_timers WHERE device_id = ?`
	insertTimerSQL  = `INSERT INTO device_timers (id, device_id, position, enabled, type, at, do_switch) VALUES (?, ?, ?, ?, ?, ?, ?)`
	deleteDeviceSQL = `DELETE FROM devices WHERE id = ?`

	// Empty arguments keep the stored column.
	updateHandshakeSQL = `UPDATE devices SET
    model = COALESCE(NULLIF(?, ''), model),
    version = COALESCE(NULLIF(?, ''), version)
WHERE id = ?`
	updateTelemetrySQL = `UPDATE devices SET
    version = COALESCE(NULLIF(?, ''), version),
    switch = COALESCE(NULLIF(?, ''), switch),
    startup = COALESCE(NULLIF(?, ''), startup),
    rssi = COALESCE(NULLIF(?, ''), rssi)
WHERE id = ?`
)

// ErrNoDevice is returned by targeted updates when the device row is gone.
var ErrNoDevice = errors.New("device not found")

// deleteTimersByIDSQL deletes n timers of one device by id.
func deleteTimersByIDSQL(n int) string {
	return `DELETE FROM device_timers WHERE device_id = ? AND id IN (?` + strings.Repeat(", ?", n-1) + `)`
}

type DeviceSQLite struct {
	db *sql.DB
}

func NewDeviceSQLite(db *sql.DB) *DeviceSQLite { return &DeviceSQLite{db: db} }

var _ DeviceRepo = (*DeviceSQLite)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(s rowScanner) (models.Device, error) {
	var d models.Device
	err := s.Scan(&d.ID, &d.Model, &d.ManufacturerName, &d.Version, &d.Name,
		&d.State.Switch, &d.State.Startup, &d.State.RSSI)
	d.State.Timers = []models.Timer{}
	return d, err
}

// FindByID loads a device and its timers. Returns (nil, nil) if not found.
func (r *DeviceSQLite) FindByID(ctx context.Context, id string) (*models.Device, error) {
	d, err := scanDevice(r.db.QueryRowContext(ctx, selectDeviceSQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select device %q: %w", id, err)
	}

	rows, err := r.db.QueryContext(ctx, selectTimersSQL, id)
	if err != nil {
		return nil, fmt.Errorf("select timers of %q: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var t models.Timer
		if err := rows.Scan(&t.ID, &t.Enabled, &t.Type, &t.At, &t.Do.Switch); err != nil {
			return nil, fmt.Errorf("scan timer: %w", err)
		}
		d.State.Timers = append(d.State.Timers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &d, nil
}

// List returns all devices ordered by id, timers included.
func (r *DeviceSQLite) List(ctx context.Context) ([]models.Device, error) {
	rows, err := r.db.QueryContext(ctx, selectDevicesSQL)
	if err != nil {
		return nil, fmt.Errorf("select devices: %w", err)
	}
	out := make([]models.Device, 0, 16)
	index := make(map[string]int)
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan device: %w", err)
		}
		index[d.ID] = len(out)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	trows, err := r.db.QueryContext(ctx, selectAllTimersSQL)
	if err != nil {
		return nil, fmt.Errorf("select timers: %w", err)
	}
	defer trows.Close()

	for trows.Next() {
		var (
			deviceID string
			t        models.Timer
		)
		if err := trows.Scan(&deviceID, &t.ID, &t.Enabled, &t.Type, &t.At, &t.Do.Switch); err != nil {
			return nil, fmt.Errorf("scan timer: %w", err)
		}
		if i, ok := index[deviceID]; ok {
			out[i].State.Timers = append(out[i].State.Timers, t)
		}
	}
	if err := trows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Save upserts the device and replaces its timer list in one transaction.
// Timers without an ID get one assigned in place.
func (r *DeviceSQLite) Save(ctx context.Context, d *models.Device) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	s := d.State
	if _, err = tx.ExecContext(ctx, upsertDeviceSQL,
		d.ID, d.Model, d.ManufacturerName, d.Version, d.Name, s.Switch, s.Startup, s.RSSI,
	); err != nil {
		return fmt.Errorf("upsert device %q: %w", d.ID, err)
	}

	if _, err = tx.ExecContext(ctx, deleteTimersSQL, d.ID); err != nil {
		return fmt.Errorf("clear timers of %q: %w", d.ID, err)
	}

	for i := range d.State.Timers {
		t := &d.State.Timers[i]
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if _, err = tx.ExecContext(ctx, insertTimerSQL,
			t.ID, d.ID, i, t.Enabled, t.Type, t.At, t.Do.Switch,
		); err != nil {
			return fmt.Errorf("insert timer %q: %w", t.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit device %q: %w", d.ID, err)
	}
	return nil
}

// Delete removes the device; its timers go with it. Reports whether a row existed.
func (r *DeviceSQLite) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, deleteDeviceSQL, id)
	if err != nil {
		return false, fmt.Errorf("delete device %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// UpdateHandshake stores the model and firmware a device announced on
// register. Timers and user-set fields are not touched.
func (r *DeviceSQLite) UpdateHandshake(ctx context.Context, id, model, version string) error {
	res, err := r.db.ExecContext(ctx, updateHandshakeSQL, model, version, id)
	if err != nil {
		return fmt.Errorf("update handshake of %q: %w", id, err)
	}
	return expectRow(res, id)
}

// UpdateTelemetry stores the fields a device reported. Timers are not touched.
func (r *DeviceSQLite) UpdateTelemetry(ctx context.Context, id string, t models.Telemetry) error {
	res, err := r.db.ExecContext(ctx, updateTelemetrySQL, t.Version, t.Switch, t.Startup, t.RSSI, id)
	if err != nil {
		return fmt.Errorf("update telemetry of %q: %w", id, err)
	}
	return expectRow(res, id)
}

// DeleteTimers removes the given timers of a device and reports how many
// rows went away. Unknown ids are ignored.
func (r *DeviceSQLite) DeleteTimers(ctx context.Context, deviceID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, deviceID)
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := r.db.ExecContext(ctx, deleteTimersByIDSQL(len(ids)), args...)
	if err != nil {
		return 0, fmt.Errorf("delete timers of %q: %w", deviceID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

func expectRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrNoDevice, id)
	}
	return nil
}
