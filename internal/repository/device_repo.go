package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tankguard/internal/models"
)

type DeviceSQLite struct {
	db *sql.DB
}

func NewDeviceSQLite(db *sql.DB) *DeviceSQLite { return &DeviceSQLite{db: db} }

var _ Devices = (*DeviceSQLite)(nil)

const (
	insertDeviceSQL = `
		INSERT INTO devices (id, name, tank_type, api_key, hmac_secret, is_active, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	selectDeviceSQL = `
		SELECT id, name, tank_type, api_key, hmac_secret, is_active, last_seen
		FROM devices WHERE id = ?
	`
	listDevicesSQL = `
		SELECT id, name, tank_type, api_key, hmac_secret, is_active, last_seen
		FROM devices ORDER BY id ASC
	`
	updateLastSeenSQL = `UPDATE devices SET last_seen = ? WHERE id = ?`
	setActiveSQL      = `UPDATE devices SET is_active = ? WHERE id = ?`

	upsertPairingSQL = `
		INSERT INTO device_pairings (sump_device_id, top_device_id)
		VALUES (?, ?)
		ON CONFLICT(sump_device_id) DO UPDATE SET top_device_id = excluded.top_device_id
	`
	selectPairedTopSQL  = `SELECT top_device_id FROM device_pairings WHERE sump_device_id = ?`
	selectSumpForTopSQL = `SELECT sump_device_id FROM device_pairings WHERE top_device_id = ?`
)

func (r *DeviceSQLite) Create(ctx context.Context, d models.Device) error {
	lastSeen := d.LastSeen
	if lastSeen.IsZero() {
		lastSeen = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, insertDeviceSQL,
		d.ID, d.Name, d.TankType, d.APIKey, d.HMACSecret, d.IsActive, lastSeen.UTC())
	if err != nil {
		return fmt.Errorf("insert device %q: %w", d.ID, err)
	}
	return nil
}

// GetByID fetches a device by id. Returns (nil, nil) if not found.
func (r *DeviceSQLite) GetByID(ctx context.Context, id string) (*models.Device, error) {
	row := r.db.QueryRowContext(ctx, selectDeviceSQL, id)
	d, err := scanDevice(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select device %q: %w", id, err)
	}
	return d, nil
}

func (r *DeviceSQLite) List(ctx context.Context) ([]models.Device, error) {
	rows, err := r.db.QueryContext(ctx, listDevicesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Device, 0, 8)
	for rows.Next() {
		d, err := scanDevice(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func scanDevice(scan func(dest ...any) error) (*models.Device, error) {
	var d models.Device
	var lastSeen sql.NullTime
	if err := scan(&d.ID, &d.Name, &d.TankType, &d.APIKey, &d.HMACSecret, &d.IsActive, &lastSeen); err != nil {
		return nil, err
	}
	if lastSeen.Valid {
		d.LastSeen = lastSeen.Time.UTC()
	}
	return &d, nil
}

func (r *DeviceSQLite) UpdateLastSeen(ctx context.Context, id string, t time.Time) error {
	_, err := r.db.ExecContext(ctx, updateLastSeenSQL, t.UTC(), id)
	return err
}

func (r *DeviceSQLite) SetActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx, setActiveSQL, active, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("device %q not found", id)
	}
	return nil
}

func (r *DeviceSQLite) Pair(ctx context.Context, sumpID, topID string) error {
	_, err := r.db.ExecContext(ctx, upsertPairingSQL, sumpID, topID)
	if err != nil {
		return fmt.Errorf("pair %q -> %q: %w", sumpID, topID, err)
	}
	return nil
}

// PairedTop returns the top-tank device paired with a sump, or "" if none.
func (r *DeviceSQLite) PairedTop(ctx context.Context, sumpID string) (string, error) {
	return r.selectOne(ctx, selectPairedTopSQL, sumpID)
}

// SumpForTop returns the sump device a top tank feeds, or "" if none.
func (r *DeviceSQLite) SumpForTop(ctx context.Context, topID string) (string, error) {
	return r.selectOne(ctx, selectSumpForTopSQL, topID)
}

func (r *DeviceSQLite) selectOne(ctx context.Context, query, arg string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return id, err
}
