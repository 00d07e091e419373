package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"tankguard/internal/models"
)

type CommandSQLite struct {
	db *sql.DB
}

func NewCommandSQLite(db *sql.DB) *CommandSQLite { return &CommandSQLite{db: db} }

var _ Commands = (*CommandSQLite)(nil)

const (
	insertCommandSQL = `
		INSERT INTO device_commands (id, device_id, type, payload, created_at, ttl, retry_count, acknowledged)
		VALUES (?, ?, ?, ?, ?, ?, 0, 0)
	`
	selectCommandSQL = `
		SELECT id, device_id, type, payload, created_at, ttl, retry_count, acknowledged
		FROM device_commands WHERE id = ?
	`
	selectPendingSQL = `
		SELECT id, device_id, type, payload, created_at, ttl, retry_count, acknowledged
		FROM device_commands
		WHERE device_id = ? AND acknowledged = 0 AND ttl > ?
		ORDER BY created_at ASC
	`
	markAckedSQL      = `UPDATE device_commands SET acknowledged = 1 WHERE id = ?`
	deleteFinishedSQL = `DELETE FROM device_commands WHERE acknowledged = 1 OR ttl <= ?`
)

func (r *CommandSQLite) Insert(ctx context.Context, c models.DeviceCommand) error {
	var payload any
	if c.Payload != nil {
		b, err := json.Marshal(c.Payload)
		if err != nil {
			return err
		}
		payload = string(b)
	}
	_, err := r.db.ExecContext(ctx, insertCommandSQL,
		c.ID, c.DeviceID, c.Type, payload, c.CreatedAt.UTC(), c.TTL.UTC())
	return err
}

// Get fetches a command by id. Returns (nil, nil) if not found.
func (r *CommandSQLite) Get(ctx context.Context, id string) (*models.DeviceCommand, error) {
	row := r.db.QueryRowContext(ctx, selectCommandSQL, id)
	c, err := scanCommand(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// PendingForDevice returns unacknowledged, non-expired commands oldest-first.
// It does not mutate anything; retry accounting is a separate step.
func (r *CommandSQLite) PendingForDevice(ctx context.Context, deviceID string, now time.Time) ([]models.DeviceCommand, error) {
	rows, err := r.db.QueryContext(ctx, selectPendingSQL, deviceID, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.DeviceCommand, 0, 8)
	for rows.Next() {
		c, err := scanCommand(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// IncrementRetries bumps retry_count for every listed command id.
func (r *CommandSQLite) IncrementRetries(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := r.db.ExecContext(ctx,
		"UPDATE device_commands SET retry_count = retry_count + 1 WHERE id IN ("+placeholders+")",
		args...)
	return err
}

func (r *CommandSQLite) MarkAcknowledged(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, markAckedSQL, id)
	return err
}

// DeleteFinished removes acknowledged and expired commands; returns the count.
func (r *CommandSQLite) DeleteFinished(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, deleteFinishedSQL, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanCommand(scan func(dest ...any) error) (*models.DeviceCommand, error) {
	var c models.DeviceCommand
	var payload sql.NullString
	if err := scan(&c.ID, &c.DeviceID, &c.Type, &payload, &c.CreatedAt, &c.TTL, &c.RetryCount, &c.Acknowledged); err != nil {
		return nil, err
	}
	if payload.Valid && payload.String != "" {
		var v any
		if err := json.Unmarshal([]byte(payload.String), &v); err == nil {
			c.Payload = v
		} else {
			c.Payload = payload.String // keep raw if malformed
		}
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.TTL = c.TTL.UTC()
	return &c, nil
}
