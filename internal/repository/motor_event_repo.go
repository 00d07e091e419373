package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"tankguard/internal/models"
)

type MotorEventSQLite struct {
	db *sql.DB
}

func NewMotorEventSQLite(db *sql.DB) *MotorEventSQLite { return &MotorEventSQLite{db: db} }

var _ MotorEvents = (*MotorEventSQLite)(nil)

const insertMotorEventSQL = `
	INSERT INTO motor_events (id, device_id, event_type, trigger_source, duration_seconds, reason, occurred_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
`

// Append inserts a new event. Missing ID or OccurredAt are filled in.
func (r *MotorEventSQLite) Append(ctx context.Context, e models.MotorEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	} else {
		e.OccurredAt = e.OccurredAt.UTC()
	}

	var duration any
	if e.DurationSeconds != nil {
		duration = *e.DurationSeconds
	}

	_, err := r.db.ExecContext(ctx, insertMotorEventSQL,
		e.ID, e.DeviceID, e.EventType, e.Trigger, duration, e.Reason, e.OccurredAt)
	return err
}

// List returns events matching the filter, ordered by occurrence ASC.
func (r *MotorEventSQLite) List(ctx context.Context, f EventFilter) ([]models.MotorEvent, error) {
	var (
		conds []string
		args  []any
	)
	if f.DeviceID != "" {
		conds = append(conds, "device_id = ?")
		args = append(args, f.DeviceID)
	}
	if !f.From.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		conds = append(conds, "occurred_at <= ?")
		args = append(args, f.To.UTC())
	}
	if typ := strings.TrimSpace(f.Type); typ != "" {
		conds = append(conds, "event_type = ?")
		args = append(args, typ)
	}

	q := `SELECT id, device_id, event_type, trigger_source, duration_seconds, reason, occurred_at FROM motor_events`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY occurred_at ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.MotorEvent, 0, 64)
	for rows.Next() {
		ev, err := scanMotorEvent(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *ev)
	}
	return out, rows.Err()
}

// LastByType returns the most recent event of the given type for a device,
// or (nil, nil) when there is none. Used to rebuild motor state on restart.
func (r *MotorEventSQLite) LastByType(ctx context.Context, deviceID, eventType string) (*models.MotorEvent, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, device_id, event_type, trigger_source, duration_seconds, reason, occurred_at
		FROM motor_events
		WHERE device_id = ? AND event_type = ?
		ORDER BY occurred_at DESC
		LIMIT 1
	`, deviceID, eventType)

	ev, err := scanMotorEvent(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return ev, nil
}

func scanMotorEvent(scan func(dest ...any) error) (*models.MotorEvent, error) {
	var ev models.MotorEvent
	var duration sql.NullInt64
	if err := scan(&ev.ID, &ev.DeviceID, &ev.EventType, &ev.Trigger, &duration, &ev.Reason, &ev.OccurredAt); err != nil {
		return nil, err
	}
	if duration.Valid {
		d := int(duration.Int64)
		ev.DurationSeconds = &d
	}
	ev.OccurredAt = ev.OccurredAt.UTC()
	return &ev, nil
}
