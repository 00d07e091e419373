package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"tankguard/internal/models"
)

type AlertSQLite struct {
	db *sql.DB
}

func NewAlertSQLite(db *sql.DB) *AlertSQLite { return &AlertSQLite{db: db} }

var _ Alerts = (*AlertSQLite)(nil)

func (r *AlertSQLite) Append(ctx context.Context, a models.SystemAlert) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO system_alerts (id, device_id, alert_type, severity, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.ID, a.DeviceID, a.AlertType, a.Severity, a.Message, a.CreatedAt.UTC())
	return err
}

func (r *AlertSQLite) ListRecent(ctx context.Context, limit int) ([]models.SystemAlert, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, device_id, alert_type, severity, message, created_at
		FROM system_alerts
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.SystemAlert, 0, limit)
	for rows.Next() {
		var a models.SystemAlert
		if err := rows.Scan(&a.ID, &a.DeviceID, &a.AlertType, &a.Severity, &a.Message, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.CreatedAt = a.CreatedAt.UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}
