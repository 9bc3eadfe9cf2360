package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/ericfisherdev/foureyes/internal/domain/model"
	"github.com/ericfisherdev/foureyes/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AlertStore = (*AlertRepo)(nil)

// AlertRepo is the SQLite implementation of the AlertStore port.
type AlertRepo struct {
	db *DB
}

// NewAlertRepo creates a new AlertRepo backed by the given DB.
func NewAlertRepo(db *DB) *AlertRepo {
	return &AlertRepo{db: db}
}

// Insert persists a new alert and returns its id.
func (r *AlertRepo) Insert(ctx context.Context, alert model.Alert) (int64, error) {
	const query = `
		INSERT INTO alerts (application_id, kind, detail, created_at, notified_at)
		VALUES (?, ?, ?, ?, ?)
	`

	createdAt := alert.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	result, err := r.db.Writer.ExecContext(ctx, query,
		alert.ApplicationID, string(alert.Kind), alert.Detail,
		formatTime(createdAt), formatNullableTime(alert.NotifiedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert %s alert for application %d: %w", alert.Kind, alert.ApplicationID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("alert insert id: %w", err)
	}
	return id, nil
}

// ListUnnotified returns alerts not yet delivered, oldest first.
func (r *AlertRepo) ListUnnotified(ctx context.Context) ([]model.Alert, error) {
	const query = `
		SELECT id, application_id, kind, detail, created_at, notified_at
		FROM alerts
		WHERE notified_at = ''
		ORDER BY created_at, id`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query unnotified alerts: %w", err)
	}
	defer rows.Close()

	var alerts []model.Alert
	for rows.Next() {
		var alert model.Alert
		var kind, createdAt, notifiedAt string

		err := rows.Scan(&alert.ID, &alert.ApplicationID, &kind, &alert.Detail, &createdAt, &notifiedAt)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}

		alert.Kind = model.AlertKind(kind)

		alert.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}

		alert.NotifiedAt, err = parseNullableTime(notifiedAt)
		if err != nil {
			return nil, fmt.Errorf("parse notified_at: %w", err)
		}

		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}

	return alerts, nil
}

// MarkNotified records the delivery time for an alert.
func (r *AlertRepo) MarkNotified(ctx context.Context, alertID int64) error {
	const query = `UPDATE alerts SET notified_at = ? WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, formatTime(time.Now()), alertID)
	if err != nil {
		return fmt.Errorf("mark alert %d notified: %w", alertID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("alert %d not found", alertID)
	}
	return nil
}
