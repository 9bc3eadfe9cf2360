package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ericfisherdev/foureyes/internal/domain/model"
	"github.com/ericfisherdev/foureyes/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ApplicationStore = (*ApplicationRepo)(nil)

// ApplicationRepo is the SQLite implementation of the ApplicationStore port.
type ApplicationRepo struct {
	db *DB
}

// NewApplicationRepo creates a new ApplicationRepo backed by the given DB.
func NewApplicationRepo(db *DB) *ApplicationRepo {
	return &ApplicationRepo{db: db}
}

// Upsert inserts or updates an application keyed by (team, name, environment)
// and returns the stored row with its id populated.
func (r *ApplicationRepo) Upsert(ctx context.Context, app model.Application) (model.Application, error) {
	const query = `
		INSERT INTO applications (
			name, team, environment, approved_owner, approved_repo,
			reminders_enabled, reminder_weekdays, reminder_time, reminder_channel, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(team, name, environment) DO UPDATE SET
			approved_owner = excluded.approved_owner,
			approved_repo = excluded.approved_repo,
			reminders_enabled = excluded.reminders_enabled,
			reminder_weekdays = excluded.reminder_weekdays,
			reminder_time = excluded.reminder_time,
			reminder_channel = excluded.reminder_channel
	`

	weekdays := app.ReminderWeekdays
	if weekdays == nil {
		weekdays = []string{}
	}
	weekdaysJSON, err := json.Marshal(weekdays)
	if err != nil {
		return model.Application{}, fmt.Errorf("marshal reminder weekdays: %w", err)
	}

	enabled := 0
	if app.RemindersEnabled {
		enabled = 1
	}

	createdAt := app.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = r.db.Writer.ExecContext(ctx, query,
		app.Name, app.Team, app.Environment, app.ApprovedOwner, app.ApprovedRepo,
		enabled, string(weekdaysJSON), app.ReminderTime, app.ReminderChannel, formatTime(createdAt),
	)
	if err != nil {
		return model.Application{}, fmt.Errorf("upsert application %s/%s: %w", app.Team, app.Name, err)
	}

	stored, err := r.getByKey(ctx, app.Team, app.Name, app.Environment)
	if err != nil {
		return model.Application{}, err
	}
	return *stored, nil
}

// GetByID retrieves a single application. Returns nil, nil when absent.
func (r *ApplicationRepo) GetByID(ctx context.Context, id int64) (*model.Application, error) {
	const query = appSelect + ` WHERE id = ?`

	app, err := scanApplication(r.db.Reader.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get application %d: %w", id, err)
	}
	return app, nil
}

// ListAll returns all monitored applications ordered by team then name.
func (r *ApplicationRepo) ListAll(ctx context.Context) ([]model.Application, error) {
	const query = appSelect + ` ORDER BY team, name, environment`
	return r.queryApplications(ctx, query)
}

// ListWithReminders returns applications with reminders enabled, ordered by
// team then name.
func (r *ApplicationRepo) ListWithReminders(ctx context.Context) ([]model.Application, error) {
	const query = appSelect + ` WHERE reminders_enabled = 1 ORDER BY team, name, environment`
	return r.queryApplications(ctx, query)
}

const appSelect = `
	SELECT id, name, team, environment, approved_owner, approved_repo,
	       reminders_enabled, reminder_weekdays, reminder_time, reminder_channel, created_at
	FROM applications`

func (r *ApplicationRepo) getByKey(ctx context.Context, team, name, environment string) (*model.Application, error) {
	const query = appSelect + ` WHERE team = ? AND name = ? AND environment = ?`

	app, err := scanApplication(r.db.Reader.QueryRowContext(ctx, query, team, name, environment))
	if err != nil {
		return nil, fmt.Errorf("get application %s/%s: %w", team, name, err)
	}
	return app, nil
}

func (r *ApplicationRepo) queryApplications(ctx context.Context, query string, args ...any) ([]model.Application, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}
	defer rows.Close()

	var apps []model.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		apps = append(apps, *app)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}

	return apps, nil
}

func scanApplication(s scanner) (*model.Application, error) {
	var app model.Application
	var enabled int
	var weekdaysJSON string
	var createdAt string

	err := s.Scan(
		&app.ID, &app.Name, &app.Team, &app.Environment, &app.ApprovedOwner, &app.ApprovedRepo,
		&enabled, &weekdaysJSON, &app.ReminderTime, &app.ReminderChannel, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	app.RemindersEnabled = enabled != 0

	if err := json.Unmarshal([]byte(weekdaysJSON), &app.ReminderWeekdays); err != nil {
		return nil, fmt.Errorf("unmarshal reminder weekdays: %w", err)
	}

	app.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	return &app, nil
}
