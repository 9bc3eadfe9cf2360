package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ericfisherdev/foureyes/internal/domain/model"
	"github.com/ericfisherdev/foureyes/internal/domain/port/driven"
)

const (
	// reminderTolerance is how far from the configured HH:MM a tick may
	// land and still trigger the send.
	reminderTolerance = 2 * time.Minute

	// reminderCooldown is the minimum elapsed time between successful sends
	// for one application: just under a day, so a daily schedule with a few
	// minutes of timer drift still fires.
	reminderCooldown = 23 * time.Hour

	reminderLockTTL = 5 * time.Minute
)

// Calendar decides which days are eligible for reminder delivery.
// Weekends are always out; Holidays holds extra excluded dates keyed by
// "2006-01-02".
type Calendar struct {
	Holidays map[string]bool
}

// BusinessDay reports whether t falls on a reminder-eligible day.
func (c Calendar) BusinessDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.Holidays[t.Format("2006-01-02")]
}

// ReminderService is the independent periodic loop that notifies teams about
// deployments still lacking a verified review. Concurrency across workers
// and the minimum inter-send interval are both enforced by a single atomic
// claim in the lock store.
type ReminderService struct {
	apps        driven.ApplicationStore
	deployments driven.DeploymentStore
	locks       *LockManager
	notifier    driven.Notifier
	calendar    Calendar
	// detailBaseURL prefixes deployment detail links in messages.
	detailBaseURL string
	// now is replaceable in tests.
	now func() time.Time
}

// NewReminderService creates a ReminderService.
func NewReminderService(
	apps driven.ApplicationStore,
	deployments driven.DeploymentStore,
	locks *LockManager,
	notifier driven.Notifier,
	calendar Calendar,
	detailBaseURL string,
) *ReminderService {
	return &ReminderService{
		apps:          apps,
		deployments:   deployments,
		locks:         locks,
		notifier:      notifier,
		calendar:      calendar,
		detailBaseURL: strings.TrimRight(detailBaseURL, "/"),
		now:           time.Now,
	}
}

// CheckAndSendReminders runs one tick: on business days it finds every
// application whose configured reminder slot matches the current time,
// claims a send, and delivers the list of unresolved deployments. Failures
// on one application do not stop the others.
func (s *ReminderService) CheckAndSendReminders(ctx context.Context) error {
	now := s.now()

	if !s.calendar.BusinessDay(now) {
		return nil
	}

	weekday := strings.ToLower(now.Weekday().String())

	apps, err := s.apps.ListWithReminders(ctx)
	if err != nil {
		return err
	}

	for _, app := range apps {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if !app.ReminderDueOn(weekday) || !withinTolerance(now, app.ReminderTime, reminderTolerance) {
			continue
		}

		if err := s.sendForApplication(ctx, app); err != nil {
			slog.Error("reminder send failed", "app", app.Name, "error", err)
		}
	}

	return nil
}

func (s *ReminderService) sendForApplication(ctx context.Context, app model.Application) error {
	report, err := s.locks.WithClaim(ctx, model.WorkKindReminderSend, app.ID, reminderLockTTL, reminderCooldown,
		func(ctx context.Context) (any, error) {
			return s.deliver(ctx, app)
		})
	if err != nil {
		return err
	}
	if report.Locked {
		// Another worker claimed the slot, or the cooldown has not elapsed.
		slog.Debug("reminder claim skipped", "app", app.Name)
	}
	return nil
}

func (s *ReminderService) deliver(ctx context.Context, app model.Application) (any, error) {
	unresolved, err := s.deployments.ListUnresolved(ctx, app.ID)
	if err != nil {
		return nil, err
	}
	if len(unresolved) == 0 {
		return map[string]int{"unresolved": 0}, nil
	}

	msg := model.ReminderMessage{
		Application: app.Name,
		Team:        app.Team,
		Channel:     app.ReminderChannel,
	}
	for _, d := range unresolved {
		msg.Items = append(msg.Items, model.ReminderItem{
			DeploymentID: d.ID,
			CommitSHA:    d.ShortSHA(),
			DisplayName:  fmt.Sprintf("%s (%s)", app.Name, app.Environment),
			Status:       d.Status,
			Link:         fmt.Sprintf("%s/deployments/%d", s.detailBaseURL, d.ID),
		})
	}

	token, err := s.notifier.SendReminder(ctx, msg)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, fmt.Errorf("notifier returned no delivery token for %s", app.Name)
	}

	slog.Info("reminder sent", "app", app.Name, "deployments", len(unresolved), "token", token)
	return map[string]any{"unresolved": len(unresolved), "token": token}, nil
}

// withinTolerance reports whether now is within tol of the "HH:MM" slot on
// the same day. Malformed slots never match.
func withinTolerance(now time.Time, slot string, tol time.Duration) bool {
	parsed, err := time.Parse("15:04", slot)
	if err != nil {
		return false
	}

	target := time.Date(now.Year(), now.Month(), now.Day(), parsed.Hour(), parsed.Minute(), 0, 0, now.Location())
	diff := now.Sub(target)
	if diff < 0 {
		diff = -diff
	}
	return diff <= tol
}
