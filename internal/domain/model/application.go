package model

import (
	"strings"
	"time"
)

// Application is one monitored application on the deployment platform.
// ApprovedOwner/ApprovedRepo name the repository that is allowed to produce
// deployments for it; anything else is an unauthorized repository.
type Application struct {
	ID            int64
	Name          string
	Team          string
	Environment   string
	ApprovedOwner string
	ApprovedRepo  string

	RemindersEnabled bool
	// ReminderWeekdays holds lowercase English weekday names ("monday", ...).
	ReminderWeekdays []string
	// ReminderTime is the wall-clock send time in "HH:MM".
	ReminderTime    string
	ReminderChannel string

	CreatedAt time.Time
}

// ApprovedFullName returns "owner/repo" for the approved repository.
func (a Application) ApprovedFullName() string {
	return a.ApprovedOwner + "/" + a.ApprovedRepo
}

// ReminderDueOn reports whether the given weekday is in the configured set.
func (a Application) ReminderDueOn(weekday string) bool {
	for _, d := range a.ReminderWeekdays {
		if strings.EqualFold(d, weekday) {
			return true
		}
	}
	return false
}
