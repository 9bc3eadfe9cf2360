package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/foureyes/internal/domain/model"
)

func TestApplicationRepo_UpsertInsertsAndUpdates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewApplicationRepo(db)
	ctx := context.Background()

	app, err := repo.Upsert(ctx, model.Application{
		Name:             "myapp",
		Team:             "myteam",
		Environment:      "prod",
		ApprovedOwner:    "navikt",
		ApprovedRepo:     "myapp",
		RemindersEnabled: true,
		ReminderWeekdays: []string{"monday", "thursday"},
		ReminderTime:     "09:00",
		ReminderChannel:  "#myteam-alerts",
	})
	require.NoError(t, err)
	require.NotZero(t, app.ID)
	assert.Equal(t, []string{"monday", "thursday"}, app.ReminderWeekdays)
	assert.False(t, app.CreatedAt.IsZero())

	// Same (team, name, environment) key updates in place.
	updated, err := repo.Upsert(ctx, model.Application{
		Name:          "myapp",
		Team:          "myteam",
		Environment:   "prod",
		ApprovedOwner: "navikt",
		ApprovedRepo:  "myapp-renamed",
	})
	require.NoError(t, err)
	assert.Equal(t, app.ID, updated.ID)
	assert.Equal(t, "myapp-renamed", updated.ApprovedRepo)
	assert.False(t, updated.RemindersEnabled)

	// A different environment is a separate row.
	dev, err := repo.Upsert(ctx, model.Application{
		Name:          "myapp",
		Team:          "myteam",
		Environment:   "dev",
		ApprovedOwner: "navikt",
		ApprovedRepo:  "myapp",
	})
	require.NoError(t, err)
	assert.NotEqual(t, app.ID, dev.ID)
}

func TestApplicationRepo_GetByID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewApplicationRepo(db)
	ctx := context.Background()

	app, err := repo.Upsert(ctx, model.Application{
		Name: "myapp", Team: "myteam", Environment: "prod",
		ApprovedOwner: "navikt", ApprovedRepo: "myapp",
	})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, app.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "myapp", got.Name)

	missing, err := repo.GetByID(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestApplicationRepo_ListWithReminders(t *testing.T) {
	db := setupTestDB(t)
	repo := NewApplicationRepo(db)
	ctx := context.Background()

	_, err := repo.Upsert(ctx, model.Application{
		Name: "silent", Team: "myteam", Environment: "prod",
		ApprovedOwner: "navikt", ApprovedRepo: "silent",
	})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, model.Application{
		Name: "noisy", Team: "myteam", Environment: "prod",
		ApprovedOwner: "navikt", ApprovedRepo: "noisy",
		RemindersEnabled: true, ReminderWeekdays: []string{"friday"}, ReminderTime: "10:00",
	})
	require.NoError(t, err)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	withReminders, err := repo.ListWithReminders(ctx)
	require.NoError(t, err)
	require.Len(t, withReminders, 1)
	assert.Equal(t, "noisy", withReminders[0].Name)
}
