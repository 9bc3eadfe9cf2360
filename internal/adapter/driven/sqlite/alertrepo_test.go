package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/foureyes/internal/domain/model"
)

func TestAlertRepo_InsertListMarkNotified(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAlertRepo(db)
	app := seedApplication(t, db)
	ctx := context.Background()

	id, err := repo.Insert(ctx, model.Alert{
		ApplicationID: app.ID,
		Kind:          model.AlertKindRepositoryMismatch,
		Detail:        "deployment 100 came from navikt/other, approved repository is navikt/myapp",
	})
	require.NoError(t, err)

	pending, err := repo.ListUnnotified(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0].ID)
	assert.Equal(t, model.AlertKindRepositoryMismatch, pending[0].Kind)
	assert.False(t, pending[0].Notified())

	require.NoError(t, repo.MarkNotified(ctx, id))

	pending, err = repo.ListUnnotified(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestAlertRepo_MarkNotifiedMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAlertRepo(db)

	assert.Error(t, repo.MarkNotified(context.Background(), 9999))
}
