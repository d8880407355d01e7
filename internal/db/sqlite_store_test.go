package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/recklessbear/rbsite/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rbsite.db")
	sqlDB, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, RunMigrations(sqlDB, ""))

	store, err := NewSQLiteStore(sqlDB, zap.NewNop())
	require.NoError(t, err)
	return store
}

func testParticipant(recordID, email string) *models.Participant {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.Participant{
		RecordID:  recordID,
		FullName:  "Jane Doe",
		Email:     email,
		Phone:     "0821234567",
		DeviceID:  "dev-1",
		Status:    models.StatusIncomplete,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSQLiteStoreUpsertAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	missing, err := store.GetParticipantByEmail(ctx, "jane@x.com")
	require.NoError(t, err)
	assert.Nil(t, missing, "absence is a nil participant, not an error")

	saved, err := store.UpsertParticipant(ctx, testParticipant("rec1", "jane@x.com"))
	require.NoError(t, err)
	assert.Equal(t, "rec1", saved.RecordID)
	assert.Equal(t, 0, saved.LogosFound)
	assert.Equal(t, models.StatusIncomplete, saved.Status)

	// A retried registration keeps the original row and record id.
	again, err := store.UpsertParticipant(ctx, testParticipant("rec2", "jane@x.com"))
	require.NoError(t, err)
	assert.Equal(t, "rec1", again.RecordID)

	// Email lookup is case-insensitive.
	found, err := store.GetParticipantByEmail(ctx, "Jane@X.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "rec1", found.RecordID)
}

func TestSQLiteStoreIncrementProgress(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.UpsertParticipant(ctx, testParticipant("rec1", "jane@x.com"))
	require.NoError(t, err)

	for want := 1; want < models.TotalLogosRequired; want++ {
		p, capped, err := store.IncrementProgress(ctx, "rec1")
		require.NoError(t, err)
		assert.False(t, capped)
		assert.Equal(t, want, p.LogosFound)
		assert.Equal(t, models.StatusIncomplete, p.Status)
	}

	p, capped, err := store.IncrementProgress(ctx, "rec1")
	require.NoError(t, err)
	assert.False(t, capped)
	assert.Equal(t, models.TotalLogosRequired, p.LogosFound)
	assert.Equal(t, models.StatusCompleted, p.Status)

	// At the cap nothing changes: the counter never exceeds the total
	// and the status never flips back.
	p, capped, err = store.IncrementProgress(ctx, "rec1")
	require.NoError(t, err)
	assert.True(t, capped)
	assert.Equal(t, models.TotalLogosRequired, p.LogosFound)
	assert.Equal(t, models.StatusCompleted, p.Status)
}

func TestSQLiteStoreIncrementUnknownRecord(t *testing.T) {
	store := newTestStore(t)

	p, capped, err := store.IncrementProgress(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.False(t, capped)
}

func TestSQLiteStoreListParticipants(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := testParticipant("rec1", "jane@x.com")
	first.CreatedAt = first.CreatedAt.Add(-time.Hour)
	first.UpdatedAt = first.CreatedAt
	_, err := store.UpsertParticipant(ctx, first)
	require.NoError(t, err)
	_, err = store.UpsertParticipant(ctx, testParticipant("rec2", "john@x.com"))
	require.NoError(t, err)

	rows, err := store.ListParticipants(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "rec2", rows[0].RecordID, "newest first")
	assert.Equal(t, "rec1", rows[1].RecordID)
}
