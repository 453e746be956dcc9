package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plexlinker/plexlinker/internal/database/sqlc"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "nested", "plexlinker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func TestMigrate_Version(t *testing.T) {
	db := openTestDB(t)

	ctx := context.Background()

	version, err := db.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	// Re-running is a no-op.
	require.NoError(t, db.Migrate(ctx))

	states, err := db.Status(ctx)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, int64(1), states[0].Version)
	assert.Equal(t, "00001_init.sql", states[0].Name)
	assert.True(t, states[0].Applied)
}

func TestMigrateDown(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.MigrateDown(ctx))

	version, err := db.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), version)

	states, err := db.Status(ctx)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.False(t, states[0].Applied)
}

func TestLinkRuleQueries(t *testing.T) {
	db := openTestDB(t)
	q := sqlc.New(db.Conn())
	ctx := context.Background()

	created, err := q.CreateLinkRule(ctx, sqlc.CreateLinkRuleParams{
		MovieTitle: "Alpha", TmdbID: 42, ShowName: "Beta", Episodes: "1", Season: "00",
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.False(t, created.SeriesID.Valid)

	_, err = q.CreateLinkRule(ctx, sqlc.CreateLinkRuleParams{
		MovieTitle: "Alpha", TmdbID: 42, ShowName: "Beta", Episodes: "2", Season: "00",
	})
	assert.Error(t, err, "duplicate (movie, show) must be rejected")

	require.NoError(t, q.UpdateLinkRuleResolvedIDs(ctx, sqlc.UpdateLinkRuleResolvedIDsParams{
		EpisodeID:  sql.NullInt64{Int64: 70, Valid: true},
		SeriesID:   sql.NullInt64{Int64: 7, Valid: true},
		TvdbID:     sql.NullInt64{Int64: 700, Valid: true},
		MovieTitle: "Alpha",
		ShowName:   "Beta",
	}))

	got, err := q.GetLinkRule(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.SeriesID.Int64)
	assert.Equal(t, int64(70), got.EpisodeID.Int64)

	count, err := q.CountLinkRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	tmdbID, err := q.GetMovieTmdbID(ctx, "Alpha")
	require.NoError(t, err)
	assert.Equal(t, int64(42), tmdbID)
	_, err = q.GetMovieTmdbID(ctx, "Nope")
	assert.True(t, errors.Is(err, sql.ErrNoRows))

	n, err := q.DeleteLinkRule(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = q.GetLinkRule(ctx, created.ID)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestSettingQueries(t *testing.T) {
	db := openTestDB(t)
	q := sqlc.New(db.Conn())
	ctx := context.Background()

	_, err := q.GetSetting(ctx, "movie_root")
	assert.True(t, errors.Is(err, sql.ErrNoRows))

	require.NoError(t, q.SetSetting(ctx, sqlc.SetSettingParams{Key: "movie_root", Value: "/movies"}))
	require.NoError(t, q.SetSetting(ctx, sqlc.SetSettingParams{Key: "movie_root", Value: "/films"}))

	s, err := q.GetSetting(ctx, "movie_root")
	require.NoError(t, err)
	assert.Equal(t, "/films", s.Value)

	all, err := q.ListSettings(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestNew_RejectsOtherEngines(t *testing.T) {
	_, err := New("postgresql://db:5432/plexlinker")
	assert.ErrorIs(t, err, ErrUnsupportedURL)
}
