package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plexlinker/plexlinker/internal/testutil"
)

func newTestSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	t.Cleanup(tdb.Close)
	return NewSQLStore(tdb.Conn, tdb.Logger)
}

func TestSQLStore_CreateAndList(t *testing.T) {
	store := newTestSQLStore(t)
	ctx := context.Background()

	_, err := store.CreateEntry(ctx, CreateEntryInput{MovieTitle: "Alpha", TmdbID: 42, ShowName: "Zeta", Episodes: EpisodeList{2}})
	require.NoError(t, err)
	_, err = store.CreateEntry(ctx, CreateEntryInput{MovieTitle: "Alpha", TmdbID: 42, ShowName: "Beta", Episodes: EpisodeList{1}, Season: "00"})
	require.NoError(t, err)
	_, err = store.CreateEntry(ctx, CreateEntryInput{MovieTitle: "Aardvark", TmdbID: 0, ShowName: "Beta"})
	require.NoError(t, err)

	set, err := store.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, set, 2)

	assert.Equal(t, "Aardvark", set[0].MovieTitle)
	assert.False(t, set[0].Valid())

	alpha := set[1]
	assert.Equal(t, int64(42), alpha.TmdbID)
	assert.Equal(t, []int{1}, alpha.Shows["Beta"].TargetEpisodes)
	assert.Equal(t, "00", alpha.Shows["Zeta"].SeasonLabel)
	assert.Equal(t, []int{2}, alpha.Shows["Zeta"].TargetEpisodes)

	entries, err := store.ListEntries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestSQLStore_Validation(t *testing.T) {
	store := newTestSQLStore(t)
	ctx := context.Background()

	_, err := store.CreateEntry(ctx, CreateEntryInput{ShowName: "Beta"})
	assert.ErrorIs(t, err, ErrInvalidRule)

	_, err = store.CreateEntry(ctx, CreateEntryInput{MovieTitle: "Alpha"})
	assert.ErrorIs(t, err, ErrInvalidRule)

	_, err = store.CreateEntry(ctx, CreateEntryInput{MovieTitle: "Alpha", ShowName: "Beta"})
	require.NoError(t, err)
	_, err = store.CreateEntry(ctx, CreateEntryInput{MovieTitle: "Alpha", ShowName: "Beta"})
	assert.ErrorIs(t, err, ErrDuplicateRule)
}

func TestSQLStore_GetDelete(t *testing.T) {
	store := newTestSQLStore(t)
	ctx := context.Background()

	created, err := store.CreateEntry(ctx, CreateEntryInput{MovieTitle: "Alpha", TmdbID: 42, ShowName: "Beta"})
	require.NoError(t, err)

	got, err := store.GetEntry(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Beta", got.ShowName)
	assert.Equal(t, []int{}, got.Episodes)

	require.NoError(t, store.DeleteEntry(ctx, created.ID))
	assert.ErrorIs(t, store.DeleteEntry(ctx, created.ID), ErrRuleNotFound)

	_, err = store.GetEntry(ctx, created.ID)
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestSQLStore_SaveResolvedIDs(t *testing.T) {
	store := newTestSQLStore(t)
	ctx := context.Background()

	_, err := store.CreateEntry(ctx, CreateEntryInput{MovieTitle: "Alpha", TmdbID: 42, ShowName: "Beta", Episodes: EpisodeList{1}})
	require.NoError(t, err)

	require.NoError(t, store.SaveResolvedIDs(ctx, []Resolution{
		{MovieTitle: "Alpha", ShowName: "Beta", SeriesID: 7, EpisodeID: 70, TvdbID: 700},
		{MovieTitle: "Missing", ShowName: "Beta", SeriesID: 1},
	}))

	set, err := store.ListRules(ctx)
	require.NoError(t, err)
	target := set[0].Shows["Beta"]
	assert.Equal(t, int64(7), target.ResolvedSeriesID)
	assert.Equal(t, int64(70), target.ResolvedEpisodeID)
	assert.Equal(t, int64(700), target.ResolvedTvdbID)
}

func TestSQLStore_Settings(t *testing.T) {
	store := newTestSQLStore(t)
	ctx := context.Background()

	_, ok, err := store.GetSetting(ctx, "movie_root")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetSetting(ctx, "movie_root", "/movies"))
	v, ok, err := store.GetSetting(ctx, "movie_root")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/movies", v)

	assert.ErrorIs(t, store.SetSetting(ctx, " ", "x"), ErrInvalidRule)
}

func TestSQLStore_TitleBoundToOneMovie(t *testing.T) {
	store := newTestSQLStore(t)
	ctx := context.Background()

	_, err := store.CreateEntry(ctx, CreateEntryInput{MovieTitle: "Alpha", TmdbID: 42, ShowName: "Beta", Episodes: EpisodeList{1}})
	require.NoError(t, err)

	_, err = store.CreateEntry(ctx, CreateEntryInput{MovieTitle: "Alpha", TmdbID: 99, ShowName: "Gamma", Episodes: EpisodeList{2}})
	assert.ErrorIs(t, err, ErrDuplicateRule)

	_, err = store.CreateEntry(ctx, CreateEntryInput{MovieTitle: "Alpha", TmdbID: 42, ShowName: "Gamma", Episodes: EpisodeList{2}})
	require.NoError(t, err)

	// A conflicting row that predates the check keeps its own movie.
	_, err = store.db.ExecContext(ctx,
		`INSERT INTO link_rules (movie_title, tmdb_id, show_name, episodes) VALUES (?, ?, ?, ?)`,
		"Alpha", 99, "Delta", "3")
	require.NoError(t, err)

	set, err := store.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, set, 2)

	byTmdb := map[int64]Rule{}
	for _, r := range set {
		assert.Equal(t, "Alpha", r.MovieTitle)
		byTmdb[r.TmdbID] = r
	}
	assert.ElementsMatch(t, []string{"Beta", "Gamma"}, byTmdb[42].ShowNames())
	assert.Equal(t, []string{"Delta"}, byTmdb[99].ShowNames())
}
