package rules

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/plexlinker/plexlinker/internal/database/sqlc"
)

// SQLStore keeps rules and settings in the SQLite database.
type SQLStore struct {
	db      *sql.DB
	queries *sqlc.Queries
	logger  zerolog.Logger
}

// NewSQLStore creates a database-backed rule store.
func NewSQLStore(db *sql.DB, logger zerolog.Logger) *SQLStore {
	return &SQLStore{
		db:      db,
		queries: sqlc.New(db),
		logger:  logger.With().Str("component", "rules").Logger(),
	}
}

// ListRules groups the stored rows into rules ordered by movie title.
func (s *SQLStore) ListRules(ctx context.Context) (RuleSet, error) {
	rows, err := s.queries.ListLinkRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}

	// Rows written before titles were pinned to one tmdb id may disagree;
	// each (title, tmdb id) pair stays its own rule.
	type movieKey struct {
		title  string
		tmdbID int64
	}
	var set RuleSet
	index := make(map[movieKey]int)
	for _, row := range rows {
		key := movieKey{title: row.MovieTitle, tmdbID: positive(row.TmdbID)}
		i, ok := index[key]
		if !ok {
			set = append(set, Rule{
				MovieTitle: row.MovieTitle,
				TmdbID:     key.tmdbID,
				Shows:      make(map[string]ShowTarget),
			})
			i = len(set) - 1
			index[key] = i
		}
		set[i].Shows[row.ShowName] = ShowTarget{
			TargetEpisodes:    ParseEpisodes(row.Episodes),
			SeasonLabel:       row.Season,
			ResolvedEpisodeID: row.EpisodeID.Int64,
			ResolvedSeriesID:  row.SeriesID.Int64,
			ResolvedTvdbID:    row.TvdbID.Int64,
		}
	}
	set.Sort()
	return set, nil
}

// GetSetting returns the raw stored value for key.
func (s *SQLStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	row, err := s.queries.GetSetting(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get setting: %w", err)
	}
	return row.Value, true, nil
}

// SetSetting stores value for key, replacing any previous value.
func (s *SQLStore) SetSetting(ctx context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: setting key is required", ErrInvalidRule)
	}
	if err := s.queries.SetSetting(ctx, sqlc.SetSettingParams{Key: key, Value: value}); err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return nil
}

// ListEntries returns every stored (movie, show) row.
func (s *SQLStore) ListEntries(ctx context.Context) ([]*Entry, error) {
	rows, err := s.queries.ListLinkRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	entries := make([]*Entry, len(rows))
	for i, row := range rows {
		entries[i] = rowToEntry(row)
	}
	return entries, nil
}

// GetEntry retrieves a rule row by id.
func (s *SQLStore) GetEntry(ctx context.Context, id int64) (*Entry, error) {
	row, err := s.queries.GetLinkRule(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rowToEntry(row), nil
}

// CreateEntry validates and stores a new rule row. A non-numeric or zero
// TMDB id is accepted and stored as 0; the rule stays inactive until fixed.
func (s *SQLStore) CreateEntry(ctx context.Context, input CreateEntryInput) (*Entry, error) {
	input.MovieTitle = strings.TrimSpace(input.MovieTitle)
	input.ShowName = strings.TrimSpace(input.ShowName)
	if input.MovieTitle == "" {
		return nil, fmt.Errorf("%w: movie title is required", ErrInvalidRule)
	}
	if input.ShowName == "" {
		return nil, fmt.Errorf("%w: show name is required", ErrInvalidRule)
	}
	season := strings.TrimSpace(input.Season)
	if season == "" {
		season = DefaultSeason
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	q := s.queries.WithTx(tx)

	// All rows of one movie title must name the same movie.
	existing, err := q.GetMovieTmdbID(ctx, input.MovieTitle)
	switch {
	case err == nil && existing != int64(input.TmdbID):
		return nil, fmt.Errorf("%w: %q is already linked with tmdb id %d", ErrDuplicateRule, input.MovieTitle, existing)
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("failed to check existing rules: %w", err)
	}

	row, err := q.CreateLinkRule(ctx, sqlc.CreateLinkRuleParams{
		MovieTitle: input.MovieTitle,
		TmdbID:     int64(input.TmdbID),
		ShowName:   input.ShowName,
		Episodes:   FormatEpisodes(input.Episodes),
		Season:     season,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateRule
		}
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit rule: %w", err)
	}

	s.logger.Info().
		Int64("id", row.ID).
		Str("movie", row.MovieTitle).
		Str("show", row.ShowName).
		Msg("created link rule")

	return rowToEntry(row), nil
}

// DeleteEntry removes a rule row.
func (s *SQLStore) DeleteEntry(ctx context.Context, id int64) error {
	n, err := s.queries.DeleteLinkRule(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	if n == 0 {
		return ErrRuleNotFound
	}
	s.logger.Info().Int64("id", id).Msg("deleted link rule")
	return nil
}

// SaveResolvedIDs caches resolved show ids on the matching rows.
func (s *SQLStore) SaveResolvedIDs(ctx context.Context, resolved []Resolution) error {
	if len(resolved) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	q := s.queries.WithTx(tx)
	for _, r := range resolved {
		if err := q.UpdateLinkRuleResolvedIDs(ctx, sqlc.UpdateLinkRuleResolvedIDsParams{
			EpisodeID:  nullInt64(r.EpisodeID),
			SeriesID:   nullInt64(r.SeriesID),
			TvdbID:     nullInt64(r.TvdbID),
			MovieTitle: r.MovieTitle,
			ShowName:   r.ShowName,
		}); err != nil {
			return fmt.Errorf("failed to save resolved ids: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit resolved ids: %w", err)
	}
	return nil
}

func rowToEntry(row sqlc.LinkRule) *Entry {
	e := &Entry{
		ID:         row.ID,
		MovieTitle: row.MovieTitle,
		TmdbID:     row.TmdbID,
		ShowName:   row.ShowName,
		Episodes:   ParseEpisodes(row.Episodes),
		Season:     row.Season,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
	if e.Episodes == nil {
		e.Episodes = []int{}
	}
	if row.EpisodeID.Valid {
		e.EpisodeID = &row.EpisodeID.Int64
	}
	if row.SeriesID.Valid {
		e.SeriesID = &row.SeriesID.Int64
	}
	if row.TvdbID.Valid {
		e.TvdbID = &row.TvdbID.Int64
	}
	return e
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
