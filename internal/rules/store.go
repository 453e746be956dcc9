package rules

import (
	"context"
	"errors"
	"time"
)

var (
	ErrRuleNotFound     = errors.New("rule not found")
	ErrStoreUnavailable = errors.New("rule store is not configured")
	ErrInvalidRule      = errors.New("invalid rule")
	ErrDuplicateRule    = errors.New("rule for this movie and show already exists")
	ErrSettingNotFound  = errors.New("setting not found")
)

// Store is the read side used by a link pass.
type Store interface {
	ListRules(ctx context.Context) (RuleSet, error)
	GetSetting(ctx context.Context, key string) (string, bool, error)
}

// ResolvedIDWriter is implemented by stores that cache resolved show ids.
type ResolvedIDWriter interface {
	SaveResolvedIDs(ctx context.Context, resolved []Resolution) error
}

// Editor is the write side used by the admin API and CLI.
type Editor interface {
	Store
	ListEntries(ctx context.Context) ([]*Entry, error)
	GetEntry(ctx context.Context, id int64) (*Entry, error)
	CreateEntry(ctx context.Context, input CreateEntryInput) (*Entry, error)
	DeleteEntry(ctx context.Context, id int64) error
	SetSetting(ctx context.Context, key, value string) error
}

// Entry is one (movie, show) row of a rule as exposed by the admin API.
type Entry struct {
	ID         int64     `json:"id"`
	MovieTitle string    `json:"movieTitle"`
	TmdbID     int64     `json:"tmdbId"`
	ShowName   string    `json:"showName"`
	Episodes   []int     `json:"episodes"`
	Season     string    `json:"season"`
	EpisodeID  *int64    `json:"episodeId,omitempty"`
	SeriesID   *int64    `json:"seriesId,omitempty"`
	TvdbID     *int64    `json:"tvdbId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// CreateEntryInput contains fields for creating a rule entry.
type CreateEntryInput struct {
	MovieTitle string      `json:"movieTitle"`
	TmdbID     LooseID     `json:"tmdbId"`
	ShowName   string      `json:"showName"`
	Episodes   EpisodeList `json:"episodes"`
	Season     string      `json:"season"`
}

// Entries flattens a rule set into admin entries. Ids are not known for
// file-backed rules and are left zero.
func (rs RuleSet) Entries() []*Entry {
	var out []*Entry
	for _, r := range rs {
		for _, name := range r.ShowNames() {
			t := r.Shows[name]
			out = append(out, &Entry{
				MovieTitle: r.MovieTitle,
				TmdbID:     r.TmdbID,
				ShowName:   name,
				Episodes:   t.TargetEpisodes,
				Season:     t.Season(),
				EpisodeID:  optional(t.ResolvedEpisodeID),
				SeriesID:   optional(t.ResolvedSeriesID),
				TvdbID:     optional(t.ResolvedTvdbID),
			})
		}
	}
	return out
}

func optional(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}
