package arr

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"
)

// Sonarr is the show library client.
type Sonarr struct {
	c *client
}

// NewSonarr creates a Sonarr client. It returns ErrNotConfigured when the URL
// or API key is missing.
func NewSonarr(cfg Config, logger *zerolog.Logger) (*Sonarr, error) {
	c, err := newClient("sonarr", cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Sonarr{c: c}, nil
}

// LookupSeries returns the best match for a free-text title. It returns
// ErrNotFound when the lookup is empty.
func (s *Sonarr) LookupSeries(ctx context.Context, term string) (*Series, error) {
	var results []Series
	path := "series/lookup?term=" + url.QueryEscape(term)
	if err := s.c.do(ctx, http.MethodGet, path, nil, &results); err != nil {
		return nil, fmt.Errorf("failed to look up series %q: %w", term, err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("series %q: %w", term, ErrNotFound)
	}
	return &results[0], nil
}

// ListEpisodes returns all episodes of a series.
func (s *Sonarr) ListEpisodes(ctx context.Context, seriesID int64) ([]Episode, error) {
	var episodes []Episode
	path := "episode?seriesId=" + strconv.FormatInt(seriesID, 10)
	if err := s.c.do(ctx, http.MethodGet, path, nil, &episodes); err != nil {
		return nil, fmt.Errorf("failed to list episodes for series %d: %w", seriesID, err)
	}
	return episodes, nil
}

func (s *Sonarr) RescanSeries(ctx context.Context, seriesID int64) error {
	return s.c.command(ctx, "RescanSeries", "seriesId", seriesID)
}

func (s *Sonarr) RefreshSeries(ctx context.Context, seriesID int64) error {
	return s.c.command(ctx, "RefreshSeries", "seriesId", seriesID)
}

// Validate verifies the connection and returns the server version.
func (s *Sonarr) Validate(ctx context.Context) (string, error) {
	return s.c.validate(ctx, "Sonarr")
}
