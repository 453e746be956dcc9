package arr

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
)

// Radarr is the movie library client.
type Radarr struct {
	c *client
}

// NewRadarr creates a Radarr client. It returns ErrNotConfigured when the URL
// or API key is missing.
func NewRadarr(cfg Config, logger *zerolog.Logger) (*Radarr, error) {
	c, err := newClient("radarr", cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Radarr{c: c}, nil
}

// ListMovies returns every movie in the library.
func (r *Radarr) ListMovies(ctx context.Context) ([]Movie, error) {
	var items []apiMovie
	if err := r.c.do(ctx, http.MethodGet, "movie", nil, &items); err != nil {
		return nil, fmt.Errorf("failed to list movies: %w", err)
	}

	movies := make([]Movie, len(items))
	for i := range items {
		movies[i] = items[i].toMovie()
	}
	return movies, nil
}

func (r *Radarr) RescanMovie(ctx context.Context, movieID int64) error {
	return r.c.command(ctx, "RescanMovie", "movieId", movieID)
}

func (r *Radarr) RefreshMovie(ctx context.Context, movieID int64) error {
	return r.c.command(ctx, "RefreshMovie", "movieId", movieID)
}

// Validate verifies the connection and returns the server version.
func (r *Radarr) Validate(ctx context.Context) (string, error) {
	return r.c.validate(ctx, "Radarr")
}
