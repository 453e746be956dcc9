// Package linker reconciles the symlink tree: it matches link rules against
// the movie and show libraries and links movie files in as show specials.
package linker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/plexlinker/plexlinker/internal/arr"
	"github.com/plexlinker/plexlinker/internal/pathutil"
	"github.com/plexlinker/plexlinker/internal/rules"
)

// ShowLibrary is the show service as used by a pass.
type ShowLibrary interface {
	LookupSeries(ctx context.Context, term string) (*arr.Series, error)
	ListEpisodes(ctx context.Context, seriesID int64) ([]arr.Episode, error)
	RescanSeries(ctx context.Context, seriesID int64) error
	RefreshSeries(ctx context.Context, seriesID int64) error
}

// MovieLibrary is the movie service as used by a pass.
type MovieLibrary interface {
	RescanMovie(ctx context.Context, movieID int64) error
}

// PassInput is everything one pass reads.
type PassInput struct {
	Rules          rules.RuleSet
	Movies         []arr.Movie
	MediaRoot      string
	ShowRootPrefix string
}

// Engine runs reconciliation passes.
type Engine struct {
	shows     ShowLibrary
	movies    MovieLibrary
	ownership Ownership
	logger    zerolog.Logger
}

// NewEngine creates a link engine.
func NewEngine(shows ShowLibrary, movies MovieLibrary, logger zerolog.Logger) *Engine {
	return &Engine{
		shows:     shows,
		movies:    movies,
		ownership: Ownership{UID: -1, GID: -1},
		logger:    logger.With().Str("component", "linker").Logger(),
	}
}

// SetOwnership sets the mode and owner applied to linked movie files.
func (e *Engine) SetOwnership(o Ownership) {
	e.ownership = o
}

// Padding returns the episode number width for a series: 3 for anime, 2
// otherwise.
func Padding(series arr.Series) int {
	if series.IsAnime() {
		return 3
	}
	return 2
}

// showServiceFailed records a show service error. Transient failures get a
// distinct reason since the next pass usually succeeds.
func showServiceFailed(err error) Outcome {
	if arr.IsTransient(err) {
		return Outcome{Kind: OutcomeError, Reason: "show service unavailable: " + err.Error()}
	}
	return failed(err)
}

// ValidMediaRoot reports whether root is an existing directory.
func ValidMediaRoot(root string) bool {
	if strings.TrimSpace(root) == "" {
		return false
	}
	info, err := os.Stat(root)
	return err == nil && info.IsDir()
}

// RunPass executes one full pass. An invalid media root makes the pass a
// no-op. Service failures are recorded per item and never abort the pass;
// only context cancellation does.
func (e *Engine) RunPass(ctx context.Context, in PassInput) (*PassReport, error) {
	report := &PassReport{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Rules:     len(in.Rules),
	}
	log := e.logger.With().Str("pass", report.ID).Logger()
	defer func() { report.FinishedAt = time.Now() }()

	if !ValidMediaRoot(in.MediaRoot) {
		report.Skipped = true
		report.SkipReason = "media root is not a directory"
		log.Info().Str("mediaRoot", in.MediaRoot).Msg("no valid media root configured, skipping pass")
		return report, nil
	}

	report.Pruned = PruneBrokenSymlinks(in.MediaRoot)
	if report.Pruned > 0 {
		log.Info().Int("count", report.Pruned).Msg("removed broken symlinks")
	}

	byTmdb := make(map[int64]*arr.Movie, len(in.Movies))
	for i := range in.Movies {
		m := &in.Movies[i]
		if _, dup := byTmdb[m.TmdbID]; !dup {
			byTmdb[m.TmdbID] = m
		}
	}

	for _, rule := range in.Rules {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		e.linkRule(ctx, log, in, rule, byTmdb, report)
	}

	log.Info().
		Int("rules", report.Rules).
		Int("matched", report.Matched).
		Int("linked", report.Linked).
		Int("showsSkipped", report.ShowsSkipped).
		Int("moviesSkipped", report.MoviesSkipped).
		Int("errors", report.Errors).
		Msg("link pass complete")

	return report, nil
}

func (e *Engine) linkRule(ctx context.Context, log zerolog.Logger, in PassInput, rule rules.Rule, byTmdb map[int64]*arr.Movie, report *PassReport) {
	rlog := log.With().Str("movie", rule.MovieTitle).Logger()

	if !rule.Valid() {
		report.InvalidRules++
		rlog.Debug().Int64("tmdbId", rule.TmdbID).Msg("skipping rule with invalid TMDB id")
		return
	}

	movie, ok := byTmdb[rule.TmdbID]
	if !ok || !movie.HasFile || movie.File.RelativePath == "" {
		report.MoviesSkipped++
		rlog.Debug().Int64("tmdbId", rule.TmdbID).Msg("movie not in library or no file downloaded")
		return
	}
	report.Matched++

	file := pathutil.MovieFile(movie.Path, movie.File.RelativePath, movie.File.QualityName)
	source := filepath.Join(in.MediaRoot, filepath.FromSlash(pathutil.Sanitize(file.AbsolutePath)))

	for _, name := range rule.ShowNames() {
		out, res := e.linkShow(ctx, rlog.With().Str("show", name).Logger(), in, name, rule.Shows[name], file, source)
		out.Movie = rule.MovieTitle
		out.Show = name
		if res != nil {
			res.MovieTitle = rule.MovieTitle
			res.ShowName = name
			report.Resolved = append(report.Resolved, *res)
		}
		report.record(out)
	}

	if e.ownership.Enabled() {
		for _, err := range e.ownership.Apply(source) {
			rlog.Debug().Err(err).Str("path", source).Msg("failed to set movie file permissions")
		}
	}

	if movie.ID != 0 && e.movies != nil {
		if err := e.movies.RescanMovie(ctx, movie.ID); err != nil {
			report.RescanFailed++
			rlog.Error().Err(err).Int64("movieId", movie.ID).Msg("failed to rescan movie")
		}
	}
}

func (e *Engine) linkShow(ctx context.Context, log zerolog.Logger, in PassInput, name string, target rules.ShowTarget, file pathutil.MediaFile, source string) (Outcome, *rules.Resolution) {
	series, err := e.shows.LookupSeries(ctx, name)
	if err != nil {
		if errors.Is(err, arr.ErrNotFound) {
			log.Warn().Msg("show not found")
			return skipped("show not found"), nil
		}
		log.Error().Err(err).Msg("show lookup failed")
		return showServiceFailed(err), nil
	}
	if series.ID == 0 {
		log.Warn().Msg("show lookup returned no series id")
		return skipped("show not in library"), nil
	}

	if len(target.TargetEpisodes) == 0 {
		log.Debug().Msg("no target episode, skipping")
		return skipped("no target episode"), nil
	}

	episodes, err := e.shows.ListEpisodes(ctx, series.ID)
	if err != nil {
		log.Error().Err(err).Int64("seriesId", series.ID).Msg("failed to list episodes")
		return showServiceFailed(err), nil
	}

	// Multi-episode targets are matched on their first episode.
	want := target.TargetEpisodes[0]
	episode := findSpecial(episodes, want)
	if episode == nil {
		log.Warn().Int("episode", want).Msg("special episode not found")
		return skipped(fmt.Sprintf("episode S00E%d not found", want)), nil
	}

	res := &rules.Resolution{SeriesID: series.ID, EpisodeID: episode.ID, TvdbID: series.TvdbID}

	season := target.Season()
	title := series.Title
	if title == "" {
		title = name
	}
	fileName := pathutil.EpisodeFileName(
		title,
		season,
		pathutil.Pad(target.TargetEpisodes, Padding(*series)),
		pathutil.CleanEpisodeTitle(episode.Title),
		file,
	)
	showPath := strings.TrimPrefix(pathutil.NormalizePath(series.Path), in.ShowRootPrefix)
	rel := pathutil.Sanitize(path.Join(showPath, pathutil.SeasonFolder(season), fileName))
	destination := filepath.Join(in.MediaRoot, filepath.FromSlash(rel))

	ok, err := EnsureLink(source, destination)
	if err != nil {
		log.Error().Err(err).Str("destination", destination).Msg("failed to create symlink")
		return failed(err), res
	}
	if !ok {
		log.Warn().Str("source", source).Msg("source file not found")
		return skipped("source file not found"), res
	}
	log.Info().Str("destination", destination).Msg("linked movie as special")

	if e.ownership.Enabled() {
		for _, err := range e.ownership.ApplyLink(destination) {
			log.Debug().Err(err).Str("path", destination).Msg("failed to set link owner")
		}
	}

	out := linked(destination)
	if err := e.shows.RescanSeries(ctx, series.ID); err != nil {
		out.RescanFailed = true
		log.Error().Err(err).Int64("seriesId", series.ID).Msg("failed to rescan series")
	} else if err := e.shows.RefreshSeries(ctx, series.ID); err != nil {
		out.RescanFailed = true
		log.Error().Err(err).Int64("seriesId", series.ID).Msg("failed to refresh series")
	}

	return out, res
}

func findSpecial(episodes []arr.Episode, number int) *arr.Episode {
	for i := range episodes {
		if episodes[i].SeasonNumber == 0 && episodes[i].EpisodeNumber == number {
			return &episodes[i]
		}
	}
	return nil
}
