// Package jobs runs link passes under a single-flight lock marker.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/plexlinker/plexlinker/internal/arr"
	"github.com/plexlinker/plexlinker/internal/linker"
	"github.com/plexlinker/plexlinker/internal/rules"
)

// DefaultMarkerFile is the lock marker name used when none is configured.
const DefaultMarkerFile = "pid.lock"

// MovieSource lists the movie library once per pass.
type MovieSource interface {
	ListMovies(ctx context.Context) ([]arr.Movie, error)
}

// PassRunner executes a reconciliation pass.
type PassRunner interface {
	RunPass(ctx context.Context, in linker.PassInput) (*linker.PassReport, error)
}

// PassObserver is told about every run, including refused ones.
type PassObserver interface {
	ObservePass(report *linker.PassReport, err error)
}

// Config configures a LinkJob.
type Config struct {
	MediaRoot      string
	ShowRootPrefix string
	MarkerPath     string
}

// LinkJob runs one pass at a time. A marker file represents the running
// state; while it exists every Run is a no-op. The marker records the pid
// and start time but is never reclaimed automatically, so a crashed run
// leaves it behind until removed by hand.
type LinkJob struct {
	cfg      Config
	store    rules.Store
	movies   MovieSource
	runner   PassRunner
	observer PassObserver
	logger   zerolog.Logger

	mu   sync.RWMutex
	last *linker.PassReport
}

// NewLinkJob creates a link job. store or movies may be nil when not
// configured; runs are then no-ops.
func NewLinkJob(cfg Config, store rules.Store, movies MovieSource, runner PassRunner, logger zerolog.Logger) *LinkJob {
	if cfg.MarkerPath == "" {
		cfg.MarkerPath = DefaultMarkerFile
	}
	return &LinkJob{
		cfg:    cfg,
		store:  store,
		movies: movies,
		runner: runner,
		logger: logger.With().Str("component", "linkjob").Logger(),
	}
}

// SetObserver registers an observer for run results.
func (j *LinkJob) SetObserver(o PassObserver) {
	j.observer = o
}

// MarkerPath returns the lock marker location.
func (j *LinkJob) MarkerPath() string {
	return j.cfg.MarkerPath
}

// Running reports whether the lock marker is present.
func (j *LinkJob) Running() bool {
	_, err := os.Lstat(j.cfg.MarkerPath)
	return err == nil
}

// LastReport returns the report of the most recent completed pass.
func (j *LinkJob) LastReport() *linker.PassReport {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.last
}

// Run executes one pass. It returns (nil, nil) without side effects when
// the media root is invalid, the rule store is unavailable or another pass
// holds the marker.
func (j *LinkJob) Run(ctx context.Context) (report *linker.PassReport, err error) {
	defer func() {
		if j.observer != nil {
			j.observer.ObservePass(report, err)
		}
	}()

	if !linker.ValidMediaRoot(j.cfg.MediaRoot) {
		j.logger.Info().Str("mediaRoot", j.cfg.MediaRoot).Msg("no valid media root configured, skipping link job")
		return &linker.PassReport{Skipped: true, SkipReason: "media root is not a directory"}, nil
	}

	acquired, err := j.acquire()
	if err != nil {
		return nil, err
	}
	if !acquired {
		j.logger.Info().Str("marker", j.cfg.MarkerPath).Msg("lock marker exists, another pass may be running")
		return nil, nil
	}
	defer j.release()

	report, err = j.run(ctx)
	if report != nil {
		j.mu.Lock()
		j.last = report
		j.mu.Unlock()
	}
	return report, err
}

func (j *LinkJob) run(ctx context.Context) (*linker.PassReport, error) {
	if j.store == nil {
		j.logger.Warn().Msg("no rule store configured, skipping link job")
		return &linker.PassReport{Skipped: true, SkipReason: "no rule store"}, nil
	}
	if j.movies == nil {
		j.logger.Warn().Msg("movie service not configured, skipping link job")
		return &linker.PassReport{Skipped: true, SkipReason: "movie service not configured"}, nil
	}

	set, err := j.store.ListRules(ctx)
	if err != nil {
		if errors.Is(err, rules.ErrStoreUnavailable) {
			j.logger.Warn().Err(err).Msg("rule store unavailable, skipping link job")
			return &linker.PassReport{Skipped: true, SkipReason: "rule store unavailable"}, nil
		}
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	if len(set) == 0 {
		j.logger.Info().Msg("no link rules found")
		return &linker.PassReport{Skipped: true, SkipReason: "no rules"}, nil
	}

	movies, err := j.movies.ListMovies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list movies: %w", err)
	}

	report, err := j.runner.RunPass(ctx, linker.PassInput{
		Rules:          set,
		Movies:         movies,
		MediaRoot:      j.cfg.MediaRoot,
		ShowRootPrefix: j.cfg.ShowRootPrefix,
	})
	if err != nil {
		return report, err
	}

	if w, ok := j.store.(rules.ResolvedIDWriter); ok && len(report.Resolved) > 0 {
		if err := w.SaveResolvedIDs(ctx, report.Resolved); err != nil {
			j.logger.Warn().Err(err).Msg("failed to save resolved ids")
		}
	}
	return report, nil
}

// acquire creates the marker. It returns false when the marker already
// exists.
func (j *LinkJob) acquire() (bool, error) {
	if dir := filepath.Dir(j.cfg.MarkerPath); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return false, fmt.Errorf("failed to create lock directory: %w", err)
		}
	}

	f, err := os.OpenFile(j.cfg.MarkerPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644) //nolint:gosec // marker path comes from config
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create lock marker: %w", err)
	}
	defer f.Close()

	_, _ = fmt.Fprintf(f, "pid=%d\nstarted=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	return true, nil
}

func (j *LinkJob) release() {
	if err := os.Remove(j.cfg.MarkerPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		j.logger.Error().Err(err).Str("marker", j.cfg.MarkerPath).Msg("failed to remove lock marker")
	}
}
