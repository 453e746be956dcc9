package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/plexlinker/plexlinker/internal/arr"
	"github.com/plexlinker/plexlinker/internal/config"
	"github.com/plexlinker/plexlinker/internal/database"
	"github.com/plexlinker/plexlinker/internal/jobs"
	"github.com/plexlinker/plexlinker/internal/linker"
	"github.com/plexlinker/plexlinker/internal/logger"
	"github.com/plexlinker/plexlinker/internal/metrics"
	"github.com/plexlinker/plexlinker/internal/rules"
	"github.com/plexlinker/plexlinker/internal/startup"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg *config.Config
	log *logger.Logger

	db    *database.DB
	store rules.Store
	yaml  *rules.YAMLStore

	radarr *arr.Radarr
	sonarr *arr.Sonarr

	job      *jobs.LinkJob
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

type appOptions struct {
	// consoleOut receives console log output; defaults to stderr so
	// command output on stdout stays clean.
	consoleOut io.Writer
	// withServices builds the arr clients and the link job.
	withServices bool
	// optionalStore keeps going without a rule store when it fails to
	// open. Passes are then skipped and the rule routes answer 503.
	optionalStore bool
}

func newApp(cfg *config.Config, opts appOptions) (*app, error) {
	out := opts.consoleOut
	if out == nil {
		out = os.Stderr
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
		Out:        out,
	})

	a := &app{cfg: cfg, log: log}
	if err := a.openStore(); err != nil {
		if !opts.optionalStore {
			a.close()
			return nil, err
		}
		a.log.Error().Err(err).Str("rulesSource", cfg.Rules.Source).Msg("rule store unavailable, continuing without rules")
		a.dropStore()
	}

	if opts.withServices {
		if err := a.buildServices(); err != nil {
			a.close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) openStore() error {
	switch a.cfg.Rules.Source {
	case config.RulesSourceYAML:
		a.yaml = rules.NewYAMLStore(rules.YAMLStoreConfig{
			RulesPath:    a.cfg.Rules.YAMLPath,
			SettingsPath: a.cfg.Rules.SettingsPath,
			ArchiveDir:   a.cfg.Rules.ArchiveDir,
		}, a.log.Logger)
		a.store = a.yaml
		return nil

	default:
		db, err := database.New(a.cfg.Database.Path)
		if err != nil {
			return err
		}
		a.db = db
		if err := db.Migrate(context.Background()); err != nil {
			return err
		}
		a.store = rules.NewSQLStore(db.Conn(), a.log.Logger)
		return nil
	}
}

// dropStore releases a partially opened store. store is reset to a nil
// interface so consumers see "no store" rather than a typed nil.
func (a *app) dropStore() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close database")
		}
		a.db = nil
	}
	a.store = nil
	a.yaml = nil
}

func (a *app) buildServices() error {
	var err error
	clientLog := a.log.Logger

	a.radarr, err = arr.NewRadarr(a.arrConfig(a.cfg.Radarr), &clientLog)
	if err != nil && !errors.Is(err, arr.ErrNotConfigured) {
		return err
	}
	a.sonarr, err = arr.NewSonarr(a.arrConfig(a.cfg.Sonarr), &clientLog)
	if err != nil && !errors.Is(err, arr.ErrNotConfigured) {
		return err
	}

	mode, err := a.cfg.Media.Mode()
	if err != nil {
		return err
	}

	// A pass needs both services; with either missing the job runs with no
	// movie source and every run is a logged no-op.
	var movies jobs.MovieSource
	var runner jobs.PassRunner
	if a.radarr != nil && a.sonarr != nil {
		engine := linker.NewEngine(a.sonarr, a.radarr, a.log.Logger)
		engine.SetOwnership(linker.Ownership{UID: a.cfg.Media.PUID, GID: a.cfg.Media.PGID, Mode: mode})
		movies = a.radarr
		runner = engine
	} else {
		a.log.Warn().
			Bool("radarr", a.radarr != nil).
			Bool("sonarr", a.sonarr != nil).
			Msg("radarr and sonarr must both be configured, passes will be skipped")
	}

	a.job = jobs.NewLinkJob(jobs.Config{
		MediaRoot:      a.cfg.Media.Root,
		ShowRootPrefix: a.cfg.Media.ShowRootPrefix,
		MarkerPath:     a.cfg.Media.LockPath,
	}, a.store, movies, runner, a.log.Logger)

	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.New(a.registry)
	a.job.SetObserver(a.metrics)
	return nil
}

func (a *app) arrConfig(s config.ServiceConfig) arr.Config {
	return arr.Config{
		URL:      s.URL,
		APIPath:  s.APIPath,
		APIKey:   s.APIKey,
		Throttle: a.cfg.Client.Throttle(),
		Timeout:  a.cfg.Client.Timeout(),
	}
}

// checkServices validates both arr services. Failures are reported, not
// fatal: each pass handles an unreachable service on its own.
func (a *app) checkServices(ctx context.Context, retry startup.RetryConfig) []startup.ServiceStatus {
	log := a.log.WithComponent("startup")

	var radarr, sonarr startup.Validator
	if a.radarr != nil {
		radarr = a.radarr
	}
	if a.sonarr != nil {
		sonarr = a.sonarr
	}

	return []startup.ServiceStatus{
		startup.CheckService(ctx, "radarr", radarr, retry, &log),
		startup.CheckService(ctx, "sonarr", sonarr, retry, &log),
	}
}

func (a *app) componentLogger(name string) zerolog.Logger {
	return a.log.WithComponent(name)
}

func (a *app) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close database")
		}
	}
	if err := a.log.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warn: failed to close log file: %v\n", err)
	}
}
