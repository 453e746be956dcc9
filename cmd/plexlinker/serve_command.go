package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/plexlinker/plexlinker/internal/api"
	"github.com/plexlinker/plexlinker/internal/config"
	"github.com/plexlinker/plexlinker/internal/jobs"
	"github.com/plexlinker/plexlinker/internal/metrics"
	"github.com/plexlinker/plexlinker/internal/scheduler"
	"github.com/plexlinker/plexlinker/internal/scheduler/tasks"
	"github.com/plexlinker/plexlinker/internal/startup"
	"github.com/plexlinker/plexlinker/internal/watcher"
	"github.com/plexlinker/plexlinker/web"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	var host string
	var port int
	var intervalMinutes int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run passes on a schedule and serve the admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("interval") {
				cfg.Scheduler.IntervalMinutes = intervalMinutes
			}
			return runServe(runContext(cmd), cfg)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Address to bind the admin API to")
	cmd.Flags().IntVar(&port, "port", 0, "Port for the admin API")
	cmd.Flags().IntVar(&intervalMinutes, "interval", 0, "Minutes between passes (minimum 1)")
	return cmd
}

// instanceLockPath places the flock next to the pass marker, or in the
// temp dir when no media root is configured.
func instanceLockPath(cfg *config.Config) string {
	if cfg.Media.LockPath != "" {
		return filepath.Join(filepath.Dir(cfg.Media.LockPath), "plexlinker.instance.lock")
	}
	return filepath.Join(os.TempDir(), "plexlinker.instance.lock")
}

// serviceStatuses is filled in by the background connectivity check.
type serviceStatuses struct {
	mu       sync.RWMutex
	statuses []startup.ServiceStatus
}

func (s *serviceStatuses) set(v []startup.ServiceStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = v
}

func (s *serviceStatuses) get() []startup.ServiceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]startup.ServiceStatus(nil), s.statuses...)
}

// newServeServer wires the admin API to the app. a.store may be nil.
func newServeServer(a *app, sched *scheduler.Scheduler, services func() []startup.ServiceStatus) *api.Server {
	deps := api.Deps{
		Rules:     a.store,
		Scheduler: sched,
		Pass:      a.job,
		Logs:      a.log.Recent(),
		LogFile:   a.log.FilePath(),
		UI:        web.UI(),
		Services:  services,
	}
	if a.cfg.Metrics.Enabled {
		deps.Metrics = metrics.Handler(a.registry)
	}
	return api.NewServer(api.Info{
		Version:     config.Version,
		RulesSource: a.cfg.Rules.Source,
		MediaRoot:   a.cfg.Media.Root,
	}, deps, a.log.Logger)
}

func runServe(parent context.Context, cfg *config.Config) error {
	signalCtx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	lock, err := jobs.AcquireInstanceLock(instanceLockPath(cfg))
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	a, err := newApp(cfg, appOptions{consoleOut: os.Stdout, withServices: true, optionalStore: true})
	if err != nil {
		return err
	}
	defer a.close()

	log := a.componentLogger("serve")
	log.Info().
		Str("version", config.Version).
		Str("rulesSource", cfg.Rules.Source).
		Str("mediaRoot", cfg.Media.Root).
		Str("instanceLock", lock.Path()).
		Msg("starting plexlinker")

	statuses := &serviceStatuses{}
	go func() {
		statuses.set(a.checkServices(signalCtx, startup.DefaultRetryConfig()))
	}()

	sched, err := scheduler.New(a.log.Logger)
	if err != nil {
		return err
	}
	if err := tasks.RegisterLinkTask(sched, a.job, cfg.Scheduler.Interval(), a.log.Logger); err != nil {
		return err
	}

	var watch *watcher.Service
	if a.yaml != nil {
		watch, err = watcher.NewService(
			watcher.DefaultConfig(),
			[]string{a.yaml.RulesPath(), a.yaml.SettingsPath()},
			func() error { return sched.RunNow(tasks.LinkTaskID) },
			a.log.Logger,
		)
		if err != nil {
			log.Warn().Err(err).Msg("failed to create rules watcher, changes will be picked up on the next scheduled pass")
		}
	}

	server := newServeServer(a, sched, statuses.get)

	if err := sched.Start(); err != nil {
		return err
	}
	if watch != nil {
		watch.Start()
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(cfg.Server.Address())
	}()

	select {
	case <-signalCtx.Done():
		log.Info().Msg("shutdown requested")
	case err = <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if serr := server.Shutdown(shutdownCtx); serr != nil {
		log.Warn().Err(serr).Msg("failed to shut down HTTP server")
	}
	if watch != nil {
		if werr := watch.Stop(); werr != nil {
			log.Warn().Err(werr).Msg("failed to stop rules watcher")
		}
	}
	if serr := sched.Stop(); serr != nil {
		log.Warn().Err(serr).Msg("failed to stop scheduler")
	}

	if err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
