package api

import (
	"context"
	"io/fs"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/plexlinker/plexlinker/internal/api/handlers"
	apimw "github.com/plexlinker/plexlinker/internal/api/middleware"
	"github.com/plexlinker/plexlinker/internal/linker"
	"github.com/plexlinker/plexlinker/internal/rules"
	"github.com/plexlinker/plexlinker/internal/startup"
)

// PassState exposes the link job state for the status endpoint.
type PassState interface {
	Running() bool
	MarkerPath() string
	LastReport() *linker.PassReport
}

// Info is static process information shown by the status endpoint.
type Info struct {
	Version     string
	RulesSource string
	MediaRoot   string
	StartTime   time.Time
}

// Deps are the components served by the admin API. Any of them may be nil;
// the affected routes then answer 503 or an empty result.
type Deps struct {
	Rules     rules.Store
	Scheduler handlers.TaskScheduler
	Pass      PassState
	Logs      LogsProvider
	LogFile   string
	Metrics   http.Handler
	UI        fs.FS
	Services  func() []startup.ServiceStatus
}

// Server handles HTTP requests for the admin API.
type Server struct {
	echo   *echo.Echo
	deps   Deps
	info   Info
	logger zerolog.Logger
}

// NewServer creates a new API server instance.
func NewServer(info Info, deps Deps, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	if info.StartTime.IsZero() {
		info.StartTime = time.Now()
	}

	s := &Server{
		echo:   e,
		deps:   deps,
		info:   info,
		logger: logger.With().Str("component", "api").Logger(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(apimw.SecurityHeaders())

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogMethod:    true,
		LogError:     true,
		LogRequestID: true,
		HandleError:  true,
		Skipper: func(c echo.Context) bool {
			p := c.Request().URL.Path
			return p == "/health" || p == "/metrics"
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			evt := s.logger.Debug()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				evt = s.logger.Error().Err(v.Error)
			}
			evt.Str("method", v.Method).
				Str("uri", v.URI).
				Str("requestId", v.RequestID).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	if s.deps.Metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.deps.Metrics))
	}

	api := s.echo.Group("/api/v1")
	api.GET("/status", s.getStatus)

	ruleHandlers := rules.NewHandlers(s.deps.Rules)
	ruleHandlers.RegisterRoutes(api.Group("/rules"))
	ruleHandlers.RegisterSettingsRoutes(api.Group("/settings"))

	handlers.NewSchedulerHandler(s.deps.Scheduler).RegisterRoutes(api.Group("/scheduler/tasks"))

	NewLogsHandlers(s.deps.Logs, s.deps.LogFile).RegisterRoutes(api.Group("/system/logs"))

	if s.deps.UI != nil {
		registerFrontendHandler(s.echo, s.deps.UI)
	}
}

// Start begins listening for HTTP requests. It returns http.ErrServerClosed
// after Shutdown.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("starting HTTP server")
	return s.echo.Start(address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// GET /health
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	Version     string                  `json:"version"`
	StartTime   string                  `json:"startTime"`
	RulesSource string                  `json:"rulesSource"`
	MediaRoot   string                  `json:"mediaRoot"`
	MediaRootOK bool                    `json:"mediaRootOk"`
	Running     bool                    `json:"running"`
	MarkerPath  string                  `json:"markerPath,omitempty"`
	LastPass    *linker.PassReport      `json:"lastPass,omitempty"`
	Services    []startup.ServiceStatus `json:"services"`
}

// GET /api/v1/status
func (s *Server) getStatus(c echo.Context) error {
	resp := statusResponse{
		Version:     s.info.Version,
		StartTime:   s.info.StartTime.Format(time.RFC3339),
		RulesSource: s.info.RulesSource,
		MediaRoot:   s.info.MediaRoot,
		MediaRootOK: linker.ValidMediaRoot(s.info.MediaRoot),
		Services:    []startup.ServiceStatus{},
	}
	if s.deps.Pass != nil {
		resp.Running = s.deps.Pass.Running()
		resp.MarkerPath = s.deps.Pass.MarkerPath()
		resp.LastPass = s.deps.Pass.LastReport()
	}
	if s.deps.Services != nil {
		if services := s.deps.Services(); services != nil {
			resp.Services = services
		}
	}
	return c.JSON(http.StatusOK, resp)
}
