//nolint:revive // Package name 'api' is intentionally generic for the HTTP API layer
package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/plexlinker/plexlinker/internal/logger"
)

// LogsProvider provides access to log data.
type LogsProvider interface {
	Entries(limit int, minLevel string) []logger.LogEntry
}

// LogsHandlers handles log-related HTTP endpoints.
type LogsHandlers struct {
	provider LogsProvider
	logFile  string
}

// NewLogsHandlers creates a new logs handlers instance. logFile may be empty
// when logging to console only.
func NewLogsHandlers(provider LogsProvider, logFile string) *LogsHandlers {
	return &LogsHandlers{provider: provider, logFile: logFile}
}

// RegisterRoutes registers log routes on the given group.
func (h *LogsHandlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetRecentLogs)
	g.GET("/download", h.DownloadLogFile)
}

// GetRecentLogs returns recent log entries, optionally filtered by
// ?level= and capped by ?limit=.
// GET /api/v1/system/logs
func (h *LogsHandlers) GetRecentLogs(c echo.Context) error {
	if h.provider == nil {
		return c.JSON(http.StatusOK, []logger.LogEntry{})
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}

	logs := h.provider.Entries(limit, c.QueryParam("level"))
	if logs == nil {
		logs = []logger.LogEntry{}
	}
	return c.JSON(http.StatusOK, logs)
}

// DownloadLogFile serves the current log file for download.
// GET /api/v1/system/logs/download
func (h *LogsHandlers) DownloadLogFile(c echo.Context) error {
	if h.logFile == "" {
		return echo.NewHTTPError(http.StatusNotFound, "no log file configured")
	}

	if _, err := os.Stat(h.logFile); os.IsNotExist(err) {
		return echo.NewHTTPError(http.StatusNotFound, "log file not found")
	}

	return c.Attachment(h.logFile, filepath.Base(h.logFile))
}
