// Package arr provides minimal clients for the Radarr and Sonarr v3 APIs:
// the calls needed to match movies to show specials and trigger rescans.
package arr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultAPIPath  = "/api/v3"
	DefaultThrottle = 500 * time.Millisecond
	DefaultTimeout  = 30 * time.Second

	//nolint:gosec // header name constant, not a credential
	apiKeyHeader = "X-Api-Key"
)

// Config contains connection settings for one service instance.
type Config struct {
	URL      string
	APIPath  string
	APIKey   string
	Throttle time.Duration
	Timeout  time.Duration
}

// Configured reports whether the URL and API key are both set.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.URL) != "" && strings.TrimSpace(c.APIKey) != ""
}

type client struct {
	service    string
	baseURL    string
	apiKey     string
	httpClient *http.Client
	throttle   *Throttle
	logger     zerolog.Logger
}

func newClient(service string, cfg Config, logger *zerolog.Logger) (*client, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("%s: %w", service, ErrNotConfigured)
	}

	apiPath := cfg.APIPath
	if apiPath == "" {
		apiPath = DefaultAPIPath
	}
	apiPath = "/" + strings.Trim(apiPath, "/")

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	baseURL := strings.TrimRight(cfg.URL, "/") + apiPath

	return &client{
		service:    service,
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		throttle:   NewThrottle(cfg.Throttle),
		logger: logger.With().
			Str("component", service+"-client").
			Str("url", baseURL).
			Logger(),
	}, nil
}

// do executes one request. body, when non-nil, is encoded as JSON; result,
// when non-nil, receives the decoded response.
func (c *client) do(ctx context.Context, method, path string, body, result any) error {
	if err := c.throttle.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+strings.TrimLeft(path, "/"), reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Msg("executing request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", c.service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{
			Service:    c.service,
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	if result == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", c.service, err)
	}
	return nil
}

// command posts a named command such as RescanSeries.
func (c *client) command(ctx context.Context, name, idField string, id int64) error {
	payload := map[string]any{"name": name, idField: id}
	if err := c.do(ctx, http.MethodPost, "command", payload, nil); err != nil {
		return fmt.Errorf("failed to send %s: %w", name, err)
	}
	c.logger.Debug().Str("command", name).Int64(idField, id).Msg("command sent")
	return nil
}

// validate checks the system status endpoint and the reported app name.
func (c *client) validate(ctx context.Context, expectedApp string) (string, error) {
	var status struct {
		AppName string `json:"appName"`
		Version string `json:"version"`
	}
	if err := c.do(ctx, http.MethodGet, "system/status", nil, &status); err != nil {
		return "", fmt.Errorf("failed to validate connection: %w", err)
	}
	if status.AppName != "" && !strings.EqualFold(status.AppName, expectedApp) {
		return "", fmt.Errorf("%w: expected %s but connected to %s", ErrWrongService, expectedApp, status.AppName)
	}
	return status.Version, nil
}
