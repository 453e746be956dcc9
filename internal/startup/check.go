package startup

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Validator is implemented by the arr clients.
type Validator interface {
	Validate(ctx context.Context) (string, error)
}

// ServiceStatus is the outcome of one connectivity check.
type ServiceStatus struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK reports whether the check succeeded.
func (s ServiceStatus) OK() bool {
	return s.Error == ""
}

// CheckService validates a service with retry. A nil validator means the
// service is not configured and is reported as such without calling out.
func CheckService(ctx context.Context, name string, v Validator, cfg RetryConfig, logger *zerolog.Logger) ServiceStatus {
	status := ServiceStatus{Name: name}
	if v == nil {
		status.Error = "not configured"
		logger.Warn().Str("service", name).Msg("service not configured, passes will be no-ops")
		return status
	}

	err := WithRetry(ctx, "validate "+name, cfg, func(ctx context.Context) error {
		version, err := v.Validate(ctx)
		if err != nil {
			return err
		}
		status.Version = version
		return nil
	}, logger)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			status.Error = "canceled"
		} else {
			status.Error = err.Error()
		}
		return status
	}

	logger.Info().Str("service", name).Str("version", status.Version).Msg("connected")
	return status
}
