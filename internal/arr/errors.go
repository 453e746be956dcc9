package arr

import (
	"errors"
	"fmt"
	"net"
)

var (
	ErrNotConfigured = errors.New("service is not configured")
	ErrNotFound      = errors.New("not found")
	ErrWrongService  = errors.New("connected to unexpected service")
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Service    string
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s %s %s: status %d: %s", e.Service, e.Method, e.Path, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s %s %s: status %d", e.Service, e.Method, e.Path, e.StatusCode)
}

// IsStatus reports whether err carries a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// IsTransient returns true for failures a caller should treat as a skip of
// the affected item: HTTP status errors and network errors.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
