package backup

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrInvalidArgument marks a missing or malformed request parameter.
// Callers wrap it with detail; test with errors.Is.
var ErrInvalidArgument = errors.New("invalid argument")

// RemoteError is a non-success response from the remote backup service.
type RemoteError struct {
	Op         string
	StatusCode int
	Status     string // remote status code name when provided, e.g. RESOURCE_EXHAUSTED
	Message    string
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s: remote status %d: %s", e.Op, e.StatusCode, msg)
}

// TransportError is a failure to reach the remote service at all.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: transport: %v", e.Op, e.Err) }

func (e *TransportError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a remote 404.
func IsNotFound(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.StatusCode == http.StatusNotFound
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// IsInvalidArgument reports whether err is (or wraps) ErrInvalidArgument.
func IsInvalidArgument(err error) bool { return errors.Is(err, ErrInvalidArgument) }
