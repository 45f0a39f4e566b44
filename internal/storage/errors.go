package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedServiceKind is returned by GetService for kinds outside Blob, Queue and Table.
	ErrUnsupportedServiceKind = errors.New("unsupported service kind")

	// ErrInvalidConnectionString is matched by every connection string parse failure.
	ErrInvalidConnectionString = errors.New("invalid connection string")
)

// ConnectionStringError describes why a connection string was rejected.
type ConnectionStringError struct {
	Reason string
}

func (e *ConnectionStringError) Error() string {
	return fmt.Sprintf("invalid connection string: %s", e.Reason)
}

// Is makes errors.Is(err, ErrInvalidConnectionString) hold.
func (e *ConnectionStringError) Is(target error) bool {
	return target == ErrInvalidConnectionString
}

func connStringErr(format string, args ...any) error {
	return &ConnectionStringError{Reason: fmt.Sprintf(format, args...)}
}

// ResponseError is a non-success response from the storage service.
type ResponseError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
}

func (e *ResponseError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("storage service returned %d %s", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("storage service returned %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// ArgumentError reports a missing or malformed positional argument.
type ArgumentError struct {
	Method string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Method, e.Reason)
}

// PathError reports a resource name that cannot be sent as a URL path.
type PathError struct {
	Name string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("invalid resource name %q", e.Name)
}
