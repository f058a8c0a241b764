package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	ErrNotFound = errors.New("resource not found")

	ErrInvalidPort     = errors.New("invalid port definition")
	ErrNoAllowedCode   = errors.New("no allowed code left for digital port")
	ErrMeasurement     = errors.New("measurement unavailable")
	ErrCacheMissing    = errors.New("cached run directory missing")
	ErrUnsupportedTool = errors.New("unsupported simulator/model combination")
)

// NewNotFoundError wraps ErrNotFound with the resource kind and name.
func NewNotFoundError(resource string, name string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, resource, name)
}

// NewPortError reports an invalid port constraint.
func NewPortError(port string, reason string) error {
	return fmt.Errorf("%w %s: %s", ErrInvalidPort, port, reason)
}
