package internal

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyInput       = errors.New("input is empty")
	ErrEmptyPrompt      = errors.New("prompt is empty")
	ErrTemperatureRange = errors.New("temperature out of range [0, 2]")
)

// InvalidIntentError reports an intent outside the fixed enumeration.
type InvalidIntentError struct {
	Value string
}

func (e *InvalidIntentError) Error() string {
	return fmt.Sprintf("invalid intent %q", e.Value)
}

// InvalidRoleError reports a role id missing from the catalog.
type InvalidRoleError struct {
	Value string
}

func (e *InvalidRoleError) Error() string {
	return fmt.Sprintf("invalid role %q", e.Value)
}

// ConfigurationError reports a missing or invalid provider setting. It is
// raised before any network call is attempted and is never retried.
type ConfigurationError struct {
	Setting string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("configuration error: %s", e.Setting)
	}
	return fmt.Sprintf("configuration error: %s: %v", e.Setting, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ExternalServiceError covers network failures, non-2xx responses, timeouts
// and unparsable provider payloads.
type ExternalServiceError struct {
	Op         string
	StatusCode int
	Timeout    bool
	Err        error
}

func (e *ExternalServiceError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("external service error: %s: timed out: %v", e.Op, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("external service error: %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("external service error: %s: %v", e.Op, e.Err)
	}
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// IsConfiguration reports whether err carries a ConfigurationError.
func IsConfiguration(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// IsExternal reports whether err carries an ExternalServiceError.
func IsExternal(err error) bool {
	var extErr *ExternalServiceError
	return errors.As(err, &extErr)
}
