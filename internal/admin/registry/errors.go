// Package registry provides the process-wide store of registered apps, models
// and views. It is populated once during startup, frozen, and read-only for
// the remainder of the process.
package registry

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a bad descriptor or registry setup. It surfaces
// at startup and is never recovered: it indicates a programming or deployment
// mistake, not bad user input.
type ConfigurationError struct {
	Subject string
	Reason  string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Subject, e.Reason)
}

// NotFoundError reports an unknown model, view or record.
type NotFoundError struct {
	Resource   string
	Identifier any
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Identifier == nil {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %v not found", e.Resource, e.Identifier)
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConfiguration returns true if the error is a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

func configErr(subject, format string, args ...any) error {
	return &ConfigurationError{Subject: subject, Reason: fmt.Sprintf(format, args...)}
}
