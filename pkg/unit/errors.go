// SPDX-License-Identifier: MPL-2.0

package unit

import (
	"errors"
	"fmt"
)

// ErrConfiguration is the sentinel error wrapped by ConfigurationError.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError reports a catalog or ordering defect: a malformed unit,
// a reference to a unit that is unknown or not yet built, or a cycle.
// It is always detected before the affected unit runs any external command.
type ConfigurationError struct {
	// Unit is the offending unit, empty for catalog-level problems.
	Unit Name
	// Field locates the problem inside the unit, e.g. "options[2].ref".
	Field string
	// Reason is a human-readable description.
	Reason string
	// Suggestion optionally proposes a fix, such as a valid unit order.
	Suggestion string
	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	msg := "configuration error"
	if e.Unit != "" {
		msg += fmt.Sprintf(": unit %q", e.Unit)
	}
	if e.Field != "" {
		msg += ": " + e.Field
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the sentinel and the cause so both errors.Is(err,
// ErrConfiguration) and errors.Is(err, cause) hold.
func (e *ConfigurationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrConfiguration, e.Err}
	}
	return []error{ErrConfiguration}
}

func configErr(name Name, field, reason string) *ConfigurationError {
	return &ConfigurationError{Unit: name, Field: field, Reason: reason}
}

func wrapConfigErr(name Name, field string, err error) *ConfigurationError {
	return &ConfigurationError{Unit: name, Field: field, Err: err}
}
