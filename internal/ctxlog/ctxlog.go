// SPDX-License-Identifier: MPL-2.0

// Package ctxlog carries a slog.Logger through context.Context and builds the
// CLI logger on top of a charmbracelet/log handler.
package ctxlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
)

// Log output formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ErrInvalidFormat is the sentinel error wrapped by InvalidFormatError.
var ErrInvalidFormat = errors.New("invalid log format")

type (
	// key is an unexported type to prevent collisions with context keys from other packages.
	key struct{}

	// Format selects the log line encoding.
	Format string

	// InvalidFormatError is returned for an unknown Format.
	InvalidFormatError struct {
		Value Format
	}

	// Options configures New.
	Options struct {
		// Level is a level name: debug, info, warn or error.
		Level  string
		Format Format
	}
)

var loggerKey = key{}

// Validate returns nil if the Format is supported.
func (f Format) Validate() error {
	switch f {
	case FormatText, FormatJSON:
		return nil
	default:
		return &InvalidFormatError{Value: f}
	}
}

// Error implements the error interface.
func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid log format %q (valid: %s, %s)", e.Value, FormatText, FormatJSON)
}

// Unwrap returns ErrInvalidFormat so callers can use errors.Is for programmatic detection.
func (e *InvalidFormatError) Unwrap() error { return ErrInvalidFormat }

// New creates a slog.Logger writing to w through a charmbracelet/log handler.
func New(w io.Writer, opts Options) (*slog.Logger, error) {
	level := log.InfoLevel
	if opts.Level != "" {
		parsed, err := log.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	format := opts.Format
	if format == "" {
		format = FormatText
	}
	if err := format.Validate(); err != nil {
		return nil, err
	}

	formatter := log.TextFormatter
	if format == FormatJSON {
		formatter = log.JSONFormatter
	}

	handler := log.NewWithOptions(w, log.Options{
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: format == FormatJSON,
	})
	return slog.New(handler), nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// WithLogger returns a new context with the provided logger embedded.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext extracts the slog.Logger from a context. If no logger is
// found, it returns slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
