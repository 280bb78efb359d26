// SPDX-License-Identifier: MPL-2.0

// Package types defines small value types shared by the catalog, the
// orchestrator and the CLI. It imports only the standard library.
package types

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidFilesystemPath is the sentinel error wrapped by InvalidFilesystemPathError.
	ErrInvalidFilesystemPath = errors.New("invalid filesystem path")
	// ErrInvalidRelativePath is the sentinel error wrapped by InvalidRelativePathError.
	ErrInvalidRelativePath = errors.New("invalid relative path")
)

type (
	// FilesystemPath represents an absolute or relative filesystem path.
	// A valid path must be non-empty and not whitespace-only.
	FilesystemPath string

	// InvalidFilesystemPathError is returned when a FilesystemPath value is
	// empty or whitespace-only.
	InvalidFilesystemPathError struct {
		Value FilesystemPath
	}

	// RelativePath is a slash-separated path that stays inside the directory
	// it is joined to. The zero value ("") is valid and means "the directory itself".
	RelativePath string

	// InvalidRelativePathError is returned when a RelativePath is absolute or
	// climbs out of its base directory.
	InvalidRelativePathError struct {
		Value  RelativePath
		Reason string
	}
)

// String returns the string representation of the FilesystemPath.
func (p FilesystemPath) String() string { return string(p) }

// Validate returns an error if the path is empty or whitespace-only.
func (p FilesystemPath) Validate() error {
	if strings.TrimSpace(string(p)) == "" {
		return &InvalidFilesystemPathError{Value: p}
	}
	return nil
}

// Join returns p with the relative path appended. An empty rel returns p cleaned.
func (p FilesystemPath) Join(rel RelativePath) FilesystemPath {
	if rel == "" {
		return FilesystemPath(filepath.Clean(string(p)))
	}
	return FilesystemPath(filepath.Join(string(p), filepath.FromSlash(string(rel))))
}

// Error implements the error interface for InvalidFilesystemPathError.
func (e *InvalidFilesystemPathError) Error() string {
	return fmt.Sprintf("invalid filesystem path %q: must be non-empty", e.Value)
}

// Unwrap returns ErrInvalidFilesystemPath for errors.Is() compatibility.
func (e *InvalidFilesystemPathError) Unwrap() error { return ErrInvalidFilesystemPath }

// String returns the string representation of the RelativePath.
func (p RelativePath) String() string { return string(p) }

// Validate returns an error if the path is absolute or escapes its base.
func (p RelativePath) Validate() error {
	if p == "" {
		return nil
	}
	s := string(p)
	if strings.TrimSpace(s) == "" {
		return &InvalidRelativePathError{Value: p, Reason: "must not be whitespace-only"}
	}
	if strings.HasPrefix(s, "/") || filepath.IsAbs(s) || filepath.VolumeName(s) != "" {
		return &InvalidRelativePathError{Value: p, Reason: "must be relative"}
	}
	clean := filepath.ToSlash(filepath.Clean(filepath.FromSlash(s)))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return &InvalidRelativePathError{Value: p, Reason: "must not escape its base directory"}
	}
	return nil
}

// Error implements the error interface for InvalidRelativePathError.
func (e *InvalidRelativePathError) Error() string {
	return fmt.Sprintf("invalid relative path %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidRelativePath for errors.Is() compatibility.
func (e *InvalidRelativePathError) Unwrap() error { return ErrInvalidRelativePath }
