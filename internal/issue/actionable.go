// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"slices"
	"strings"
)

type (
	// ActionableError is a failure reported to the user: the operation
	// nativedeps was performing, the resource involved, the cause, what to
	// try next and, optionally, the catalog issue with the full guide.
	//
	// Errors are assembled with ErrorContext:
	//
	//	return issue.NewErrorContext().
	//		WithOperation("load catalog").
	//		WithResource("./units.cue").
	//		WithIssue(issue.CatalogLoadFailedId).
	//		Wrap(err).
	//		BuildError()
	ActionableError struct {
		// Operation is a verb phrase such as "load catalog" or "write manifest".
		Operation string
		// Resource is the file, directory or unit involved (optional).
		Resource string
		// Suggestions are printed below the message, one per line (optional).
		Suggestions []string
		// Cause is the underlying error (optional).
		Cause error
		// Issue links the error to a catalog entry (optional).
		Issue Id
	}

	// ErrorContext collects the parts of an ActionableError while a failure
	// is classified.
	ErrorContext struct {
		err ActionableError
	}
)

// NewErrorContext creates an empty ErrorContext.
func NewErrorContext() *ErrorContext {
	return &ErrorContext{}
}

// Error returns "failed to <operation>[: <resource>][: <cause>]".
func (e *ActionableError) Error() string {
	var msg strings.Builder
	msg.WriteString("failed to ")
	msg.WriteString(e.Operation)
	if e.Resource != "" {
		msg.WriteString(": ")
		msg.WriteString(e.Resource)
	}
	if e.Cause != nil {
		msg.WriteString(": ")
		msg.WriteString(e.Cause.Error())
	}
	return msg.String()
}

// Unwrap returns the cause for errors.Is and errors.As.
func (e *ActionableError) Unwrap() error {
	return e.Cause
}

// HasSuggestions reports whether any suggestion is attached.
func (e *ActionableError) HasSuggestions() bool {
	return len(e.Suggestions) > 0
}

// Format returns the message followed by the suggestions as bullets. In
// verbose mode the cause tree is appended, one error per line, indented by
// depth. Errors that wrap several others (errors.Join, or typed errors that
// unwrap to their sentinel and cause) contribute every branch.
func (e *ActionableError) Format(verbose bool) string {
	var msg strings.Builder
	msg.WriteString(e.Error())

	if len(e.Suggestions) > 0 {
		msg.WriteString("\n")
		for _, s := range e.Suggestions {
			msg.WriteString("\n  • ")
			msg.WriteString(s)
		}
	}

	if verbose && e.Cause != nil {
		msg.WriteString("\n\nError chain:")
		writeChain(&msg, e.Cause, 1)
	}
	return msg.String()
}

// Guide returns the linked issue rendered with glamour, or "" when no issue
// is linked or rendering fails.
func (e *ActionableError) Guide(stylePath string) string {
	is := Get(e.Issue)
	if is == nil {
		return ""
	}
	out, err := is.Render(stylePath)
	if err != nil {
		return ""
	}
	return out
}

func writeChain(msg *strings.Builder, err error, depth int) {
	msg.WriteString("\n")
	msg.WriteString(strings.Repeat("  ", depth))
	msg.WriteString("- ")
	msg.WriteString(err.Error())

	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, child := range u.Unwrap() {
			if child != nil {
				writeChain(msg, child, depth+1)
			}
		}
	case interface{ Unwrap() error }:
		if child := u.Unwrap(); child != nil {
			writeChain(msg, child, depth+1)
		}
	}
}

// WithOperation sets the operation, a verb phrase such as "build unit".
func (c *ErrorContext) WithOperation(op string) *ErrorContext {
	c.err.Operation = op
	return c
}

// WithResource sets the file, directory or unit involved.
func (c *ErrorContext) WithResource(res string) *ErrorContext {
	c.err.Resource = res
	return c
}

// WithSuggestion appends a suggestion.
func (c *ErrorContext) WithSuggestion(sug string) *ErrorContext {
	c.err.Suggestions = append(c.err.Suggestions, sug)
	return c
}

// WithIssue links the error to an issue catalog entry.
func (c *ErrorContext) WithIssue(id Id) *ErrorContext {
	c.err.Issue = id
	return c
}

// Wrap sets the cause.
func (c *ErrorContext) Wrap(err error) *ErrorContext {
	c.err.Cause = err
	return c
}

// BuildError returns the assembled *ActionableError, or nil when no
// operation was set. The context can be reused afterwards; later calls do
// not alter errors already built.
func (c *ErrorContext) BuildError() error {
	if c.err.Operation == "" {
		return nil
	}
	ae := c.err
	ae.Suggestions = slices.Clone(c.err.Suggestions)
	return &ae
}
