package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a tool failure. The set is closed: every failure a
// dispatch can return carries exactly one of these kinds.
type ErrorKind string

const (
	ErrUnknownTool       ErrorKind = "unknown_tool"
	ErrInvalidArguments  ErrorKind = "invalid_arguments"
	ErrMissingCredential ErrorKind = "missing_credential"
	ErrUpstream          ErrorKind = "upstream_error"
	ErrNotFound          ErrorKind = "not_found"
	ErrIO                ErrorKind = "io_failure"
)

// ToolError is a classified tool failure. Dispatch never surfaces a raw
// error: everything a caller sees is a *ToolError.
type ToolError struct {
	Kind    ErrorKind
	Message string
	Status  int   // upstream HTTP status when one was observed, else 0
	Err     error // wrapped cause, may be nil
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ToolError) Unwrap() error { return e.Err }

// Errf builds a classified failure with a formatted message.
func Errf(kind ErrorKind, format string, args ...any) *ToolError {
	return &ToolError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// UpstreamErrf builds an upstream_error carrying the HTTP status it observed.
func UpstreamErrf(status int, format string, args ...any) *ToolError {
	return &ToolError{Kind: ErrUpstream, Status: status, Message: fmt.Sprintf(format, args...)}
}

// Wrapf builds a classified failure wrapping a cause.
func Wrapf(kind ErrorKind, err error, format string, args ...any) *ToolError {
	return &ToolError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// AsToolError unwraps err to a *ToolError if one is in its chain.
func AsToolError(err error) (*ToolError, bool) {
	var te *ToolError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
