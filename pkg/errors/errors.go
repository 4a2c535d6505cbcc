// Package errors provides structured error types for compkgs.
//
// Error codes separate the failure classes a run can hit:
//   - INVALID_* and UNKNOWN_COMPONENT: configuration errors in manifests,
//     requirement strings or the config file
//   - AMBIGUOUS_MATCH: a requirement matched more than one registry package
//   - REGISTRY_DUMP, PROBE_FAILED, NETWORK_ERROR, FORMATTER_FAILED: an
//     external collaborator failed
//
// All of them abort a run. Unresolved requirements are not errors; they are
// reported as missing inputs.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidRequirement, "missing '==' in %q", raw)
//	if errors.Is(err, errors.ErrCodeInvalidRequirement) {
//	    // Handle configuration error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeNetwork, origErr, "failed to fetch %s", url)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Configuration errors
	ErrCodeInvalidInput       Code = "INVALID_INPUT"
	ErrCodeInvalidRequirement Code = "INVALID_REQUIREMENT"
	ErrCodeInvalidManifest    Code = "INVALID_MANIFEST"
	ErrCodeInvalidConfig      Code = "INVALID_CONFIG"
	ErrCodeUnknownComponent   Code = "UNKNOWN_COMPONENT"

	// Resolution errors
	ErrCodeAmbiguousMatch Code = "AMBIGUOUS_MATCH"

	// Resource not found errors
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"

	// External collaborator errors
	ErrCodeNetwork         Code = "NETWORK_ERROR"
	ErrCodeRegistryDump    Code = "REGISTRY_DUMP"
	ErrCodeProbeFailed     Code = "PROBE_FAILED"
	ErrCodeFormatterFailed Code = "FORMATTER_FAILED"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsConfiguration reports whether err stems from bad input data: a
// malformed requirement, manifest or config file, or a dependency on a
// component that does not exist.
func IsConfiguration(err error) bool {
	switch GetCode(err) {
	case ErrCodeInvalidInput, ErrCodeInvalidRequirement, ErrCodeInvalidManifest,
		ErrCodeInvalidConfig, ErrCodeUnknownComponent:
		return true
	}
	return false
}
