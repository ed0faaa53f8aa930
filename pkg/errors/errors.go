// Package errors provides structured error types for the fabpack flow.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI and the HTTP API
//   - Machine-readable error codes for programmatic handling
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: malformed input (architecture, netlist, placement)
//   - NOT_FOUND_*: resource not found
//   - Capacity/search exhaustion: DEVICE_EXHAUSTED, UNPLACEABLE_CLUSTER
//   - INTERNAL_*: broken invariants (programming errors)
//
// Legality failures inside the cluster legalizer are expected control flow
// and are represented as plain status values, never as errors from this
// package. Only search exhaustion and invariant violations surface here.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeDeviceExhausted, "no free sub-tile for cluster %d", id)
//	if errors.Is(err, errors.ErrCodeDeviceExhausted) {
//	    // Abort the run; no partial output is emitted.
//	}
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidArch      Code = "INVALID_ARCH"
	ErrCodeInvalidNetlist   Code = "INVALID_NETLIST"
	ErrCodeInvalidPlacement Code = "INVALID_PLACEMENT"
	ErrCodeInvalidConfig    Code = "INVALID_CONFIG"

	// Resource not found errors
	ErrCodeNotFound       Code = "NOT_FOUND"
	ErrCodeFileNotFound   Code = "FILE_NOT_FOUND"
	ErrCodeResultNotFound Code = "RESULT_NOT_FOUND"

	// Search exhaustion (recoverable in principle, fatal for a run)
	ErrCodeDeviceExhausted    Code = "DEVICE_EXHAUSTED"
	ErrCodeUnplaceableCluster Code = "UNPLACEABLE_CLUSTER"
	ErrCodeSeedUnclusterable  Code = "SEED_UNCLUSTERABLE"

	// Internal errors (broken invariants)
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

// IsFatal reports whether err describes a condition a legalization run
// cannot recover from: search exhaustion or a broken invariant.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case ErrCodeDeviceExhausted, ErrCodeUnplaceableCluster,
		ErrCodeSeedUnclusterable, ErrCodeInternal:
		return true
	}
	return false
}
