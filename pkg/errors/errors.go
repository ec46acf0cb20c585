// Package errors provides coded errors shared by the compositor, the CLI and
// the HTTP API.
//
// Codes are grouped by failure class:
//   - DECODE_FAILED: a background or product image could not be rasterized
//   - ANALYSIS_FAILED: contrast sampling could not read pixel data
//   - EXPORT_CHANNEL: a share/clipboard/download channel rejected the payload
//   - RENDER_BUSY: a render was requested while another one owns the surface
//
// Usage:
//
//	err := errors.Wrap(errors.ErrCodeDecode, cause, "decode %s", ref)
//	if errors.Is(err, errors.ErrCodeRenderBusy) {
//	    // ignore, the running pass wins
//	}
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for the failure classes of a story session.
const (
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeNotFound     Code = "NOT_FOUND"

	ErrCodeDecode        Code = "DECODE_FAILED"
	ErrCodeAnalysis      Code = "ANALYSIS_FAILED"
	ErrCodeExportChannel Code = "EXPORT_CHANNEL"
	ErrCodeRenderBusy    Code = "RENDER_BUSY"
	ErrCodeGeneration    Code = "GENERATION_FAILED"

	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Short, user-facing message
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
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns the short message shown to the user.
// Decode failures get a fixed actionable hint; other coded errors return their
// message; uncoded errors fall back to a generic line.
func UserMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "Something went wrong. Please try again."
	}
	switch e.Code {
	case ErrCodeDecode:
		return "Could not load one of the images. Try re-uploading it."
	case ErrCodeRenderBusy:
		return "A render is already in progress."
	default:
		return e.Message
	}
}
