// Package domainerrors carries coded domain errors across layer boundaries.
// Every failure a caller can act on has a machine-checkable Code alongside a
// human-readable message; transports translate codes to status lines without
// inspecting message text.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	// Platform codes shared by every module.
	CodeValidation   Code = "validation"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeUnauthorized Code = "unauthorized"
	CodeInternal     Code = "internal"

	// Biometric codes. These mirror the capture/enroll/match failure
	// taxonomy so callers can branch without string matching.
	CodeScannerUnavailable  Code = "scanner_unavailable"
	CodeCaptureTimeout      Code = "capture_timeout"
	CodeNoFaceDetected      Code = "no_face_detected"
	CodeEnrollmentMismatch  Code = "enrollment_mismatch"
	CodeDuplicateEnrollment Code = "duplicate_enrollment"
	CodeNotRecognized       Code = "not_recognized"
	CodeStoreIO             Code = "store_io"
)

// Error pairs a Code with a reason string and an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.Err
		if err == nil {
			return false
		}
	}
	return false
}

// CodeOf returns the outermost code in the chain, or CodeInternal when the
// error is not a domain error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Reason returns the outermost human-readable message in the chain. Plain
// errors fall back to their Error() text.
func Reason(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// ToHTTPStatus maps a code to an HTTP status for the transport layer.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeDuplicateEnrollment:
		return http.StatusConflict
	case CodeUnauthorized, CodeNotRecognized:
		return http.StatusUnauthorized
	case CodeEnrollmentMismatch, CodeNoFaceDetected:
		return http.StatusUnprocessableEntity
	case CodeCaptureTimeout:
		return http.StatusRequestTimeout
	case CodeScannerUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
