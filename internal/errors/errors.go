// Package errors provides the coded error taxonomy shared by the CLI and the
// drill server.
//
// Codes follow the format {domain}.{error}. The domain decides how an error is
// surfaced: collection, store and config errors abort the invocation, client
// errors become 4xx responses and everything else becomes an opaque 500.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	// Collection domain - card sources on disk
	CodeCollectionNotFound  = "collection.not_found"   // Directory missing
	CodeCollectionMalformed = "collection.malformed"   // Card sources failed to parse
	CodeCollectionRead      = "collection.read_failed" // Directory or file unreadable

	// Store domain - review-state database
	CodeStoreOpenFailed   = "store.open_failed"
	CodeStoreQueryFailed  = "store.query_failed"
	CodeStoreSaveFailed   = "store.save_failed"
	CodeStoreCorrupt      = "store.corrupt"        // Row could not be decoded
	CodeStoreSchemaTooNew = "store.schema_too_new" // Database written by a newer version

	// Config domain - hashcards.toml and flags
	CodeConfigParse   = "config.parse_failed"
	CodeConfigInvalid = "config.invalid"

	// Client domain - malformed or stale requests (HTTP 4xx)
	CodeClientBadRequest = "client.bad_request"
	CodeClientBadGrade   = "client.bad_grade"
	CodeClientStale      = "client.stale"

	// General domain
	CodeUnknown  = "error.unknown"
	CodeInternal = "error.internal"
)

// CodedError wraps an error with a stable error code.
type CodedError struct {
	Code    string // Stable error code (e.g., "store.save_failed")
	Message string // Human-readable error message
	Cause   error  // Underlying error (may be nil)
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CodedError) Unwrap() error {
	return e.Cause
}

// New creates a new CodedError with the given code and message.
func New(code, message string) *CodedError {
	return &CodedError{Code: code, Message: message}
}

// Wrap creates a new CodedError wrapping an existing error.
func Wrap(code, message string, cause error) *CodedError {
	return &CodedError{Code: code, Message: message, Cause: cause}
}

// GetCode extracts the error code from an error.
// Falls back to CodeUnknown for errors that carry no code.
func GetCode(err error) string {
	if err == nil {
		return ""
	}
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeUnknown
}

// GetMessage returns the coded message, or the error string for plain errors.
func GetMessage(err error) string {
	if err == nil {
		return ""
	}
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Message
	}
	return err.Error()
}

// Domain returns the part of the code before the first dot.
func Domain(code string) string {
	domain, _, _ := strings.Cut(code, ".")
	return domain
}

// IsDomain reports whether err carries a code in the given domain.
func IsDomain(err error, domain string) bool {
	return Domain(GetCode(err)) == domain
}

// HTTPStatus maps an error to the status code the drill server replies with.
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case "":
		return http.StatusOK
	case CodeClientStale:
		return http.StatusConflict
	case CodeClientBadRequest, CodeClientBadGrade:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
