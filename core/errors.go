package core

import (
	"errors"
	"fmt"
	"net/http"
)

// ConfigError represents a configuration-related error with actionable instructions.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // Actionable instruction for resolution
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Error codes for configuration errors
const (
	ErrCodeMissingConfig    = "MISSING_CONFIG"
	ErrCodeInvalidValue     = "INVALID_VALUE"
	ErrCodeMediaRootMissing = "MEDIA_ROOT_MISSING"
	ErrCodeInvalidURL       = "INVALID_URL"
)

// ErrMissingConfig returns an error for missing required configuration
func ErrMissingConfig(varName string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingConfig,
		Message: fmt.Sprintf("Missing required configuration: %s", varName),
		Action:  fmt.Sprintf("Set %s in your environment or .env file", varName),
	}
}

// ErrInvalidValue returns an error for a setting outside its accepted range
func ErrInvalidValue(varName string, value interface{}, expected string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidValue,
		Message: fmt.Sprintf("Invalid value for %s: %v", varName, value),
		Action:  fmt.Sprintf("Set %s to %s", varName, expected),
	}
}

// ErrMediaRootMissing returns an error when the media directory is unusable
func ErrMediaRootMissing(path string, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMediaRootMissing,
		Message: fmt.Sprintf("Media root %s is not usable: %s", path, reason),
		Action:  "Set MEDIA_ROOT to an existing, readable directory of audio files",
	}
}

// ErrInvalidURL returns an error for a malformed public base URL
func ErrInvalidURL(url string, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidURL,
		Message: fmt.Sprintf("Invalid PUBLIC_BASE_URL '%s': %s", url, reason),
		Action:  "Set PUBLIC_BASE_URL to an absolute http(s) URL (e.g., https://cdn.example.com/audio/)",
	}
}

// IsConfigError checks if an error is a ConfigError and returns it if so
func IsConfigError(err error) (*ConfigError, bool) {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from an error if it's a ConfigError
func GetErrorCode(err error) string {
	if configErr, ok := IsConfigError(err); ok {
		return configErr.Code
	}
	return ""
}

// ErrorKind classifies failures on the streaming path. Every kind maps to
// exactly one HTTP status through StatusFor.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNotFound
	KindBadFormat
	KindSizeExceeded
	KindForbidden
	KindMalformedRange
	KindUnsatisfiableRange
	KindOpenFailed
	KindReadFailed
	KindClientAbort
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindBadFormat:
		return "bad_format"
	case KindSizeExceeded:
		return "size_exceeded"
	case KindForbidden:
		return "forbidden"
	case KindMalformedRange:
		return "malformed_range"
	case KindUnsatisfiableRange:
		return "range_not_satisfiable"
	case KindOpenFailed:
		return "open_failed"
	case KindReadFailed:
		return "read_failed"
	case KindClientAbort:
		return "client_abort"
	default:
		return "unknown"
	}
}

// StatusFor returns the HTTP status a failure of the given kind surfaces as.
// ReadFailed and ClientAbort happen after headers are sent, so their status
// is only meaningful for logging.
func StatusFor(kind ErrorKind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindBadFormat, KindSizeExceeded, KindForbidden:
		return http.StatusForbidden
	case KindMalformedRange:
		return http.StatusBadRequest
	case KindUnsatisfiableRange:
		return http.StatusRequestedRangeNotSatisfiable
	case KindClientAbort:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// StreamError is a classified failure on the streaming path.
type StreamError struct {
	Kind ErrorKind
	Op   string // Operation that failed, e.g. "resolve" or "open"
	Err  error
}

func (e *StreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// NewStreamError wraps err with a kind and operation name.
func NewStreamError(kind ErrorKind, op string, err error) *StreamError {
	return &StreamError{Kind: kind, Op: op, Err: err}
}

// ErrNotFound is returned by lookups that exhaust every strategy.
var ErrNotFound = errors.New("resource not found")

// KindOf extracts the ErrorKind from err. Bare ErrNotFound is classified as
// KindNotFound; anything else unclassified is KindUnknown.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var se *StreamError
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}
	return KindUnknown
}
