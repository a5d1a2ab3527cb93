package statsapi

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorClass represents a classification of stats API errors.
type ErrorClass string

const (
	// ErrorClassTransient covers timeouts, connection resets and
	// throttling responses. Worth retrying.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassPermanent covers malformed payloads and client errors.
	// Retrying cannot help.
	ErrorClassPermanent ErrorClass = "permanent"
)

// ErrMalformedPayload indicates the response body did not match the
// expected resultSets shape.
var ErrMalformedPayload = errors.New("malformed stats payload")

// errRequestSetup marks failures that happen before the request leaves
// the process, such as an unparseable proxy endpoint. Permanent, and
// never attributed to the proxy's health record.
var errRequestSetup = errors.New("request setup failed")

// APIError is a stats API failure with its HTTP status and class.
type APIError struct {
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stats API %s error (status %d): %s: %v",
			e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("stats API %s error (status %d): %s",
		e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status to an error class. The API returns
// throttling as 429 or as generic 5xx, indistinguishable from outages,
// so all of those are transient.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == 429 || status == 408:
		return ErrorClassTransient
	case status >= 500:
		return ErrorClassTransient
	default:
		return ErrorClassPermanent
	}
}

// IsTransient reports whether an error is worth retrying: a transient
// APIError, a network timeout/reset, or a deadline expiry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Class == ErrorClassTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	return false
}
