package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrNotFound is returned when a source or pipeline item does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition is returned for a status change the pipeline does not allow
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrDuplicate is returned when an insert collides with a unique column
	ErrDuplicate = errors.New("already exists")
)

// FetchError is a non-2xx response from a feed or page URL
type FetchError struct {
	URL        string
	StatusCode int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

// TimeoutError is a fetch that exceeded its deadline
type TimeoutError struct {
	URL     string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("fetch %s: timed out after %s", e.URL, e.Timeout)
}

// NetworkError wraps any other transport failure
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError means the payload is not a usable feed or model response
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse: %s: %v", e.Reason, e.Err)
	}
	return "parse: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError is a missing or malformed field. It blocks a single item only.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// UpstreamServiceError is a failed call to the AI or scrape API
type UpstreamServiceError struct {
	Service    string
	StatusCode int
	Err        error
}

func (e *UpstreamServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *UpstreamServiceError) Unwrap() error { return e.Err }

// PersistenceError is a failed database write or read
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persistence wraps err as a PersistenceError unless it is nil or already a not-found
func Persistence(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// IsFetchFailure reports whether err came from the feed fetcher
func IsFetchFailure(err error) bool {
	var fe *FetchError
	var te *TimeoutError
	var ne *NetworkError
	return errors.As(err, &fe) || errors.As(err, &te) || errors.As(err, &ne)
}

// HTTPStatus maps an error to the response code the admin API returns
func HTTPStatus(err error) int {
	var (
		fe *FetchError
		te *TimeoutError
		ne *NetworkError
		pe *ParseError
		ve *ValidationError
		ue *UpstreamServiceError
	)

	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	case errors.As(err, &te):
		return http.StatusGatewayTimeout
	case errors.As(err, &fe), errors.As(err, &ne), errors.As(err, &ue):
		return http.StatusBadGateway
	case errors.As(err, &pe):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
