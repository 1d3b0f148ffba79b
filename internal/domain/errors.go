package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidLocation signals a location object with unusable coordinate fields.
	ErrInvalidLocation = errors.New("invalid location")
	// ErrInvalidCoordinate signals a latitude/longitude outside the valid range.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	// ErrInvalidPeriod signals an unknown usage report period.
	ErrInvalidPeriod = errors.New("invalid period")
	// ErrInsufficientInput signals a request with neither usable criteria nor a location.
	ErrInsufficientInput = errors.New("insufficient input")

	// ErrAIServiceUnavailable signals an LLM timeout or transport failure.
	ErrAIServiceUnavailable = errors.New("ai service unavailable")
	// ErrAIServiceError signals an LLM response with an unexpected shape.
	ErrAIServiceError = errors.New("ai service error")
	// ErrTokenBudgetExceeded signals that the daily or monthly LLM token budget is spent.
	ErrTokenBudgetExceeded = errors.New("llm token budget exceeded")
	// ErrGeocodeUnavailable signals that an address could not be geocoded.
	ErrGeocodeUnavailable = errors.New("geocode unavailable")

	// ErrStaleVersion signals an optimistic locking conflict on a session commit.
	ErrStaleVersion = errors.New("stale session version")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
)

// StaleVersionError wraps ErrStaleVersion with the version currently committed.
type StaleVersionError struct {
	Current int64
}

func (e *StaleVersionError) Error() string {
	return fmt.Sprintf("%s: current version is %d", ErrStaleVersion.Error(), e.Current)
}

func (e *StaleVersionError) Unwrap() error { return ErrStaleVersion }

// NewStaleVersion creates a stale version error.
func NewStaleVersion(current int64) error {
	return &StaleVersionError{Current: current}
}

// IsAIFailure reports whether err came from the LLM backend.
func IsAIFailure(err error) bool {
	return errors.Is(err, ErrAIServiceUnavailable) || errors.Is(err, ErrAIServiceError)
}
