package providers

import (
	"errors"
	"fmt"
)

// ErrRateLimited means the provider throttled this request. Not a hard outage:
// the next search tries the provider fresh.
var ErrRateLimited = errors.New("provider rate limited")

// ErrEmptyResult means the provider answered cleanly with zero offers.
var ErrEmptyResult = errors.New("provider returned no offers")

// StatusError is a non-auth, non-throttle HTTP or application-level failure.
type StatusError struct {
	Provider string
	Code     int
	Message  string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Provider, e.Code)
}

// MalformedResponseError means the body could not be parsed as a list of offers
// at all. Per-offer garbage is handled further down by the normalizer instead.
type MalformedResponseError struct {
	Provider string
	Err      error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Provider, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
