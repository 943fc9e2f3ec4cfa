// errors.go
package main

import (
	"errors"
	"fmt"
)

// ErrContentNotFound is returned when neither the structural lookup nor the
// raw-scan fallback can locate the article body container.
var ErrContentNotFound = errors.New("content container not found")

// HTTPError represents an HTTP error with status code
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
}

// ThrottleError signals a rate-limit response from the listing API. It is
// distinct from generic fetch failures: callers cool down and retry the
// same request instead of abandoning it.
type ThrottleError struct {
	Detail string
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("rate limited: %s", e.Detail)
}

// IsThrottled reports whether err is (or wraps) a ThrottleError.
func IsThrottled(err error) bool {
	var te *ThrottleError
	return errors.As(err, &te)
}
