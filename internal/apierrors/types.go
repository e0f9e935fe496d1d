// Package apierrors classifies failures from the aud: backend so retry
// policies can tell a transient network hiccup from a request the server
// will never accept.
package apierrors

import "fmt"

// Category determines how an error is handled by the retry logic.
type Category int

const (
	// Recoverable errors are retried with exponential backoff.
	// Examples: 5xx responses, network timeouts, connection resets.
	Recoverable Category = iota

	// Irrecoverable errors fail immediately without retry.
	// Examples: 400, 401, 403, 404.
	Irrecoverable
)

func (c Category) String() string {
	switch c {
	case Recoverable:
		return "Recoverable"
	case Irrecoverable:
		return "Irrecoverable"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// ClassifiedError wraps an error with categorization metadata.
type ClassifiedError struct {
	Category   Category
	StatusCode int    // 0 for non-HTTP errors
	Body       string // response body, for debugging
	Underlying error
}

func (e *ClassifiedError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("[%s] HTTP %d: %v", e.Category, e.StatusCode, e.Underlying)
	}
	return fmt.Sprintf("[%s] %v", e.Category, e.Underlying)
}

func (e *ClassifiedError) Unwrap() error { return e.Underlying }

// IsIrrecoverable reports whether err should not be retried.
func IsIrrecoverable(err error) bool {
	if classified, ok := err.(*ClassifiedError); ok {
		return classified.Category == Irrecoverable
	}
	return false
}
