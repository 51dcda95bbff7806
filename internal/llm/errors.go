package llm

import (
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the model API.
type APIError struct {
	Path       string
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: API error (status %d)", e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s: API error (status %d): %s", e.Path, e.StatusCode, e.Message)
}

// Transient reports whether the failure is worth retrying on a later run
// (rate limiting or a server-side fault).
func (e *APIError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}
