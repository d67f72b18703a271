package dataservice

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by the data service client.
var (
	// ErrNotFound indicates the requested node or resource does not exist.
	ErrNotFound = errors.New("not found in graph data service")

	// ErrAuthError indicates a missing or rejected bearer token.
	ErrAuthError = errors.New("graph data service authentication error")

	// ErrRateLimited indicates the service throttled the request.
	ErrRateLimited = errors.New("graph data service rate limit exceeded")

	// ErrNetworkError indicates a transport failure.
	ErrNetworkError = errors.New("network error communicating with graph data service")

	// ErrInvalidResponse indicates a payload that failed to decode or validate.
	ErrInvalidResponse = errors.New("invalid response from graph data service")
)

// APIError represents a non-2xx response from the data service.
type APIError struct {
	StatusCode int
	Path       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("graph data service error (status %d, %s): %s", e.StatusCode, e.Path, e.Message)
	}
	return fmt.Sprintf("graph data service error (status %d, %s)", e.StatusCode, e.Path)
}

// IsNotFound returns true if the error indicates a resource was not found.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsAuthError returns true if the error indicates an authentication problem.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthError)
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// checkHTTPErrors returns an error if the HTTP response indicates a problem.
func checkHTTPErrors(resp *http.Response, path string, body []byte) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrAuthError, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode >= 400:
		return &APIError{
			StatusCode: resp.StatusCode,
			Path:       path,
			Message:    errorMessage(body),
		}
	}
	return nil
}
