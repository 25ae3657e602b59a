package neocities

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/imroc/req/v3"
)

// Error types reported by the Neocities API in the error_type field.
const (
	ErrTypeInvalidAuth     = "invalid_auth"
	ErrTypeNotFound        = "missing_files"
	ErrTypeInvalidFileType = "invalid_file_type"
	ErrTypeTooLarge        = "too_large"
	ErrTypeSiteLimit       = "site_file_limit_reached"
)

// APIError is an error response from the Neocities API.
type APIError struct {
	StatusCode int    `json:"-"`
	Type       string `json:"error_type"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %s - %s", e.Type, e.Message)
}

// IsAuth reports whether the error is an authentication failure.
func (e *APIError) IsAuth() bool {
	return e.Type == ErrTypeInvalidAuth || e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsTransient reports whether err is worth retrying: network failures,
// timeouts, rate limits and server errors. Auth, permission and quota
// failures are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// url.Error and friends implement net.Error
	var netErr net.Error
	return errors.As(err, &netErr)
}

// handleAPIError maps a req response and transport error into a single error
// value, preserving the decoded APIError for classification.
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("%s: http request: %w", operation, requestErr)
	}

	// got a response, but the api returned an error
	if resp.IsErrorState() {
		if apiErr, ok := resp.ErrorResult().(*APIError); ok {
			apiErr.StatusCode = resp.StatusCode
			return fmt.Errorf("%s: %w", operation, apiErr)
		}
		return fmt.Errorf("%s: api error: %s", operation, resp.Status)
	}

	return nil
}
