package servicenow

import (
	"errors"
	"fmt"
)

// Sentinel errors for the ServiceNow client and tools.
var (
	ErrNotFound           = errors.New("record not found")
	ErrUnknownTimeframe   = errors.New("unknown timeframe")
	ErrMissingCredentials = errors.New("ServiceNow credentials not configured")
)

// APIError is a non-2xx response from the instance.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ServiceNow API error %d: %s", e.StatusCode, e.Body)
}

// StatusOf returns the HTTP status carried by err, or 0 when err is not an
// *APIError.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
