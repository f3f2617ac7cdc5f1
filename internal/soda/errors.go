package soda

import "fmt"

// HTTPError is a non 2xx answer from the dataset service.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *HTTPError) IsServerError() bool {
	return e.StatusCode >= 500
}
