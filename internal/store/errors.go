package store

import "fmt"

// RequestError reports a store call that reached the service but came
// back non-2xx. Operation names the attempted action so callers can
// surface "booking failed" style notices without leaking transport
// internals.
type RequestError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("store %s failed: status %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("store %s failed: status %d: %s", e.Operation, e.StatusCode, e.Message)
}
