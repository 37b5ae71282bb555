package relay

import (
	"errors"
	"fmt"
)

// ErrUserNotFound is returned by GetUser when the relay knows no token for the name.
var ErrUserNotFound = errors.New("relay: user not found")

// NetworkError is a transport failure: the request never produced a response.
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("relay %s: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPStatusError is a response outside the 2xx range.
type HTTPStatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("relay %s: HTTP %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("relay %s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// DecodeError is a 2xx response whose body could not be decoded.
type DecodeError struct {
	Endpoint string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("relay %s: decode response: %v", e.Endpoint, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
