package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// NetworkErrorMessage is the message of every transport failure.
const NetworkErrorMessage = "Network error. Please check your connection and try again."

// ErrMalformedResponse is wrapped when a successful response cannot be interpreted.
var ErrMalformedResponse = errors.New("malformed response")

// Error is a normalized gateway failure.
//
// Message is safe to show to a user. Err keeps the underlying cause for logs and is
// never rendered by Error().
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status, or 0 for a transport failure.
func (e *Error) StatusCode() int {
	return e.Status
}

// Transient reports whether retrying the same request may succeed.
func (e *Error) Transient() bool {
	switch e.Status {
	case 0, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func networkError(err error) *Error {
	return &Error{Message: NetworkErrorMessage, Err: err}
}

func statusError(status int, message string) *Error {
	if message == "" {
		message = fmt.Sprintf("Request failed with status %d", status)
	}
	return &Error{Status: status, Message: message}
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var gwErr *Error
	return errors.As(err, &gwErr) && gwErr.Status == http.StatusUnauthorized
}

// Message extracts the user-safe message from err, or "" when err carries none.
func Message(err error) string {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Message
	}
	return ""
}
