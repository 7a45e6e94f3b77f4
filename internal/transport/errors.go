package transport

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a failed exchange with the service: an HTTP status of 400 or
// above, or a network failure (StatusCode 0).
type Error struct {
	Method     string
	URL        string
	StatusCode int
	// Body holds the start of the error response, if any.
	Body []byte
	Err  error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
	}
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	if len(e.Body) > 0 {
		msg += ": " + string(e.Body)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// IsTransportError reports whether err is a transport Error.
func IsTransportError(err error) bool {
	var te *Error
	return errors.As(err, &te)
}

// IsUnauthorized reports a 401 or 403, the signal that the token is stale
// and the caller should re-authenticate.
func IsUnauthorized(err error) bool {
	var te *Error
	if !errors.As(err, &te) {
		return false
	}
	return te.StatusCode == http.StatusUnauthorized || te.StatusCode == http.StatusForbidden
}

func isStatus(err error, code int) bool {
	var te *Error
	return errors.As(err, &te) && te.StatusCode == code
}

// IsNotFound reports a 404.
func IsNotFound(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.StatusCode == http.StatusNotFound
}
