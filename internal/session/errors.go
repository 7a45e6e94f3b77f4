package session

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by InitToken after Close.
var ErrClosed = errors.New("session closed")

// AuthError reports a failed authentication exchange: the service refused
// the credentials, could not be reached, or answered without a token.
type AuthError struct {
	Mode   Mode
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	msg := fmt.Sprintf("authentication (%s): %s", e.Mode, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsAuthError reports whether err is an AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
