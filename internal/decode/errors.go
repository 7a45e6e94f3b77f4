package decode

import (
	"errors"
	"fmt"
)

// MalformedError reports a response body that could not be decoded.
type MalformedError struct {
	// Source names what was being read: an attachment id, "status", a file.
	Source string
	// Offset is the input byte offset, when known.
	Offset int64
	Reason string
	Err    error
}

func (e *MalformedError) Error() string {
	msg := "malformed response"
	if e.Source != "" {
		msg += " " + e.Source
	}
	if e.Offset > 0 {
		msg += fmt.Sprintf(" at offset %d", e.Offset)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedError) Unwrap() error { return e.Err }

// IsMalformed reports whether err is a MalformedError.
func IsMalformed(err error) bool {
	var me *MalformedError
	return errors.As(err, &me)
}

func malformed(source, reason string, err error) *MalformedError {
	return &MalformedError{Source: source, Reason: reason, Err: err}
}
