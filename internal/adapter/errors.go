package adapter

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSolution is returned by getters before a solve has succeeded.
	ErrNoSolution = errors.New("no current solution")
	// ErrClosed is returned by Solve after Close.
	ErrClosed = errors.New("adapter closed")
	// ErrNoSolver is returned when neither a remote service nor a local
	// solver is configured.
	ErrNoSolver = errors.New("no remote service or local solver configured")
	// ErrRemoteOnly is returned for engine modes only the remote service
	// offers.
	ErrRemoteOnly = errors.New("conflict refinement and relaxation need a remote service")
)

// MissingError reports an element the current solution has no entry for.
type MissingError struct {
	What    string
	Element string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("no %s for %s in the current solution", e.What, e.Element)
}

// IsMissing reports whether err is a MissingError.
func IsMissing(err error) bool {
	var me *MissingError
	return errors.As(err, &me)
}
