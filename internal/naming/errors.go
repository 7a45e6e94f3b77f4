package naming

import (
	"errors"
	"fmt"
)

// ConflictErrorCode categorizes naming failures.
type ConflictErrorCode string

const (
	// ErrCodeMissingName: RequireExisting found an element without a name.
	ErrCodeMissingName ConflictErrorCode = "MISSING_NAME"

	// ErrCodeDuplicateName: two distinct elements carry the same name.
	ErrCodeDuplicateName ConflictErrorCode = "DUPLICATE_NAME"

	// ErrCodeAlreadyBridged: the element is already held by an open scope.
	ErrCodeAlreadyBridged ConflictErrorCode = "ALREADY_BRIDGED"

	// ErrCodeScopeClosed: the scope was used after Restore.
	ErrCodeScopeClosed ConflictErrorCode = "SCOPE_CLOSED"

	// ErrCodeExhausted: the generator kept producing names already in use.
	ErrCodeExhausted ConflictErrorCode = "NAMES_EXHAUSTED"
)

// ConflictError is returned before any element is renamed and before any
// network call is made.
type ConflictError struct {
	Code    ConflictErrorCode
	Name    string // offending name, if any
	Element string // description of the offending element
}

func (e *ConflictError) Error() string {
	switch e.Code {
	case ErrCodeMissingName:
		return fmt.Sprintf("%s: %s has no name", e.Code, e.Element)
	case ErrCodeDuplicateName:
		return fmt.Sprintf("%s: name %q is used by more than one element (%s)", e.Code, e.Name, e.Element)
	case ErrCodeAlreadyBridged:
		return fmt.Sprintf("%s: %s is already bridged", e.Code, e.Element)
	case ErrCodeScopeClosed:
		return fmt.Sprintf("%s: scope already restored", e.Code)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Element)
	}
}

// IsConflictError reports whether err is, or wraps, a ConflictError.
func IsConflictError(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
