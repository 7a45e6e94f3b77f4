package conflict

import (
	"errors"
	"fmt"
)

// UnsupportedError reports an element the remote engine cannot refine or
// relax. It is raised before anything is encoded.
type UnsupportedError struct {
	Element string
	Kind    string
	Mode    string // "conflict" or "relaxation"
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s: unsupported %s element %s", e.Mode, e.Kind, e.Element)
}

// IsUnsupported reports whether err is an UnsupportedError.
func IsUnsupported(err error) bool {
	var ue *UnsupportedError
	return errors.As(err, &ue)
}
