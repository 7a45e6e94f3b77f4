package job

import (
	"encoding/json"
	"errors"
	"fmt"
)

// FailedError reports a job that ended failed or canceled. Failure holds
// the structured failure body exactly as the service returned it.
type FailedError struct {
	JobID   string
	State   State
	Message string
	Failure json.RawMessage
}

func (e *FailedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("job %s %s: %s", e.JobID, e.State, e.Message)
	}
	return fmt.Sprintf("job %s %s", e.JobID, e.State)
}

// IsFailed reports whether err is a FailedError.
func IsFailed(err error) bool {
	var fe *FailedError
	return errors.As(err, &fe)
}

// ErrInterrupted is returned by a Sleeper whose sleep was cut short
// without the context being canceled.
var ErrInterrupted = errors.New("sleep interrupted")
