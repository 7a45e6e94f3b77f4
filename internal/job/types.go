package job

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/roach88/solvebridge/internal/decode"
	"github.com/roach88/solvebridge/internal/payload"
)

// State is a job's position in its lifecycle. States only move forward.
type State string

const (
	StateCreated   State = "created"
	StatePolling   State = "polling"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCanceled  State = "canceled"
	StateDeleted   State = "deleted"
)

// Terminal reports whether polling stops in this state.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCanceled, StateDeleted:
		return true
	}
	return false
}

// stateOf maps the service's entity.decision_optimization.status.state.
func stateOf(remote string) State {
	switch strings.ToLower(remote) {
	case "completed":
		return StateCompleted
	case "failed":
		return StateFailed
	case "canceled", "cancelled":
		return StateCanceled
	case "deleted":
		return StateDeleted
	default:
		// queued, running, not_started
		return StatePolling
	}
}

// Job is one submitted remote solve.
type Job struct {
	ID           string
	Name         string
	DeploymentID string
	State        State
	SubmittedAt  time.Time
	UpdatedAt    time.Time

	// Last is the most recent status document; Raw is its exact bytes.
	Last *StatusDocument
	Raw  json.RawMessage
}

// Ref is an {id} reference.
type Ref struct {
	ID string `json:"id" validate:"required"`
}

// InlineData is a small input attachment. Content is base64 on the wire.
type InlineData struct {
	ID      string `json:"id" validate:"required"`
	Content []byte `json:"content"`
}

// OutputSelector asks for every output attachment whose id matches the
// pattern.
type OutputSelector struct {
	ID string `json:"id" validate:"required"`
}

// DataReference points at data held in an object store.
type DataReference struct {
	ID         string            `json:"id,omitempty"`
	Type       string            `json:"type" validate:"required"`
	Connection map[string]string `json:"connection,omitempty"`
	Location   map[string]string `json:"location" validate:"required"`
}

// DecisionOptimization is the solve section of a submission.
type DecisionOptimization struct {
	SolveParameters      map[string]string `json:"solve_parameters,omitempty"`
	InputData            []InlineData      `json:"input_data" validate:"dive"`
	InputDataReferences  []DataReference   `json:"input_data_references,omitempty" validate:"dive"`
	OutputData           []OutputSelector  `json:"output_data" validate:"required,min=1,dive"`
	OutputDataReferences []DataReference   `json:"output_data_references,omitempty" validate:"dive"`
}

// SubmitRequest is the job submission body, minus the model when the model
// is sent inline.
type SubmitRequest struct {
	Name                 string               `json:"name" validate:"required"`
	SpaceID              string               `json:"space_id" validate:"required"`
	Deployment           Ref                  `json:"deployment"`
	DecisionOptimization DecisionOptimization `json:"decision_optimization"`
}

var submitValidate = validator.New()

// Validate checks the request before anything is sent.
func (r *SubmitRequest) Validate() error {
	return submitValidate.Struct(r)
}

// Envelope renders the request with input_data replaced by placeholder.
// The inline fragments go to the builder separately.
func (r *SubmitRequest) Envelope(placeholder string) ([]byte, error) {
	shadow := struct {
		SubmitRequest
		DecisionOptimization any `json:"decision_optimization"`
	}{SubmitRequest: *r}

	do := r.DecisionOptimization
	shadow.DecisionOptimization = struct {
		DecisionOptimization
		InputData []json.RawMessage `json:"input_data"`
	}{
		DecisionOptimization: do,
		InputData:            []json.RawMessage{json.RawMessage(placeholder)},
	}
	return json.Marshal(shadow)
}

// Fragments returns the inline input attachments as payload fragments.
func (r *SubmitRequest) Fragments() []payload.Fragment {
	out := make([]payload.Fragment, len(r.DecisionOptimization.InputData))
	for i, d := range r.DecisionOptimization.InputData {
		out[i] = payload.Fragment{ID: d.ID, Content: d.Content}
	}
	return out
}

// StatusDocument is the body of GET deployment_jobs/{id}.
type StatusDocument struct {
	Metadata struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		SpaceID   string `json:"space_id"`
		CreatedAt string `json:"created_at"`
	} `json:"metadata"`
	Entity struct {
		Deployment           Ref            `json:"deployment"`
		DecisionOptimization DecisionStatus `json:"decision_optimization"`
	} `json:"entity"`
}

// DecisionStatus is entity.decision_optimization of a status document.
type DecisionStatus struct {
	Status struct {
		State       string          `json:"state"`
		RunningAt   string          `json:"running_at,omitempty"`
		CompletedAt string          `json:"completed_at,omitempty"`
		Failure     json.RawMessage `json:"failure,omitempty"`
	} `json:"status"`
	SolveState struct {
		SolveStatus          string            `json:"solve_status"`
		LatestEngineActivity []string          `json:"latest_engine_activity"`
		Details              map[string]string `json:"details"`
	} `json:"solve_state"`
	OutputData           []decode.Attachment `json:"output_data"`
	OutputDataReferences []DataReference     `json:"output_data_references"`
}

// State returns the reported state.
func (d *StatusDocument) State() State {
	return stateOf(d.Entity.DecisionOptimization.Status.State)
}

// DecodeInput collects what the result decoder needs.
func (d *StatusDocument) DecodeInput() decode.Input {
	do := d.Entity.DecisionOptimization
	return decode.Input{
		Attachments: do.OutputData,
		SolveStatus: do.SolveState.SolveStatus,
		Details:     do.SolveState.Details,
	}
}

// FailureMessage is the first error message of a failed job, or "".
func (d *StatusDocument) FailureMessage() string {
	return failureMessage(d.Entity.DecisionOptimization.Status.Failure)
}

// failureMessage pulls the first error message out of a failure body of the
// form {"errors":[{"code":..,"message":..}],"trace":..}.
func failureMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var body struct {
		Errors []struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Errors) == 0 {
		return ""
	}
	e := body.Errors[0]
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}
