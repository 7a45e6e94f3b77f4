// Package job drives a remote solve job from submission to a terminal
// state.
//
//	Created → Polling → Completed | Failed | Canceled | Deleted
//
// Polling blocks the caller: sleep, fetch, inspect, repeat. The loop ends
// only on a terminal state, an error, or cancellation of the caller's
// context. A sleep that is woken early is counted and polling goes on.
package job

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/solvebridge/internal/decode"
	"github.com/roach88/solvebridge/internal/model"
	"github.com/roach88/solvebridge/internal/payload"
	"github.com/roach88/solvebridge/internal/telemetry"
	"github.com/roach88/solvebridge/internal/transport"
)

const (
	jobsPath = "ml/v4/deployment_jobs"

	// DefaultAPIVersion is sent as the version query parameter.
	DefaultAPIVersion = "2020-09-01"
	// DefaultPollInterval is the pause between status fetches.
	DefaultPollInterval = 2 * time.Second
)

// Recorder persists job transitions. Failures are logged, not raised.
type Recorder interface {
	Record(ctx context.Context, j *Job) error
}

// Service talks to the deployment jobs API.
type Service struct {
	client   *transport.Client
	builder  *payload.Builder
	spaceID  string
	version  string
	interval time.Duration
	sleeper  Sleeper
	recorder Recorder
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithPollInterval sets the pause between status fetches.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) { s.interval = d }
}

// WithSleeper replaces the timer-based sleeper.
func WithSleeper(sl Sleeper) Option {
	return func(s *Service) { s.sleeper = sl }
}

// WithRecorder records every transition, for example into the job ledger.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithBuilder sets the payload builder used for inline models.
func WithBuilder(b *payload.Builder) Option {
	return func(s *Service) { s.builder = b }
}

// WithAPIVersion overrides the version query parameter.
func WithAPIVersion(v string) Option {
	return func(s *Service) { s.version = v }
}

// WithClock overrides the clock used for job timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the service's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService returns a Service for jobs in spaceID.
func NewService(client *transport.Client, spaceID string, opts ...Option) *Service {
	s := &Service{
		client:   client,
		spaceID:  spaceID,
		version:  DefaultAPIVersion,
		interval: DefaultPollInterval,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sleeper == nil {
		s.sleeper = NewTimerSleeper()
	}
	if s.builder == nil {
		s.builder = payload.NewBuilder(payload.WithLogger(s.logger))
	}
	return s
}

// SpaceID is the space jobs are submitted to.
func (s *Service) SpaceID() string { return s.spaceID }

func (s *Service) query(extra ...string) url.Values {
	q := url.Values{"version": {s.version}, "space_id": {s.spaceID}}
	for i := 0; i+1 < len(extra); i += 2 {
		q.Set(extra[i], extra[i+1])
	}
	return q
}

// Submit validates and posts req. When artifact is non-nil the model is
// spliced into input_data as the last entry; otherwise the request is sent
// as is (the model travels by reference).
func (s *Service) Submit(ctx context.Context, req *SubmitRequest, artifact *model.Artifact) (j *Job, err error) {
	ctx, span := telemetry.Start(ctx, "job.submit",
		attribute.String("job.name", req.Name),
		attribute.String("deployment.id", req.Deployment.ID))
	defer func() { telemetry.End(span, err) }()

	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid submit request: %w", err)
	}

	var body *payload.Assembly
	if artifact != nil {
		placeholder := payload.NewPlaceholder()
		envelope, err := req.Envelope(placeholder)
		if err != nil {
			return nil, fmt.Errorf("render envelope: %w", err)
		}
		body, err = s.builder.Build(ctx, envelope, placeholder, req.Fragments(), *artifact)
		if err != nil {
			return nil, fmt.Errorf("assemble payload: %w", err)
		}
	} else {
		raw, err := json.Marshal(req)
		if err != nil {
			return nil, fmt.Errorf("render request: %w", err)
		}
		body = payload.Bytes(raw)
	}

	var raw []byte
	err = s.client.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   jobsPath,
		Query:  s.query(),
		Body:   body,
	}, &raw)
	if err != nil {
		return nil, err
	}

	doc, err := parseStatus(raw, "submit response")
	if err != nil {
		return nil, err
	}
	if doc.Metadata.ID == "" {
		return nil, &decode.MalformedError{Source: "submit response", Reason: "no metadata.id"}
	}

	now := s.now()
	j = &Job{
		ID:           doc.Metadata.ID,
		Name:         req.Name,
		DeploymentID: req.Deployment.ID,
		State:        StateCreated,
		SubmittedAt:  now,
		UpdatedAt:    now,
		Last:         doc,
		Raw:          raw,
	}
	s.logger.Info("job submitted", "job", j.ID, "deployment", j.DeploymentID, "bytes", body.Len())
	s.record(ctx, j)
	return j, nil
}

// Status fetches the current status document of job id.
func (s *Service) Status(ctx context.Context, id string) (*StatusDocument, []byte, error) {
	var raw []byte
	err := s.client.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   jobsPath + "/" + url.PathEscape(id),
		Query:  s.query(),
	}, &raw)
	telemetry.StatusFetches.Inc()
	if err != nil {
		return nil, nil, err
	}
	doc, err := parseStatus(raw, "status of job "+id)
	if err != nil {
		return nil, nil, err
	}
	return doc, raw, nil
}

// PollResult summarizes one Poll.
type PollResult struct {
	State       State
	Fetches     int
	Interrupted int
}

// Poll waits for j to reach a terminal state. On completion the output
// attachments are in j.Last. A failed or canceled job returns a
// FailedError alongside the result.
func (s *Service) Poll(ctx context.Context, j *Job) (res *PollResult, err error) {
	ctx, span := telemetry.Start(ctx, "job.poll", attribute.String("job.id", j.ID))
	defer func() {
		if res != nil {
			span.SetAttributes(attribute.Int("fetches", res.Fetches), attribute.String("state", string(res.State)))
		}
		telemetry.End(span, err)
	}()

	res = &PollResult{State: j.State}
	if j.State.Terminal() {
		return res, s.terminalError(j)
	}
	s.advance(ctx, j, StatePolling, nil, nil)

	var logged []string
	for {
		switch err := s.sleeper.Sleep(ctx, s.interval); {
		case err == nil:
		case ctx.Err() != nil:
			return res, ctx.Err()
		default:
			res.Interrupted++
			s.logger.Debug("poll sleep interrupted", "job", j.ID, "count", res.Interrupted)
		}

		doc, raw, err := s.Status(ctx, j.ID)
		res.Fetches++
		if err != nil {
			return res, err
		}

		activity := doc.Entity.DecisionOptimization.SolveState.LatestEngineActivity
		for _, line := range freshActivity(logged, activity) {
			s.logger.Debug("engine", "job", j.ID, "line", line)
		}
		logged = activity

		state := doc.State()
		s.advance(ctx, j, state, doc, raw)
		res.State = state
		if state.Terminal() {
			telemetry.JobsTotal.WithLabelValues(string(state)).Inc()
			telemetry.SolveDuration.WithLabelValues(string(state)).Observe(s.now().Sub(j.SubmittedAt).Seconds())
			s.logger.Info("job finished", "job", j.ID, "state", state, "fetches", res.Fetches)
			return res, s.terminalError(j)
		}
	}
}

func (s *Service) terminalError(j *Job) error {
	if j.State != StateFailed && j.State != StateCanceled {
		return nil
	}
	fe := &FailedError{JobID: j.ID, State: j.State}
	if j.Last != nil {
		fe.Failure = j.Last.Entity.DecisionOptimization.Status.Failure
		fe.Message = failureMessage(fe.Failure)
	}
	return fe
}

// Run submits req and polls the job to a terminal state.
func (s *Service) Run(ctx context.Context, req *SubmitRequest, artifact *model.Artifact) (*Job, *PollResult, error) {
	j, err := s.Submit(ctx, req, artifact)
	if err != nil {
		return nil, nil, err
	}
	res, err := s.Poll(ctx, j)
	return j, res, err
}

// Delete removes the job from the service. Deleting a job that is already
// deleted, here or remotely, succeeds.
func (s *Service) Delete(ctx context.Context, j *Job, hard bool) error {
	if j.State == StateDeleted {
		return nil
	}
	err := s.client.Do(ctx, transport.Request{
		Method: http.MethodDelete,
		Path:   jobsPath + "/" + url.PathEscape(j.ID),
		Query:  s.query("hard_delete", fmt.Sprint(hard)),
	}, nil)
	if err != nil && !transport.IsNotFound(err) {
		return err
	}
	s.logger.Debug("job deleted", "job", j.ID, "hard", hard)
	s.advance(ctx, j, StateDeleted, nil, nil)
	return nil
}

// advance moves j forward. Moving backwards, or from one terminal state
// to another other than Deleted, is ignored.
func (s *Service) advance(ctx context.Context, j *Job, to State, doc *StatusDocument, raw []byte) {
	if doc != nil {
		j.Last = doc
		j.Raw = raw
	}
	if to == j.State || rank(to) < rank(j.State) {
		return
	}
	if j.State.Terminal() && to != StateDeleted {
		return
	}
	j.State = to
	j.UpdatedAt = s.now()
	s.record(ctx, j)
}

func rank(st State) int {
	switch st {
	case StateCreated:
		return 0
	case StatePolling:
		return 1
	case StateCompleted, StateFailed, StateCanceled:
		return 2
	case StateDeleted:
		return 3
	}
	return -1
}

func (s *Service) record(ctx context.Context, j *Job) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, j); err != nil {
		s.logger.Warn("job ledger write failed", "job", j.ID, "error", err)
	}
}

func parseStatus(raw []byte, source string) (*StatusDocument, error) {
	var doc StatusDocument
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&doc); err != nil {
		return nil, &decode.MalformedError{Source: source, Offset: dec.InputOffset(), Reason: "unparsable status document", Err: err}
	}
	return &doc, nil
}

// freshActivity returns the lines of cur not already logged from prev. The
// service reports a sliding tail of the engine log, so the longest suffix of
// prev that is also a prefix of cur is the part seen before.
func freshActivity(prev, cur []string) []string {
	for k := min(len(prev), len(cur)); k > 0; k-- {
		if slices.Equal(prev[len(prev)-k:], cur[:k]) {
			return cur[k:]
		}
	}
	return cur
}
