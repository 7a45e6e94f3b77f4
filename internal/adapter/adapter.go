// Package adapter puts a synchronous solve-and-query surface over remote
// solve jobs.
//
// A Solve names the model's elements, exports the model, submits it as a
// job, blocks until the job is terminal, decodes the attachments and
// restores every element's original name before returning, whether the
// solve succeeded or not. The decoded result then answers getters keyed
// by element until the next solve replaces it.
//
// An Adapter drives one solve at a time and is not safe for concurrent use.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/roach88/solvebridge/internal/decode"
	"github.com/roach88/solvebridge/internal/job"
	"github.com/roach88/solvebridge/internal/model"
	"github.com/roach88/solvebridge/internal/naming"
	"github.com/roach88/solvebridge/internal/objectstore"
	"github.com/roach88/solvebridge/internal/solution"
	"github.com/roach88/solvebridge/internal/store"
)

// Teardown decides what Close does with jobs still held on the service.
type Teardown int

const (
	// TeardownSurface deletes held jobs and returns the joined errors.
	TeardownSurface Teardown = iota
	// TeardownSwallow deletes held jobs and only logs failures.
	TeardownSwallow
	// TeardownKeep leaves held jobs on the service.
	TeardownKeep
)

func (t Teardown) String() string {
	switch t {
	case TeardownSwallow:
		return "swallow"
	case TeardownKeep:
		return "keep"
	default:
		return "surface"
	}
}

// ParseTeardown accepts the configuration spelling of a teardown policy.
func ParseTeardown(s string) (Teardown, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "surface":
		return TeardownSurface, nil
	case "swallow":
		return TeardownSwallow, nil
	case "keep":
		return TeardownKeep, nil
	}
	return TeardownSurface, fmt.Errorf("unknown teardown policy %q", s)
}

// Session is the token holder the adapter initializes before each remote
// exchange.
type Session interface {
	InitToken(ctx context.Context) error
	Close() error
}

// Ledger keeps solutions and remembers jobs that were never deleted.
type Ledger interface {
	WriteSolution(ctx context.Context, jobID string, sol *solution.Solution) error
	Pending(ctx context.Context) ([]store.Entry, error)
}

// Adapter is the solve façade.
type Adapter struct {
	jobs         *job.Service
	deploymentID string
	session      Session
	local        LocalSolver
	bridge       *naming.Bridge
	policy       naming.Policy
	objects      objectstore.Connector
	ledger       Ledger
	params       map[string]string
	outputs      []string
	deleteAfter  bool
	hardDelete   bool
	teardown     Teardown
	closers      []func() error
	logger       *slog.Logger
	now          func() time.Time
	started      time.Time

	current Result
	lastJob *job.Job
	held    map[string]*job.Job
	closed  bool
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithJobs routes solves to the deployment jobs service.
func WithJobs(svc *job.Service, deploymentID string) Option {
	return func(a *Adapter) {
		a.jobs = svc
		a.deploymentID = deploymentID
	}
}

// WithSession sets the token holder. Close closes it.
func WithSession(s Session) Option {
	return func(a *Adapter) { a.session = s }
}

// WithLocalSolver solves in process when no jobs service is configured.
func WithLocalSolver(ls LocalSolver) Option {
	return func(a *Adapter) { a.local = ls }
}

// WithBridge replaces the default naming bridge.
func WithBridge(b *naming.Bridge) Option {
	return func(a *Adapter) { a.bridge = b }
}

// WithNamingPolicy sets how element names are checked or assigned.
func WithNamingPolicy(p naming.Policy) Option {
	return func(a *Adapter) { a.policy = p }
}

// WithObjectStore sends models, and reads outputs, by reference.
func WithObjectStore(c objectstore.Connector) Option {
	return func(a *Adapter) { a.objects = c }
}

// WithLedger stores solutions and lets Close find orphaned jobs.
func WithLedger(l Ledger) Option {
	return func(a *Adapter) { a.ledger = l }
}

// WithSolveParameters sets decision_optimization.solve_parameters.
func WithSolveParameters(p map[string]string) Option {
	return func(a *Adapter) { a.params = maps.Clone(p) }
}

// WithOutputs sets the output_data id patterns. The default is ".*".
func WithOutputs(patterns ...string) Option {
	return func(a *Adapter) { a.outputs = patterns }
}

// WithDeleteAfterSolve deletes each job once its results are decoded.
func WithDeleteAfterSolve() Option {
	return func(a *Adapter) { a.deleteAfter = true }
}

// WithHardDelete purges jobs instead of soft-deleting them, both after a
// solve and at Close.
func WithHardDelete(hard bool) Option {
	return func(a *Adapter) { a.hardDelete = hard }
}

// WithTeardown sets the policy Close applies to held jobs.
func WithTeardown(t Teardown) Option {
	return func(a *Adapter) { a.teardown = t }
}

// WithCloser registers a release function run by Close, last registered
// first.
func WithCloser(fn func() error) Option {
	return func(a *Adapter) { a.closers = append(a.closers, fn) }
}

// WithLogger sets the adapter's logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// WithClock overrides the clock that dates the adapter's start. Close only
// sweeps ledger entries submitted before that instant.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// New returns an Adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{
		outputs: []string{".*"},
		logger:  slog.Default(),
		now:     time.Now,
		held:    make(map[string]*job.Job),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.started = a.now()
	if a.bridge == nil {
		a.bridge = naming.NewBridge(naming.WithLogger(a.logger))
	}
	return a
}

// Solve solves m and makes its result current. A failed solve leaves no
// current result.
func (a *Adapter) Solve(ctx context.Context, m model.Model) error {
	return a.solve(ctx, m, nil)
}

// SolveCP is Solve for a constraint-programming model; its export must be
// in CPO format.
func (a *Adapter) SolveCP(ctx context.Context, m model.Model) error {
	return a.solve(ctx, m, func(_ *naming.Scope, art model.Artifact) ([]job.InlineData, error) {
		if !art.Format.IsCP() {
			return nil, fmt.Errorf("constraint-programming solve needs a %s model, got %s", model.FormatCPO, art.Format)
		}
		return nil, nil
	})
}

// prepareFunc runs inside the naming scope after export and before any
// network call. It returns extra inline attachments.
type prepareFunc func(scope *naming.Scope, art model.Artifact) ([]job.InlineData, error)

func (a *Adapter) solve(ctx context.Context, m model.Model, prepare prepareFunc) error {
	if a.closed {
		return ErrClosed
	}
	a.current = nil

	if a.jobs == nil {
		if a.local == nil {
			return ErrNoSolver
		}
		if prepare != nil {
			art, err := m.Export(ctx)
			if err != nil {
				return fmt.Errorf("export model: %w", err)
			}
			if _, err := prepare(nil, art); err != nil {
				return err
			}
		}
		res, err := a.local.Solve(ctx, m)
		if err != nil {
			return err
		}
		a.current = res
		return nil
	}

	res, err := a.solveRemote(ctx, m, prepare)
	if err != nil {
		return err
	}
	a.current = res
	return nil
}

func (a *Adapter) solveRemote(ctx context.Context, m model.Model, prepare prepareFunc) (*RemoteResult, error) {
	scope, err := a.bridge.Open(a.policy, m.Elements())
	if err != nil {
		return nil, err
	}
	defer scope.Restore()

	art, err := m.Export(ctx)
	if err != nil {
		return nil, fmt.Errorf("export model: %w", err)
	}
	var extra []job.InlineData
	if prepare != nil {
		if extra, err = prepare(scope, art); err != nil {
			return nil, err
		}
	}

	if a.session != nil {
		if err := a.session.InitToken(ctx); err != nil {
			return nil, err
		}
	}

	req, inline, err := a.request(ctx, m, art, extra)
	if err != nil {
		return nil, err
	}

	j, err := a.jobs.Submit(ctx, req, inline)
	if err != nil {
		return nil, err
	}
	a.held[j.ID] = j
	a.lastJob = j

	if _, err := a.jobs.Poll(ctx, j); err != nil {
		if job.IsFailed(err) {
			a.cleanup(ctx, j)
		}
		return nil, err
	}

	in := j.Last.DecodeInput()
	if len(in.Attachments) == 0 && a.objects != nil {
		if in.Attachments, err = a.fetchOutputs(ctx, j); err != nil {
			return nil, err
		}
	}

	sol, err := decode.DecodeAttachments(ctx, in, scope.Known)
	if err != nil {
		return nil, err
	}
	if a.ledger != nil {
		if err := a.ledger.WriteSolution(ctx, j.ID, sol); err != nil {
			a.logger.Warn("solution not stored in ledger", "job", j.ID, "error", err)
		}
	}
	a.logger.Info("solve finished", "job", j.ID, "status", sol.Status, "values", len(sol.Values))

	a.cleanup(ctx, j)
	return &RemoteResult{Solution: sol, Index: scope.Index(), JobID: j.ID}, nil
}

// request builds the submission. The returned artifact is nil when the
// model went to the object store.
func (a *Adapter) request(ctx context.Context, m model.Model, art model.Artifact, extra []job.InlineData) (*job.SubmitRequest, *model.Artifact, error) {
	name := m.Name()
	if name == "" {
		name = "solvebridge"
	}
	outputs := make([]job.OutputSelector, len(a.outputs))
	for i, p := range a.outputs {
		outputs[i] = job.OutputSelector{ID: p}
	}
	req := &job.SubmitRequest{
		Name:       name,
		SpaceID:    a.jobs.SpaceID(),
		Deployment: job.Ref{ID: a.deploymentID},
		DecisionOptimization: job.DecisionOptimization{
			SolveParameters: a.params,
			InputData:       extra,
			OutputData:      outputs,
		},
	}
	if err := req.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid submit request: %w", err)
	}
	if a.objects == nil {
		return req, &art, nil
	}

	ref, err := a.objects.Put(ctx, art.Name, name+"/"+art.Name, art.Source)
	if err != nil {
		return nil, nil, err
	}
	req.DecisionOptimization.InputDataReferences = append(req.DecisionOptimization.InputDataReferences, ref)
	return req, nil, nil
}

// cleanup deletes j when delete-after-solve is on. A failed delete leaves
// the job held for Close.
func (a *Adapter) cleanup(ctx context.Context, j *job.Job) {
	if !a.deleteAfter {
		return
	}
	if err := a.jobs.Delete(ctx, j, a.hardDelete); err != nil {
		a.logger.Warn("job not deleted after solve", "job", j.ID, "error", err)
		return
	}
	delete(a.held, j.ID)
}

// Close deletes held jobs according to the teardown policy, then releases
// the session and every registered resource. It is idempotent.
//
// With a ledger, Close also deletes pending jobs that were submitted before
// this adapter was created: orphans of earlier runs. Jobs submitted later
// belong to some other live process sharing the ledger and are left alone.
// A process still polling a job it submitted before this adapter started is
// not distinguishable from a crashed one, so a ledger file should be shared
// by processes that run one after another, not side by side.
func (a *Adapter) Close(ctx context.Context) error {
	if a.closed {
		return nil
	}
	a.closed = true

	var errs []error
	if a.jobs != nil && a.teardown != TeardownKeep {
		for _, err := range a.deleteHeld(ctx) {
			if a.teardown == TeardownSwallow {
				a.logger.Warn("job not deleted at close", "error", err)
				continue
			}
			errs = append(errs, err)
		}
	}
	if a.session != nil {
		if err := a.session.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.objects != nil {
		if err := a.objects.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *Adapter) deleteHeld(ctx context.Context) []error {
	targets := make(map[string]*job.Job, len(a.held))
	order := make([]string, 0, len(a.held))
	for id, j := range a.held {
		targets[id] = j
		order = append(order, id)
	}
	slices.Sort(order)
	if a.ledger != nil {
		pending, err := a.ledger.Pending(ctx)
		if err != nil {
			a.logger.Warn("ledger unreadable at close", "error", err)
		}
		for _, e := range pending {
			if _, ok := targets[e.ID]; ok {
				continue
			}
			if !e.SubmittedAt.Before(a.started) {
				a.logger.Debug("pending job left to its owner", "job", e.ID, "submitted", e.SubmittedAt)
				continue
			}
			targets[e.ID] = &job.Job{ID: e.ID, Name: e.Name, DeploymentID: e.DeploymentID, State: e.State}
			order = append(order, e.ID)
		}
	}

	var errs []error
	for _, id := range order {
		if err := a.jobs.Delete(ctx, targets[id], a.hardDelete); err != nil {
			errs = append(errs, fmt.Errorf("delete job %s: %w", id, err))
			continue
		}
		delete(a.held, id)
	}
	return errs
}
