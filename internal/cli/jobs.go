package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/solvebridge/internal/store"
)

// JobsOptions holds flags for the jobs command.
type JobsOptions struct {
	*RootOptions
	Pending bool
	Forget  bool
}

// JobSummary is one ledger row.
type JobSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Deployment  string    `json:"deployment"`
	State       string    `json:"state"`
	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// JobList is the output of jobs without an id.
type JobList struct {
	Jobs []JobSummary `json:"jobs"`
}

func (l JobList) Text() string {
	if len(l.Jobs) == 0 {
		return "No jobs recorded.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-38s %-10s %-20s %s\n", "ID", "STATE", "UPDATED", "NAME")
	for _, j := range l.Jobs {
		fmt.Fprintf(&b, "%-38s %-10s %-20s %s\n", j.ID, j.State, j.UpdatedAt.UTC().Format(time.DateTime), j.Name)
	}
	return b.String()
}

// JobDetail is the output of jobs <id>.
type JobDetail struct {
	JobSummary
	Transitions []TransitionSummary `json:"transitions"`
	Solution    json.RawMessage     `json:"solution,omitempty"`
}

// TransitionSummary is one step of a job's history.
type TransitionSummary struct {
	State string    `json:"state"`
	At    time.Time `json:"at"`
}

func (d JobDetail) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Job:        %s (%s)\n", d.ID, d.Name)
	fmt.Fprintf(&b, "Deployment: %s\n", d.Deployment)
	fmt.Fprintf(&b, "State:      %s\n", d.State)
	for _, t := range d.Transitions {
		fmt.Fprintf(&b, "  %s  %s\n", t.At.UTC().Format(time.RFC3339), t.State)
	}
	if len(d.Solution) > 0 {
		fmt.Fprintf(&b, "Solution:   %s\n", d.Solution)
	}
	return b.String()
}

// NewJobsCommand creates the jobs command.
func NewJobsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JobsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "jobs [job-id]",
		Short: "Inspect the local job ledger",
		Long: `List the jobs recorded in the ledger (ledger.path), or show one job's
state history and stored solution. The service is not contacted.

Examples:
  solvebridge jobs
  solvebridge jobs --pending
  solvebridge jobs 0b5c6f1e-...
  solvebridge jobs --forget 0b5c6f1e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Forget && len(args) == 0 {
				return NewExitError(ExitCommandError, "--forget needs a job id")
			}
			return runJobs(cmd, opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.Pending, "pending", false, "only jobs not yet deleted from the service")
	cmd.Flags().BoolVar(&opts.Forget, "forget", false, "remove the job from the ledger")

	return cmd
}

func runJobs(cmd *cobra.Command, opts *JobsOptions, args []string) error {
	out := opts.formatter(cmd)
	ctx := cmd.Context()

	cfg, err := opts.loadConfig()
	if err != nil {
		return out.Fail(err)
	}
	if cfg.Ledger.Path == "" {
		return out.Fail(&ExitError{Code: ExitCommandError, ErrCode: ErrCodeConfig, Message: "no ledger configured (ledger.path)"})
	}
	ledger, err := store.Open(cfg.Ledger.Path)
	if err != nil {
		return out.Fail(&ExitError{Code: ExitCommandError, ErrCode: ErrCodeNotFound, Message: "open ledger", Err: err})
	}
	defer ledger.Close()

	if len(args) == 1 {
		id := args[0]
		if opts.Forget {
			if err := ledger.Forget(ctx, id); err != nil {
				return out.Fail(classify("forget "+id, err))
			}
			return out.Success(fmt.Sprintf("✓ forgot %s", id))
		}
		detail, err := jobDetail(cmd, ledger, id)
		if err != nil {
			return out.Fail(classify("job "+id, err))
		}
		return out.Success(detail)
	}

	list := ledger.ListJobs
	if opts.Pending {
		list = ledger.Pending
	}
	entries, err := list(ctx)
	if err != nil {
		return out.Fail(classify("read ledger", err))
	}
	result := JobList{Jobs: make([]JobSummary, 0, len(entries))}
	for _, e := range entries {
		result.Jobs = append(result.Jobs, summarize(e))
	}
	return out.Success(result)
}

func jobDetail(cmd *cobra.Command, ledger *store.Store, id string) (JobDetail, error) {
	ctx := cmd.Context()
	e, err := ledger.ReadJob(ctx, id)
	if err != nil {
		return JobDetail{}, err
	}
	transitions, err := ledger.Transitions(ctx, id)
	if err != nil {
		return JobDetail{}, err
	}
	d := JobDetail{JobSummary: summarize(e), Transitions: make([]TransitionSummary, 0, len(transitions))}
	for _, t := range transitions {
		d.Transitions = append(d.Transitions, TransitionSummary{State: string(t.State), At: t.At})
	}
	switch sol, err := ledger.ReadSolution(ctx, id); {
	case err == nil:
		d.Solution = sol.Snapshot
	case !errors.Is(err, store.ErrNotFound):
		return JobDetail{}, err
	}
	return d, nil
}

func summarize(e store.Entry) JobSummary {
	return JobSummary{
		ID:          e.ID,
		Name:        e.Name,
		Deployment:  e.DeploymentID,
		State:       string(e.State),
		SubmittedAt: e.SubmittedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}
