package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/solvebridge/internal/adapter"
	"github.com/roach88/solvebridge/internal/job"
	"github.com/roach88/solvebridge/internal/store"
)

// DeleteOptions holds flags for the delete command.
type DeleteOptions struct {
	*RootOptions
	Hard    bool
	Pending bool
}

// DeleteReport lists the jobs a delete removed.
type DeleteReport struct {
	Deleted []string `json:"deleted"`
	Hard    bool     `json:"hard"`
}

func (r DeleteReport) Text() string {
	if len(r.Deleted) == 0 {
		return "Nothing to delete.\n"
	}
	s := ""
	for _, id := range r.Deleted {
		s += fmt.Sprintf("✓ deleted %s\n", id)
	}
	return s
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete [job-id...]",
		Short: "Delete jobs from the service",
		Long: `Delete jobs and their attachments from the service. Deleting a job that
is already gone succeeds.

With --pending, every job the ledger still holds is deleted; this cleans
up after a process that exited before its teardown ran.

Examples:
  solvebridge delete 0b5c6f1e-...
  solvebridge delete --hard 0b5c6f1e-... 7a1d22c0-...
  solvebridge delete --pending`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !opts.Pending {
				return NewExitError(ExitCommandError, "give at least one job id or --pending")
			}
			return runDelete(cmd, opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.Hard, "hard", false, "also remove the job's stored history")
	cmd.Flags().BoolVar(&opts.Pending, "pending", false, "delete every job the ledger has not seen deleted")

	return cmd
}

func runDelete(cmd *cobra.Command, opts *DeleteOptions, ids []string) error {
	out := opts.formatter(cmd)
	ctx := cmd.Context()

	cfg, logger, err := opts.environment(cmd)
	if err != nil {
		return out.Fail(err)
	}
	c, err := adapter.Connect(ctx, cfg, logger)
	if err != nil {
		return out.Fail(classify("connect", err))
	}
	defer c.Close()

	targets := make([]*job.Job, 0, len(ids))
	for _, id := range ids {
		targets = append(targets, knownJob(cmd, c.Ledger, id))
	}
	if opts.Pending {
		if c.Ledger == nil {
			return out.Fail(&ExitError{Code: ExitCommandError, ErrCode: ErrCodeConfig, Message: "--pending needs ledger.path"})
		}
		pending, err := c.Ledger.Pending(ctx)
		if err != nil {
			return out.Fail(classify("read ledger", err))
		}
		for _, e := range pending {
			targets = append(targets, entryJob(e))
		}
	}

	report := DeleteReport{Deleted: []string{}, Hard: opts.Hard}
	var errs []error
	for _, j := range targets {
		if err := c.Jobs.Delete(ctx, j, opts.Hard); err != nil {
			errs = append(errs, fmt.Errorf("job %s: %w", j.ID, err))
			continue
		}
		out.VerboseLog("deleted %s", j.ID)
		report.Deleted = append(report.Deleted, j.ID)
	}
	if err := out.Success(report); err != nil {
		return err
	}
	if len(errs) > 0 {
		return out.Fail(classify("delete", errors.Join(errs...)))
	}
	return nil
}

// knownJob fills in what the ledger remembers about id so the deletion is
// recorded against the right entry.
func knownJob(cmd *cobra.Command, ledger *store.Store, id string) *job.Job {
	if ledger != nil {
		if e, err := ledger.ReadJob(cmd.Context(), id); err == nil {
			return entryJob(e)
		}
	}
	return &job.Job{ID: id, State: job.StatePolling}
}

func entryJob(e store.Entry) *job.Job {
	j := &job.Job{
		ID:           e.ID,
		Name:         e.Name,
		DeploymentID: e.DeploymentID,
		State:        e.State,
		SubmittedAt:  e.SubmittedAt,
		UpdatedAt:    e.UpdatedAt,
	}
	// Delete is a no-op on a job already marked deleted; the command is
	// asked to delete remotely regardless.
	if j.State == job.StateDeleted {
		j.State = job.StateCompleted
	}
	return j
}
