package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/solvebridge/internal/adapter"
	"github.com/roach88/solvebridge/internal/job"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Raw bool
}

// StatusReport is one job's remote status.
type StatusReport struct {
	ID          string   `json:"id"`
	Name        string   `json:"name,omitempty"`
	State       string   `json:"state"`
	RemoteState string   `json:"remote_state"`
	SolveStatus string   `json:"solve_status,omitempty"`
	CompletedAt string   `json:"completed_at,omitempty"`
	Failure     string   `json:"failure,omitempty"`
	Outputs     []string `json:"outputs,omitempty"`
}

func (r StatusReport) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Job:    %s", r.ID)
	if r.Name != "" {
		fmt.Fprintf(&b, " (%s)", r.Name)
	}
	fmt.Fprintf(&b, "\nState:  %s [%s]\n", r.State, r.RemoteState)
	if r.SolveStatus != "" {
		fmt.Fprintf(&b, "Solve:  %s\n", r.SolveStatus)
	}
	if r.CompletedAt != "" {
		fmt.Fprintf(&b, "Done:   %s\n", r.CompletedAt)
	}
	if r.Failure != "" {
		fmt.Fprintf(&b, "Failed: %s\n", r.Failure)
	}
	for _, o := range r.Outputs {
		fmt.Fprintf(&b, "Output: %s\n", o)
	}
	return b.String()
}

func newStatusReport(id string, doc *job.StatusDocument) StatusReport {
	do := doc.Entity.DecisionOptimization
	r := StatusReport{
		ID:          id,
		Name:        doc.Metadata.Name,
		State:       string(doc.State()),
		RemoteState: do.Status.State,
		SolveStatus: do.SolveState.SolveStatus,
		CompletedAt: do.Status.CompletedAt,
		Failure:     doc.FailureMessage(),
	}
	for _, att := range do.OutputData {
		r.Outputs = append(r.Outputs, att.ID)
	}
	return r
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the remote status of a job",
		Long: `Fetch a job's status document once and summarize it.

Examples:
  solvebridge status 0b5c6f1e-...
  solvebridge status --raw 0b5c6f1e-...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Raw, "raw", false, "print the status document as returned")

	return cmd
}

func runStatus(cmd *cobra.Command, opts *StatusOptions, id string) (err error) {
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

	doc, raw, err := c.Jobs.Status(ctx, id)
	if err != nil {
		return out.Fail(classify("status of job "+id, err))
	}
	if opts.Raw {
		if opts.Format == "json" {
			return out.Success(json.RawMessage(raw))
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), string(raw))
		return err
	}
	return out.Success(newStatusReport(id, doc))
}
