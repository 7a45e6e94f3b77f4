package cli

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/solvebridge/internal/adapter"
	"github.com/roach88/solvebridge/internal/solution"
)

// SolveOptions holds flags for the solve command.
type SolveOptions struct {
	*RootOptions
	CP         bool
	Delete     bool
	Parameters map[string]string
	Output     string
}

// SolveReport is what solve prints.
type SolveReport struct {
	Model       string             `json:"model"`
	Job         string             `json:"job,omitempty"`
	State       string             `json:"state,omitempty"`
	Status      string             `json:"status"`
	SolveStatus string             `json:"solve_status,omitempty"`
	Objectives  []float64          `json:"objectives"`
	Values      map[string]float64 `json:"values"`
	KPIs        map[string]float64 `json:"kpis,omitempty"`
}

// Text renders the report with values in name order.
func (r SolveReport) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Model:  %s\n", r.Model)
	if r.Job != "" {
		fmt.Fprintf(&b, "Job:    %s (%s)\n", r.Job, r.State)
	}
	fmt.Fprintf(&b, "Status: %s", r.Status)
	if r.SolveStatus != "" && r.SolveStatus != r.Status {
		fmt.Fprintf(&b, " (%s)", r.SolveStatus)
	}
	b.WriteString("\n")
	for i, v := range r.Objectives {
		fmt.Fprintf(&b, "Objective %d: %g\n", i, v)
	}
	writeTable(&b, "Values", r.Values)
	writeTable(&b, "KPIs", r.KPIs)
	return b.String()
}

func writeTable(b *strings.Builder, title string, m map[string]float64) {
	if len(m) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, name := range slices.Sorted(maps.Keys(m)) {
		fmt.Fprintf(b, "  %-24s %g\n", name, m[name])
	}
}

// NewSolveCommand creates the solve command.
func NewSolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "solve <model-file>",
		Short: "Solve an exported model remotely",
		Long: `Submit an exported model (.lp, .mps, .sav, .cpo, ...) to the configured
deployment, wait for the job to finish and print the solution.

Exit codes:
  0 - A solution was found
  1 - The job failed or returned no solution
  2 - Command error (missing file, service unreachable, authentication)

Examples:
  solvebridge solve --config solvebridge.yaml model.lp
  solvebridge solve --cp --delete schedule.cpo
  solvebridge solve --param timelimit=60 --output solution.json model.lp`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolve(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.CP, "cp", false, "solve as a constraint-programming model")
	cmd.Flags().BoolVar(&opts.Delete, "delete", false, "delete the job once its outputs are read")
	cmd.Flags().StringToStringVar(&opts.Parameters, "param", nil, "solve parameter key=value (repeatable)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the canonical solution JSON to this file")

	return cmd
}

func runSolve(cmd *cobra.Command, opts *SolveOptions, path string) (err error) {
	out := opts.formatter(cmd)
	ctx := cmd.Context()

	cfg, logger, err := opts.environment(cmd)
	if err != nil {
		return out.Fail(err)
	}
	m, err := loadModel(path)
	if err != nil {
		return out.Fail(err)
	}

	if opts.Delete {
		cfg.Solve.DeleteAfterSolve = true
	}
	if len(opts.Parameters) > 0 {
		params := maps.Clone(cfg.Solve.Parameters)
		if params == nil {
			params = map[string]string{}
		}
		maps.Copy(params, opts.Parameters)
		cfg.Solve.Parameters = params
	}

	a, err := adapter.FromConfig(ctx, cfg, logger)
	if err != nil {
		return out.Fail(classify("connect", err))
	}
	defer func() {
		if cerr := a.Close(ctx); cerr != nil && err == nil {
			err = out.Fail(classify("close", cerr))
		}
	}()

	out.VerboseLog("solving %s", path)
	if opts.CP {
		err = a.SolveCP(ctx, m)
	} else {
		err = a.Solve(ctx, m)
	}
	if err != nil {
		return out.Fail(classify("solve "+path, err))
	}

	sol := a.Solution()
	if sol == nil {
		return out.Fail(NewExitError(ExitFailure, "solve returned no remote result"))
	}
	report := SolveReport{
		Model:       m.Name(),
		Status:      sol.Status.String(),
		SolveStatus: sol.SolveStatus,
		Objectives:  sol.Objectives,
		Values:      sol.Values,
		KPIs:        sol.KPIs,
	}
	if report.Objectives == nil {
		report.Objectives = []float64{}
	}
	if j := a.LastJob(); j != nil {
		report.Job, report.State = j.ID, string(j.State)
	}

	if opts.Output != "" {
		if err := writeSnapshot(opts.Output, sol); err != nil {
			return out.Fail(err)
		}
		out.VerboseLog("wrote %s", opts.Output)
	}
	if err := out.Success(report); err != nil {
		return err
	}
	if !sol.Status.HasSolution() {
		return NewExitError(ExitFailure, fmt.Sprintf("no solution: %s", sol.Status))
	}
	return nil
}

func writeSnapshot(path string, sol *solution.Solution) error {
	data, err := solution.Snapshot(sol)
	if err != nil {
		return &ExitError{Code: ExitFailure, ErrCode: ErrCodeWriteFailed, Message: "render solution", Err: err}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return &ExitError{Code: ExitFailure, ErrCode: ErrCodeWriteFailed, Message: "write solution", Err: err}
	}
	return nil
}
