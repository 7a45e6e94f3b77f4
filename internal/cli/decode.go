package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/solvebridge/internal/decode"
	"github.com/roach88/solvebridge/internal/solution"
)

// DecodeOptions holds flags for the decode command.
type DecodeOptions struct {
	*RootOptions
	Canonical bool
}

// NewDecodeCommand creates the decode command.
func NewDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DecodeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "decode <solution-file>",
		Short: "Decode a solution document offline",
		Long: `Decode a solution document the service returned (CPLEX XML, CPLEX JSON
or CP Optimizer JSON) without contacting the service. The format comes
from the extension, or from the first byte when there is none.

Examples:
  solvebridge decode solution.xml
  solvebridge decode --canonical solution.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Canonical, "canonical", false, "print the canonical solution JSON")

	return cmd
}

func runDecode(cmd *cobra.Command, opts *DecodeOptions, path string) error {
	out := opts.formatter(cmd)

	data, err := os.ReadFile(path)
	if err != nil {
		return out.Fail(classify("read "+path, err))
	}
	sol, err := decode.DecodeDocument(filepath.Base(path), data, nil)
	if err != nil {
		return out.Fail(classify("decode "+path, err))
	}
	if sol == nil {
		return out.Fail(&ExitError{Code: ExitFailure, ErrCode: ErrCodeMalformed, Message: fmt.Sprintf("%s is not a solution document", path)})
	}

	if opts.Canonical || opts.Format == "json" {
		snap, err := solution.Snapshot(sol)
		if err != nil {
			return out.Fail(classify("render", err))
		}
		if opts.Format == "json" {
			return out.Success(json.RawMessage(snap))
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(snap))
		return err
	}

	report := SolveReport{
		Model:       filepath.Base(path),
		Status:      sol.Status.String(),
		SolveStatus: sol.SolveStatus,
		Objectives:  sol.Objectives,
		Values:      sol.Values,
		KPIs:        sol.KPIs,
	}
	return out.Success(report)
}
