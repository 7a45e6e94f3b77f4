package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/solvebridge/internal/config"
)

// FileResult is the validation outcome of one configuration file.
type FileResult struct {
	Path  string `json:"path"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// ValidateResult is the output of validate.
type ValidateResult struct {
	Files []FileResult `json:"files"`
}

func (r ValidateResult) Text() string {
	var b strings.Builder
	for _, f := range r.Files {
		if f.Valid {
			fmt.Fprintf(&b, "✓ %s\n", f.Path)
			continue
		}
		fmt.Fprintf(&b, "✗ %s\n  %s\n", f.Path, strings.ReplaceAll(f.Error, "\n", "\n  "))
	}
	return b.String()
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [config-file...]",
		Short: "Validate configuration files",
		Long: `Check configuration files against the schema without contacting the
service. With no arguments the --config file is checked.

Environment overrides are not applied.

Examples:
  solvebridge validate solvebridge.yaml
  solvebridge validate --format json prod.yaml staging.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				if rootOpts.ConfigPath == "" {
					return NewExitError(ExitCommandError, "no configuration file given")
				}
				args = []string{rootOpts.ConfigPath}
			}
			return runValidate(cmd, rootOpts, args)
		},
	}
	return cmd
}

func runValidate(cmd *cobra.Command, opts *RootOptions, paths []string) error {
	out := opts.formatter(cmd)
	noEnv := func(string) (string, bool) { return "", false }

	result := ValidateResult{Files: make([]FileResult, 0, len(paths))}
	failed := 0
	for _, p := range paths {
		fr := FileResult{Path: p, Valid: true}
		if _, err := config.LoadWithEnv(p, noEnv); err != nil {
			fr.Valid = false
			fr.Error = err.Error()
			failed++
		}
		result.Files = append(result.Files, fr)
	}

	if err := out.Success(result); err != nil {
		return err
	}
	if failed > 0 {
		return &ExitError{Code: ExitFailure, ErrCode: ErrCodeConfig, Message: fmt.Sprintf("%d of %d file(s) invalid", failed, len(paths))}
	}
	return nil
}
