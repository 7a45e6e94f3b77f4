package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/roach88/solvebridge/internal/config"
	"github.com/roach88/solvebridge/internal/conflict"
	"github.com/roach88/solvebridge/internal/decode"
	"github.com/roach88/solvebridge/internal/job"
	"github.com/roach88/solvebridge/internal/model"
	"github.com/roach88/solvebridge/internal/naming"
	"github.com/roach88/solvebridge/internal/session"
	"github.com/roach88/solvebridge/internal/store"
	"github.com/roach88/solvebridge/internal/transport"
)

// Error codes for CLI errors.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeConfig      = "E002" // Configuration unreadable or invalid
	ErrCodeNotFound    = "E003" // File, job or ledger entry not found
	ErrCodeAuth        = "E004" // Token exchange failed
	ErrCodeRemote      = "E005" // Service unreachable or returned an error
	ErrCodeJobFailed   = "E006" // Job ended failed or canceled
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeModel       = "E008" // Model rejected before submission
	ErrCodeMalformed   = "E009" // Output could not be decoded
)

// classify maps an error from the solve stack to an exit error carrying a
// stable code. Errors that are already ExitErrors pass through.
func classify(message string, err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}

	e := &ExitError{Code: ExitFailure, ErrCode: ErrCodeGeneric, Message: message, Err: err}
	switch {
	case config.IsConfigError(err):
		e.ErrCode = ErrCodeConfig
	case session.IsAuthError(err):
		e.Code, e.ErrCode = ExitCommandError, ErrCodeAuth
	case job.IsFailed(err):
		e.ErrCode = ErrCodeJobFailed
	case decode.IsMalformed(err):
		e.ErrCode = ErrCodeMalformed
	case naming.IsConflictError(err), conflict.IsUnsupported(err):
		e.ErrCode = ErrCodeModel
	case transport.IsNotFound(err), errors.Is(err, store.ErrNotFound), errors.Is(err, os.ErrNotExist):
		e.Code, e.ErrCode = ExitCommandError, ErrCodeNotFound
	case transport.IsTransportError(err):
		e.Code, e.ErrCode = ExitCommandError, ErrCodeRemote
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		e.Code = ExitCommandError
	}
	return e
}

// loadConfig reads the file named by --config, or only the environment
// when the flag is empty.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, &ExitError{Code: ExitFailure, ErrCode: ErrCodeConfig, Message: "load configuration", Err: err}
	}
	return cfg, nil
}

// loadModel opens an exported model file. The format comes from the
// extension.
func loadModel(path string) (*model.FileModel, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, ErrCode: ErrCodeNotFound, Message: "model file", Err: err}
	}
	if info.IsDir() {
		return nil, &ExitError{Code: ExitCommandError, ErrCode: ErrCodeNotFound, Message: fmt.Sprintf("model file %s is a directory", path)}
	}
	if _, err := model.FormatFromPath(path); err != nil {
		return nil, &ExitError{Code: ExitCommandError, ErrCode: ErrCodeModel, Message: "model file", Err: err}
	}
	return &model.FileModel{Path: path}, nil
}
