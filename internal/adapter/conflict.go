package adapter

import (
	"bytes"
	"context"

	"github.com/roach88/solvebridge/internal/conflict"
	"github.com/roach88/solvebridge/internal/job"
	"github.com/roach88/solvebridge/internal/model"
	"github.com/roach88/solvebridge/internal/naming"
)

// RefineConflict asks the engine for a minimal conflicting subset of m.
// Afterwards ConflictStatus answers per element. Unnamed or unsupported
// preferences are rejected before anything is sent.
func (a *Adapter) RefineConflict(ctx context.Context, m model.Model, prefs []conflict.Preference) error {
	if a.jobs == nil {
		return ErrRemoteOnly
	}
	return a.solve(ctx, m, func(_ *naming.Scope, _ model.Artifact) ([]job.InlineData, error) {
		var buf bytes.Buffer
		if err := conflict.EncodeConflict(&buf, prefs); err != nil {
			return nil, err
		}
		return []job.InlineData{{ID: conflict.ConflictAttachmentID, Content: buf.Bytes()}}, nil
	})
}

// FeasOpt asks the engine to relax the weighted constraints and bounds of
// m until it becomes feasible. Logical constraints cannot be relaxed and
// are rejected before anything is sent.
func (a *Adapter) FeasOpt(ctx context.Context, m model.Model, relax []conflict.Relaxation) error {
	if a.jobs == nil {
		return ErrRemoteOnly
	}
	return a.solve(ctx, m, func(_ *naming.Scope, _ model.Artifact) ([]job.InlineData, error) {
		var buf bytes.Buffer
		if err := conflict.EncodeRelaxation(&buf, relax); err != nil {
			return nil, err
		}
		return []job.InlineData{{ID: conflict.RelaxationAttachmentID, Content: buf.Bytes()}}, nil
	})
}
