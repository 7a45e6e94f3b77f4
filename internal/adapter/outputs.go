package adapter

import (
	"context"
	"encoding/base64"
	"fmt"
	"path"

	"github.com/roach88/solvebridge/internal/decode"
	"github.com/roach88/solvebridge/internal/job"
)

// fetchOutputs reads the attachments a job wrote to the object store.
func (a *Adapter) fetchOutputs(ctx context.Context, j *job.Job) ([]decode.Attachment, error) {
	refs := j.Last.Entity.DecisionOptimization.OutputDataReferences
	out := make([]decode.Attachment, 0, len(refs))
	for _, ref := range refs {
		data, err := a.objects.Get(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("fetch output of job %s: %w", j.ID, err)
		}
		id := ref.ID
		if id == "" {
			id = path.Base(ref.Location["path"])
		}
		out = append(out, decode.Attachment{ID: id, Content: base64.StdEncoding.EncodeToString(data)})
	}
	return out, nil
}
