// Package objectstore moves models and results through an object store
// instead of inline job payloads.
//
// A Connector uploads a model artifact under a key and hands back the data
// reference the job envelope carries. Completed jobs that list outputs in
// output_data_references are read back with Get.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/roach88/solvebridge/internal/job"
	"github.com/roach88/solvebridge/internal/model"
)

// Kinds accepted by Open.
const (
	KindNone = "none"
	KindHTTP = "http"
	KindGCS  = "gcs"
)

// Connector is an object-store backend.
type Connector interface {
	// Put uploads src under key and returns a reference to it with id set.
	Put(ctx context.Context, id, key string, src model.Source) (job.DataReference, error)
	// Get reads the object a reference points at.
	Get(ctx context.Context, ref job.DataReference) ([]byte, error)
	// Reference describes key without touching the store, for output
	// locations the service writes to.
	Reference(id, key string) job.DataReference
	Close() error
}

// Settings selects and configures a backend.
type Settings struct {
	Kind            string
	BaseURL         string
	Bucket          string
	Prefix          string
	CredentialsFile string
}

// Open returns the backend named by s.Kind, or nil for KindNone.
func Open(ctx context.Context, s Settings, opts ...Option) (Connector, error) {
	switch strings.ToLower(s.Kind) {
	case "", KindNone:
		return nil, nil
	case KindHTTP:
		h, err := NewHTTP(s.BaseURL, s.Prefix, opts...)
		if err != nil {
			return nil, err
		}
		return h, nil
	case KindGCS:
		g, err := NewGCS(ctx, s.Bucket, s.Prefix, s.CredentialsFile, opts...)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown object store kind %q", s.Kind)
	}
}

// LocationError reports a reference a backend cannot resolve.
type LocationError struct {
	Type   string
	Reason string
}

func (e *LocationError) Error() string {
	return fmt.Sprintf("data reference of type %q: %s", e.Type, e.Reason)
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return strings.TrimPrefix(key, "/")
	}
	return path.Join(prefix, key)
}

// sourceBody streams a model.Source as a request body. An open failure
// surfaces as a read error.
type sourceBody struct {
	src model.Source
}

func (b sourceBody) Len() int64 { return b.src.Size() }

func (b sourceBody) Reader() io.ReadCloser {
	rc, err := b.src.Open()
	if err != nil {
		return io.NopCloser(errReader{err})
	}
	return rc
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }
