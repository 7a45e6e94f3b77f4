package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/roach88/solvebridge/internal/job"
	"github.com/roach88/solvebridge/internal/model"
)

type gcsOption = option.ClientOption

// WithGCSClientOptions passes options to storage.NewClient, for example a
// custom endpoint.
func WithGCSClientOptions(opts ...option.ClientOption) Option {
	return func(o *options) { o.gcs = append(o.gcs, opts...) }
}

// GCS stores objects in a Google Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// NewGCS connects to bucket. With a credentials file the client uses that
// service account key; otherwise application default credentials.
func NewGCS(ctx context.Context, bucket, prefix, credentialsFile string, opts ...Option) (*GCS, error) {
	if bucket == "" {
		return nil, errors.New("gcs object store: no bucket configured")
	}
	o := collect(opts)
	clientOpts := o.gcs
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); err != nil {
			return nil, fmt.Errorf("gcs service account key %s: %w", credentialsFile, err)
		}
		clientOpts = append(clientOpts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return &GCS{client: client, bucket: bucket, prefix: prefix, logger: o.logger}, nil
}

func (g *GCS) Reference(id, key string) job.DataReference {
	return job.DataReference{
		ID:       id,
		Type:     "gcs",
		Location: map[string]string{"bucket": g.bucket, "path": joinKey(g.prefix, key)},
	}
}

func (g *GCS) Put(ctx context.Context, id, key string, src model.Source) (job.DataReference, error) {
	ref := g.Reference(id, key)
	rc, err := src.Open()
	if err != nil {
		return job.DataReference{}, fmt.Errorf("open %s: %w", key, err)
	}
	defer rc.Close()

	w := g.client.Bucket(g.bucket).Object(ref.Location["path"]).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	w.CacheControl = "no-cache, no-store, must-revalidate"
	if _, err := io.Copy(w, rc); err != nil {
		w.Close()
		return job.DataReference{}, fmt.Errorf("failed to copy %s to gs://%s/%s: %w", key, g.bucket, ref.Location["path"], err)
	}
	if err := w.Close(); err != nil {
		return job.DataReference{}, fmt.Errorf("failed to close GCS writer for %s: %w", ref.Location["path"], err)
	}
	g.logger.Debug("object stored", "bucket", g.bucket, "path", ref.Location["path"], "bytes", src.Size())
	return ref, nil
}

func (g *GCS) Get(ctx context.Context, ref job.DataReference) ([]byte, error) {
	bucket, p := ref.Location["bucket"], ref.Location["path"]
	if bucket == "" {
		bucket = g.bucket
	}
	if p == "" {
		return nil, &LocationError{Type: ref.Type, Reason: "no path in location"}
	}
	r, err := g.client.Bucket(bucket).Object(p).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("read gs://%s/%s: %w", bucket, p, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (g *GCS) Close() error {
	return g.client.Close()
}
