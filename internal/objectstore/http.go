package objectstore

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/roach88/solvebridge/internal/job"
	"github.com/roach88/solvebridge/internal/model"
	"github.com/roach88/solvebridge/internal/transport"
)

// HTTP stores objects with plain PUT and GET against a base URL, as a
// presigned bucket endpoint or a simple file server exposes them.
type HTTP struct {
	client *transport.Client
	base   string
	prefix string
	logger *slog.Logger
}

// NewHTTP returns an HTTP backend rooted at baseURL.
func NewHTTP(baseURL, prefix string, opts ...Option) (*HTTP, error) {
	o := collect(opts)
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	client, err := transport.NewClient(baseURL, append([]transport.Option{transport.WithLogger(o.logger)}, o.transport...)...)
	if err != nil {
		return nil, fmt.Errorf("object store: %w", err)
	}
	return &HTTP{client: client, base: baseURL, prefix: prefix, logger: o.logger}, nil
}

func (h *HTTP) Reference(id, key string) job.DataReference {
	return job.DataReference{
		ID:       id,
		Type:     "url",
		Location: map[string]string{"url": h.base + escapeKey(joinKey(h.prefix, key))},
	}
}

func (h *HTTP) Put(ctx context.Context, id, key string, src model.Source) (job.DataReference, error) {
	ref := h.Reference(id, key)
	err := h.client.Do(ctx, transport.Request{
		Method:      http.MethodPut,
		Path:        ref.Location["url"],
		Body:        sourceBody{src},
		ContentType: "application/octet-stream",
	}, nil)
	if err != nil {
		return job.DataReference{}, fmt.Errorf("put %s: %w", key, err)
	}
	h.logger.Debug("object stored", "key", key, "bytes", src.Size())
	return ref, nil
}

func (h *HTTP) Get(ctx context.Context, ref job.DataReference) ([]byte, error) {
	target, ok := ref.Location["url"]
	if !ok {
		p, hasPath := ref.Location["path"]
		if !hasPath {
			return nil, &LocationError{Type: ref.Type, Reason: "neither url nor path in location"}
		}
		target = escapeKey(joinKey(h.prefix, p))
	}
	var body []byte
	if err := h.client.Do(ctx, transport.Request{Method: http.MethodGet, Path: target}, &body); err != nil {
		return nil, fmt.Errorf("get %s: %w", ref.ID, err)
	}
	return body, nil
}

func (h *HTTP) Close() error {
	h.client.Close()
	return nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
