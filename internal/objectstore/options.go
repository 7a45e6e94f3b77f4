package objectstore

import (
	"log/slog"

	"github.com/roach88/solvebridge/internal/transport"
)

type options struct {
	logger    *slog.Logger
	transport []transport.Option
	gcs       []gcsOption
}

// Option configures a backend.
type Option func(*options)

// WithLogger sets the backend's logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTransport passes options to the HTTP backend's client.
func WithTransport(opts ...transport.Option) Option {
	return func(o *options) { o.transport = append(o.transport, opts...) }
}

func collect(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
