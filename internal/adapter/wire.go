package adapter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/solvebridge/internal/config"
	"github.com/roach88/solvebridge/internal/job"
	"github.com/roach88/solvebridge/internal/naming"
	"github.com/roach88/solvebridge/internal/objectstore"
	"github.com/roach88/solvebridge/internal/payload"
	"github.com/roach88/solvebridge/internal/session"
	"github.com/roach88/solvebridge/internal/store"
	"github.com/roach88/solvebridge/internal/transport"
)

// Components is everything FromConfig wires, exposed for commands that
// need one piece without a full solve (status, delete, jobs).
type Components struct {
	Session *session.Manager
	Client  *transport.Client
	Jobs    *job.Service
	Ledger  *store.Store
	Objects objectstore.Connector
}

// Connect wires the service components described by cfg. The caller owns
// the result and releases it with Close.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, error) {
	if err := cfg.RequireService(); err != nil {
		return nil, err
	}
	mode, err := session.ParseMode(cfg.Auth.Kind)
	if err != nil {
		return nil, err
	}
	creds, err := cfg.Credentials()
	if err != nil {
		return nil, err
	}

	c := &Components{}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	authClient, err := transport.NewClient(cfg.Auth.URL,
		transport.WithHTTPClient(transport.NewHTTPClient(cfg.Transport.Timeout)),
		transport.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("auth.url: %w", err)
	}
	c.Session = session.NewManager(mode, cfg.Auth.URL, creds, authClient,
		session.WithRefreshInterval(cfg.Auth.RefreshInterval),
		session.WithLogger(logger))

	clientOpts := []transport.Option{
		transport.WithHTTPClient(transport.NewHTTPClient(cfg.Transport.Timeout)),
		transport.WithTokenSource(c.Session),
		transport.WithLogger(logger),
	}
	if cfg.Transport.RequestsPerSecond > 0 {
		clientOpts = append(clientOpts, transport.WithRate(cfg.Transport.RequestsPerSecond, cfg.Transport.Burst))
	}
	if c.Client, err = transport.NewClient(cfg.Service.URL, clientOpts...); err != nil {
		return nil, fmt.Errorf("service.url: %w", err)
	}

	jobOpts := []job.Option{
		job.WithPollInterval(cfg.Solve.PollInterval),
		job.WithAPIVersion(cfg.Service.APIVersion),
		job.WithLogger(logger),
		job.WithBuilder(payload.NewBuilder(
			payload.WithDebugDir(cfg.Solve.DebugDir),
			payload.WithWarnBytes(cfg.Solve.PayloadWarnBytes),
			payload.WithLogger(logger))),
	}
	if cfg.Ledger.Path != "" {
		if c.Ledger, err = store.Open(cfg.Ledger.Path); err != nil {
			return nil, fmt.Errorf("ledger.path: %w", err)
		}
		jobOpts = append(jobOpts, job.WithRecorder(c.Ledger))
	}
	c.Jobs = job.NewService(c.Client, cfg.Service.SpaceID, jobOpts...)

	c.Objects, err = objectstore.Open(ctx, objectstore.Settings{
		Kind:            cfg.ObjectStore.Kind,
		BaseURL:         cfg.ObjectStore.BaseURL,
		Bucket:          cfg.ObjectStore.Bucket,
		Prefix:          cfg.ObjectStore.Prefix,
		CredentialsFile: cfg.ObjectStore.CredentialsFile,
	}, objectstore.WithLogger(logger),
		objectstore.WithTransport(transport.WithHTTPClient(transport.NewHTTPClient(cfg.Transport.Timeout))))
	if err != nil {
		return nil, err
	}

	ok = true
	return c, nil
}

// Close releases every component. The session goes last so in-flight
// deletes still carry a token.
func (c *Components) Close() error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	if c.Objects != nil {
		keep(c.Objects.Close())
	}
	if c.Ledger != nil {
		keep(c.Ledger.Close())
	}
	if c.Client != nil {
		c.Client.Close()
	}
	if c.Session != nil {
		keep(c.Session.Close())
	}
	return first
}

// FromConfig builds a remote Adapter from cfg.
func FromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Adapter, error) {
	policy, err := naming.ParsePolicy(cfg.Solve.Naming)
	if err != nil {
		return nil, err
	}
	teardown, err := ParseTeardown(cfg.Solve.Teardown)
	if err != nil {
		return nil, err
	}
	c, err := Connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	opts := []Option{
		WithJobs(c.Jobs, cfg.Service.DeploymentID),
		WithSession(c.Session),
		WithNamingPolicy(policy),
		WithSolveParameters(cfg.Solve.Parameters),
		WithOutputs(cfg.Solve.Outputs...),
		WithTeardown(teardown),
		WithHardDelete(cfg.Solve.HardDelete),
		WithLogger(logger),
		WithCloser(func() error {
			c.Client.Close()
			return nil
		}),
	}
	if c.Ledger != nil {
		opts = append(opts, WithLedger(c.Ledger), WithCloser(c.Ledger.Close))
	}
	if c.Objects != nil {
		opts = append(opts, WithObjectStore(c.Objects))
	}
	if cfg.Solve.DeleteAfterSolve {
		opts = append(opts, WithDeleteAfterSolve())
	}
	return New(opts...), nil
}
