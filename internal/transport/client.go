// Package transport is the HTTP client every remote call goes through. It
// attaches the bearer token, paces requests and maps failures to Error.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/roach88/solvebridge/internal/decode"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 64 << 10

// TokenSource supplies the current bearer token.
type TokenSource interface {
	Token() string
}

// Refresher is a TokenSource that can re-authenticate on demand. When the
// client's token source implements it, a 401 on a bearer request triggers
// one Refresh and one resend.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Body is a request body of known length that can be read more than once.
type Body interface {
	Reader() io.ReadCloser
	Len() int64
}

// Request describes one call.
type Request struct {
	Method string
	// Path is resolved against the client's base URL; an absolute URL is
	// used as is.
	Path        string
	Query       url.Values
	Header      http.Header
	Body        Body
	ContentType string

	// Username and Password switch the request to basic auth instead of
	// the bearer token.
	Username string
	Password string
	// Anonymous sends no Authorization header at all.
	Anonymous bool
}

// Client sends requests to one service.
type Client struct {
	http    *http.Client
	base    *url.URL
	tokens  TokenSource
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithRate limits outgoing requests to rps per second with the given burst.
// A non-positive rps disables pacing.
func WithRate(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewHTTPClient returns an *http.Client with pooled connections.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse service url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("service url %q must be absolute", baseURL)
	}
	c := &Client{
		http:   NewHTTPClient(0),
		base:   base,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Do sends req and decodes a JSON response into out. A nil out discards the
// body; a *[]byte out receives it raw.
//
// A request rejected with 401 was not acted on by the service, so after a
// successful token refresh it is sent again, once.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	target, err := c.resolve(req.Path, req.Query)
	if err != nil {
		return err
	}
	err = c.send(ctx, req, target, out)
	if err == nil || !isStatus(err, http.StatusUnauthorized) || !c.bearer(req) {
		return err
	}
	r, ok := c.tokens.(Refresher)
	if !ok {
		return err
	}
	c.logger.Info("token rejected, re-authenticating", "method", req.Method, "url", redact(target))
	if rerr := r.Refresh(ctx); rerr != nil {
		return errors.Join(err, fmt.Errorf("re-authenticate: %w", rerr))
	}
	return c.send(ctx, req, target, out)
}

// bearer reports whether req travels with the token source's token.
func (c *Client) bearer(req Request) bool {
	return req.Username == "" && !req.Anonymous && c.tokens != nil && c.tokens.Token() != ""
}

func (c *Client) send(ctx context.Context, req Request, target string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var body io.ReadCloser
	if req.Body != nil {
		body = req.Body.Reader()
	}
	hreq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		if body != nil {
			body.Close()
		}
		return fmt.Errorf("build request: %w", err)
	}
	if req.Body != nil {
		hreq.ContentLength = req.Body.Len()
		hreq.GetBody = func() (io.ReadCloser, error) { return req.Body.Reader(), nil }
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}
	if req.ContentType != "" {
		hreq.Header.Set("Content-Type", req.ContentType)
	} else if req.Body != nil {
		hreq.Header.Set("Content-Type", "application/json")
	}
	hreq.Header.Set("Accept", "application/json")

	switch {
	case req.Username != "":
		hreq.SetBasicAuth(req.Username, req.Password)
	case req.Anonymous:
	case c.tokens != nil:
		if tok := c.tokens.Token(); tok != "" {
			hreq.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(hreq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &Error{Method: req.Method, URL: redact(target), Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("service call",
		"method", req.Method,
		"url", redact(target),
		"status", resp.StatusCode,
		"duration", time.Since(start))

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &Error{Method: req.Method, URL: redact(target), StatusCode: resp.StatusCode, Body: snippet}
	}

	switch dst := out.(type) {
	case nil:
		_, err = io.Copy(io.Discard, resp.Body)
		return err
	case *[]byte:
		*dst, err = io.ReadAll(resp.Body)
		if err != nil {
			return &Error{Method: req.Method, URL: redact(target), StatusCode: resp.StatusCode, Err: err}
		}
		return nil
	default:
		dec := json.NewDecoder(resp.Body)
		if err := dec.Decode(out); err != nil {
			return &decode.MalformedError{
				Source: req.Method + " " + redact(target),
				Offset: dec.InputOffset(),
				Reason: "unparsable response body",
				Err:    err,
			}
		}
		return nil
	}
}

func (c *Client) resolve(path string, query url.Values) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse path %q: %w", path, err)
	}
	var u *url.URL
	if ref.IsAbs() {
		u = ref
	} else {
		u = c.base.ResolveReference(&url.URL{Path: strings.TrimPrefix(ref.Path, "/"), RawQuery: ref.RawQuery})
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// redact strips credentials and the query from a URL before it is logged
// or embedded in an error.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}
