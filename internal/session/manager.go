// Package session acquires the service's bearer token and keeps it fresh.
//
// The token lives in a single cell. Only the exchange path writes it: the
// first InitToken and then the refresh goroutine. Readers call Token and may
// briefly see the previous value. A stale token surfaces as a 401, which the
// transport answers with one Refresh and a resend.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/solvebridge/internal/payload"
	"github.com/roach88/solvebridge/internal/telemetry"
	"github.com/roach88/solvebridge/internal/transport"
)

// Mode selects the authentication exchange.
type Mode int

const (
	// ModeCloud trades an API key for a token at an IAM endpoint.
	ModeCloud Mode = iota
	// ModeOnPrem presents a username and password with basic auth.
	ModeOnPrem
)

func (m Mode) String() string {
	if m == ModeOnPrem {
		return "onprem"
	}
	return "cloud"
}

// ParseMode accepts "cloud" or "onprem".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cloud":
		return ModeCloud, nil
	case "onprem", "on-prem", "cpd":
		return ModeOnPrem, nil
	default:
		return ModeCloud, fmt.Errorf("unknown auth kind %q", s)
	}
}

// Credential keys looked up for each mode.
const (
	KeyAPIKey   = "apikey"
	KeyUsername = "username"
	KeyPassword = "password"
)

const apikeyGrant = "urn:ibm:params:oauth:grant-type:apikey"

// DefaultRefreshInterval is how often the token is re-exchanged.
const DefaultRefreshInterval = 45 * time.Minute

// Credentials is a flat secret lookup.
type Credentials interface {
	Lookup(key string) (string, bool)
}

// Manager holds the token for one adapter.
type Manager struct {
	mode    Mode
	authURL string
	creds   Credentials
	client  *transport.Client
	period  time.Duration
	timeout time.Duration
	logger  *slog.Logger

	token atomic.Pointer[string]
	group singleflight.Group

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithRefreshInterval sets the refresh period. Zero disables refresh.
func WithRefreshInterval(d time.Duration) Option {
	return func(m *Manager) { m.period = d }
}

// WithLogger sets the manager's logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithExchangeTimeout bounds each background refresh.
func WithExchangeTimeout(d time.Duration) Option {
	return func(m *Manager) { m.timeout = d }
}

// NewManager returns a Manager that authenticates against authURL: the IAM
// token endpoint in cloud mode, the validateAuth endpoint on-prem. client
// is used anonymously and is closed by Close.
func NewManager(mode Mode, authURL string, creds Credentials, client *transport.Client, opts ...Option) *Manager {
	m := &Manager{
		mode:    mode,
		authURL: authURL,
		creds:   creds,
		client:  client,
		period:  DefaultRefreshInterval,
		timeout: time.Minute,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Token returns the current token, or "" before InitToken succeeds.
func (m *Manager) Token() string {
	if p := m.token.Load(); p != nil {
		return *p
	}
	return ""
}

// InitToken performs the first exchange and starts the refresh schedule.
// It does nothing if a token is already held.
func (m *Manager) InitToken(ctx context.Context) error {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if m.Token() != "" {
		return nil
	}
	if err := m.Refresh(ctx); err != nil {
		return err
	}
	m.startRefresh()
	return nil
}

var _ transport.Refresher = (*Manager)(nil)

// Refresh exchanges credentials for a new token. On failure the previous
// token, if any, is kept.
func (m *Manager) Refresh(ctx context.Context) error {
	v, err, _ := m.group.Do("token", func() (any, error) {
		return m.exchange(ctx)
	})
	if err != nil {
		telemetry.TokenExchanges.WithLabelValues(m.mode.String(), "error").Inc()
		return err
	}
	tok := v.(string)
	m.token.Store(&tok)
	telemetry.TokenExchanges.WithLabelValues(m.mode.String(), "ok").Inc()
	return nil
}

func (m *Manager) exchange(ctx context.Context) (string, error) {
	var req transport.Request
	switch m.mode {
	case ModeCloud:
		apikey, ok := m.creds.Lookup(KeyAPIKey)
		if !ok || apikey == "" {
			return "", &AuthError{Mode: m.mode, Reason: "no api key configured"}
		}
		form := url.Values{"grant_type": {apikeyGrant}, "apikey": {apikey}}
		req = transport.Request{
			Method:      http.MethodPost,
			Path:        m.authURL,
			Body:        payload.Bytes([]byte(form.Encode())),
			ContentType: "application/x-www-form-urlencoded",
			Anonymous:   true,
		}
	case ModeOnPrem:
		user, ok := m.creds.Lookup(KeyUsername)
		if !ok || user == "" {
			return "", &AuthError{Mode: m.mode, Reason: "no username configured"}
		}
		pass, _ := m.creds.Lookup(KeyPassword)
		req = transport.Request{
			Method:   http.MethodGet,
			Path:     m.authURL,
			Username: user,
			Password: pass,
		}
	}

	var raw []byte
	if err := m.client.Do(ctx, req, &raw); err != nil {
		return "", &AuthError{Mode: m.mode, Reason: "token exchange failed", Err: err}
	}
	return extractToken(m.mode, raw)
}

// extractToken reads access_token (IAM) or accessToken (on-prem).
func extractToken(mode Mode, raw []byte) (string, error) {
	var body struct {
		AccessToken      string `json:"access_token"`
		AccessTokenCamel string `json:"accessToken"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", &AuthError{Mode: mode, Reason: "unparsable token response", Err: err}
	}
	switch {
	case body.AccessToken != "":
		return body.AccessToken, nil
	case body.AccessTokenCamel != "":
		return body.AccessTokenCamel, nil
	default:
		return "", &AuthError{Mode: mode, Reason: "response carries neither access_token nor accessToken"}
	}
}

func (m *Manager) startRefresh() {
	if m.period <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.refreshLoop(ctx, m.done)
}

func (m *Manager) refreshLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rctx, cancel := context.WithTimeout(ctx, m.timeout)
			err := m.Refresh(rctx)
			cancel()
			if err != nil {
				// The in-flight solve keeps its current token; the next
				// request reports staleness as a 401.
				if ctx.Err() == nil {
					m.logger.Warn("token refresh failed", "mode", m.mode.String(), "error", err)
				}
				continue
			}
			m.logger.Debug("token refreshed", "mode", m.mode.String())
		}
	}
}

// Close stops the refresh schedule and releases the client. It is
// idempotent.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	m.client.Close()
	return nil
}
