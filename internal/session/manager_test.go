package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/solvebridge/internal/transport"
)

type mapCreds map[string]string

func (m mapCreds) Lookup(k string) (string, bool) {
	v, ok := m[k]
	return v, ok
}

func newClient(t *testing.T) *transport.Client {
	t.Helper()
	c, err := transport.NewClient("http://service.invalid")
	require.NoError(t, err)
	return c
}

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestInitToken_CloudExchange(t *testing.T) {
	var calls atomic.Int32
	iam := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, apikeyGrant, r.PostForm.Get("grant_type"))
		assert.Equal(t, "key-123", r.PostForm.Get("apikey"))
		assert.Empty(t, r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"access_token":"iam-token","expires_in":3600}`)
	}))
	defer iam.Close()

	m := NewManager(ModeCloud, iam.URL+"/identity/token", mapCreds{KeyAPIKey: "key-123"}, newClient(t),
		WithRefreshInterval(0), quiet())
	defer m.Close()

	require.NoError(t, m.InitToken(context.Background()))
	assert.Equal(t, "iam-token", m.Token())

	require.NoError(t, m.InitToken(context.Background()))
	assert.Equal(t, int32(1), calls.Load(), "InitToken is a no-op once a token is held")
}

func TestInitToken_OnPremExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "admin", user)
		assert.Equal(t, "pw", pass)
		assert.Equal(t, "/v1/preauth/validateAuth", r.URL.Path)
		fmt.Fprint(w, `{"username":"admin","accessToken":"cpd-token"}`)
	}))
	defer srv.Close()

	m := NewManager(ModeOnPrem, srv.URL+"/v1/preauth/validateAuth",
		mapCreds{KeyUsername: "admin", KeyPassword: "pw"}, newClient(t), WithRefreshInterval(0), quiet())
	defer m.Close()

	require.NoError(t, m.InitToken(context.Background()))
	assert.Equal(t, "cpd-token", m.Token())
}

func TestInitToken_MissingTokenField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"token_type":"Bearer"}`)
	}))
	defer srv.Close()

	m := NewManager(ModeCloud, srv.URL, mapCreds{KeyAPIKey: "k"}, newClient(t), WithRefreshInterval(0), quiet())
	defer m.Close()

	err := m.InitToken(context.Background())
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.Empty(t, m.Token())
}

func TestRefresh_FailureKeepsPriorToken(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			fmt.Fprint(w, `{}`)
			return
		}
		fmt.Fprint(w, `{"access_token":"first"}`)
	}))
	defer srv.Close()

	m := NewManager(ModeCloud, srv.URL, mapCreds{KeyAPIKey: "k"}, newClient(t), WithRefreshInterval(0), quiet())
	defer m.Close()
	require.NoError(t, m.InitToken(context.Background()))

	fail.Store(true)
	err := m.Refresh(context.Background())
	assert.True(t, IsAuthError(err))
	assert.Equal(t, "first", m.Token())
}

func TestInitToken_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusBadRequest)
	}))
	defer srv.Close()

	m := NewManager(ModeCloud, srv.URL, mapCreds{KeyAPIKey: "k"}, newClient(t), quiet())
	defer m.Close()

	err := m.InitToken(context.Background())
	assert.True(t, IsAuthError(err))
	assert.True(t, transport.IsTransportError(err))
}

func TestInitToken_MissingCredentials(t *testing.T) {
	m := NewManager(ModeCloud, "http://iam.invalid", mapCreds{}, newClient(t), quiet())
	defer m.Close()
	assert.True(t, IsAuthError(m.InitToken(context.Background())))

	onprem := NewManager(ModeOnPrem, "http://cpd.invalid", mapCreds{}, newClient(t), quiet())
	defer onprem.Close()
	assert.True(t, IsAuthError(onprem.InitToken(context.Background())))
}

func TestRefreshSchedule_StopsOnClose(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var n atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"access_token":"t%d"}`, n.Add(1))
	}))
	defer srv.Close()

	m := NewManager(ModeCloud, srv.URL, mapCreds{KeyAPIKey: "k"}, newClient(t),
		WithRefreshInterval(10*time.Millisecond), quiet())
	require.NoError(t, m.InitToken(context.Background()))

	assert.Eventually(t, func() bool { return n.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.NotEqual(t, "t1", m.Token())

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.ErrorIs(t, m.InitToken(context.Background()), ErrClosed)
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("onprem")
	require.NoError(t, err)
	assert.Equal(t, ModeOnPrem, mode)
	mode, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeCloud, mode)
	_, err = ParseMode("kerberos")
	assert.Error(t, err)
}
