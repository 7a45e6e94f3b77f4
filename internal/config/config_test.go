package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func envOf(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoad_Full(t *testing.T) {
	cfg, err := LoadWithEnv("testdata/full.yaml", noEnv)
	require.NoError(t, err)

	assert.Equal(t, "https://us-south.ml.cloud.ibm.com", cfg.Service.URL)
	assert.Equal(t, "2020-09-01", cfg.Service.APIVersion, "default kept")
	assert.Equal(t, 30*time.Minute, cfg.Auth.RefreshInterval)
	assert.Equal(t, "https://iam.cloud.ibm.com/identity/token", cfg.Auth.URL)
	assert.Equal(t, 500*time.Millisecond, cfg.Solve.PollInterval)
	assert.Equal(t, "require-existing", cfg.Solve.Naming)
	assert.True(t, cfg.Solve.DeleteAfterSolve)
	assert.Equal(t, TeardownSwallow, cfg.Solve.Teardown)
	assert.Equal(t, []string{"solution.json", "kpis.csv"}, cfg.Solve.Outputs)
	assert.Equal(t, "true", cfg.Solve.Parameters["oaas.logTailEnabled"])
	assert.Equal(t, "http", cfg.ObjectStore.Kind)
	assert.Equal(t, 90*time.Second, cfg.Transport.Timeout)
	assert.Equal(t, 5.0, cfg.Transport.RequestsPerSecond)
	assert.Equal(t, "json", cfg.Log.Format)
	require.NoError(t, cfg.RequireService())
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := LoadWithEnv("", noEnv)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	err = cfg.RequireService()
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestLoad_SchemaViolations(t *testing.T) {
	for _, name := range []string{"bad_enum.yaml", "unknown_key.yaml", "bad_duration.yaml"} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadWithEnv(filepath.Join("testdata", name), noEnv)
			require.Error(t, err)
			var ce *Error
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, "schema violation", ce.Reason)
		})
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	cfg, err := LoadWithEnv(path, noEnv)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := LoadWithEnv("testdata/nope.yaml", noEnv)
	assert.True(t, IsConfigError(err))
}

func TestLoad_EnvOverrides(t *testing.T) {
	cfg, err := LoadWithEnv("testdata/full.yaml", envOf(map[string]string{
		EnvSpaceID:      "space-env",
		EnvPollInterval: "10s",
		EnvDeleteAfter:  "false",
	}))
	require.NoError(t, err)
	assert.Equal(t, "space-env", cfg.Service.SpaceID)
	assert.Equal(t, "dep-456", cfg.Service.DeploymentID)
	assert.Equal(t, 10*time.Second, cfg.Solve.PollInterval)
	assert.False(t, cfg.Solve.DeleteAfterSolve)

	_, err = LoadWithEnv("", envOf(map[string]string{EnvPollInterval: "often"}))
	assert.True(t, IsConfigError(err))
}

func TestCredentials_Chain(t *testing.T) {
	t.Setenv("SOLVEBRIDGE_APIKEY", "env-key")

	cfg := Default()
	cfg.Auth.CredentialsFile = "testdata/credentials.yaml"
	creds, err := cfg.Credentials()
	require.NoError(t, err)

	v, ok := creds.Lookup("apikey")
	require.True(t, ok)
	assert.Equal(t, "env-key", v, "environment wins over the file")

	v, ok = creds.Lookup("username")
	require.True(t, ok)
	assert.Equal(t, "admin", v)

	_, ok = creds.Lookup("password")
	assert.False(t, ok)

	cfg.Auth.CredentialsFile = "testdata/missing.yaml"
	_, err = cfg.Credentials()
	assert.Error(t, err)
}

func TestMapSource(t *testing.T) {
	m := MapSource{"apikey": "k"}
	v, ok := m.Lookup("apikey")
	assert.True(t, ok)
	assert.Equal(t, "k", v)
}
