package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Credentials is a flat secret lookup keyed by "apikey", "username" and
// "password". It satisfies session.Credentials.
type Credentials interface {
	Lookup(key string) (string, bool)
}

// EnvSource reads Prefix+upper(key) from the environment, for example
// SOLVEBRIDGE_APIKEY.
type EnvSource struct {
	Prefix string
}

func (e EnvSource) Lookup(key string) (string, bool) {
	return os.LookupEnv(e.Prefix + strings.ToUpper(key))
}

// MapSource is an in-memory credential set.
type MapSource map[string]string

func (m MapSource) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// LoadCredentialsFile reads a YAML map of credentials.
func LoadCredentialsFile(path string) (MapSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Reason: "read credentials failed", Err: err}
	}
	var m map[string]string
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &Error{Path: path, Reason: "credentials must be a map of strings", Err: err}
	}
	if m == nil {
		m = map[string]string{}
	}
	return MapSource(m), nil
}

// Chain consults each source in order; the first hit wins.
type Chain []Credentials

func (c Chain) Lookup(key string) (string, bool) {
	for _, src := range c {
		if v, ok := src.Lookup(key); ok {
			return v, true
		}
	}
	return "", false
}

// Credentials returns the environment, then the credentials file when one
// is configured.
func (c *Config) Credentials() (Credentials, error) {
	env := EnvSource{Prefix: "SOLVEBRIDGE_"}
	if c.Auth.CredentialsFile == "" {
		return env, nil
	}
	file, err := LoadCredentialsFile(c.Auth.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("auth.credentials_file: %w", err)
	}
	return Chain{env, file}, nil
}
