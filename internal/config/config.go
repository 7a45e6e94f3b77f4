// Package config loads the adapter's YAML configuration.
//
// A file is checked against an embedded CUE schema before it is decoded,
// so unknown keys and out-of-range values are reported with their line
// numbers. Defaults fill whatever the file leaves out, and a few
// SOLVEBRIDGE_* environment variables override it.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Config is the whole configuration file.
type Config struct {
	Service     Service     `yaml:"service"`
	Auth        Auth        `yaml:"auth"`
	Solve       Solve       `yaml:"solve"`
	Ledger      Ledger      `yaml:"ledger"`
	ObjectStore ObjectStore `yaml:"object_store"`
	Log         Log         `yaml:"log"`
	Transport   Transport   `yaml:"transport"`
}

// Service locates the deployment jobs API.
type Service struct {
	URL          string `yaml:"url"`
	SpaceID      string `yaml:"space_id"`
	DeploymentID string `yaml:"deployment_id"`
	APIVersion   string `yaml:"api_version"`
}

// Auth selects the token exchange. URL is the IAM token endpoint in cloud
// mode and the validateAuth endpoint on-prem.
type Auth struct {
	Kind            string        `yaml:"kind"`
	URL             string        `yaml:"url"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	CredentialsFile string        `yaml:"credentials_file"`
}

// Solve tunes each solve.
type Solve struct {
	PollInterval     time.Duration     `yaml:"poll_interval"`
	Naming           string            `yaml:"naming"`
	PayloadWarnBytes int64             `yaml:"payload_warn_bytes"`
	DebugDir         string            `yaml:"debug_dir"`
	DeleteAfterSolve bool              `yaml:"delete_after_solve"`
	HardDelete       bool              `yaml:"hard_delete"`
	Teardown         string            `yaml:"teardown"`
	Outputs          []string          `yaml:"outputs"`
	Parameters       map[string]string `yaml:"parameters"`
}

// Ledger locates the job ledger database. An empty path disables it.
type Ledger struct {
	Path string `yaml:"path"`
}

// ObjectStore selects where models travel by reference.
type ObjectStore struct {
	Kind            string `yaml:"kind"`
	BaseURL         string `yaml:"base_url"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	CredentialsFile string `yaml:"credentials_file"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Transport struct {
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

// Teardown policies for jobs still held at close.
const (
	TeardownSurface = "surface"
	TeardownSwallow = "swallow"
	TeardownKeep    = "keep"
)

// Default returns the configuration used for every field a file omits.
func Default() *Config {
	return &Config{
		Service: Service{APIVersion: "2020-09-01"},
		Auth: Auth{
			Kind:            "cloud",
			URL:             "https://iam.cloud.ibm.com/identity/token",
			RefreshInterval: 45 * time.Minute,
		},
		Solve: Solve{
			PollInterval:     2 * time.Second,
			Naming:           "assign-missing",
			PayloadWarnBytes: 100 << 20,
			Teardown:         TeardownSurface,
			Outputs:          []string{".*"},
		},
		ObjectStore: ObjectStore{Kind: "none"},
		Log:         Log{Level: "info", Format: "text"},
		Transport:   Transport{Timeout: time.Minute, Burst: 1},
	}
}

// Error reports an unreadable or invalid configuration file.
type Error struct {
	Path   string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("config %s: %s", e.Path, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// IsConfigError reports whether err is a configuration Error.
func IsConfigError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

// Load reads path, validates it, applies defaults and then the process
// environment. An empty path yields the defaults plus the environment.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment lookup.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &Error{Path: path, Reason: "read failed", Err: err}
		}
		if err := Validate(path, data); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &Error{Path: path, Reason: "decode failed", Err: err}
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks a YAML document against the schema without decoding it.
func Validate(filename string, data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return &Error{Path: "schema.cue", Reason: "embedded schema is invalid", Err: err}
	}

	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return &Error{Path: filename, Reason: "not valid YAML", Err: err}
	}
	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return &Error{Path: filename, Reason: "not valid YAML", Err: err}
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return &Error{Path: filename, Reason: "schema violation", Err: errors.New(cueerrors.Details(err, nil))}
	}
	return nil
}

// Environment overrides.
const (
	EnvURL          = "SOLVEBRIDGE_URL"
	EnvSpaceID      = "SOLVEBRIDGE_SPACE_ID"
	EnvDeploymentID = "SOLVEBRIDGE_DEPLOYMENT_ID"
	EnvLedgerPath   = "SOLVEBRIDGE_LEDGER_PATH"
	EnvDebugDir     = "SOLVEBRIDGE_DEBUG_DIR"
	EnvPollInterval = "SOLVEBRIDGE_POLL_INTERVAL"
	EnvDeleteAfter  = "SOLVEBRIDGE_DELETE_AFTER_SOLVE"
)

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		EnvURL:          &c.Service.URL,
		EnvSpaceID:      &c.Service.SpaceID,
		EnvDeploymentID: &c.Service.DeploymentID,
		EnvLedgerPath:   &c.Ledger.Path,
		EnvDebugDir:     &c.Solve.DebugDir,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	if v, ok := lookup(EnvPollInterval); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return &Error{Path: "$" + EnvPollInterval, Reason: "not a duration", Err: err}
		}
		c.Solve.PollInterval = d
	}
	if v, ok := lookup(EnvDeleteAfter); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &Error{Path: "$" + EnvDeleteAfter, Reason: "not a boolean", Err: err}
		}
		c.Solve.DeleteAfterSolve = b
	}
	return nil
}

// RequireService reports the first missing setting a remote solve needs.
func (c *Config) RequireService() error {
	switch {
	case c.Service.URL == "":
		return &Error{Path: "service.url", Reason: "required for remote solves (or set " + EnvURL + ")"}
	case c.Service.SpaceID == "":
		return &Error{Path: "service.space_id", Reason: "required for remote solves (or set " + EnvSpaceID + ")"}
	case c.Service.DeploymentID == "":
		return &Error{Path: "service.deployment_id", Reason: "required for remote solves (or set " + EnvDeploymentID + ")"}
	}
	return nil
}
