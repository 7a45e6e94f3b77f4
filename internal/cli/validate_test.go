package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const configFixtures = "../config/testdata/"

func TestValidateCommandValid(t *testing.T) {
	out, err := execute(t, "validate", configFixtures+"full.yaml")
	require.NoError(t, err, out)
	assert.Equal(t, "✓ "+configFixtures+"full.yaml\n", out)
}

func TestValidateCommandInvalid(t *testing.T) {
	out, err := execute(t, "--format", "json", "validate",
		configFixtures+"full.yaml", configFixtures+"bad_enum.yaml", configFixtures+"unknown_key.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "2 of 3 file(s) invalid")

	var resp struct {
		Data ValidateResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Files, 3)
	assert.True(t, resp.Data.Files[0].Valid)
	assert.False(t, resp.Data.Files[1].Valid)
	assert.Contains(t, resp.Data.Files[1].Error, "teardown")
	assert.False(t, resp.Data.Files[2].Valid)
}

func TestValidateCommandUsesConfigFlag(t *testing.T) {
	out, err := execute(t, "--config", configFixtures+"bad_duration.yaml", "validate")
	require.Error(t, err)
	assert.Contains(t, out, "✗ "+configFixtures+"bad_duration.yaml")
}

func TestValidateCommandNoFile(t *testing.T) {
	_, err := execute(t, "validate")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
