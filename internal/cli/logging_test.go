package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/solvebridge/internal/config"
)

func TestNewLoggerJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := newLogger(config.Log{Level: "warn", Format: "json"}, false, buf)
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept", "job", "job-1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "job-1", rec["job"])
}

func TestNewLoggerVerboseForcesDebug(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := newLogger(config.Log{Level: "error"}, true, buf)
	require.NoError(t, err)

	logger.Debug("poll", "fetch", 1)
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "msg=poll")
}

func TestNewLoggerRejectsUnknown(t *testing.T) {
	_, err := newLogger(config.Log{Level: "chatty"}, false, &bytes.Buffer{})
	assert.Error(t, err)
	_, err = newLogger(config.Log{Format: "xml"}, false, &bytes.Buffer{})
	assert.Error(t, err)
}
