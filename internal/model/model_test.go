package model

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItem_NameLifecycle(t *testing.T) {
	v := NewVariable("")
	_, ok := v.Name()
	assert.False(t, ok)

	v.SetName("")
	name, ok := v.Name()
	assert.True(t, ok, "empty name that is set must be distinguishable from no name")
	assert.Equal(t, "", name)

	v.SetName("x")
	name, ok = v.Name()
	assert.True(t, ok)
	assert.Equal(t, "x", name)

	v.ClearName()
	_, ok = v.Name()
	assert.False(t, ok)
}

func TestConstraintKindOf(t *testing.T) {
	assert.Equal(t, ConstraintOr, ConstraintKindOf(NewConstraint(ConstraintOr, "c")))
	assert.Equal(t, ConstraintLinear, ConstraintKindOf(NewVariable("x")))
	assert.True(t, ConstraintNot.IsLogical())
	assert.False(t, ConstraintRanged.IsLogical())
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"m.lp", FormatLP},
		{"dir/M.SAV", FormatSAV},
		{"m.mps.gz", FormatMPS},
		{"sched.cpo", FormatCPO},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatFromPath(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := FormatFromPath("m.txt")
	assert.Error(t, err)
}

func TestFileModel_Export(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diet.lp")
	require.NoError(t, os.WriteFile(path, []byte("Minimize\n obj: x\nEnd\n"), 0o644))

	m := &FileModel{Path: path}
	assert.Equal(t, "diet", m.Name())
	assert.Empty(t, m.Elements())

	art, err := m.Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "diet.lp", art.Name)
	assert.Equal(t, FormatLP, art.Format)
	assert.Equal(t, int64(21), art.Source.Size())

	rc, err := art.Source.Open()
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "Minimize\n obj: x\nEnd\n", string(data))
}
