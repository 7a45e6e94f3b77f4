package model

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format is the solver-native file format of an exported model.
type Format string

const (
	FormatLP  Format = "lp"
	FormatSAV Format = "sav"
	FormatMPS Format = "mps"
	FormatCPO Format = "cpo"
)

// IsCP reports whether the format is a constraint-programming model.
func (f Format) IsCP() bool { return f == FormatCPO }

// FormatFromPath infers the format from a file extension, looking through a
// trailing .gz.
func FormatFromPath(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(strings.TrimSuffix(path, ".gz")))
	switch ext {
	case ".lp":
		return FormatLP, nil
	case ".sav":
		return FormatSAV, nil
	case ".mps":
		return FormatMPS, nil
	case ".cpo":
		return FormatCPO, nil
	default:
		return "", fmt.Errorf("unrecognized model file extension %q", ext)
	}
}

// Source yields the bytes of a large artifact. Open may be called more than
// once (debug export, submission); each call starts from the beginning.
type Source interface {
	Open() (io.ReadCloser, error)
	Size() int64
}

// BytesSource serves an in-memory buffer without copying it.
type BytesSource []byte

func (b BytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (b BytesSource) Size() int64 { return int64(len(b)) }

// FileSource streams a file from disk.
type FileSource struct {
	Path string
	size int64
}

// NewFileSource stats path and returns a source for it.
func NewFileSource(path string) (*FileSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat model file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("model file %s is a directory", path)
	}
	return &FileSource{Path: path, size: info.Size()}, nil
}

func (f *FileSource) Open() (io.ReadCloser, error) {
	return os.Open(f.Path)
}

func (f *FileSource) Size() int64 { return f.size }

// Artifact is one exported model file.
type Artifact struct {
	// Name is the attachment id sent to the service, e.g. "model.lp".
	Name   string
	Format Format
	Source Source
}

// Model is what the adapter needs from a caller's in-memory model.
type Model interface {
	// Name labels the remote job.
	Name() string

	// Elements returns every element reachable from the model: variables,
	// constraints and ranges. Duplicates are tolerated.
	Elements() []Element

	// Export serializes the model. It is called after elements have been
	// given their exchange names.
	Export(ctx context.Context) (Artifact, error)
}

// FileModel is a Model backed by an already exported file. It has no
// reachable elements, so every name in a returned solution is kept.
type FileModel struct {
	Path string
}

func (m *FileModel) Name() string {
	base := filepath.Base(m.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (m *FileModel) Elements() []Element { return nil }

func (m *FileModel) Export(_ context.Context) (Artifact, error) {
	format, err := FormatFromPath(m.Path)
	if err != nil {
		return Artifact{}, err
	}
	src, err := NewFileSource(m.Path)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Name: filepath.Base(m.Path), Format: format, Source: src}, nil
}
