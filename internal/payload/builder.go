package payload

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/solvebridge/internal/model"
	"github.com/roach88/solvebridge/internal/telemetry"
)

// NewPlaceholder returns a fresh JSON string for an envelope to carry where
// the model attachment belongs, inside decision_optimization.input_data.
// Each build gets its own, so no job name or parameter value can collide
// with it.
func NewPlaceholder() string {
	return `"@@SOLVEBRIDGE_MODEL_` + uuid.NewString() + `@@"`
}

// Fragment is a small input attachment (parameters, a conflict or
// relaxation document) sent inline next to the model.
type Fragment struct {
	ID      string
	Content []byte
}

// ErrPlaceholder is returned when the envelope does not contain the
// placeholder exactly once.
var ErrPlaceholder = errors.New("envelope must contain the model placeholder exactly once")

// Builder assembles submission bodies.
type Builder struct {
	debugDir  string
	warnBytes int64
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithDebugDir makes every Build export its inputs and the assembled body
// under a timestamped subdirectory of dir.
func WithDebugDir(dir string) Option {
	return func(b *Builder) { b.debugDir = dir }
}

// WithWarnBytes sets the size above which Build logs a warning.
func WithWarnBytes(n int64) Option {
	return func(b *Builder) { b.warnBytes = n }
}

// WithClock overrides the clock used to name debug export directories.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithLogger sets the builder's logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder returns a Builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build splices fragments and the artifact into envelope in place of
// placeholder, a JSON string literal. The artifact is base64 encoded while the body is written; it
// is never held encoded in memory.
func (b *Builder) Build(ctx context.Context, envelope []byte, placeholder string, fragments []Fragment, artifact model.Artifact) (*Assembly, error) {
	if !json.Valid(envelope) {
		return nil, fmt.Errorf("envelope is not valid json")
	}
	at := bytes.Index(envelope, []byte(placeholder))
	if placeholder == "" || at < 0 || bytes.Count(envelope, []byte(placeholder)) != 1 {
		return nil, ErrPlaceholder
	}
	if artifact.Source == nil {
		return nil, fmt.Errorf("artifact %q has no source", artifact.Name)
	}

	a := &Assembly{}
	a.appendBytes(envelope[:at])
	for _, f := range fragments {
		entry, err := inlineEntry(f.ID, f.Content)
		if err != nil {
			return nil, err
		}
		a.appendBytes(entry)
		a.appendBytes([]byte(","))
	}

	header, err := fieldHeader(artifact.Name)
	if err != nil {
		return nil, err
	}
	a.appendBytes(header)
	src := artifact.Source
	a.appendChunk(int64(base64.StdEncoding.EncodedLen(int(src.Size()))), func(w io.Writer) (int64, error) {
		return encodeSource(w, src)
	})
	a.appendBytes([]byte(`"}`))
	a.appendBytes(envelope[at+len(placeholder):])

	telemetry.PayloadBytes.Observe(float64(a.Len()))
	if b.warnBytes > 0 && a.Len() > b.warnBytes {
		b.logger.Warn("payload exceeds configured size",
			"bytes", a.Len(),
			"limit", b.warnBytes,
			"artifact", artifact.Name)
	}
	if b.debugDir != "" {
		b.export(ctx, fragments, artifact, a)
	}
	return a, nil
}

// inlineEntry renders {"id":..,"content":<base64>} for a small attachment.
func inlineEntry(id string, content []byte) ([]byte, error) {
	return json.Marshal(struct {
		ID      string `json:"id"`
		Content string `json:"content"`
	}{ID: id, Content: base64.StdEncoding.EncodeToString(content)})
}

// fieldHeader is the entry prefix up to the opening quote of the content
// string: {"id":"model.lp","content":"
func fieldHeader(id string) ([]byte, error) {
	quoted, err := json.Marshal(id)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(`{"id":`)
	buf.Write(quoted)
	buf.WriteString(`,"content":"`)
	return buf.Bytes(), nil
}

func encodeSource(w io.Writer, src model.Source) (int64, error) {
	rc, err := src.Open()
	if err != nil {
		return 0, fmt.Errorf("open artifact: %w", err)
	}
	defer rc.Close()

	cw := &countingWriter{w: w}
	enc := base64.NewEncoder(base64.StdEncoding, cw)
	if _, err := io.Copy(enc, rc); err != nil {
		return cw.n, fmt.Errorf("encode artifact: %w", err)
	}
	if err := enc.Close(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// export writes byte-identical copies of the inputs and the assembled body.
// Failures are logged and never reach the caller.
func (b *Builder) export(ctx context.Context, fragments []Fragment, artifact model.Artifact, a *Assembly) {
	dir := filepath.Join(b.debugDir, b.now().UTC().Format("20060102T150405.000000000Z"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		b.logger.Warn("debug export skipped", "dir", dir, "error", err)
		return
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, f := range fragments {
		g.Go(func() error {
			return os.WriteFile(filepath.Join(dir, filepath.Base(f.ID)), f.Content, 0o644)
		})
	}
	g.Go(func() error {
		return writeFile(filepath.Join(dir, filepath.Base(artifact.Name)), func(w io.Writer) error {
			rc, err := artifact.Source.Open()
			if err != nil {
				return err
			}
			defer rc.Close()
			_, err = io.Copy(w, rc)
			return err
		})
	})
	g.Go(func() error {
		return writeFile(filepath.Join(dir, "payload.json"), func(w io.Writer) error {
			_, err := a.WriteTo(w)
			return err
		})
	})

	if err := g.Wait(); err != nil {
		b.logger.Warn("debug export incomplete", "dir", dir, "error", err)
		return
	}
	b.logger.Debug("debug export written", "dir", dir)
}

func writeFile(path string, fill func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fill(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
