// Package payload assembles job submission bodies.
//
// The body wraps a model artifact that can run to hundreds of megabytes once
// base64 encoded. Building it as a JSON tree would hold the encoded artifact
// in memory at least twice, so the body is instead an Assembly: an ordered
// list of chunks streamed to the sink on demand, with a length known up
// front. Only the model attachment is streamed this way.
package payload

import (
	"io"
)

// Chunk writes one piece of the body to w and returns the bytes written.
type Chunk func(w io.Writer) (int64, error)

// Assembly is a request body produced by concatenating chunks. It can be
// written any number of times.
type Assembly struct {
	chunks []Chunk
	size   int64
}

// Bytes wraps an already serialized body.
func Bytes(b []byte) *Assembly {
	a := &Assembly{}
	a.appendBytes(b)
	return a
}

func (a *Assembly) appendBytes(b []byte) {
	if len(b) == 0 {
		return
	}
	a.chunks = append(a.chunks, func(w io.Writer) (int64, error) {
		n, err := w.Write(b)
		return int64(n), err
	})
	a.size += int64(len(b))
}

func (a *Assembly) appendChunk(size int64, c Chunk) {
	a.chunks = append(a.chunks, c)
	a.size += size
}

// Len is the exact number of bytes WriteTo produces.
func (a *Assembly) Len() int64 { return a.size }

// WriteTo streams every chunk in order.
func (a *Assembly) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, c := range a.chunks {
		n, err := c(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Reader returns a fresh reader over the body, fed by a goroutine. Closing
// the reader early stops the goroutine.
func (a *Assembly) Reader() io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		_, err := a.WriteTo(pw)
		pw.CloseWithError(err)
	}()
	return pr
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
