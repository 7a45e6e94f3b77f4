package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// FakeBucket is an in-memory object store answering PUT and GET on any
// path.
type FakeBucket struct {
	Server *httptest.Server

	mu      sync.Mutex
	objects map[string][]byte
}

// NewFakeBucket starts a FakeBucket that is closed with the test.
func NewFakeBucket(t testing.TB) *FakeBucket {
	t.Helper()
	b := &FakeBucket{objects: make(map[string][]byte)}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Server.Close)
	return b
}

// URL is the bucket's base URL.
func (b *FakeBucket) URL() string { return b.Server.URL }

// Object returns the stored bytes at key (no leading slash).
func (b *FakeBucket) Object(key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	return data, ok
}

// Store puts data at key directly.
func (b *FakeBucket) Store(key string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
}

func (b *FakeBucket) serve(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodPut:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b.Store(key, data)
		w.WriteHeader(http.StatusCreated)
	case http.MethodGet:
		data, ok := b.Object(key)
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(data)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
