// Package testutil provides a fake analytics backend and test loggers.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Call is one request received by a Backend.
type Call struct {
	Method string
	Path   string
	Header http.Header
	Body   map[string]any
}

// Backend is a fake analytics API. Unregistered paths answer 404.
type Backend struct {
	*httptest.Server

	mu     sync.Mutex
	routes map[string]http.HandlerFunc
	calls  []Call
}

// NewBackend starts a fake backend that is closed when the test ends.
func NewBackend(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{routes: map[string]http.HandlerFunc{}}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Close)
	return b
}

// Handle registers h for path, replacing any previous handler.
func (b *Backend) Handle(path string, h http.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[path] = h
}

// JSON registers a fixed JSON response for path.
func (b *Backend) JSON(path string, status int, body any) {
	b.Handle(path, func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, status, body)
	})
}

// Calls returns the requests received for path in arrival order.
func (b *Backend) Calls(path string) []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Call
	for _, c := range b.calls {
		if c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

// LastBody returns the decoded body of the most recent call to path.
func (b *Backend) LastBody(path string) map[string]any {
	calls := b.Calls(path)
	if len(calls) == 0 {
		return nil
	}
	return calls[len(calls)-1].Body
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(raw))

	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	b.mu.Lock()
	b.calls = append(b.calls, Call{
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header.Clone(),
		Body:   body,
	})
	h, ok := b.routes[r.URL.Path]
	b.mu.Unlock()

	if !ok {
		WriteJSON(w, http.StatusNotFound, map[string]any{"detail": "Not Found"})
		return
	}
	h(w, r)
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
