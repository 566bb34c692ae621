// SPDX-License-Identifier: MIT
package inventory

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
)

// MockServer is a configurable community endpoint mock for testing the
// fallback chain: per-path canned bodies, status codes, and failure counts
// before success.
type MockServer struct {
	*httptest.Server
	mu       sync.Mutex
	bodies   map[string]string // path (incl. query) -> response body
	statuses map[string]int    // path -> HTTP status override
	failures map[string]int    // path -> 500s to serve before success
	hits     map[string]int    // path -> request count
	cookies  map[string][]*http.Cookie
}

// NewMockServer starts a mock with no routes configured; unknown paths
// return 404.
func NewMockServer() *MockServer {
	mock := &MockServer{
		bodies:   make(map[string]string),
		statuses: make(map[string]int),
		failures: make(map[string]int),
		hits:     make(map[string]int),
		cookies:  make(map[string][]*http.Cookie),
	}
	mock.Server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// SetBody serves body with status 200 for the exact path (including query).
func (m *MockServer) SetBody(path, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bodies[path] = body
}

// SetStatus serves the given status for the path instead of a body.
func (m *MockServer) SetStatus(path string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[path] = status
}

// FailTimes serves 500 for the path the given number of times before
// falling back to the configured body.
func (m *MockServer) FailTimes(path string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[path] = n
}

// Hits returns how many requests the path received.
func (m *MockServer) Hits(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits[path]
}

// Cookies returns the cookies presented on the last request to the path.
func (m *MockServer) Cookies(path string) []*http.Cookie {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cookies[path]
}

func (m *MockServer) handle(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if r.URL.RawQuery != "" {
		path = fmt.Sprintf("%s?%s", r.URL.Path, r.URL.RawQuery)
	}

	m.mu.Lock()
	m.hits[path]++
	m.cookies[path] = r.Cookies()

	if n := m.failures[path]; n > 0 {
		m.failures[path] = n - 1
		m.mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if status, ok := m.statuses[path]; ok {
		m.mu.Unlock()
		w.WriteHeader(status)
		return
	}
	body, ok := m.bodies[path]
	m.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}
