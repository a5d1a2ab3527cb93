// Package testutil provides testing utilities for the stats ingest
// pipeline: a configurable mock stats API server and an in-memory
// persistence store.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock stats API endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// MockStatsAPI is a configurable mock stats API server.
type MockStatsAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	requestCount map[string]int
	totalCount   int
}

// NewMockStatsAPI creates a new mock stats API server.
func NewMockStatsAPI() *MockStatsAPI {
	mock := &MockStatsAPI{
		handlers:     make(map[string]func(w http.ResponseWriter, r *http.Request)),
		requestCount: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount[r.URL.Path]++
		mock.totalCount++
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server base URL.
func (m *MockStatsAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockStatsAPI) Close() {
	m.server.Close()
}

// SetHandler sets a custom handler for a specific path.
func (m *MockStatsAPI) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockStatsAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// RequestCount returns the number of requests made to a path.
func (m *MockStatsAPI) RequestCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount[path]
}

// TotalRequests returns the number of requests made to any path.
func (m *MockStatsAPI) TotalRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalCount
}

// Reset clears the request counters.
func (m *MockStatsAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = make(map[string]int)
	m.totalCount = 0
}

// defaultHandler answers with an empty but well-formed resultSets body.
func (m *MockStatsAPI) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"resource": "mock", "resultSets": []}`))
}

// ResultSetBody builds a resultSets JSON body from headers and rows.
func ResultSetBody(name string, headers []string, rows [][]any) string {
	payload := map[string]any{
		"resource": name,
		"resultSets": []map[string]any{
			{"name": name, "headers": headers, "rowSet": rows},
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("testutil: marshal result set: %v", err))
	}
	return string(data)
}

// NewTabularResponse creates a 200 OK response carrying one result set.
func NewTabularResponse(name string, headers []string, rows [][]any) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       ResultSetBody(name, headers, rows),
	}
}

// NewThrottleResponse creates a 429 throttling response.
func NewThrottleResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "rate limit exceeded"}`,
	}
}

// NewServerErrorResponse creates a 500 response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "internal server error"}`,
	}
}

// NewMalformedResponse creates a 200 response whose body is not the
// expected tabular shape.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `<html>access denied</html>`,
	}
}

// NewFlakyHandler fails with 500 for the first failCount requests to a
// path, then serves the given response.
func NewFlakyHandler(failCount int, then MockResponse) func(w http.ResponseWriter, r *http.Request) {
	var mu sync.Mutex
	calls := 0
	return func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if n <= failCount {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error": "transient"}`))
			return
		}
		w.WriteHeader(then.StatusCode)
		w.Write([]byte(then.Body))
	}
}
