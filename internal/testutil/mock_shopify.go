// Package testutil provides testing utilities for the Shopify connector.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines one scripted answer of the mock GraphQL endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is a request received by the mock server.
type RecordedRequest struct {
	Path      string
	Header    http.Header
	Query     string
	Variables map[string]any
}

// MockShopify is a mock Shopify Admin GraphQL server. Scripted responses are
// served in order; once the script runs out the fallback response is repeated.
type MockShopify struct {
	server *httptest.Server
	mu     sync.Mutex

	script   []MockResponse
	fallback MockResponse
	requests []RecordedRequest
}

// NewMockShopify creates a mock server that answers with an empty success by default.
func NewMockShopify() *MockShopify {
	mock := &MockShopify{
		fallback: NewSuccessResponse(`{}`, 990),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

func (m *MockShopify) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var payload struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	_ = json.Unmarshal(body, &payload)

	m.mu.Lock()
	m.requests = append(m.requests, RecordedRequest{
		Path:      r.URL.Path,
		Header:    r.Header.Clone(),
		Query:     payload.Query,
		Variables: payload.Variables,
	})
	resp := m.fallback
	if len(m.script) > 0 {
		resp = m.script[0]
		m.script = m.script[1:]
	}
	m.mu.Unlock()

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// URL returns the mock server URL.
func (m *MockShopify) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockShopify) Close() {
	m.server.Close()
}

// Enqueue appends responses to the script.
func (m *MockShopify) Enqueue(responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, responses...)
}

// SetFallback sets the response used once the script is empty.
func (m *MockShopify) SetFallback(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = resp
}

// RequestCount returns the number of requests made to the server.
func (m *MockShopify) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of every recorded request.
func (m *MockShopify) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastRequest returns the most recent request, or the zero value.
func (m *MockShopify) LastRequest() RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return RecordedRequest{}
	}
	return m.requests[len(m.requests)-1]
}

// NewSuccessResponse wraps data in a GraphQL envelope with a cost extension.
func NewSuccessResponse(data string, currentlyAvailable float64) MockResponse {
	body := fmt.Sprintf(`{"data":%s,"extensions":{"cost":{"requestedQueryCost":12,"actualQueryCost":10,`+
		`"throttleStatus":{"maximumAvailable":1000,"currentlyAvailable":%g,"restoreRate":50}}}}`,
		data, currentlyAvailable)
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewDataResponse wraps data in a GraphQL envelope without extensions.
func NewDataResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"data":` + data + `}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewGraphQLErrorResponse creates a 200 response carrying GraphQL errors.
func NewGraphQLErrorResponse(messages ...string) MockResponse {
	errs := make([]map[string]string, 0, len(messages))
	for _, msg := range messages {
		errs = append(errs, map[string]string{"message": msg})
	}
	body, _ := json.Marshal(map[string]any{"errors": errs})
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewUnauthorizedResponse creates a 401 response.
func NewUnauthorizedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"errors":"[API] Invalid API key or access token (unrecognized login or wrong password)"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewThrottledResponse creates a 429 response. An empty retryAfter omits the header.
func NewThrottledResponse(retryAfter string) MockResponse {
	resp := MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"errors":"Throttled"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
	if retryAfter != "" {
		resp.Headers["Retry-After"] = retryAfter
	}
	return resp
}

// NewServerErrorResponse creates a 500 response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `internal error`,
		Headers:    map[string]string{"Content-Type": "text/plain"},
	}
}
