package client

import (
	"bytes"
	"io"
	"net/http"
	"sync"
)

// MockResponse is a canned answer for one endpoint path.
type MockResponse struct {
	Status int
	Body   string
	Err    error
	// FailTimes makes the first N attempts fail with Status 500 (or Err),
	// then succeed. Used for retry tests.
	FailTimes int
}

// RecordedCall captures one request seen by the mock transport.
type RecordedCall struct {
	Method string
	Path   string
}

// MockTransport is a recording Transport serving canned responses.
// Unrouted paths return 404.
type MockTransport struct {
	mu     sync.Mutex
	routes map[string]*MockResponse
	calls  []RecordedCall
}

// NewMockTransport builds an empty mock transport.
func NewMockTransport() *MockTransport {
	return &MockTransport{routes: map[string]*MockResponse{}}
}

// Handle registers a canned JSON response for path.
func (m *MockTransport) Handle(path string, status int, body string) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[path] = &MockResponse{Status: status, Body: body}
	return m
}

// HandleResponse registers a full canned response for path.
func (m *MockTransport) HandleResponse(path string, resp MockResponse) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := resp
	m.routes[path] = &r
	return m
}

// Do serves the canned response and records the call.
func (m *MockTransport) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, RecordedCall{Method: req.Method, Path: req.URL.Path})

	r, ok := m.routes[req.URL.Path]
	if !ok {
		return mockHTTPResponse(http.StatusNotFound, `{"message":"not found"}`), nil
	}
	if r.FailTimes > 0 {
		r.FailTimes--
		if r.Err != nil {
			return nil, r.Err
		}
		return mockHTTPResponse(http.StatusInternalServerError, `{"message":"boom"}`), nil
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return mockHTTPResponse(r.Status, r.Body), nil
}

// Calls returns a copy of all recorded calls.
func (m *MockTransport) Calls() []RecordedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordedCall(nil), m.calls...)
}

// CallCount returns how many times path was requested.
func (m *MockTransport) CallCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Path == path {
			n++
		}
	}
	return n
}

func mockHTTPResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}
