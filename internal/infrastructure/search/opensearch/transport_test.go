package opensearch

import (
	"bytes"
	"io"
	"net/http"
	"sync"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
}

// fakeTransport answers every request through respond and keeps a copy of
// what was sent.
type fakeTransport struct {
	mu       sync.Mutex
	requests []recordedRequest
	respond  func(r recordedRequest) (int, string)
	err      error
}

func (f *fakeTransport) Perform(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
	}
	rec := recordedRequest{Method: req.Method, Path: req.URL.Path, Query: req.URL.RawQuery, Body: string(body)}
	f.mu.Lock()
	f.requests = append(f.requests, rec)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	status, payload := http.StatusOK, `{}`
	if f.respond != nil {
		status, payload = f.respond(rec)
	}
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewBufferString(payload)),
	}, nil
}

func (f *fakeTransport) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

//Personal.AI order the ending
