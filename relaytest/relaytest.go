// Package relaytest provides test helpers for the relay package: a typed
// HTTP client for routers, fake senders that record their single response,
// and dispatchers and executors that run tasks under test control.
package relaytest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hashicorp/go-metrics"

	"github.com/bjaus/relay"
)

// Client wraps an httptest.Server for convenient API testing.
type Client struct {
	Server *httptest.Server
}

// NewClient creates a test client from a router.
func NewClient(t testing.TB, r *relay.Router) *Client {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &Client{Server: srv}
}

// Response holds a decoded response.
type Response[T any] struct {
	Status  int
	Headers http.Header
	Body    *T
	Raw     []byte
}

// Get sends a typed GET request.
func Get[Resp any](t testing.TB, c *Client, path string) *Response[Resp] {
	t.Helper()
	return Do[Resp](t, c, http.MethodGet, path, nil)
}

// Post sends a typed POST request with a JSON body.
func Post[Req, Resp any](t testing.TB, c *Client, path string, body Req) *Response[Resp] {
	t.Helper()
	return Do[Resp](t, c, http.MethodPost, path, body)
}

// Put sends a typed PUT request with a JSON body.
func Put[Req, Resp any](t testing.TB, c *Client, path string, body Req) *Response[Resp] {
	t.Helper()
	return Do[Resp](t, c, http.MethodPut, path, body)
}

// Patch sends a typed PATCH request with a JSON body.
func Patch[Req, Resp any](t testing.TB, c *Client, path string, body Req) *Response[Resp] {
	t.Helper()
	return Do[Resp](t, c, http.MethodPatch, path, body)
}

// Delete sends a typed DELETE request.
func Delete[Resp any](t testing.TB, c *Client, path string) *Response[Resp] {
	t.Helper()
	return Do[Resp](t, c, http.MethodDelete, path, nil)
}

// Do sends a request with any method. A non-nil body is encoded as JSON.
func Do[Resp any](t testing.TB, c *Client, method, path string, body any) *Response[Resp] {
	t.Helper()

	var raw []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("relaytest: marshal request body: %v", err)
		}
		raw = b
	}
	return DoRaw[Resp](t, c, method, path, raw, "application/json")
}

// DoRaw sends a request with a raw body. contentType is set only when body
// is non-nil.
func DoRaw[Resp any](t testing.TB, c *Client, method, path string, body []byte, contentType string) *Response[Resp] {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, c.Server.URL+path, reqBody)
	if err != nil {
		t.Fatalf("relaytest: create request: %v", err)
	}
	if body != nil && contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.Server.Client().Do(req)
	if err != nil {
		t.Fatalf("relaytest: execute request: %v", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			t.Errorf("relaytest: close body: %v", closeErr)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("relaytest: read body: %v", err)
	}

	result := &Response[Resp]{
		Status:  resp.StatusCode,
		Headers: resp.Header,
		Raw:     data,
	}
	if len(data) > 0 {
		var decoded Resp
		if decErr := json.Unmarshal(data, &decoded); decErr == nil {
			result.Body = &decoded
		}
	}
	return result
}

// CounterTotal sums a counter across every retained interval of sink. Only
// samples carrying all of the given labels are counted.
func CounterTotal(sink *metrics.InmemSink, key []string, labels ...metrics.Label) float64 {
	name := strings.Join(key, ".")
	var total float64
	for _, intv := range sink.Data() {
		for _, sample := range intv.Counters {
			if sample.Name != name || !hasLabels(sample.Labels, labels) {
				continue
			}
			total += sample.Sum
		}
	}
	return total
}

func hasLabels(have, want []metrics.Label) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
