package relay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/hashicorp/go-metrics"
	"github.com/zoobzio/clockz"
)

// DefaultUpstreamTimeout bounds each outbound call made with the default
// client. It stays below DefaultResponseTimeout so a stalled upstream answers
// 502 rather than tripping the router's 503.
const DefaultUpstreamTimeout = 10 * time.Second

// Backend issues outbound HTTP calls on behalf of handlers. Its client is
// built lazily, once, the first time a call is made.
type Backend struct {
	newClient func() *http.Client
	once      sync.Once
	client    *http.Client

	timeout time.Duration

	codec  Codec
	clock  clockz.Clock
	logger *slog.Logger

	sink         metrics.MetricSink
	metricLabels []metrics.Label
	events       bool
	tel          *telemetry
}

// BackendOption configures a Backend.
type BackendOption func(*Backend)

// WithClientFactory sets the function that builds the outbound client. It is
// called at most once.
func WithClientFactory(f func() *http.Client) BackendOption {
	return func(b *Backend) {
		b.newClient = f
	}
}

// WithUpstreamTimeout sets the per-call timeout of the default client. It has
// no effect when WithClientFactory is used.
func WithUpstreamTimeout(d time.Duration) BackendOption {
	return func(b *Backend) {
		b.timeout = d
	}
}

// WithBackendCodec sets the codec for request bodies and JSON responses.
func WithBackendCodec(c Codec) BackendOption {
	return func(b *Backend) {
		b.codec = c
	}
}

// WithBackendClock sets the clock used to time outbound calls.
func WithBackendClock(clock clockz.Clock) BackendOption {
	return func(b *Backend) {
		b.clock = clock
	}
}

// WithBackendLogger sets the logger for upstream failures.
func WithBackendLogger(logger *slog.Logger) BackendOption {
	return func(b *Backend) {
		b.logger = logger
	}
}

// WithBackendMetrics sets the sink for upstream counters.
func WithBackendMetrics(sink metrics.MetricSink, labels ...metrics.Label) BackendOption {
	return func(b *Backend) {
		b.sink = sink
		b.metricLabels = labels
	}
}

// WithBackendEvents toggles capitan events for upstream failures.
func WithBackendEvents(enabled bool) BackendOption {
	return func(b *Backend) {
		b.events = enabled
	}
}

// NewBackend creates a Backend with the given options.
func NewBackend(opts ...BackendOption) *Backend {
	b := &Backend{
		timeout: DefaultUpstreamTimeout,
		codec:   JSONCodec(),
		clock:   clockz.RealClock,
		events:  true,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.newClient == nil {
		b.newClient = func() *http.Client {
			return &http.Client{Timeout: b.timeout}
		}
	}
	b.tel = newTelemetry(b.sink, b.metricLabels, b.events)
	return b
}

// Client returns the outbound client, building it on first use.
func (b *Backend) Client() *http.Client {
	b.once.Do(func() {
		b.client = b.newClient()
	})
	return b.client
}

// Get starts a GET request to rawURL.
func (b *Backend) Get(rawURL string) *RequestBuilder { return b.NewRequest(GET, rawURL) }

// Put starts a PUT request to rawURL.
func (b *Backend) Put(rawURL string) *RequestBuilder { return b.NewRequest(PUT, rawURL) }

// Post starts a POST request to rawURL.
func (b *Backend) Post(rawURL string) *RequestBuilder { return b.NewRequest(POST, rawURL) }

// Delete starts a DELETE request to rawURL.
func (b *Backend) Delete(rawURL string) *RequestBuilder { return b.NewRequest(DELETE, rawURL) }

// Patch starts a PATCH request to rawURL.
func (b *Backend) Patch(rawURL string) *RequestBuilder { return b.NewRequest(PATCH, rawURL) }

// Head starts a HEAD request to rawURL.
func (b *Backend) Head(rawURL string) *RequestBuilder { return b.NewRequest(HEAD, rawURL) }

// NewRequest starts a request with an arbitrary method.
func (b *Backend) NewRequest(method Method, rawURL string) *RequestBuilder {
	return &RequestBuilder{backend: b, method: method, url: rawURL, header: make(http.Header)}
}

// RequestBuilder describes an outbound request. Validation happens in Build.
type RequestBuilder struct {
	backend *Backend
	method  Method
	url     string
	header  http.Header
	body    any
	hasBody bool
}

// Header adds a request header.
func (rb *RequestBuilder) Header(key, value string) *RequestBuilder {
	rb.header.Add(key, value)
	return rb
}

// Body sets a value to encode as the request body.
func (rb *RequestBuilder) Body(v any) *RequestBuilder {
	rb.body = v
	rb.hasBody = true
	return rb
}

// Build validates the request and returns it bound to ctx. GET and HEAD
// requests may not carry a body.
func (rb *RequestBuilder) Build(ctx context.Context) (*http.Request, error) {
	if _, ok := ParseMethod(string(rb.method)); !ok {
		return nil, fmt.Errorf("%w: unsupported method %q", ErrInvalidRequest, rb.method)
	}
	u, err := url.Parse(rb.url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q is not an http or https URL", ErrInvalidRequest, rb.url)
	}

	var body io.Reader
	if rb.hasBody {
		if rb.method == GET || rb.method == HEAD {
			return nil, fmt.Errorf("%w: %s requests cannot have a body", ErrInvalidRequest, rb.method)
		}
		data, err := rb.backend.codec.Marshal(rb.body)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, string(rb.method), u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	req.Header = rb.header.Clone()
	if rb.hasBody {
		req.Header.Set("Content-Type", rb.backend.codec.ContentType())
	}
	return req, nil
}
