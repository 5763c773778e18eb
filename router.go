package relay

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-metrics"
	"github.com/zoobzio/clockz"
)

// DefaultResponseTimeout bounds how long a dispatched request may stay
// unanswered before the router answers it with 503.
const DefaultResponseTimeout = 30 * time.Second

// Router holds the routing trie, middleware, and the execution settings used
// to serve registered pipelines. It implements http.Handler.
type Router struct {
	root       *node
	pipelines  []*Pipeline
	middleware []Middleware

	title   string
	version string

	logger  *slog.Logger
	worker  Executor
	clock   clockz.Clock
	timeout time.Duration
	codec   Codec

	sink         metrics.MetricSink
	metricLabels []metrics.Label
	events       bool
	tel          *telemetry

	mu sync.RWMutex
}

// node is one path segment of the trie.
type node struct {
	handlers map[Method]*Pipeline
	children map[string]*node
}

func newNode() *node {
	return &node{
		handlers: make(map[Method]*Pipeline),
		children: make(map[string]*node),
	}
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithTitle sets the API title used in the route table export.
func WithTitle(title string) RouterOption {
	return func(r *Router) {
		r.title = title
	}
}

// WithVersion sets the API version used in the route table export.
func WithVersion(version string) RouterOption {
	return func(r *Router) {
		r.version = version
	}
}

// WithLogger sets the logger for faults, unanswered requests, and dropped
// tasks. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

// WithWorker sets the executor that runs dispatched handlers. Defaults to a
// GoExecutor.
func WithWorker(e Executor) RouterOption {
	return func(r *Router) {
		r.worker = e
	}
}

// WithClock sets the clock behind scheduled I/O tasks and the response
// timeout.
func WithClock(clock clockz.Clock) RouterOption {
	return func(r *Router) {
		r.clock = clock
	}
}

// WithResponseTimeout sets how long a request may wait for its response
// after the pipeline has run. Zero disables the timeout.
func WithResponseTimeout(d time.Duration) RouterOption {
	return func(r *Router) {
		r.timeout = d
	}
}

// WithCodec sets the codec used by value senders. Defaults to JSONCodec().
func WithCodec(c Codec) RouterOption {
	return func(r *Router) {
		r.codec = c
	}
}

// WithMetrics sets the sink for request and dispatch counters. Defaults to
// metrics.Default().
func WithMetrics(sink metrics.MetricSink, labels ...metrics.Label) RouterOption {
	return func(r *Router) {
		r.sink = sink
		r.metricLabels = labels
	}
}

// WithEvents toggles capitan lifecycle events. Enabled by default.
func WithEvents(enabled bool) RouterOption {
	return func(r *Router) {
		r.events = enabled
	}
}

// New creates a new Router with the given options.
func New(opts ...RouterOption) *Router {
	r := &Router{
		root:    newNode(),
		clock:   clockz.RealClock,
		timeout: DefaultResponseTimeout,
		codec:   JSONCodec(),
		events:  true,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.worker == nil {
		r.worker = GoExecutor{Logger: r.logger}
	}
	r.tel = newTelemetry(r.sink, r.metricLabels, r.events)
	return r
}

// Use adds middleware to the router. Middleware is applied in the order added.
func (r *Router) Use(mw ...Middleware) {
	r.middleware = append(r.middleware, mw...)
}

// Register adds pipelines to the trie in order. It stops at the first
// pipeline whose route is already taken and returns ErrRouteConflict.
func (r *Router) Register(ps ...*Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range ps {
		if p == nil {
			return fmt.Errorf("%w: nil pipeline", ErrInvalidEndpoint)
		}

		n := r.root
		for _, seg := range p.route.segments {
			child, ok := n.children[seg]
			if !ok {
				child = newNode()
				n.children[seg] = child
			}
			n = child
		}
		if _, ok := n.handlers[p.route.method]; ok {
			return fmt.Errorf("%w: %s", ErrRouteConflict, p.route)
		}

		p.tel = r.tel
		n.handlers[p.route.method] = p
		r.pipelines = append(r.pipelines, p)
		r.tel.routeRegistered(p.route)
	}
	return nil
}

// Route finds the pipeline for a request. The returned error is a
// *RouteError matching ErrBadMethod, ErrNotFound, or ErrMethodNotAllowed.
func (r *Router) Route(method, rawPath string) (*Pipeline, error) {
	m, ok := ParseMethod(method)
	if !ok {
		return nil, &RouteError{Status: http.StatusBadRequest, Method: method, Path: rawPath}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	n := r.root
	for _, seg := range splitPath(rawPath) {
		n = n.children[seg]
		if n == nil {
			return nil, &RouteError{Status: http.StatusNotFound, Method: method, Path: rawPath}
		}
	}
	p, ok := n.handlers[m]
	if !ok {
		return nil, &RouteError{Status: http.StatusMethodNotAllowed, Method: method, Path: rawPath}
	}
	return p, nil
}

var routeFailureReasons = map[int]string{
	http.StatusBadRequest:       "bad_method",
	http.StatusNotFound:         "not_found",
	http.StatusMethodNotAllowed: "method_not_allowed",
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	Chain(r.middleware...)(http.HandlerFunc(r.serve)).ServeHTTP(w, req)
}

func (r *Router) serve(w http.ResponseWriter, req *http.Request) {
	p, err := r.Route(req.Method, req.URL.Path)
	if err != nil {
		status := ErrorStatus(err)
		r.tel.routeFailed(routeFailureReasons[status])
		r.logger.DebugContext(req.Context(), "request not routed",
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
		)
		w.WriteHeader(status)
		return
	}
	r.tel.routed(p.route)
	noteRoute(req, p.route)

	exchange := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		newExchange(r, p, w, req).run()
	})
	Chain(p.middleware...)(exchange).ServeHTTP(w, req)
}

// ListenAndServe starts an HTTP server on the given address.
// It blocks until the context is cancelled, then shuts down gracefully.
func (r *Router) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
