package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
)

// Call is one outbound request whose adapted response of type R answers the
// original request. A Call may be sent once.
type Call[R any] struct {
	rb    *RequestBuilder
	adapt func(resp *http.Response, c Codec) (R, error)
	sent  atomic.Bool
}

// StatusCodeCall adapts the response to its status code.
func StatusCodeCall(rb *RequestBuilder) *Call[int] {
	return &Call[int]{rb: rb, adapt: adaptStatus}
}

// JSONCall adapts a 2xx response to its decoded body and any other status to
// an empty Result carrying that status. A 2xx response without a JSON
// Content-Type or with an undecodable body is an adaptation failure.
func JSONCall[V any](rb *RequestBuilder) *Call[Result[V]] {
	return &Call[Result[V]]{rb: rb, adapt: adaptValue[V]}
}

// Dispatch sends the call and answers the request with its outcome. It
// acknowledges a manual dispatch, performs the call on d.Worker(), and then
// either runs callback through d.RunManual or, when the call fails in
// transport or its response cannot be adapted, sends 502 on sender. A request
// that cannot be built is answered with 500.
func (c *Call[R]) Dispatch(sender Sender, d Dispatcher, callback func(result R, d Dispatcher)) {
	c.claim()
	d.Dispatched()
	d.Worker().Execute(func() {
		result, err := c.do(d.Context())
		if err != nil {
			code := http.StatusBadGateway
			if errors.Is(err, ErrInvalidRequest) {
				code = http.StatusInternalServerError
			}
			d.RunManual(func(Dispatcher) {
				sender.SendErrorCode(code)
			})
			return
		}
		d.RunManual(func(loop Dispatcher) {
			callback(result, loop)
		})
	})
}

// Execute performs the call on the calling goroutine. Use it from a worker,
// never from the I/O loop. Errors wrap ErrInvalidRequest,
// ErrUpstreamTransport, or ErrUpstreamResponse.
func (c *Call[R]) Execute(ctx context.Context) (R, error) {
	c.claim()
	return c.do(ctx)
}

func (c *Call[R]) claim() {
	if !c.sent.CompareAndSwap(false, true) {
		panic(fmt.Errorf("%w: %s %s", ErrCallAlreadySent, c.rb.method, c.rb.url))
	}
}

func (c *Call[R]) do(ctx context.Context) (R, error) {
	var zero R
	b := c.rb.backend

	req, err := c.rb.Build(ctx)
	if err != nil {
		b.logger.ErrorContext(ctx, "backend request is invalid", "url", c.rb.url, "err", err)
		b.tel.upstreamFailed(ctx, c.rb.url, "request", err)
		return zero, err
	}
	upstream := req.URL.Host

	start := b.clock.Now()
	resp, err := b.Client().Do(req)
	if err != nil {
		b.logger.WarnContext(ctx, "backend call failed",
			"method", req.Method,
			"url", req.URL.String(),
			"err", err,
		)
		b.tel.upstreamFailed(ctx, upstream, "transport", err)
		return zero, fmt.Errorf("%w: %s %s: %w", ErrUpstreamTransport, req.Method, req.URL, err)
	}
	defer func() {
		//nolint:errcheck,gosec // best-effort close
		resp.Body.Close()
	}()
	b.tel.upstreamCalled(upstream, resp.StatusCode, b.clock.Since(start))

	result, err := c.adapt(resp, b.codec)
	if err != nil {
		b.logger.WarnContext(ctx, "backend response could not be adapted",
			"method", req.Method,
			"url", req.URL.String(),
			"status", resp.StatusCode,
			"err", err,
		)
		b.tel.upstreamFailed(ctx, upstream, "adapt", err)
		return zero, fmt.Errorf("%w: %s %s: %w", ErrUpstreamResponse, req.Method, req.URL, err)
	}
	return result, nil
}

func adaptStatus(resp *http.Response, _ Codec) (int, error) {
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return 0, err
	}
	return resp.StatusCode, nil
}

func adaptValue[V any](resp *http.Response, c Codec) (Result[V], error) {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		//nolint:errcheck // drained for connection reuse
		io.Copy(io.Discard, resp.Body)
		return Empty[V](resp.StatusCode), nil
	}
	if err := checkContentType(c, resp.Header.Get("Content-Type")); err != nil {
		return Result[V]{}, err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result[V]{}, err
	}
	v, err := Decode[V](c, data)
	if err != nil {
		return Result[V]{}, err
	}
	return Of(v), nil
}
