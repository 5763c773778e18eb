package relay

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

// Args holds the extracted arguments of one request, in declaration order.
type Args []any

// Arg returns argument i as a T. It panics with ErrArgType if the argument
// has a different type.
func Arg[T any](args Args, i int) T {
	v, ok := args[i].(T)
	if !ok {
		var zero T
		panic(fmt.Errorf("%w: argument %d is %T, not %T", ErrArgType, i, args[i], zero))
	}
	return v
}

// Handler is the terminal step of a pipeline. It receives the request's
// sender, every extracted argument, and the dispatcher, and must eventually
// cause exactly one response to be sent.
type Handler[S Sender] func(sender S, args Args, d Dispatcher)

// Slot is a type-erased argument position of a pipeline. Param implements it.
type Slot interface {
	Name() string
	extract(r *http.Request, next func(v any, code int, ok bool))
}

// Endpoint describes a pipeline before it is built.
type Endpoint[S Sender] struct {
	Method   Method
	Path     string
	Response Responder[S]
	Args     []Slot
	Handler  Handler[S]
	Options  []RouteOption
}

// Build validates the endpoint and returns its pipeline.
func (e Endpoint[S]) Build() (*Pipeline, error) {
	if _, ok := ParseMethod(string(e.Method)); !ok {
		return nil, fmt.Errorf("%w: unsupported method %q", ErrInvalidEndpoint, e.Method)
	}
	if e.Path == "" {
		return nil, fmt.Errorf("%w: path is required", ErrInvalidEndpoint)
	}
	if e.Response == nil {
		return nil, fmt.Errorf("%w: %s %s: response is required", ErrInvalidEndpoint, e.Method, e.Path)
	}
	if e.Handler == nil {
		return nil, fmt.Errorf("%w: %s %s: handler is required", ErrInvalidEndpoint, e.Method, e.Path)
	}
	for i, slot := range e.Args {
		if slot == nil {
			return nil, fmt.Errorf("%w: %s %s: argument %d is nil", ErrInvalidEndpoint, e.Method, e.Path, i)
		}
	}

	p := &Pipeline{
		route: NewRoute(e.Method, e.Path),
		slots: append([]Slot(nil), e.Args...),
		kind:  e.Response.kind(),
		tel:   noTelemetry,
	}
	for _, opt := range e.Options {
		opt(&p.info)
	}

	responder, handler := e.Response, e.Handler
	p.newSender = func(res *response, codec Codec) Sender {
		return responder.newSender(res, codec)
	}
	p.invoke = func(sender Sender, args Args, d Dispatcher) {
		s, ok := sender.(S)
		if !ok {
			panic(fmt.Errorf("%w: %s expects a %T sender, got %T", ErrInvalidEndpoint, p.route, *new(S), sender))
		}
		handler(s, args, d)
	}
	return p, nil
}

// Pipeline binds a chain of argument extractors to a terminal handler for
// one route.
type Pipeline struct {
	route      Route
	info       routeInfo
	kind       string
	slots      []Slot
	newSender  func(res *response, codec Codec) Sender
	invoke     func(sender Sender, args Args, d Dispatcher)
	tel        *telemetry
	middleware []Middleware
}

// Route returns the pipeline's route.
func (p *Pipeline) Route() Route { return p.route }

// Arity returns the number of declared arguments.
func (p *Pipeline) Arity() int { return len(p.slots) }

// Handle runs the extractors left to right. The first empty result is sent
// as an error code and stops the chain; when every argument is present the
// handler is invoked. sender must be of the kind the endpoint declared.
//
// An extractor that reports after TryExtractAsync has returned resumes the
// chain through d.IOThread(). Panics from extractors or the handler are not
// recovered.
func (p *Pipeline) Handle(r *http.Request, sender Sender, d Dispatcher) {
	p.run(r, sender, d, nil)
}

// run is Handle with a hook that runs after the handler returns normally.
func (p *Pipeline) run(r *http.Request, sender Sender, d Dispatcher, after func()) {
	args := make(Args, len(p.slots))
	p.extractFrom(0, &chain{r: r, sender: sender, args: args, d: d, after: after})
}

type chain struct {
	r      *http.Request
	sender Sender
	args   Args
	d      Dispatcher
	after  func()
}

// Extraction step states.
const (
	stepExtracting int32 = iota
	stepReported
	stepDeferred
)

func (p *Pipeline) extractFrom(k int, c *chain) {
	if k == len(p.slots) {
		p.invoke(c.sender, c.args, c.d)
		if c.after != nil {
			c.after()
		}
		return
	}

	slot := p.slots[k]
	var (
		called atomic.Bool
		state  atomic.Int32
		value  any
		code   int
		ok     bool
	)
	slot.extract(c.r, func(v any, status int, present bool) {
		if !called.CompareAndSwap(false, true) {
			panic(fmt.Errorf("%w: %s argument %d (%s)", ErrExtractorCallback, p.route, k, slot.Name()))
		}
		value, code, ok = v, status, present
		if state.CompareAndSwap(stepExtracting, stepReported) {
			return
		}
		c.d.IOThread().Execute(func() {
			p.resume(k, c, value, code, ok)
		})
	})
	if state.CompareAndSwap(stepExtracting, stepDeferred) {
		return
	}
	p.resume(k, c, value, code, ok)
}

func (p *Pipeline) resume(k int, c *chain, v any, code int, ok bool) {
	if !ok {
		p.tel.argumentRejected(c.r.Context(), p.route, p.slots[k].Name(), code)
		c.sender.SendErrorCode(code)
		return
	}
	c.args[k] = v
	p.extractFrom(k+1, c)
}
