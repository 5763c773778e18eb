package relay

import (
	"context"
	"net/http"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/clockz"
)

// exchange serves one routed request. The ServeHTTP goroutine is the
// request's I/O loop: it runs the pipeline, then drains queued tasks until
// the response is written, the request context ends, or the response timeout
// fires.
type exchange struct {
	r   *Router
	p   *Pipeline
	req *http.Request
	res *response

	dispatched atomic.Bool
	manual     atomic.Bool

	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
	ended  chan struct{}

	io     *view
	worker *view
}

func newExchange(r *Router, p *Pipeline, w http.ResponseWriter, req *http.Request) *exchange {
	ex := &exchange{
		r:     r,
		p:     p,
		req:   req,
		res:   newResponse(w, r.logger),
		wake:  make(chan struct{}, 1),
		ended: make(chan struct{}),
	}
	ex.io = &view{ex: ex, io: true}
	ex.worker = &view{ex: ex}
	return ex
}

func (ex *exchange) run() {
	defer ex.end()

	sender := ex.p.newSender(ex.res, ex.r.codec)
	ex.runIO(func() {
		ex.p.run(ex.req, sender, ex.io, ex.checkAnswered)
	})
	ex.loop()
}

func (ex *exchange) loop() {
	var timeout <-chan time.Time
	if ex.r.timeout > 0 {
		timer := ex.r.clock.NewTimer(ex.r.timeout)
		defer timer.Stop()
		timeout = timer.C()
	}

	ctx := ex.req.Context()
	for {
		select {
		case <-ex.res.done:
			return
		case <-ctx.Done():
			ex.r.logger.DebugContext(ctx, "request ended before a response was sent",
				"route", ex.p.route.String(),
				"err", ctx.Err(),
			)
			return
		case <-timeout:
			if ex.res.tryClaim() {
				ex.r.tel.timedOut(ex.p.route)
				ex.r.logger.WarnContext(ctx, "response timed out",
					"route", ex.p.route.String(),
					"timeout", ex.r.timeout,
				)
				ex.res.writeStatus(http.StatusServiceUnavailable)
			}
			return
		case <-ex.wake:
			for _, task := range ex.drain() {
				if ex.answered() {
					break
				}
				ex.runIO(task)
			}
		}
	}
}

// checkAnswered runs after the handler returns on the I/O loop.
func (ex *exchange) checkAnswered() {
	if ex.res.sent.Load() || ex.dispatched.Load() || ex.manual.Load() {
		return
	}
	ex.r.tel.unanswered(ex.p.route)
	ex.r.logger.ErrorContext(ex.req.Context(), "handler returned without responding or dispatching",
		"route", ex.p.route.String(),
	)
	ex.fail(http.StatusInternalServerError)
}

func (ex *exchange) answered() bool {
	select {
	case <-ex.res.done:
		return true
	default:
		return false
	}
}

func (ex *exchange) fail(code int) {
	if ex.res.tryClaim() {
		ex.res.writeStatus(code)
	}
}

func (ex *exchange) post(task func()) {
	ex.mu.Lock()
	if ex.closed {
		ex.mu.Unlock()
		ex.r.logger.Debug("task dropped, exchange already ended", "route", ex.p.route.String())
		return
	}
	ex.queue = append(ex.queue, task)
	ex.mu.Unlock()

	select {
	case ex.wake <- struct{}{}:
	default:
	}
}

func (ex *exchange) drain() []func() {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	tasks := ex.queue
	ex.queue = nil
	return tasks
}

func (ex *exchange) end() {
	ex.mu.Lock()
	ex.closed = true
	ex.queue = nil
	ex.mu.Unlock()

	close(ex.ended)
	ex.res.seal()
}

func (ex *exchange) runIO(task func()) {
	defer func() {
		if rec := recover(); rec != nil {
			ex.recovered("io", rec)
		}
	}()
	task()
}

func (ex *exchange) runWorker(task func()) {
	ex.r.worker.Execute(func() {
		defer func() {
			if rec := recover(); rec != nil {
				ex.recovered("worker", rec)
			}
		}()
		task()
	})
}

func (ex *exchange) recovered(mode string, rec any) {
	ctx := ex.req.Context()
	ex.r.logger.ErrorContext(ctx, "panic recovered",
		"panic", rec,
		"stack", string(debug.Stack()),
		"method", ex.req.Method,
		"path", ex.req.URL.Path,
		"mode", mode,
	)
	ex.r.tel.faultRecovered(ctx, ex.p.route, mode, rec)
	ex.fail(http.StatusInternalServerError)
}

// view is the Dispatcher handed to code running on the I/O loop (io true) or
// on a worker.
type view struct {
	ex *exchange
	io bool
}

func (v *view) Context() context.Context { return v.ex.req.Context() }

func (v *view) IsInIOThread() bool { return v.io }

func (v *view) IOThread() ScheduledExecutor { return ioScheduler{ex: v.ex} }

func (v *view) Worker() Executor { return ExecutorFunc(v.ex.runWorker) }

func (v *view) Dispatch(h func(d Dispatcher)) {
	v.ex.dispatched.Store(true)
	v.ex.r.tel.dispatched("worker")
	v.ex.runWorker(func() {
		h(v.ex.worker)
	})
}

func (v *view) Dispatched() {
	if v.ex.manual.CompareAndSwap(false, true) {
		v.ex.r.tel.dispatched("manual")
	}
}

func (v *view) RunManual(h func(d Dispatcher)) {
	if !v.ex.manual.Load() {
		panic(ErrNotDispatched)
	}
	v.ex.post(func() {
		h(v.ex.io)
	})
}

// ioScheduler queues tasks on the exchange's I/O loop.
type ioScheduler struct {
	ex *exchange
}

func (s ioScheduler) Execute(task func()) { s.ex.post(task) }

func (s ioScheduler) ExecuteAfter(task func(), delay time.Duration) CancelKey {
	key := &timerKey{timer: s.ex.r.clock.NewTimer(delay)}
	go func() {
		select {
		case <-key.timer.C():
			s.ex.post(func() {
				if key.state.CompareAndSwap(keyPending, keyRan) {
					task()
				}
			})
		case <-s.ex.ended:
			key.timer.Stop()
		}
	}()
	return key
}

// Scheduled task states.
const (
	keyPending int32 = iota
	keyRan
	keyCancelled
)

type timerKey struct {
	timer clockz.Timer
	state atomic.Int32
}

func (k *timerKey) Cancel() bool {
	if !k.state.CompareAndSwap(keyPending, keyCancelled) {
		return false
	}
	k.timer.Stop()
	return true
}
