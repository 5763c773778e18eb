package relaytest

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bjaus/relay"
)

// FakeStatusSender records the single status code sent to it.
type FakeStatusSender struct {
	sent atomic.Bool
	code atomic.Int64
	done chan struct{}
	once sync.Once
}

// NewFakeStatusSender returns an unsent FakeStatusSender.
func NewFakeStatusSender() *FakeStatusSender {
	return &FakeStatusSender{done: make(chan struct{})}
}

// Send implements relay.StatusSender.
func (s *FakeStatusSender) Send(code int) {
	if !s.sent.CompareAndSwap(false, true) {
		panic(relay.ErrAlreadySent)
	}
	s.code.Store(int64(code))
	s.once.Do(func() { close(s.done) })
}

// SendOK implements relay.StatusSender.
func (s *FakeStatusSender) SendOK() { s.Send(http.StatusOK) }

// SendErrorCode implements relay.Sender.
func (s *FakeStatusSender) SendErrorCode(code int) { s.Send(code) }

// Sent reports whether a response was sent.
func (s *FakeStatusSender) Sent() bool { return s.sent.Load() }

// Code returns the sent status code, or 0.
func (s *FakeStatusSender) Code() int { return int(s.code.Load()) }

// Done is closed when the response is sent.
func (s *FakeStatusSender) Done() <-chan struct{} { return s.done }

// FakeValueSender records the single result sent to it.
type FakeValueSender[V any] struct {
	sent   atomic.Bool
	mu     sync.Mutex
	result relay.Result[V]
	done   chan struct{}
}

// NewFakeValueSender returns an unsent FakeValueSender.
func NewFakeValueSender[V any]() *FakeValueSender[V] {
	return &FakeValueSender[V]{done: make(chan struct{})}
}

// Send implements relay.ValueSender.
func (s *FakeValueSender[V]) Send(r relay.Result[V]) {
	if !s.sent.CompareAndSwap(false, true) {
		panic(relay.ErrAlreadySent)
	}
	s.mu.Lock()
	s.result = r
	s.mu.Unlock()
	close(s.done)
}

// SendValue implements relay.ValueSender.
func (s *FakeValueSender[V]) SendValue(v V) { s.Send(relay.Of(v)) }

// SendErrorCode implements relay.Sender.
func (s *FakeValueSender[V]) SendErrorCode(code int) { s.Send(relay.Empty[V](code)) }

// Sent reports whether a response was sent.
func (s *FakeValueSender[V]) Sent() bool { return s.sent.Load() }

// Result returns the sent result. It is the zero Result until Sent is true.
func (s *FakeValueSender[V]) Result() relay.Result[V] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Done is closed when the response is sent.
func (s *FakeValueSender[V]) Done() <-chan struct{} { return s.done }

// StubDispatcher runs everything inline on the calling goroutine and always
// reports being on the I/O loop.
type StubDispatcher struct {
	Ctx       context.Context
	Scheduler relay.ScheduledExecutor

	dispatched atomic.Bool
	manual     atomic.Bool
}

// NewStubDispatcher returns a StubDispatcher whose I/O executor runs tasks
// inline.
func NewStubDispatcher() *StubDispatcher {
	return &StubDispatcher{Ctx: context.Background(), Scheduler: StubScheduledExecutor{}}
}

func (d *StubDispatcher) Context() context.Context { return d.Ctx }

func (d *StubDispatcher) IsInIOThread() bool { return true }

func (d *StubDispatcher) IOThread() relay.ScheduledExecutor { return d.Scheduler }

func (d *StubDispatcher) Worker() relay.Executor {
	return relay.ExecutorFunc(func(task func()) { task() })
}

func (d *StubDispatcher) Dispatch(h func(d relay.Dispatcher)) {
	d.dispatched.Store(true)
	h(d)
}

func (d *StubDispatcher) Dispatched() { d.manual.Store(true) }

func (d *StubDispatcher) RunManual(h func(d relay.Dispatcher)) {
	if !d.manual.Load() {
		panic(relay.ErrNotDispatched)
	}
	h(d)
}

// WasDispatched reports whether Dispatch was called.
func (d *StubDispatcher) WasDispatched() bool { return d.dispatched.Load() }

// WasManual reports whether Dispatched was called.
func (d *StubDispatcher) WasManual() bool { return d.manual.Load() }

// StubScheduledExecutor runs every task inline, ignoring delays. Its cancel
// keys never cancel.
type StubScheduledExecutor struct{}

func (StubScheduledExecutor) Execute(task func()) { task() }

func (StubScheduledExecutor) ExecuteAfter(task func(), _ time.Duration) relay.CancelKey {
	task()
	return stubKey{}
}

type stubKey struct{}

func (stubKey) Cancel() bool { return false }

// FakeScheduledExecutor queues tasks until the test runs them.
type FakeScheduledExecutor struct {
	mu    sync.Mutex
	tasks []*ScheduledTask
}

// ScheduledTask is a task queued on a FakeScheduledExecutor. It runs at most
// once, and not at all once cancelled.
type ScheduledTask struct {
	Delay  time.Duration
	task   func()
	canRun atomic.Bool
}

// Cancel implements relay.CancelKey.
func (t *ScheduledTask) Cancel() bool {
	return t.canRun.Swap(false)
}

// Run runs the task unless it already ran or was cancelled.
func (t *ScheduledTask) Run() bool {
	if !t.canRun.Swap(false) {
		return false
	}
	t.task()
	return true
}

func (e *FakeScheduledExecutor) Execute(task func()) {
	e.ExecuteAfter(task, 0)
}

func (e *FakeScheduledExecutor) ExecuteAfter(task func(), delay time.Duration) relay.CancelKey {
	st := &ScheduledTask{Delay: delay, task: task}
	st.canRun.Store(true)
	e.mu.Lock()
	e.tasks = append(e.tasks, st)
	e.mu.Unlock()
	return st
}

// Tasks returns the tasks waiting for RunAll.
func (e *FakeScheduledExecutor) Tasks() []*ScheduledTask {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*ScheduledTask(nil), e.tasks...)
}

// RunAll runs queued tasks, including ones queued while running, and
// returns how many ran.
func (e *FakeScheduledExecutor) RunAll() int {
	ran := 0
	for {
		e.mu.Lock()
		pending := e.tasks
		e.tasks = nil
		e.mu.Unlock()
		if len(pending) == 0 {
			return ran
		}
		for _, t := range pending {
			if t.Run() {
				ran++
			}
		}
	}
}

var (
	_ relay.StatusSender        = (*FakeStatusSender)(nil)
	_ relay.ValueSender[string] = (*FakeValueSender[string])(nil)
	_ relay.Dispatcher          = (*StubDispatcher)(nil)
	_ relay.ScheduledExecutor   = StubScheduledExecutor{}
	_ relay.ScheduledExecutor   = (*FakeScheduledExecutor)(nil)
)
