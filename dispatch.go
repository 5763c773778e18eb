package relay

import (
	"context"
	"time"
)

// Executor runs tasks. Execute never blocks the caller.
type Executor interface {
	Execute(task func())
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(task func())

// Execute implements Executor.
func (f ExecutorFunc) Execute(task func()) { f(task) }

// CancelKey cancels a scheduled task.
type CancelKey interface {
	// Cancel reports whether it prevented the task from running. It returns
	// false if the task already ran or was already cancelled, and is safe to
	// call from any goroutine.
	Cancel() bool
}

// ScheduledExecutor runs tasks on a request's I/O loop, now or after a delay.
type ScheduledExecutor interface {
	Executor
	ExecuteAfter(task func(), delay time.Duration) CancelKey
}

// Dispatcher mediates between a request's I/O loop and the worker pool.
//
// Every request must end in exactly one of: an inline send, a Dispatch whose
// handler eventually sends, or Dispatched followed by an eventual send from a
// RunManual handler.
type Dispatcher interface {
	// Context returns the request context.
	Context() context.Context

	// IsInIOThread reports whether the caller is running on the request's
	// I/O loop.
	IsInIOThread() bool

	// IOThread schedules tasks back onto the request's I/O loop.
	IOThread() ScheduledExecutor

	// Worker returns the pool for blocking work.
	Worker() Executor

	// Dispatch hands the continuation to the worker pool. The caller returns
	// immediately and h runs later on a worker, where it may block.
	Dispatch(h func(d Dispatcher))

	// Dispatched acknowledges that the request will be answered later
	// without Dispatch. It must be paired with RunManual.
	Dispatched()

	// RunManual runs h on the I/O loop. It panics with ErrNotDispatched if
	// Dispatched was not called first.
	RunManual(h func(d Dispatcher))
}

// Dispatch hands a handler and its arguments to the worker pool.
func Dispatch[S Sender](d Dispatcher, sender S, args Args, h Handler[S]) {
	d.Dispatch(func(wd Dispatcher) {
		h(sender, args, wd)
	})
}
