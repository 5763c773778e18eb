package relay

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/semaphore"
)

// GoExecutor runs every task on its own goroutine.
type GoExecutor struct {
	Logger *slog.Logger
}

// Execute implements Executor.
func (e GoExecutor) Execute(task func()) {
	go runTask(e.Logger, task)
}

// WorkerPool runs tasks on goroutines bounded by a weighted semaphore.
// Execute never blocks; tasks beyond the limit wait for a slot.
type WorkerPool struct {
	sem    *semaphore.Weighted
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewWorkerPool returns a pool that runs at most limit tasks at once.
func NewWorkerPool(limit int64, logger *slog.Logger) *WorkerPool {
	if limit < 1 {
		limit = 1
	}
	return &WorkerPool{sem: semaphore.NewWeighted(limit), logger: logger}
}

// Execute implements Executor.
func (p *WorkerPool) Execute(task func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		//nolint:errcheck // Acquire only fails on context cancellation
		p.sem.Acquire(context.Background(), 1)
		defer p.sem.Release(1)
		runTask(p.logger, task)
	}()
}

// Wait blocks until every submitted task has finished.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

func runTask(logger *slog.Logger, task func()) {
	defer func() {
		if rec := recover(); rec != nil {
			if logger == nil {
				logger = slog.Default()
			}
			logger.Error("worker task panicked",
				"panic", rec,
				"stack", string(debug.Stack()),
			)
		}
	}()
	task()
}
