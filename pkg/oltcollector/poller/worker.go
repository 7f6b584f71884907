package poller

import (
	"context"
	"log/slog"
	"sync"
)

// ─────────────────────────────────────────────────────────────────────────────
// WorkerPool: fan-out dispatcher for PollJobs
// ─────────────────────────────────────────────────────────────────────────────

// WorkerPool fans poll jobs out to N worker goroutines and collects results
// into a shared output channel. Failed polls are emitted too, so downstream
// stages can record them.
type WorkerPool struct {
	numWorkers int
	poller     Poller
	output     chan<- Result
	logger     *slog.Logger

	jobs     chan PollJob
	quit     chan struct{}
	quitOnce sync.Once
	wg       sync.WaitGroup

	// mu guards stopped; senders hold it for reading so Stop never closes
	// jobs under them.
	mu      sync.RWMutex
	stopped bool
}

// NewWorkerPool creates a pool of numWorkers goroutines.
func NewWorkerPool(numWorkers int, poller Poller, output chan<- Result, logger *slog.Logger) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 4
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &WorkerPool{
		numWorkers: numWorkers,
		poller:     poller,
		output:     output,
		logger:     logger,
		jobs:       make(chan PollJob, numWorkers*2),
		quit:       make(chan struct{}),
	}
}

// Start launches the worker goroutines. They run until ctx is cancelled or
// Stop is called.
func (w *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < w.numWorkers; i++ {
		w.wg.Add(1)
		go w.worker(ctx)
	}
}

// Submit enqueues a poll job, blocking while the job channel is full. It
// returns false once the pool is stopped.
func (w *WorkerPool) Submit(job PollJob) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return false
	}
	select {
	case w.jobs <- job:
		return true
	case <-w.quit:
		return false
	}
}

// TrySubmit enqueues a poll job without blocking. It returns false when the
// channel is full or the pool is stopped.
func (w *WorkerPool) TrySubmit(job PollJob) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return false
	}
	select {
	case w.jobs <- job:
		return true
	default:
		return false
	}
}

// Stop closes the job channel and waits for all workers to drain. Later
// submissions are refused; repeated calls are no-ops.
func (w *WorkerPool) Stop() {
	// Release a Submit blocked on a full channel before taking the lock.
	w.quitOnce.Do(func() { close(w.quit) })

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.jobs)
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *WorkerPool) worker(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case job, ok := <-w.jobs:
			if !ok {
				return
			}
			result, err := w.poller.PollDevice(ctx, job)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				w.logger.Warn("poll failed",
					"device", job.Device.Name,
					"error", err.Error(),
				)
				result.Device = job.Device
				result.Err = err
			}
			select {
			case w.output <- result:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
