// Package worker runs analysis jobs on a fixed-size pool with a bounded
// queue. Submissions beyond capacity are rejected immediately instead of
// piling up behind a slow upstream.
package worker

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/beta-portfolio/internal/errors"
)

// Job is a unit of background work. The context is cancelled when the pool
// shuts down.
type Job func(ctx context.Context)

// Pool executes jobs on a fixed number of goroutines.
type Pool struct {
	queue   chan Job
	workers int
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// NewPool creates a pool with the given worker count and queue capacity.
// Call Start before submitting.
func NewPool(workers, queueSize int, log zerolog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		queue:   make(chan Job, queueSize),
		workers: workers,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
	p.log.Info().Int("workers", p.workers).Int("queue", cap(p.queue)).Msg("worker pool started")
}

func (p *Pool) run(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.queue:
			if !ok {
				return
			}
			p.execute(id, job)
		}
	}
}

func (p *Pool) execute(id int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Int("worker", id).Interface("panic", r).Msg("job panicked")
		}
	}()
	job(p.ctx)
}

// Submit enqueues a job without blocking. It returns a CAPACITY_EXCEEDED
// categorized error when the queue is full or the pool has stopped.
func (p *Pool) Submit(job Job) error {
	// The enqueue happens under the same lock Stop closes the queue under,
	// so a send can never race the close.
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return errors.NewCapacityError("worker pool is shutting down")
	}

	select {
	case p.queue <- job:
		return nil
	default:
		return errors.NewCapacityError("analysis queue is full, retry later")
	}
}

// Stop drains the queue, cancels running jobs when ctx expires, and waits
// for the workers to exit.
func (p *Pool) Stop(ctx context.Context) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		p.cancel()
		<-done
	}
	p.cancel()
	p.log.Info().Msg("worker pool stopped")
}
