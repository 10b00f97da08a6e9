// Package worker runs scan jobs for many inputs in parallel.
package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/RowanDark/scrdec/internal/plugin"
)

// Handler scans a single job.
type Handler func(ctx context.Context, job Job) (*plugin.Result, error)

// Job is one input awaiting a scan.
type Job struct {
	ID   string
	Name string
	Data []byte
}

// NewJob assigns a fresh identifier to an input.
func NewJob(name string, data []byte) Job {
	return Job{ID: uuid.NewString(), Name: name, Data: data}
}

// JobResult contains the outcome of a job.
type JobResult struct {
	JobID  string
	Name   string
	Result *plugin.Result
	Error  error
}

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("worker pool stopped")

// Pool manages parallel job execution with a fixed number of workers.
type Pool struct {
	workers int
	handler Handler
	jobs    chan Job
	results chan JobResult
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	stopped bool
}

// NewPool creates a pool bound to ctx. Workers start with Start.
func NewPool(ctx context.Context, workers int, handler Handler) *Pool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Pool{
		workers: workers,
		handler: handler,
		jobs:    make(chan Job, workers*2),
		results: make(chan JobResult, workers*2),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return

		case job, ok := <-p.jobs:
			if !ok {
				return
			}

			res, err := p.handler(p.ctx, job)

			select {
			case p.results <- JobResult{JobID: job.ID, Name: job.Name, Result: res, Error: err}:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a job, blocking while the queue is full.
func (p *Pool) Submit(job Job) error {
	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()
	if stopped {
		return ErrStopped
	}
	select {
	case p.jobs <- job:
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// Results returns the results channel. It is closed by Stop.
func (p *Pool) Results() <-chan JobResult {
	return p.results
}

// Stop waits for queued jobs to finish and closes the results channel.
// Results must be drained concurrently, and Submit must not race with Stop.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	close(p.jobs)
	p.wg.Wait()
	close(p.results)
	p.cancel()
}

// Cancel immediately cancels all workers.
func (p *Pool) Cancel() {
	p.cancel()
	p.wg.Wait()
}

// Run scans every job with the given number of workers and returns the
// results in submission order.
func Run(ctx context.Context, workers int, jobs []Job, handler Handler) ([]JobResult, error) {
	pool := NewPool(ctx, workers, handler)
	pool.Start()

	jobs = append([]Job(nil), jobs...)
	index := make(map[string]int, len(jobs))
	for i := range jobs {
		if jobs[i].ID == "" {
			jobs[i].ID = uuid.NewString()
		}
		index[jobs[i].ID] = i
	}

	out := make([]JobResult, len(jobs))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for res := range pool.Results() {
			out[index[res.JobID]] = res
		}
	}()

	var submitErr error
	for _, job := range jobs {
		if err := pool.Submit(job); err != nil {
			submitErr = err
			break
		}
	}
	pool.Stop()
	<-done

	if submitErr != nil {
		return out, submitErr
	}
	return out, ctx.Err()
}
