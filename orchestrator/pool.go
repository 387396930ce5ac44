package orchestrator

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrQueueFull is returned when every worker is busy and the queue is full
	ErrQueueFull = errors.New("task queue is full")
	// ErrPoolClosed is returned after Shutdown
	ErrPoolClosed = errors.New("task pool is shut down")
)

// Pool runs jobs on a fixed number of workers fed by a bounded queue.
// slots counts running plus queued jobs and is sized workers+depth.
type Pool struct {
	jobs  chan func()
	slots chan struct{}
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewPool starts workers goroutines. depth is the number of jobs that may
// wait while all workers are busy.
func NewPool(workers, depth int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if depth < 0 {
		depth = 0
	}
	capacity := workers + depth
	p := &Pool{
		jobs:  make(chan func(), capacity),
		slots: make(chan struct{}, capacity),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.work()
	}
	return p
}

func (p *Pool) work() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.run(job)
	}
}

func (p *Pool) run(job func()) {
	defer func() { <-p.slots }()
	job()
}

// Submit enqueues job without blocking
func (p *Pool) Submit(job func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.slots <- struct{}{}:
	default:
		return ErrQueueFull
	}
	p.jobs <- job
	return nil
}

// Shutdown stops accepting jobs and waits for queued and running ones
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
