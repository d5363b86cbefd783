package pool

import (
	"sync"

	"github.com/pkg/errors"
)

var ErrPoolClosed = errors.New("pool is closed")

type Job func()

// Pool runs jobs on a fixed set of workers. Accepted jobs wait in a bounded
// queue until a worker picks them.
type Pool struct {
	jobs    chan Job
	mtx     sync.RWMutex
	closed  bool
	workers sync.WaitGroup
	pending sync.WaitGroup
}

// Call queues job. It blocks while the queue is full.
func (a *Pool) Call(job Job) error {
	a.mtx.RLock()
	defer a.mtx.RUnlock()
	if a.closed {
		return ErrPoolClosed
	}
	a.pending.Add(1)
	a.jobs <- job
	return nil
}

// Wait blocks until every accepted job has run.
func (a *Pool) Wait() {
	a.pending.Wait()
}

// Cancel stops accepting jobs, and returns once the queued ones have run.
func (a *Pool) Cancel() {
	a.mtx.Lock()
	if !a.closed {
		a.closed = true
		close(a.jobs)
	}
	a.mtx.Unlock()
	a.workers.Wait()
}

func NewPool(count, queue int) *Pool {
	c := &Pool{
		jobs: make(chan Job, queue),
	}
	c.workers.Add(count)
	for i := 0; i < count; i++ {
		go func() {
			defer c.workers.Done()
			for job := range c.jobs {
				job()
				c.pending.Done()
			}
		}()
	}
	return c
}
