package ingest

import (
	"sync"

	"github.com/user/gitsync/pkg/logger"
)

// Pool is the async executor: a fixed-size worker pool that runs units of
// work off the request path. A panicking task is contained and logged; it
// never takes down a worker or affects other queued units.
type Pool struct {
	tasks chan task
	wg    sync.WaitGroup
	once  sync.Once
}

type task struct {
	name string
	fn   func()
}

// NewPool starts size workers with a submission queue of queueSize.
func NewPool(size, queueSize int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{tasks: make(chan task, queueSize)}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit queues a unit of work without blocking. When the queue is full
// the task is dropped with a warning; the caller still acknowledges the
// event.
func (p *Pool) Submit(name string, fn func()) bool {
	select {
	case p.tasks <- task{name: name, fn: fn}:
		return true
	default:
		logger.Warn().Str("task", name).Msg("Worker queue full, dropping task")
		return false
	}
}

// Stop drains queued tasks and waits for the workers to exit.
func (p *Pool) Stop() {
	p.once.Do(func() {
		close(p.tasks)
	})
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for t := range p.tasks {
		p.run(t)
	}
}

func (p *Pool) run(t task) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Str("task", t.name).Msg("Task panicked")
		}
	}()
	t.fn()
}
