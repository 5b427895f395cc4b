package render

import (
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

// ThreadPool runs short tasks for collaborators that parallelize internal
// work, such as decompression inside the file decoder.
type ThreadPool interface {
	Go(fn func())
}

// WorkerPool adapts a dynamic worker pool to ThreadPool. Workers idle-exit
// after the timeout, so the pool needs no explicit shutdown.
type WorkerPool struct {
	mu     sync.Mutex
	pool   worker.DynamicWorkerPool
	nextID int
}

// NewWorkerPool creates a pool with the given number of workers.
// workers <= 0 uses runtime.NumCPU().
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &WorkerPool{
		pool: worker.NewDynamicWorkerPool(workers, 256, 1*time.Second),
	}
}

// Go submits fn to the pool.
func (p *WorkerPool) Go(fn func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.mu.Unlock()

	p.pool.SubmitTask(worker.Task{
		ID: id,
		Do: func() (any, error) {
			fn()
			return nil, nil
		},
	})
}

// Inline is a ThreadPool that runs every task on the caller's goroutine.
type Inline struct{}

// Go runs fn immediately.
func (Inline) Go(fn func()) { fn() }
