package starlark

import (
	"sync"

	"go.starlark.net/starlark"
)

// DefaultMaxSteps bounds the work a single evaluation may perform.
const DefaultMaxSteps = 1_000_000

// ThreadPool manages a pool of Starlark threads for concurrent evaluation.
// Every thread it hands out carries the pool's execution step limit.
type ThreadPool struct {
	mu       sync.Mutex
	threads  []*starlark.Thread
	maxSize  int
	maxSteps uint64
}

// NewThreadPool creates a new thread pool with the specified maximum size
// and the default step limit.
func NewThreadPool(maxSize int) *ThreadPool {
	return NewThreadPoolWithLimit(maxSize, DefaultMaxSteps)
}

// NewThreadPoolWithLimit creates a pool whose threads abort after maxSteps
// computation steps. A zero limit means unlimited.
func NewThreadPoolWithLimit(maxSize int, maxSteps uint64) *ThreadPool {
	if maxSize <= 0 {
		maxSize = 10 // default pool size
	}
	return &ThreadPool{
		threads:  make([]*starlark.Thread, 0, maxSize),
		maxSize:  maxSize,
		maxSteps: maxSteps,
	}
}

// Get retrieves a thread from the pool or creates a new one.
// The thread name is used for error reporting.
func (p *ThreadPool) Get(name string) *starlark.Thread {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.threads) > 0 {
		thread := p.threads[len(p.threads)-1]
		p.threads = p.threads[:len(p.threads)-1]
		thread.Name = name
		return thread
	}

	thread := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, _ string) {
			// Expressions have no output channel
		},
	}
	if p.maxSteps > 0 {
		thread.SetMaxExecutionSteps(p.maxSteps)
	}
	return thread
}

// Put returns a thread to the pool for reuse.
// Step counters and cancellation are reset; if the pool is full the thread
// is discarded.
func (p *ThreadPool) Put(thread *starlark.Thread) {
	if thread == nil {
		return
	}
	thread.Name = ""
	thread.Steps = 0
	thread.Uncancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.threads) < p.maxSize {
		p.threads = append(p.threads, thread)
	}
}

// Size returns the current number of threads in the pool.
func (p *ThreadPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.threads)
}

// Call runs fn on a pooled thread and returns the thread afterwards.
func (p *ThreadPool) Call(name string, fn starlark.Value, args starlark.Tuple) (starlark.Value, error) {
	thread := p.Get(name)
	defer p.Put(thread)
	return starlark.Call(thread, fn, args, nil)
}
