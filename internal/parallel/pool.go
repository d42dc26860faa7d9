package parallel

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrPoolClosed is returned by Run after Close.
var ErrPoolClosed = errors.New("parallel: worker pool is closed")

// WorkerPool runs pixel tasks on a fixed set of goroutines.
//
// Every worker owns a queue; an idle worker steals from the others, which
// evens out tiles of very different cost (an interior tile runs to the
// depth limit while a tile outside the set escapes in a few iterations).
//
// Thread safety: WorkerPool is safe for concurrent use.
type WorkerPool struct {
	workers int
	queues  []chan func()
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool

	// mu orders submissions before the close of done: a task sent while
	// the read lock is held is seen by its worker's final drain.
	mu sync.RWMutex
}

// NewWorkerPool starts a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// A few queued tasks per worker keep workers busy while Run is still
	// distributing.
	queueSize := max(workers*4, 8)

	p := &WorkerPool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan func(), queueSize)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	own := p.queues[id]
	for {
		select {
		case <-p.done:
			p.drain(own)
			return
		case task := <-own:
			task()
			continue
		default:
		}

		if task := p.steal(id); task != nil {
			task()
			continue
		}

		select {
		case <-p.done:
			p.drain(own)
			return
		case task := <-own:
			task()
		}
	}
}

func (p *WorkerPool) drain(queue chan func()) {
	for {
		select {
		case task := <-queue:
			task()
		default:
			return
		}
	}
}

// steal takes one task from another worker's queue, or returns nil.
func (p *WorkerPool) steal(id int) func() {
	for i := range p.workers {
		if i == id {
			continue
		}
		select {
		case task := <-p.queues[i]:
			return task
		default:
		}
	}
	return nil
}

// Run executes tasks across the workers and waits for all of them.
//
// Once ctx is done, tasks that have not started yet are skipped and Run
// returns ctx.Err() after the running ones finish. Tasks never observe a
// partially cancelled state of each other: a task either runs to completion
// or not at all.
func (p *WorkerPool) Run(ctx context.Context, tasks []func()) error {
	if !p.running.Load() {
		return ErrPoolClosed
	}
	if len(tasks) == 0 {
		return ctx.Err()
	}

	var wg sync.WaitGroup
	wg.Add(len(tasks))

	// abandon accounts for tasks i.. that will never be queued.
	abandon := func(i int, err error) error {
		wg.Add(-(len(tasks) - i))
		wg.Wait()
		return err
	}

	for i, fn := range tasks {
		wrapped := func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			fn()
		}

		p.mu.RLock()
		if !p.running.Load() {
			p.mu.RUnlock()
			return abandon(i, ErrPoolClosed)
		}
		select {
		case p.queues[i%p.workers] <- wrapped:
			p.mu.RUnlock()
		case <-ctx.Done():
			p.mu.RUnlock()
			return abandon(i, ctx.Err())
		}
	}

	wg.Wait()
	if !p.running.Load() {
		return ErrPoolClosed
	}
	return ctx.Err()
}

// ExecuteAll runs work to completion without cancellation.
// It is a no-op on a closed pool.
func (p *WorkerPool) ExecuteAll(work []func()) {
	_ = p.Run(context.Background(), work)
}

// Close stops accepting work, finishes what is queued and stops the
// workers. Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if !p.running.CompareAndSwap(true, false) {
		p.mu.Unlock()
		return
	}
	close(p.done)
	p.mu.Unlock()
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// IsRunning reports whether the pool still accepts work.
func (p *WorkerPool) IsRunning() bool {
	return p.running.Load()
}

// QueuedWork approximates the number of tasks waiting in the queues.
func (p *WorkerPool) QueuedWork() int {
	total := 0
	for _, q := range p.queues {
		total += len(q)
	}
	return total
}
