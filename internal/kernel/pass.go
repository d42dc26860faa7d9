package kernel

import (
	"context"
	"sync"
	"time"

	"github.com/gogpu/deepzoom/internal/parallel"
)

// Stats describes a finished pass.
type Stats struct {
	// Tiles is the number of tiles computed; inactive tiles are skipped.
	Tiles int

	// Pixels is the number of pixels computed.
	Pixels int

	// Active is the number of tiles that may still change at a higher depth.
	Active int

	// Elapsed is the wall time of the pass.
	Elapsed time.Duration
}

// Runner executes passes on a WorkerPool.
//
// Thread safety: a Runner may serve several buffers concurrently, but passes
// against the same Buffers must be sequential.
type Runner struct {
	pool     *parallel.WorkerPool
	strategy Strategy

	mu      sync.Mutex
	workers map[int]*parallel.ScratchPool[*worker]
}

// NewRunner creates a runner that schedules tiles on pool.
func NewRunner(pool *parallel.WorkerPool, s Strategy) *Runner {
	return &Runner{
		pool:     pool,
		strategy: s,
		workers:  make(map[int]*parallel.ScratchPool[*worker]),
	}
}

// Strategy returns the iteration strategy of the runner.
func (r *Runner) Strategy() Strategy { return r.strategy }

func (r *Runner) scratch(wordCount int) *parallel.ScratchPool[*worker] {
	r.mu.Lock()
	defer r.mu.Unlock()

	sp, ok := r.workers[wordCount]
	if !ok {
		s := r.strategy
		sp = parallel.NewScratchPool(func() *worker {
			// wordCount was validated before any pass gets here.
			w, err := newWorker(wordCount, s)
			if err != nil {
				panic(err)
			}
			return w
		})
		r.workers[wordCount] = sp
	}
	return sp
}

// RunPass advances every active tile of b to the depth limit of p.
//
// Everything is validated before any pixel is touched. The pass returns
// once all tiles are written. If ctx is cancelled, tiles not yet started
// are skipped and ctx.Err() is returned; see Buffers.Finish for what that
// leaves behind.
func (r *Runner) RunPass(ctx context.Context, p *Params, b *Buffers) (Stats, error) {
	if err := b.Begin(p); err != nil {
		return Stats{}, err
	}
	start := time.Now()

	tiles := b.tiles.ActiveTiles()
	sp := r.scratch(p.WordCount())

	tasks := make([]func(), len(tiles))
	for i, tile := range tiles {
		tasks[i] = func() {
			w := sp.Get()
			defer sp.Put(w)
			w.load(p)

			active := false
			tile.ForEachPixel(func(px, py int) {
				if !w.pixel(p, b, px, py) {
					active = true
				}
			})
			tile.Active = active
		}
	}

	err := r.pool.Run(ctx, tasks)
	b.Finish(p, err)

	st := Stats{Tiles: len(tiles), Active: b.tiles.ActiveCount(), Elapsed: time.Since(start)}
	for _, t := range tiles {
		st.Pixels += t.Pixels()
	}
	return st, err
}
