package kernel

import (
	"context"
	"fmt"

	"github.com/gogpu/deepzoom/internal/parallel"
	"github.com/gogpu/deepzoom/internal/wide"
)

// FastPathMinStep is the smallest pixel step the float32 path is used for.
// Below it neighbouring pixels stop being distinguishable in float32.
const FastPathMinStep = 1.0 / (1 << 20)

// DefaultFastIterations is the fixed iteration limit of the fast path.
const DefaultFastIterations = 1024

// FastParams describes a float32 render. There is no checkpoint: the whole
// escape computation completes in one call.
type FastParams struct {
	OriginX, OriginY float64
	Step             float64
	Width, Height    int
	MaxIterations    uint32
}

// Validate checks the grid and step.
func (p *FastParams) Validate() error {
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrEmptyGrid, p.Width, p.Height)
	}
	if !(p.Step > 0) {
		return ErrStep
	}
	return nil
}

// RunFast computes iteration counts for the whole grid into out, eight
// pixels per batch. Counts use the same convention as the wide path
// (the orbit starts at c and each step below the bailout adds one), but
// values are only expected to agree visually.
func RunFast(ctx context.Context, pool *parallel.WorkerPool, p *FastParams, out []uint32) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if len(out) != p.Width*p.Height {
		return fmt.Errorf("%w: %d counts for %dx%d", ErrBufferSize, len(out), p.Width, p.Height)
	}
	limit := p.MaxIterations
	if limit == 0 {
		limit = DefaultFastIterations
	}

	grid := parallel.NewTileGrid(p.Width, p.Height)
	tasks := make([]func(), 0, grid.TileCount())
	grid.ForEach(func(tile *parallel.Tile) {
		tasks = append(tasks, func() {
			x0, y0, w, h := tile.Bounds()
			for py := y0; py < y0+h; py++ {
				cy := wide.SplatF32(float32(p.OriginY + p.Step*float64(py)))
				row := out[py*p.Width : (py+1)*p.Width]
				for px := x0; px < x0+w; px += wide.Lanes {
					n := min(wide.Lanes, x0+w-px)
					var cx wide.F32x8
					for l := range n {
						cx[l] = float32(p.OriginX + p.Step*float64(px+l))
					}
					counts := escapeBatch(cx, cy, n, limit)
					copy(row[px:px+n], counts[:n])
				}
			}
		})
	})
	return pool.Run(ctx, tasks)
}

// escapeBatch iterates the first n lanes of c up to limit.
func escapeBatch(cx, cy wide.F32x8, n int, limit uint32) wide.U32x8 {
	var live wide.Mask8
	for l := range n {
		live[l] = true
	}

	four := wide.SplatF32(4)
	x, y := cx, cy
	var count wide.U32x8
	for range limit {
		x2, y2 := x.Mul(x), y.Mul(y)
		live = live.And(x2.Add(y2).Less(four))
		if !live.Any() {
			break
		}
		xy := x.Mul(y)
		x = x2.Sub(y2).Add(cx).Select(live, x)
		y = xy.Add(xy).Add(cy).Select(live, y)
		count = count.IncMasked(live)
	}
	return count
}
