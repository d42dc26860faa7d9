package kernel

import "github.com/gogpu/deepzoom/internal/fixed"

// worker is the private scratch of one task: an arena holding the decoded
// viewport and the iterator slots. A worker is used by one goroutine at a
// time and reused across tiles and passes of the same word count.
type worker struct {
	arena            *fixed.Arena
	originX, originY fixed.Num
	step             fixed.Num
	it               *Iterator
}

const viewportSlots = 3

func newWorker(wordCount int, s Strategy) (*worker, error) {
	a, err := fixed.NewArena(wordCount, viewportSlots+Slots(s))
	if err != nil {
		return nil, err
	}
	return &worker{
		arena:   a,
		originX: a.Slot(0),
		originY: a.Slot(1),
		step:    a.Slot(2),
		it:      NewIterator(a, viewportSlots, s),
	}, nil
}

// load decodes the viewport of p into the arena.
func (w *worker) load(p *Params) {
	fixed.Copy(w.originX, p.OriginX)
	fixed.Copy(w.originY, p.OriginY)
	fixed.Copy(w.step, p.Step)
}

// pixel advances pixel (px, py) to the depth limit of p and stores its
// checkpoint. It reports whether the pixel has escaped below the limit,
// after which no deeper pass can change it.
func (w *worker) pixel(p *Params, b *Buffers, px, py int) bool {
	it := w.it
	fixed.Add(fixed.MulWord(fixed.Copy(it.CX, w.step), uint32(px)), w.originX)
	fixed.Add(fixed.MulWord(fixed.Copy(it.CY, w.step), uint32(py)), w.originY)

	idx := py*b.width + px
	x, y := b.orbit(idx)

	var i uint32
	if p.Reset {
		fixed.Copy(it.X, it.CX)
		fixed.Copy(it.Y, it.CY)
	} else {
		fixed.Copy(it.X, x)
		fixed.Copy(it.Y, y)
		i = b.Iterations[idx]
	}

	i = it.Iterate(i, p.DepthLimit)

	b.Iterations[idx] = i
	fixed.Copy(x, it.X)
	fixed.Copy(y, it.Y)
	return i < p.DepthLimit
}
