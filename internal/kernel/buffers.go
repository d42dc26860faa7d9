package kernel

import (
	"fmt"

	"github.com/gogpu/deepzoom/internal/fixed"
	"github.com/gogpu/deepzoom/internal/parallel"
)

type checkpointState int

const (
	stateEmpty checkpointState = iota
	stateReady
)

// Buffers is the per-pixel checkpoint store: the iteration count reached
// and the orbit (x, y) at that count, for every pixel of a grid at one word
// count. It persists across passes and is replaced when the grid size or
// the word count changes.
type Buffers struct {
	width, height, wordCount int

	// Iterations holds one count per pixel, row-major.
	Iterations []uint32

	// Intermediate holds 2·wordCount words per pixel: x then y.
	Intermediate []fixed.Word

	tiles *parallel.TileGrid
	depth uint32
	state checkpointState
}

// NewBuffers allocates checkpoint storage for a width×height grid.
func NewBuffers(width, height, wordCount int) (*Buffers, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrEmptyGrid, width, height)
	}
	if !fixed.ValidWordCount(wordCount) {
		return nil, fmt.Errorf("%w: %d", fixed.ErrWordCount, wordCount)
	}
	n := width * height
	return &Buffers{
		width:        width,
		height:       height,
		wordCount:    wordCount,
		Iterations:   make([]uint32, n),
		Intermediate: make([]fixed.Word, 2*wordCount*n),
		tiles:        parallel.NewTileGrid(width, height),
	}, nil
}

// Restore rebuilds buffers from stored contents, as loaded from a snapshot.
// The buffers are ready for resume passes at depth limits of at least depth.
func Restore(width, height, wordCount int, depth uint32, iterations []uint32, intermediate []fixed.Word) (*Buffers, error) {
	b, err := NewBuffers(width, height, wordCount)
	if err != nil {
		return nil, err
	}
	if len(iterations) != len(b.Iterations) || len(intermediate) != len(b.Intermediate) {
		return nil, fmt.Errorf("%w: %d counts, %d orbit words for %dx%d at %d words",
			ErrBufferSize, len(iterations), len(intermediate), width, height, wordCount)
	}
	copy(b.Iterations, iterations)
	copy(b.Intermediate, intermediate)
	b.depth = depth
	b.state = stateReady
	b.RefreshActive()
	return b, nil
}

// Width returns the grid width.
func (b *Buffers) Width() int { return b.width }

// Height returns the grid height.
func (b *Buffers) Height() int { return b.height }

// WordCount returns the word count of the stored orbits.
func (b *Buffers) WordCount() int { return b.wordCount }

// Depth returns the depth limit of the latest pass that was started.
func (b *Buffers) Depth() uint32 { return b.depth }

// Ready reports whether the buffers hold a checkpoint that can be resumed.
func (b *Buffers) Ready() bool { return b.state == stateReady }

// Tiles returns the tile grid used to schedule passes over these buffers.
func (b *Buffers) Tiles() *parallel.TileGrid { return b.tiles }

// Invalidate forgets the stored checkpoint so the next pass must reset.
func (b *Buffers) Invalidate() {
	b.state = stateEmpty
	b.tiles.MarkAllActive()
}

// orbit returns the stored x and y of pixel idx.
func (b *Buffers) orbit(idx int) (x, y fixed.Num) {
	off := 2 * b.wordCount * idx
	x = fixed.Num(b.Intermediate[off : off+b.wordCount : off+b.wordCount])
	y = fixed.Num(b.Intermediate[off+b.wordCount : off+2*b.wordCount : off+2*b.wordCount])
	return x, y
}

// Check reports whether a pass with p may run against b.
func (b *Buffers) Check(p *Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.WordCount() != b.wordCount {
		return fmt.Errorf("%w: pass has %d words, checkpoint %d", ErrWordCountMismatch, p.WordCount(), b.wordCount)
	}
	if p.Width != b.width || p.Height != b.height {
		return fmt.Errorf("%w: pass is %dx%d, buffers %dx%d", ErrBufferSize, p.Width, p.Height, b.width, b.height)
	}
	if len(b.Iterations) != b.width*b.height || len(b.Intermediate) != 2*b.wordCount*b.width*b.height {
		return fmt.Errorf("%w: storage resized externally", ErrBufferSize)
	}
	if p.Reset {
		return nil
	}
	if b.state != stateReady {
		return ErrNoCheckpoint
	}
	if p.DepthLimit < b.depth {
		return fmt.Errorf("%w: %d after %d", ErrDepthDecreased, p.DepthLimit, b.depth)
	}
	return nil
}

// Begin validates p and records the pass as started. A reset pass makes
// every tile active again.
func (b *Buffers) Begin(p *Params) error {
	if err := b.Check(p); err != nil {
		return err
	}
	b.depth = p.DepthLimit
	if p.Reset {
		b.state = stateEmpty
		b.tiles.MarkAllActive()
	}
	return nil
}

// Finish records the outcome of a pass started with Begin. A failed reset
// pass leaves a mix of old and new pixels, so the checkpoint is dropped; a
// failed resume pass leaves every pixel at a consistent state between the
// old and the new depth and stays resumable.
func (b *Buffers) Finish(p *Params, err error) {
	switch {
	case err == nil:
		b.state = stateReady
	case p.Reset:
		b.state = stateEmpty
		b.tiles.MarkAllActive()
	}
}

// RefreshActive recomputes tile activity from the stored counts, for
// contents written outside RunPass (snapshot restore, GPU readback).
func (b *Buffers) RefreshActive() {
	b.tiles.ForEach(func(t *parallel.Tile) {
		t.Active = false
		t.ForEachPixel(func(px, py int) {
			if b.Iterations[py*b.width+px] >= b.depth {
				t.Active = true
			}
		})
	})
}
