package deepzoom

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/deepzoom/internal/color"
	"github.com/gogpu/deepzoom/internal/fixed"
	"github.com/gogpu/deepzoom/internal/kernel"
	"github.com/gogpu/deepzoom/internal/parallel"
)

// ErrClosed is returned by Step after Close.
var ErrClosed = errors.New("deepzoom: session closed")

// Stats describes one Step.
type Stats = kernel.Stats

// Session renders one view progressively.
//
// The first Step after a view change resets every pixel; later steps
// resume deeper until MaxDepth. Views coarse enough for float32 are
// rendered in one step by the fast path instead.
//
// Thread safety: a Session is not safe for concurrent use, except that
// Close may be called from any goroutine.
type Session struct {
	opts options

	outWidth, outHeight int

	view     *Viewport
	viewGen  uint64
	balancer *Balancer
	palette  Palette

	pool   *parallel.WorkerPool
	runner *kernel.Runner
	accel  PassAccelerator

	buffers *kernel.Buffers
	calib   *kernel.Buffers
	counts  []uint32 // fast path output

	fast     bool // counts come from the fast path
	depth    uint32
	maxDepth uint32
	rendered bool // the fast path has finished the current view
	stale    bool // progress must be discarded on the next Step

	pixmap  *Pixmap // grid resolution
	output  *Pixmap // output resolution when scaled
	dirty   bool    // counts changed since the last colorize
	scaled  bool
	overlay *Overlay

	closeOnce sync.Once
	closed    atomic.Bool
}

// NewSession creates a session for an output image of width×height pixels.
func NewSession(width, height int, opts ...Option) (*Session, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", kernel.ErrEmptyGrid, width, height)
	}
	o.scale = max(o.scale, 1)
	if math.IsNaN(o.scale) || math.IsInf(o.scale, 0) {
		return nil, fmt.Errorf("deepzoom: invalid scale %g", o.scale)
	}

	pal := o.palette
	if pal == nil {
		p, err := color.Preset(color.DefaultPreset, 0)
		if err != nil {
			return nil, err
		}
		pal = &p
	}
	if err := pal.Validate(); err != nil {
		return nil, err
	}

	gw, gh := gridSize(width, height, o.scale)
	view, err := NewViewport(gw, gh, o.wordCount)
	if err != nil {
		return nil, err
	}
	view.SetAutoPrecision(o.autoPrecision, o.extraBits)

	s := &Session{
		opts:      o,
		outWidth:  width,
		outHeight: height,
		view:      view,
		balancer:  NewBalancer(o.frameBudget),
		palette:   *pal,
		pool:      parallel.NewWorkerPool(o.workers),
		maxDepth:  o.maxDepth,
	}
	s.runner = kernel.NewRunner(s.pool, o.strategy)

	if o.overlaySize > 0 {
		ov, err := NewOverlay(o.overlaySize)
		if err != nil {
			s.pool.Close()
			return nil, err
		}
		s.overlay = ov
	}

	if o.gpu {
		if a := Accelerator(); a != nil {
			s.accel = a
			Logger().Info("deepzoom: passes on accelerator", "name", a.Name())
		} else {
			Logger().Warn("deepzoom: GPU requested but no accelerator registered")
		}
	}
	Logger().Debug("deepzoom: session created",
		"output", fmt.Sprintf("%dx%d", width, height),
		"grid", fmt.Sprintf("%dx%d", gw, gh),
		"workers", s.pool.Workers(),
		"words", view.WordCount())
	return s, nil
}

// gridSize is the computed resolution for an output size at scale.
func gridSize(width, height int, scale float64) (int, int) {
	gw := max(int(math.Round(float64(width)/scale)), 1)
	gh := max(int(math.Round(float64(height)/scale)), 1)
	return min(gw, kernel.MaxGridSide), min(gh, kernel.MaxGridSide)
}

// Close stops the worker pool and releases the overlay font. The
// registered accelerator is shared and stays open.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.pool.Close()
		if s.overlay != nil {
			_ = s.overlay.Close()
		}
	})
}

// Viewport returns the view. Changes to it restart the render on the next
// Step.
func (s *Session) Viewport() *Viewport { return s.view }

// Balancer returns the pass scheduler.
func (s *Session) Balancer() *Balancer { return s.balancer }

// Size returns the output image size.
func (s *Session) Size() (width, height int) { return s.outWidth, s.outHeight }

// Resize changes the output image size. The view keeps its centre; all
// timings are forgotten since the cost per pass changes.
func (s *Session) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", kernel.ErrEmptyGrid, width, height)
	}
	gw, gh := gridSize(width, height, s.opts.scale)
	if err := s.view.Resize(gw, gh); err != nil {
		return err
	}
	s.outWidth, s.outHeight = width, height
	s.balancer.Reset()
	return nil
}

// Depth returns the iteration depth reached for the current view.
func (s *Session) Depth() uint32 {
	if s.view.Generation() != s.viewGen || s.stale {
		return 0
	}
	return s.depth
}

// MaxDepth returns the depth progressive rendering stops at.
func (s *Session) MaxDepth() uint32 { return s.maxDepth }

// SetMaxDepth changes the depth progressive rendering stops at. Raising it
// continues from the depth reached; lowering it below that depth restarts.
func (s *Session) SetMaxDepth(depth uint32) {
	depth = max(depth, 1)
	if depth < s.depth || s.fast {
		s.stale = true
	}
	s.maxDepth = depth
}

// Palette returns the palette used by Image.
func (s *Session) Palette() Palette { return s.palette }

// SetPalette replaces the palette. Only coloring is redone.
func (s *Session) SetPalette(p Palette) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.palette = p
	s.dirty = true
	return nil
}

// FastPath reports whether the current view is rendered by the float32 path.
func (s *Session) FastPath() bool {
	return s.opts.fastPath && s.view.StepFloat() >= kernel.FastPathMinStep
}

// Done reports whether the current view has reached its final depth.
func (s *Session) Done() bool {
	if s.view.Generation() != s.viewGen || s.stale {
		return false
	}
	if s.fast {
		return s.rendered
	}
	return s.depth >= s.maxDepth
}

// restart forgets the progress of the previous view.
func (s *Session) restart() {
	s.viewGen = s.view.Generation()
	s.stale = false
	s.depth = 0
	s.rendered = false
	s.fast = s.FastPath()
	if s.buffers != nil {
		s.buffers.Invalidate()
	}
}

// Step runs one pass and returns its statistics. It returns immediately
// with zero Stats when Done.
//
// If ctx is cancelled mid-pass, ctx.Err() is returned and the next Step
// starts the view over.
func (s *Session) Step(ctx context.Context) (Stats, error) {
	if s.closed.Load() {
		return Stats{}, ErrClosed
	}
	if s.view.Generation() != s.viewGen || s.stale {
		s.restart()
	}
	if s.Done() {
		return Stats{}, nil
	}
	if s.fast {
		return s.stepFast(ctx)
	}
	return s.stepWide(ctx)
}

func (s *Session) fastLimit() uint32 {
	limit := s.opts.fastIterations
	if limit == 0 {
		limit = kernel.DefaultFastIterations
	}
	return min(limit, s.maxDepth)
}

func (s *Session) stepFast(ctx context.Context) (Stats, error) {
	w, h := s.view.Size()
	if len(s.counts) != w*h {
		s.counts = make([]uint32, w*h)
	}
	ox, oy := s.view.OriginFloat()
	p := kernel.FastParams{
		OriginX:       ox,
		OriginY:       oy,
		Step:          s.view.StepFloat(),
		Width:         w,
		Height:        h,
		MaxIterations: s.fastLimit(),
	}
	st := Stats{Tiles: parallel.NewTileGrid(w, h).TileCount(), Pixels: w * h}
	start := time.Now()
	if err := kernel.RunFast(ctx, s.pool, &p, s.counts); err != nil {
		s.stale = true
		return Stats{}, err
	}
	st.Elapsed = time.Since(start)
	s.depth = p.MaxIterations
	s.rendered = true
	s.dirty = true
	Logger().Debug("deepzoom: fast pass", "depth", s.depth, "elapsed", st.Elapsed)
	return st, nil
}

// ensureBuffers reallocates the checkpoint when the grid or the word
// count changed.
func ensureBuffers(b *kernel.Buffers, w, h, wc int) (*kernel.Buffers, error) {
	if b != nil && b.Width() == w && b.Height() == h && b.WordCount() == wc {
		return b, nil
	}
	nb, err := kernel.NewBuffers(w, h, wc)
	if err != nil {
		return nil, err
	}
	Logger().Debug("deepzoom: checkpoint allocated",
		"grid", fmt.Sprintf("%dx%d", w, h), "words", wc,
		"bytes", 4*(len(nb.Iterations)+len(nb.Intermediate)))
	return nb, nil
}

func (s *Session) stepWide(ctx context.Context) (Stats, error) {
	w, h := s.view.Size()
	wc := s.view.WordCount()
	b, err := ensureBuffers(s.buffers, w, h, wc)
	if err != nil {
		return Stats{}, err
	}
	s.buffers = b

	var p kernel.Params
	s.view.params(&p)
	presentation := false
	if s.depth == 0 || !b.Ready() {
		present := s.balancer.PresentIterations(wc)
		p.Reset = true
		p.DepthLimit = min(present, s.maxDepth)
		presentation = p.DepthLimit == present
	} else {
		p.DepthLimit = s.depth + min(s.balancer.Increment(), s.maxDepth-s.depth)
	}

	st, err := s.runPass(ctx, &p, b)
	if err != nil {
		b.Invalidate()
		s.depth = 0
		if ctx.Err() != nil {
			Logger().Warn("deepzoom: pass discarded", "depth", p.DepthLimit, "err", err)
		}
		return st, err
	}
	s.depth = p.DepthLimit
	s.dirty = true

	switch {
	case presentation:
		s.balancer.ObservePresentation(wc, st.Elapsed)
	case !p.Reset:
		s.balancer.ObserveIteration(st.Elapsed)
	}
	Logger().Debug("deepzoom: pass",
		"depth", p.DepthLimit, "reset", p.Reset, "tiles", st.Tiles,
		"active", st.Active, "elapsed", st.Elapsed)

	if s.opts.calibrate && !s.balancer.Calibrated(wc) {
		if err := s.calibrate(ctx, w, h, wc); err != nil {
			if ctx.Err() != nil {
				return st, err
			}
			Logger().Warn("deepzoom: calibration failed", "err", err)
		}
	}
	return st, nil
}

// runPass runs p on the accelerator when there is one. ErrFallbackToCPU
// sends a single pass to the CPU runner; any other accelerator failure
// sends all later passes there too.
func (s *Session) runPass(ctx context.Context, p *kernel.Params, b *kernel.Buffers) (Stats, error) {
	if s.accel != nil {
		st, err := s.accel.RunPass(ctx, p, b)
		if err == nil || ctx.Err() != nil {
			return st, err
		}
		if errors.Is(err, ErrFallbackToCPU) {
			return s.runner.RunPass(ctx, p, b)
		}
		Logger().Warn("deepzoom: accelerator failed, using CPU", "name", s.accel.Name(), "err", err)
		s.accel = nil
	}
	return s.runner.RunPass(ctx, p, b)
}

// calibrationView returns the step and origin that fit a w×h grid inside
// the calibration rectangle.
func calibrationView(w, h, wc int) (ox, oy, step fixed.Num, err error) {
	if ox, err = fixed.Parse(CalibrationX, wc); err != nil {
		return nil, nil, nil, err
	}
	if oy, err = fixed.Parse(CalibrationY, wc); err != nil {
		return nil, nil, nil, err
	}
	height := -2 * oy.Float64()
	width := height * 16 / 10
	step, err = fixed.FromFloat64(min(width/float64(w), height/float64(h)), wc)
	return ox, oy, step, err
}

// calibrate times one pass over the calibration rectangle, where every
// pixel runs to the full depth.
func (s *Session) calibrate(ctx context.Context, w, h, wc int) error {
	b, err := ensureBuffers(s.calib, w, h, wc)
	if err != nil {
		return err
	}
	s.calib = b

	ox, oy, step, err := calibrationView(w, h, wc)
	if err != nil {
		return err
	}
	p := kernel.Params{
		DepthLimit: s.balancer.CalibrationDepth(wc),
		Reset:      true,
		Width:      w,
		Height:     h,
		OriginX:    ox,
		OriginY:    oy,
		Step:       step,
	}
	st, err := s.runPass(ctx, &p, b)
	if err != nil {
		return err
	}
	s.balancer.ObserveCalibration(wc, st.Elapsed)
	return nil
}

// Counts returns the iteration counts of the current view, row-major at
// grid resolution. The slice is owned by the session and valid until the
// next Step.
func (s *Session) Counts() []uint32 {
	if s.fast {
		return s.counts
	}
	if s.buffers == nil {
		return nil
	}
	return s.buffers.Iterations
}
