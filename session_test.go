package deepzoom

import (
	"context"
	"errors"
	"testing"

	"github.com/gogpu/deepzoom/internal/kernel"
	"github.com/gogpu/deepzoom/internal/parallel"
)

func wideTestSession(t *testing.T, w, h int, opts ...Option) *Session {
	t.Helper()
	base := []Option{
		WithWordCount(3),
		WithAutoPrecision(false),
		WithFastPath(false),
		WithCalibration(false),
		WithMaxDepth(64),
		WithWorkers(2),
	}
	s, err := NewSession(w, h, append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewSession() = %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

// referenceCounts computes the view of s in one reset pass to depth.
func referenceCounts(t *testing.T, s *Session, depth uint32) []uint32 {
	t.Helper()
	w, h := s.Viewport().Size()
	b, err := kernel.NewBuffers(w, h, s.Viewport().WordCount())
	if err != nil {
		t.Fatal(err)
	}
	pool := parallel.NewWorkerPool(2)
	defer pool.Close()

	p := kernel.Params{DepthLimit: depth, Reset: true}
	s.Viewport().params(&p)
	if _, err := kernel.NewRunner(pool, kernel.StrategyIdentity).RunPass(context.Background(), &p, b); err != nil {
		t.Fatalf("reference RunPass() = %v", err)
	}
	return b.Iterations
}

// =============================================================================
// Construction
// =============================================================================

func TestNewSessionErrors(t *testing.T) {
	if _, err := NewSession(0, 10); !errors.Is(err, kernel.ErrEmptyGrid) {
		t.Errorf("NewSession(0, 10) = %v, want ErrEmptyGrid", err)
	}
	if _, err := NewSession(10, 10, WithWordCount(1)); err == nil {
		t.Error("NewSession with one word succeeded")
	}
}

func TestNewSessionScale(t *testing.T) {
	s, err := NewSession(64, 48, WithScale(2), WithWorkers(1))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if w, h := s.Viewport().Size(); w != 32 || h != 24 {
		t.Errorf("grid = %dx%d, want 32x24", w, h)
	}
	if w, h := s.Size(); w != 64 || h != 48 {
		t.Errorf("Size() = %dx%d, want 64x48", w, h)
	}

	// Scales below one compute at full resolution.
	s2, err := NewSession(10, 10, WithScale(0.25), WithWorkers(1))
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	if w, h := s2.Viewport().Size(); w != 10 || h != 10 {
		t.Errorf("grid = %dx%d, want 10x10", w, h)
	}
}

func TestGridSize(t *testing.T) {
	tests := []struct {
		w, h   int
		scale  float64
		gw, gh int
	}{
		{100, 50, 1, 100, 50},
		{100, 50, 3, 33, 17},
		{3, 3, 10, 1, 1},
		{1 << 20, 8, 1, kernel.MaxGridSide, 8},
	}
	for _, tt := range tests {
		gw, gh := gridSize(tt.w, tt.h, tt.scale)
		if gw != tt.gw || gh != tt.gh {
			t.Errorf("gridSize(%d, %d, %g) = %dx%d, want %dx%d", tt.w, tt.h, tt.scale, gw, gh, tt.gw, tt.gh)
		}
	}
}

// =============================================================================
// Progressive rendering
// =============================================================================

func TestSessionProgressiveMatchesSinglePass(t *testing.T) {
	s := wideTestSession(t, 24, 16)
	if err := s.Viewport().SetCenter("-0.75", "0.1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Viewport().Zoom(3); err != nil {
		t.Fatal(err)
	}

	steps := 0
	for !s.Done() {
		st, err := s.Step(context.Background())
		if err != nil {
			t.Fatalf("Step() = %v", err)
		}
		if st.Pixels == 0 && st.Tiles > 0 {
			t.Errorf("step %d computed tiles without pixels", steps)
		}
		steps++
		if steps > 1000 {
			t.Fatal("session did not finish")
		}
	}
	if s.Depth() != 64 {
		t.Errorf("Depth() = %d, want 64", s.Depth())
	}

	want := referenceCounts(t, s, 64)
	got := s.Counts()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("count[%d] = %d, want %d", i, got[i], want[i])
		}
	}

	// Done sessions do nothing.
	st, err := s.Step(context.Background())
	if err != nil || st != (Stats{}) {
		t.Errorf("Step() on done session = %+v, %v", st, err)
	}
}

func TestSessionFirstStepIsPresentation(t *testing.T) {
	s := wideTestSession(t, 16, 16)
	if _, err := s.Step(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := s.Depth(); got != PresentationDefault {
		t.Errorf("Depth() after first step = %d, want %d", got, PresentationDefault)
	}
	if s.Done() {
		t.Error("Done() after first step")
	}
}

func TestSessionViewChangeRestarts(t *testing.T) {
	s := wideTestSession(t, 16, 16, WithMaxDepth(12))
	for !s.Done() {
		if _, err := s.Step(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Viewport().Pan(3, 0); err != nil {
		t.Fatal(err)
	}
	if s.Done() {
		t.Error("Done() after a view change")
	}
	if s.Depth() != 0 {
		t.Errorf("Depth() after a view change = %d, want 0", s.Depth())
	}
	if _, err := s.Step(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := s.Depth(); got == 0 || got > 12 {
		t.Errorf("Depth() = %d, want a presentation pass of at most 12", got)
	}
	want := referenceCounts(t, s, s.Depth())
	for i, c := range s.Counts() {
		if c != want[i] {
			t.Fatalf("count[%d] = %d, want %d", i, c, want[i])
		}
	}
}

func TestSessionSetMaxDepth(t *testing.T) {
	s := wideTestSession(t, 16, 16, WithMaxDepth(20))
	for !s.Done() {
		if _, err := s.Step(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	// Raising continues from the depth reached.
	s.SetMaxDepth(40)
	if s.Done() {
		t.Fatal("Done() after raising the maximum")
	}
	if s.Depth() != 20 {
		t.Errorf("Depth() = %d, want 20", s.Depth())
	}
	if _, err := s.Step(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.Depth() <= 20 {
		t.Errorf("Depth() = %d after resuming, want more than 20", s.Depth())
	}

	// Lowering below the depth reached starts over.
	s.SetMaxDepth(5)
	if s.Depth() != 0 {
		t.Errorf("Depth() = %d after lowering, want 0", s.Depth())
	}
	if _, err := s.Step(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.Depth() != 5 || !s.Done() {
		t.Errorf("Depth() = %d, Done() = %v, want 5 and done", s.Depth(), s.Done())
	}
}

func TestSessionCancelledStep(t *testing.T) {
	s := wideTestSession(t, 16, 16)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Step(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Step() = %v, want context.Canceled", err)
	}
	if s.Depth() != 0 {
		t.Errorf("Depth() after cancel = %d, want 0", s.Depth())
	}
	if _, err := s.Step(context.Background()); err != nil {
		t.Fatalf("Step() after cancel = %v", err)
	}
	want := referenceCounts(t, s, s.Depth())
	for i, c := range s.Counts() {
		if c != want[i] {
			t.Fatalf("count[%d] = %d, want %d", i, c, want[i])
		}
	}
}

func TestSessionClosed(t *testing.T) {
	s := wideTestSession(t, 8, 8)
	s.Close()
	s.Close()
	if _, err := s.Step(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Step() after Close = %v, want ErrClosed", err)
	}
}

func TestSessionCloseWhileStepping(t *testing.T) {
	s := wideTestSession(t, 32, 32, WithMaxDepth(1<<20))

	stopped := make(chan error, 1)
	go func() {
		for {
			if _, err := s.Step(context.Background()); err != nil {
				stopped <- err
				return
			}
		}
	}()
	s.Close()

	err := <-stopped
	if !errors.Is(err, ErrClosed) && !errors.Is(err, parallel.ErrPoolClosed) {
		t.Errorf("Step() after concurrent Close = %v, want ErrClosed or ErrPoolClosed", err)
	}
}

func TestSessionPrecisionChangeReallocates(t *testing.T) {
	s := wideTestSession(t, 16, 16)
	if _, err := s.Step(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Viewport().SetWordCount(5); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Step(context.Background()); err != nil {
		t.Fatalf("Step() after word count change = %v", err)
	}
	if s.buffers.WordCount() != 5 {
		t.Errorf("buffers word count = %d, want 5", s.buffers.WordCount())
	}
}

func TestSessionResize(t *testing.T) {
	s := wideTestSession(t, 16, 16)
	s.Balancer().ObserveIteration(0)
	if err := s.Resize(32, 8); err != nil {
		t.Fatalf("Resize() = %v", err)
	}
	if w, h := s.Viewport().Size(); w != 32 || h != 8 {
		t.Errorf("grid = %dx%d, want 32x8", w, h)
	}
	if got := s.Balancer().Increment(); got != PresentationDefault {
		t.Errorf("Increment() = %d after Resize, want %d", got, PresentationDefault)
	}
	if _, err := s.Step(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(s.Counts()) != 32*8 {
		t.Errorf("len(Counts()) = %d, want %d", len(s.Counts()), 32*8)
	}
	if err := s.Resize(-1, 8); !errors.Is(err, kernel.ErrEmptyGrid) {
		t.Errorf("Resize(-1, 8) = %v, want ErrEmptyGrid", err)
	}
}

func TestSessionCalibrates(t *testing.T) {
	s := wideTestSession(t, 16, 16, WithCalibration(true))
	if _, err := s.Step(context.Background()); err != nil {
		t.Fatal(err)
	}
	wc := s.Viewport().WordCount()
	b := s.Balancer()
	if !b.Calibrated(wc) && b.CalibrationDepth(wc) == calibrationStart {
		t.Error("no calibration pass was observed")
	}
}

func TestCalibrationView(t *testing.T) {
	ox, oy, step, err := calibrationView(160, 100, 4)
	if err != nil {
		t.Fatal(err)
	}
	if !near(ox.Float64(), -0.6827560061104002, 1e-12) || !near(oy.Float64(), -0.2914862451646308, 1e-12) {
		t.Errorf("origin = (%g, %g)", ox.Float64(), oy.Float64())
	}
	// The 16:10 rectangle exactly fits a 16:10 grid.
	want := 2 * 0.2914862451646308 / 100
	if !relNear(step.Float64(), want, 1e-9) {
		t.Errorf("step = %g, want %g", step.Float64(), want)
	}
}

// =============================================================================
// Fast path
// =============================================================================

func TestSessionFastPath(t *testing.T) {
	s, err := NewSession(32, 24, WithWorkers(2), WithMaxDepth(200), WithFastIterations(100))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if !s.FastPath() {
		t.Fatal("FastPath() = false for the default framing")
	}
	if _, err := s.Step(context.Background()); err != nil {
		t.Fatalf("Step() = %v", err)
	}
	if !s.Done() {
		t.Error("Done() = false after a fast step")
	}
	if s.Depth() != 100 {
		t.Errorf("Depth() = %d, want 100", s.Depth())
	}
	counts := s.Counts()
	if len(counts) != 32*24 {
		t.Fatalf("len(Counts()) = %d, want %d", len(counts), 32*24)
	}
	// The centre pixel is 0 + i·0, inside the set.
	if c := counts[12*32+16]; c != 100 {
		t.Errorf("centre count = %d, want 100", c)
	}
	// The top-left corner is far outside.
	if c := counts[0]; c > 2 {
		t.Errorf("corner count = %d, want at most 2", c)
	}
}

func TestSessionFastPathSwitchesToWide(t *testing.T) {
	s, err := NewSession(16, 16, WithWorkers(2), WithMaxDepth(30), WithCalibration(false))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Viewport().SetZoom("1e9"); err != nil {
		t.Fatal(err)
	}
	if s.FastPath() {
		t.Fatal("FastPath() = true at 1e9")
	}
	if _, err := s.Step(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.Done() {
		t.Error("wide path finished in one presentation pass")
	}
}
