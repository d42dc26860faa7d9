package deepzoom

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/gogpu/deepzoom/internal/fixed"
	"github.com/gogpu/deepzoom/internal/kernel"
)

// ErrZoom is returned for a zoom factor or delta that is not a finite
// positive magnification.
var ErrZoom = errors.New("deepzoom: invalid zoom")

// defaultSpan is the extent of the default framing along the shorter side.
const defaultSpan = 4

// Viewport maps grid pixels to points of the complex plane.
//
// Pixel (px, py) is at origin + step·(px, py). All three numbers share one
// word count, which grows while zooming in when automatic precision is on.
// Every change bumps a generation counter that sessions use to start over.
type Viewport struct {
	width, height int

	originX, originY fixed.Num
	step             fixed.Num

	// framed is true while the view is the default framing; a resize then
	// re-frames instead of keeping the step.
	framed bool

	autoPrecision bool
	extraBits     int

	gen uint64
}

// NewViewport returns the default framing for a width×height grid: the
// shorter side spans 4 units and the grid is centred on zero.
func NewViewport(width, height, wordCount int) (*Viewport, error) {
	if !fixed.ValidWordCount(wordCount) {
		return nil, fmt.Errorf("%w: %d", fixed.ErrWordCount, wordCount)
	}
	v := &Viewport{
		originX:   fixed.New(wordCount),
		originY:   fixed.New(wordCount),
		step:      fixed.New(wordCount),
		extraBits: DefaultExtraBits,
	}
	if err := v.resize(width, height); err != nil {
		return nil, err
	}
	return v, nil
}

// SetAutoPrecision enables word count adjustment on every change so the
// step keeps extraBits significant bits.
func (v *Viewport) SetAutoPrecision(enabled bool, extraBits int) {
	v.autoPrecision = enabled
	v.extraBits = max(extraBits, 1)
}

// Size returns the grid dimensions.
func (v *Viewport) Size() (width, height int) { return v.width, v.height }

// WordCount returns the current number of words per coordinate.
func (v *Viewport) WordCount() int { return len(v.step) }

// Generation increases with every change of the view.
func (v *Viewport) Generation() uint64 { return v.gen }

func defaultStep(width, height int, prec uint) *big.Float {
	shortest := min(width, height)
	return new(big.Float).SetPrec(prec).Quo(big.NewFloat(defaultSpan), big.NewFloat(float64(shortest)))
}

func (v *Viewport) prec() uint {
	return uint(fixed.WordBits*(len(v.step)+2)) + 64
}

// center returns the point under the middle of the grid.
func (v *Viewport) center() (x, y *big.Float) {
	prec := v.prec()
	half := func(origin fixed.Num, n int) *big.Float {
		c := new(big.Float).SetPrec(prec).Mul(v.step.BigFloat(), big.NewFloat(float64(n)/2))
		return c.Add(c, origin.BigFloat())
	}
	return half(v.originX, v.width), half(v.originY, v.height)
}

// Center returns the point under the middle of the grid as decimal strings.
func (v *Viewport) Center() (x, y string) {
	cx, cy := v.center()
	return cx.Text('g', decimalDigits(len(v.step))), cy.Text('g', decimalDigits(len(v.step)))
}

// decimalDigits is enough significant digits to round-trip wordCount words.
func decimalDigits(wordCount int) int {
	return int(math.Ceil(float64(fixed.WordBits*wordCount)*math.Log10(2))) + 1
}

// Step returns the distance between neighbouring pixels.
func (v *Viewport) Step() string { return v.step.String() }

// StepFloat returns the pixel step as a float64; it underflows to zero
// beyond float64 range.
func (v *Viewport) StepFloat() float64 { return v.step.Float64() }

// OriginFloat returns the top-left point as float64.
func (v *Viewport) OriginFloat() (x, y float64) {
	return v.originX.Float64(), v.originY.Float64()
}

// Magnification returns the default step divided by the current step.
func (v *Viewport) Magnification() *big.Float {
	prec := v.prec()
	m := defaultStep(v.width, v.height, prec)
	return m.Quo(m, new(big.Float).SetPrec(prec).Set(v.step.BigFloat()))
}

// params fills the viewport part of a pass record. The numbers are shared,
// not copied; passes only read them.
func (v *Viewport) params(p *kernel.Params) {
	p.Width, p.Height = v.width, v.height
	p.OriginX, p.OriginY, p.Step = v.originX, v.originY, v.step
}

// Reset restores the default framing.
func (v *Viewport) Reset() error {
	return v.resize(v.width, v.height)
}

// Resize changes the grid dimensions. The default framing is re-framed for
// the new size; any other view keeps its centre and step.
func (v *Viewport) Resize(width, height int) error {
	if v.framed {
		return v.resize(width, height)
	}
	cx, cy := v.center()
	return v.setView(width, height, cx, cy, new(big.Float).Set(v.step.BigFloat()), false)
}

func (v *Viewport) resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", kernel.ErrEmptyGrid, width, height)
	}
	step := defaultStep(width, height, v.prec())
	zero := new(big.Float)
	return v.setView(width, height, zero, zero, step, true)
}

// SetCenter moves the view so that (x, y), given as decimal strings, is
// under the middle of the grid. The step is kept.
func (v *Viewport) SetCenter(x, y string) error {
	prec := v.prec() + 256
	cx, _, err := big.ParseFloat(x, 10, prec, big.ToNearestEven)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", fixed.ErrSyntax, x, err)
	}
	cy, _, err := big.ParseFloat(y, 10, prec, big.ToNearestEven)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", fixed.ErrSyntax, y, err)
	}
	return v.setView(v.width, v.height, cx, cy, new(big.Float).Set(v.step.BigFloat()), false)
}

// SetZoom sets the magnification relative to the default framing, given as
// a decimal string such as "1e40". The centre is kept.
func (v *Viewport) SetZoom(zoom string) error {
	z, _, err := big.ParseFloat(zoom, 10, 256, big.ToNearestEven)
	if err != nil || z.Sign() <= 0 || z.IsInf() {
		return fmt.Errorf("%w: %q", ErrZoom, zoom)
	}
	cx, cy := v.center()
	// The step of a deep zoom needs more bits than the current word count.
	prec := uint(fixed.WordBits*(fixed.MaxWordCount+2)) + 64
	step := defaultStep(v.width, v.height, prec)
	step.Quo(step, z)
	return v.setView(v.width, v.height, cx, cy, step, z.Cmp(big.NewFloat(1)) == 0)
}

// setView commits a view given by its centre and step. With automatic
// precision the word count is chosen from the step; otherwise the current
// word count is kept. Nothing changes when the result is not renderable.
func (v *Viewport) setView(width, height int, cx, cy, step *big.Float, framed bool) error {
	wc := len(v.step)
	stepNum := fixed.New(wc)
	if v.autoPrecision {
		wide := fixed.New(fixed.MaxWordCount)
		if err := fixed.SetBigFloat(wide, step); err != nil {
			return err
		}
		stepNum = fixed.ChangePrecision(wide, fixed.PrecisionDiff(wide, v.extraBits))
		wc = len(stepNum)
	} else if err := fixed.SetBigFloat(stepNum, step); err != nil {
		return err
	}

	// The origin is derived from the truncated step so the centre pixel
	// lands where asked.
	prec := uint(fixed.WordBits*(wc+2)) + 64
	origin := func(c *big.Float, n int) (fixed.Num, error) {
		o := new(big.Float).SetPrec(prec).Mul(stepNum.BigFloat(), big.NewFloat(float64(n)/2))
		o.Sub(c, o)
		num := fixed.New(wc)
		return num, fixed.SetBigFloat(num, o)
	}
	ox, err := origin(cx, width)
	if err != nil {
		return err
	}
	oy, err := origin(cy, height)
	if err != nil {
		return err
	}
	return v.commit(width, height, ox, oy, stepNum, framed)
}

// commit validates and installs a new view.
func (v *Viewport) commit(width, height int, ox, oy, step fixed.Num, framed bool) error {
	p := kernel.Params{Width: width, Height: height, OriginX: ox, OriginY: oy, Step: step}
	if err := p.Validate(); err != nil {
		return err
	}
	if len(step) != len(v.step) {
		Logger().Info("deepzoom: precision changed", "from", len(v.step), "to", len(step))
	}
	v.width, v.height = width, height
	v.originX, v.originY, v.step = ox, oy, step
	v.framed = framed
	v.gen++
	return nil
}

// ZoomAt zooms by delta keeping the point under pixel (px, py) in place.
// A positive delta zooms in by 1+delta, a negative one zooms out by
// 1-delta.
func (v *Viewport) ZoomAt(delta float64, px, py int) error {
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return fmt.Errorf("%w: delta %g", ErrZoom, delta)
	}
	if delta == 0 {
		return nil
	}
	mul := 1 - delta
	if delta > 0 {
		mul = 1 / (1 + delta)
	}
	px = min(max(px, 0), v.width)
	py = min(max(py, 0), v.height)

	// One spare word while zooming in, trimmed by the precision pass below.
	wc := len(v.step)
	if v.autoPrecision && delta > 0 {
		wc = min(wc+1, fixed.MaxWordCount)
	}
	resize := func(n fixed.Num) fixed.Num { return fixed.ChangePrecision(n, wc-len(n)) }
	ox, oy, step := resize(v.originX), resize(v.originY), resize(v.step)

	m, err := fixed.FromFloat64(mul, wc)
	if err != nil {
		return fmt.Errorf("%w: delta %g: %w", ErrZoom, delta, err)
	}
	newStep := fixed.Mul(fixed.New(wc), step, m, fixed.New(wc))
	if newStep.Sign() <= 0 {
		return fmt.Errorf("%w: step vanishes at %d words", kernel.ErrStep, wc)
	}

	// The anchor stays put: origin += (step - newStep)·p.
	shift := fixed.Sub(step.Clone(), newStep)
	t := fixed.New(wc)
	fixed.Add(ox, fixed.MulWord(fixed.Copy(t, shift), uint32(px)))
	fixed.Add(oy, fixed.MulWord(fixed.Copy(t, shift), uint32(py)))

	ox, oy, newStep = v.adjustPrecision(ox, oy, newStep)
	return v.commit(v.width, v.height, ox, oy, newStep, false)
}

// Zoom zooms by delta around the middle of the grid.
func (v *Viewport) Zoom(delta float64) error {
	return v.ZoomAt(delta, v.width/2, v.height/2)
}

// Pan moves the view content by (dx, dy) pixels, as when dragging it.
func (v *Viewport) Pan(dx, dy int) error {
	if dx == 0 && dy == 0 {
		return nil
	}
	ox, oy := v.originX.Clone(), v.originY.Clone()
	t := fixed.New(len(v.step))
	move := func(o fixed.Num, d int) {
		fixed.MulWord(fixed.Copy(t, v.step), uint32(abs(d)))
		if d > 0 {
			fixed.Sub(o, t)
		} else {
			fixed.Add(o, t)
		}
	}
	move(ox, dx)
	move(oy, dy)
	return v.commit(v.width, v.height, ox, oy, v.step, false)
}

// SetWordCount changes the precision explicitly. With automatic precision
// on, the next change recomputes it.
func (v *Viewport) SetWordCount(wc int) error {
	if !fixed.ValidWordCount(wc) {
		return fmt.Errorf("%w: %d", fixed.ErrWordCount, wc)
	}
	if wc == len(v.step) {
		return nil
	}
	diff := wc - len(v.step)
	step := fixed.ChangePrecision(v.step, diff)
	if step.Sign() <= 0 {
		return fmt.Errorf("%w: step vanishes at %d words", kernel.ErrStep, wc)
	}
	return v.commit(v.width, v.height,
		fixed.ChangePrecision(v.originX, diff), fixed.ChangePrecision(v.originY, diff), step, v.framed)
}

func (v *Viewport) adjustPrecision(ox, oy, step fixed.Num) (fixed.Num, fixed.Num, fixed.Num) {
	if !v.autoPrecision {
		return ox, oy, step
	}
	diff := fixed.PrecisionDiff(step, v.extraBits)
	if diff == 0 {
		return ox, oy, step
	}
	return fixed.ChangePrecision(ox, diff), fixed.ChangePrecision(oy, diff), fixed.ChangePrecision(step, diff)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
