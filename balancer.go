package deepzoom

import (
	"math"
	"time"
)

// Balancer constants.
const (
	// PresentationDefault is the depth of the first pass after a view
	// change before any timing is known.
	PresentationDefault = 10

	// UncalibratedLimit caps the presentation depth of a word count that
	// has not been calibrated yet.
	UncalibratedLimit = 15

	// calibrationStart is the depth of the first calibration pass.
	calibrationStart = 5
)

// CalibrationX and CalibrationY are the top-left corner of the largest 16:10
// rectangle inscribed in the main cardioid. No point of that rectangle
// escapes, so a pass over it costs the full depth for every pixel.
const (
	CalibrationX = "-0.6827560061104002"
	CalibrationY = "-0.2914862451646308"
)

// Balancer sizes passes to a frame budget.
//
// It keeps three figures: the depth of the first pass after a view change
// (per word count), the depth increment of later passes, and per word count
// a calibrated worst-case depth that bounds the first. Every timing corrects
// its figure by (budget/elapsed - 1)·0.5 + 1, so a pass that took twice the
// budget shrinks the figure by a quarter.
//
// Balancer is not safe for concurrent use.
type Balancer struct {
	budget time.Duration

	present     map[int]uint32
	increment   uint32
	limits      map[int]uint32
	calibrating map[int]uint32
}

// NewBalancer returns a balancer aiming at budget per pass.
func NewBalancer(budget time.Duration) *Balancer {
	b := &Balancer{budget: budget}
	b.Reset()
	return b
}

// Reset forgets every timing.
func (b *Balancer) Reset() {
	b.present = make(map[int]uint32)
	b.increment = PresentationDefault
	b.limits = make(map[int]uint32)
	b.calibrating = make(map[int]uint32)
}

// Budget returns the target pass duration.
func (b *Balancer) Budget() time.Duration { return b.budget }

// correction is the smoothed factor that moves a pass of elapsed toward
// the budget.
func (b *Balancer) correction(elapsed time.Duration) float64 {
	if elapsed <= 0 {
		// Faster than the clock resolution.
		return 2
	}
	return (float64(b.budget)/float64(elapsed)-1)*0.5 + 1
}

func scale(n uint32, f float64) uint32 {
	v := math.Round(float64(n) * f)
	switch {
	case v < 1:
		return 1
	case v > math.MaxUint32:
		return math.MaxUint32
	}
	return uint32(v)
}

// PresentIterations returns the depth of the first pass after a view change
// at wordCount words.
func (b *Balancer) PresentIterations(wordCount int) uint32 {
	n, ok := b.present[wordCount]
	if !ok {
		n = PresentationDefault
	}
	return max(min(n, b.presentLimit(wordCount)), 1)
}

func (b *Balancer) presentLimit(wordCount int) uint32 {
	l, ok := b.limits[wordCount]
	if !ok {
		return UncalibratedLimit
	}
	return max(l*3, 1)
}

// Increment returns the depth added by each resume pass.
func (b *Balancer) Increment() uint32 { return b.increment }

// ObservePresentation corrects the presentation depth from the duration of
// a first pass. The increment restarts from the corrected value.
func (b *Balancer) ObservePresentation(wordCount int, elapsed time.Duration) {
	n, ok := b.present[wordCount]
	if !ok {
		n = PresentationDefault
	}
	n = min(scale(n, b.correction(elapsed)), b.presentLimit(wordCount))
	b.present[wordCount] = n
	b.increment = b.PresentIterations(wordCount)
	Logger().Debug("deepzoom: presentation depth", "words", wordCount, "depth", b.increment)
}

// ObserveIteration corrects the increment from the duration of a resume
// pass.
func (b *Balancer) ObserveIteration(elapsed time.Duration) {
	b.increment = scale(b.increment, b.correction(elapsed))
	Logger().Debug("deepzoom: iteration increment", "increment", b.increment)
}

// Calibrated reports whether wordCount has a measured worst-case depth.
func (b *Balancer) Calibrated(wordCount int) bool {
	_, ok := b.limits[wordCount]
	return ok
}

// CalibrationDepth returns the depth of the next calibration pass at
// wordCount words.
func (b *Balancer) CalibrationDepth(wordCount int) uint32 {
	if n, ok := b.calibrating[wordCount]; ok {
		return n
	}
	return calibrationStart
}

// ObserveCalibration corrects the calibration depth from the duration of a
// calibration pass run at CalibrationDepth. Once a correction lands within
// 2% the word count is calibrated.
func (b *Balancer) ObserveCalibration(wordCount int, elapsed time.Duration) {
	c := b.correction(elapsed)
	n := scale(b.CalibrationDepth(wordCount), c)
	if c > 0.98 && c < 1.02 {
		delete(b.calibrating, wordCount)
		b.limits[wordCount] = n
		Logger().Info("deepzoom: calibrated", "words", wordCount, "present_limit", n*3)
		return
	}
	b.calibrating[wordCount] = n
}
