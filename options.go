package deepzoom

import (
	"time"

	"github.com/gogpu/deepzoom/internal/color"
	"github.com/gogpu/deepzoom/internal/kernel"
)

// Palette maps iteration counts to colors. See NewPalette for presets.
type Palette = color.Palette

// Compression selects how a Palette flattens iteration counts.
type Compression = color.Compression

// Palette compressions.
const (
	CompressLog  = color.CompressLog
	CompressPow  = color.CompressPow
	CompressSqrt = color.CompressSqrt
)

// Strategy selects how the imaginary part of z² is formed.
type Strategy = kernel.Strategy

// Iteration strategies.
const (
	StrategyIdentity = kernel.StrategyIdentity
	StrategyCross    = kernel.StrategyCross
)

// NewPalette returns a preset palette ("log", "pow" or "sqrt"). The
// session sets MaxIterations to the depth reached when coloring.
func NewPalette(preset string) (Palette, error) {
	return color.Preset(preset, 0)
}

// Defaults used by NewSession.
const (
	DefaultWordCount   = 4
	DefaultMaxDepth    = 1024
	DefaultExtraBits   = 10
	DefaultFrameBudget = time.Second / 30
)

// Option configures a Session during creation.
// Use functional options to customize Session behavior.
//
// Example:
//
//	// Default: CPU passes, log palette, depth up to 1024
//	s, err := deepzoom.NewSession(800, 600)
//
//	// Deeper, on the GPU, rendered at half resolution
//	s, err := deepzoom.NewSession(800, 600,
//	    deepzoom.WithMaxDepth(100000),
//	    deepzoom.WithGPU(true),
//	    deepzoom.WithScale(2))
type Option func(*options)

// options holds optional configuration for Session creation.
type options struct {
	wordCount      int
	palette        *Palette
	workers        int
	strategy       Strategy
	gpu            bool
	frameBudget    time.Duration
	fastPath       bool
	fastIterations uint32
	scale          float64
	maxDepth       uint32
	autoPrecision  bool
	extraBits      int
	calibrate      bool
	overlaySize    float64
}

// defaultOptions returns the default session options.
func defaultOptions() options {
	return options{
		wordCount:     DefaultWordCount,
		workers:       0, // runtime.GOMAXPROCS
		strategy:      kernel.StrategyIdentity,
		frameBudget:   DefaultFrameBudget,
		fastPath:      true,
		scale:         1,
		maxDepth:      DefaultMaxDepth,
		autoPrecision: true,
		extraBits:     DefaultExtraBits,
		calibrate:     true,
	}
}

// WithWordCount sets the initial number of 32-bit words per coordinate.
// With automatic precision enabled it is only the starting point.
func WithWordCount(n int) Option {
	return func(o *options) {
		o.wordCount = n
	}
}

// WithPalette sets the palette used by Image.
func WithPalette(p Palette) Option {
	return func(o *options) {
		o.palette = &p
	}
}

// WithWorkers sets the number of CPU workers. Zero or less uses
// runtime.GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithStrategy sets the iteration strategy of the CPU pass runner.
func WithStrategy(s Strategy) Option {
	return func(o *options) {
		o.strategy = s
	}
}

// WithGPU enables passes on the registered accelerator.
// Without an accelerator registered it has no effect.
func WithGPU(enabled bool) Option {
	return func(o *options) {
		o.gpu = enabled
	}
}

// WithFrameBudget sets the target duration of one pass.
func WithFrameBudget(d time.Duration) Option {
	return func(o *options) {
		o.frameBudget = d
	}
}

// WithFastPath enables the float32 path for views coarse enough for it.
func WithFastPath(enabled bool) Option {
	return func(o *options) {
		o.fastPath = enabled
	}
}

// WithFastIterations sets the iteration limit of the float32 path.
// Zero uses kernel.DefaultFastIterations.
func WithFastIterations(n uint32) Option {
	return func(o *options) {
		o.fastIterations = n
	}
}

// WithScale computes the grid at 1/scale of the output resolution; Image
// scales it back up. Values below 1 are treated as 1.
func WithScale(scale float64) Option {
	return func(o *options) {
		o.scale = scale
	}
}

// WithMaxDepth sets the iteration depth progressive rendering stops at.
func WithMaxDepth(depth uint32) Option {
	return func(o *options) {
		o.maxDepth = depth
	}
}

// WithAutoPrecision enables word count adjustment while zooming.
func WithAutoPrecision(enabled bool) Option {
	return func(o *options) {
		o.autoPrecision = enabled
	}
}

// WithExtraBits sets how many significant bits the pixel step keeps when
// precision is adjusted automatically.
func WithExtraBits(bits int) Option {
	return func(o *options) {
		o.extraBits = bits
	}
}

// WithCalibration enables the balancer's calibration passes, which time
// the worst case (no pixel escapes) once per word count.
func WithCalibration(enabled bool) Option {
	return func(o *options) {
		o.calibrate = enabled
	}
}

// WithOverlay draws a status line at size points over images saved with
// SavePNG. Zero disables it.
func WithOverlay(size float64) Option {
	return func(o *options) {
		o.overlaySize = size
	}
}
