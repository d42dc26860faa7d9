// Package kernel runs the resumable escape-time iteration over a pixel grid.
//
// A pass takes Params (depth limit, reset flag, grid size and the viewport as
// wide fixed-point numbers) and advances every pixel's checkpoint in Buffers
// up to the depth limit. Passes against the same buffers must use
// non-decreasing depth limits; a reset pass starts every pixel over.
package kernel

import (
	"errors"
	"fmt"

	"github.com/gogpu/deepzoom/internal/fixed"
)

// HeaderWords is the number of words before the three numbers in an
// encoded parameter record.
const HeaderWords = 4

// MaxCoordinate bounds the magnitude of every pixel coordinate. Below it the
// largest value the recurrence ever forms before bailing out, about
// 2·(MaxCoordinate+8)², still fits in the signed integer word.
const MaxCoordinate = 1 << 14

// MaxGridSide bounds each grid dimension. Pixel indices fit the scalar
// multiplier with room to spare, and a full column of rows stays within the
// 65535 workgroups per dimension a compute dispatch may ask for.
const MaxGridSide = 1<<16 - 1

var (
	// ErrWordCountMismatch is returned when the numbers of a pass or the
	// stored checkpoint layout disagree on the word count.
	ErrWordCountMismatch = errors.New("kernel: word count mismatch")

	// ErrEmptyGrid is returned for a grid with a zero dimension.
	ErrEmptyGrid = errors.New("kernel: empty grid")

	// ErrDepthDecreased is returned when a resume pass asks for a lower
	// depth limit than the buffers already reached.
	ErrDepthDecreased = errors.New("kernel: depth limit decreased")

	// ErrCoordinateRange is returned when some pixel coordinate would
	// exceed MaxCoordinate.
	ErrCoordinateRange = errors.New("kernel: pixel coordinate out of range")

	// ErrStep is returned for a step that is not strictly positive.
	ErrStep = errors.New("kernel: step must be positive")

	// ErrBufferSize is returned when a buffer does not match the grid.
	ErrBufferSize = errors.New("kernel: buffer size mismatch")

	// ErrNoCheckpoint is returned for a resume pass on buffers that hold
	// no completed reset pass.
	ErrNoCheckpoint = errors.New("kernel: resume without a checkpoint")
)

// Strategy selects how the iterator forms the cross term 2xy.
type Strategy int

const (
	// StrategyIdentity uses (x+y)² - x² - y², two squarings per step.
	StrategyIdentity Strategy = iota

	// StrategyCross multiplies x·y directly and doubles it. Needs one more
	// scratch slot.
	StrategyCross
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyIdentity:
		return "identity"
	case StrategyCross:
		return "cross"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy converts a strategy name back into a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "", "identity":
		return StrategyIdentity, nil
	case "cross":
		return StrategyCross, nil
	default:
		return 0, fmt.Errorf("kernel: unknown strategy %q", name)
	}
}

// Params is the read-only input of one pass.
type Params struct {
	// DepthLimit is the absolute iteration count every pixel is advanced to.
	DepthLimit uint32

	// Reset discards stored state and starts each pixel at its coordinate.
	Reset bool

	// Width and Height are the grid dimensions.
	Width, Height int

	// OriginX and OriginY are the coordinate of pixel (0, 0); Step is the
	// distance between neighbouring pixels. All three share one word count.
	OriginX, OriginY, Step fixed.Num
}

// WordCount returns the word count of the viewport numbers.
func (p *Params) WordCount() int {
	return len(p.Step)
}

// Validate checks everything a pass relies on before dispatch.
func (p *Params) Validate() error {
	wc := len(p.Step)
	if !fixed.ValidWordCount(wc) {
		return fmt.Errorf("%w: %d", fixed.ErrWordCount, wc)
	}
	if len(p.OriginX) != wc || len(p.OriginY) != wc {
		return fmt.Errorf("%w: origin %d/%d words, step %d", ErrWordCountMismatch, len(p.OriginX), len(p.OriginY), wc)
	}
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrEmptyGrid, p.Width, p.Height)
	}
	if p.Width > MaxGridSide || p.Height > MaxGridSide {
		return fmt.Errorf("%w: %dx%d exceeds %d", ErrCoordinateRange, p.Width, p.Height, MaxGridSide)
	}
	if p.Step.Sign() <= 0 {
		return ErrStep
	}

	// Range checks only need float64 accuracy.
	step := p.Step.Float64()
	for _, axis := range []struct {
		origin float64
		n      int
	}{
		{p.OriginX.Float64(), p.Width},
		{p.OriginY.Float64(), p.Height},
	} {
		far := axis.origin + step*float64(axis.n-1)
		if abs(axis.origin) > MaxCoordinate || abs(far) > MaxCoordinate {
			return fmt.Errorf("%w: [%g, %g]", ErrCoordinateRange, axis.origin, far)
		}
	}
	return nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// EncodedSize returns the length in words of an encoded record.
func EncodedSize(wordCount int) int {
	return HeaderWords + 3*wordCount
}

// Encode appends the little-endian word record of p to dst:
// depth limit, reset, width, height, origin x, origin y, step.
// This is the layout the GPU kernel reads.
func (p *Params) Encode(dst []uint32) []uint32 {
	var reset uint32
	if p.Reset {
		reset = 1
	}
	dst = append(dst, p.DepthLimit, reset, uint32(p.Width), uint32(p.Height))
	dst = append(dst, p.OriginX...)
	dst = append(dst, p.OriginY...)
	return append(dst, p.Step...)
}

// DecodeParams parses a record produced by Encode. The numbers are copied
// out of words.
func DecodeParams(words []uint32, wordCount int) (*Params, error) {
	if !fixed.ValidWordCount(wordCount) {
		return nil, fmt.Errorf("%w: %d", fixed.ErrWordCount, wordCount)
	}
	if len(words) != EncodedSize(wordCount) {
		return nil, fmt.Errorf("%w: record has %d words, want %d", ErrBufferSize, len(words), EncodedSize(wordCount))
	}
	num := func(i int) fixed.Num {
		off := HeaderWords + i*wordCount
		return fixed.Num(words[off : off+wordCount]).Clone()
	}
	return &Params{
		DepthLimit: words[0],
		Reset:      words[1] != 0,
		Width:      int(words[2]),
		Height:     int(words[3]),
		OriginX:    num(0),
		OriginY:    num(1),
		Step:       num(2),
	}, nil
}
