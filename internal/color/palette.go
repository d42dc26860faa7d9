package color

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/gogpu/deepzoom/internal/wide"
)

// Compression selects how iteration counts are flattened before they reach
// the cosine rainbow.
type Compression int

const (
	// CompressLog uses log2(n) - log2(buffer).
	CompressLog Compression = iota

	// CompressPow uses n^exponent - buffer^exponent.
	CompressPow

	// CompressSqrt uses sqrt(n) - sqrt(buffer).
	CompressSqrt
)

var compressionNames = map[Compression]string{
	CompressLog:  "log",
	CompressPow:  "pow",
	CompressSqrt: "sqrt",
}

// String returns the compression name.
func (c Compression) String() string {
	if s, ok := compressionNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Compression(%d)", int(c))
}

// ParseCompression converts a name back into a Compression.
func ParseCompression(name string) (Compression, error) {
	for c, s := range compressionNames {
		if s == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("color: unknown compression %q", name)
}

var (
	// ErrCutoff is returned for a cutoff of 2 or more, which would divide
	// by zero or flip the palette.
	ErrCutoff = errors.New("color: cutoff must be below 2")

	// ErrExponent is returned for a non-positive power exponent.
	ErrExponent = errors.New("color: exponent must be positive")

	// ErrBuffer is returned for a negative buffer size.
	ErrBuffer = errors.New("color: buffer must not be negative")

	// ErrPixelBuffer is returned when an output slice does not match the
	// number of counts.
	ErrPixelBuffer = errors.New("color: pixel buffer size mismatch")
)

// Palette maps an iteration count to a color.
//
// Counts at or above MaxIterations are black. Counts below Buffer blend
// linearly from white to the color at the buffer edge. Above it the count
// is compressed and fed to a three-phase cosine rainbow:
//
//	channel_k = (cos(t + Shift + k·2π/3) + Cutoff) / (2 - Cutoff)
type Palette struct {
	MaxIterations uint32
	Compression   Compression
	Exponent      float32
	Shift         float32
	Cutoff        float32
	Buffer        float32

	// Linear marks the computed values as linear light; they are sRGB
	// encoded when stored. Otherwise they are stored as they are.
	Linear bool
}

var presets = map[string]Palette{
	"log": {
		Compression: CompressLog,
		Shift:       4,
		Cutoff:      0.5,
		Buffer:      16,
		Linear:      true,
	},
	"pow": {
		Compression: CompressPow,
		Exponent:    0.4,
		Shift:       4,
		Cutoff:      0.5,
		Buffer:      16,
		Linear:      true,
	},
	"sqrt": {
		Compression: CompressSqrt,
		Shift:       0,
		Cutoff:      0.3,
		Buffer:      8,
	},
}

// DefaultPreset is the preset used when none is configured.
const DefaultPreset = "log"

// Preset returns a named palette for the given maximum iteration count.
func Preset(name string, maxIterations uint32) (Palette, error) {
	p, ok := presets[name]
	if !ok {
		return Palette{}, fmt.Errorf("color: unknown preset %q (have %v)", name, PresetNames())
	}
	p.MaxIterations = maxIterations
	return p, nil
}

// PresetNames lists the preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate reports parameter combinations that cannot produce a palette.
func (p *Palette) Validate() error {
	if p.Cutoff >= 2 {
		return fmt.Errorf("%w: %g", ErrCutoff, p.Cutoff)
	}
	if p.Compression == CompressPow && !(p.Exponent > 0) {
		return fmt.Errorf("%w: %g", ErrExponent, p.Exponent)
	}
	if p.Buffer < 0 {
		return fmt.Errorf("%w: %g", ErrBuffer, p.Buffer)
	}
	if _, ok := compressionNames[p.Compression]; !ok {
		return fmt.Errorf("color: unknown compression %d", int(p.Compression))
	}
	return nil
}

// rainbow evaluates the cosine palette at the compressed count t.
func (p *Palette) rainbow(t wide.F32x8) (r, g, b wide.F32x8) {
	const third = 2 * math.Pi / 3
	phase := t.Add(wide.SplatF32(p.Shift))
	cut := wide.SplatF32(p.Cutoff)
	den := wide.SplatF32(2 - p.Cutoff)
	ch := func(k float32) wide.F32x8 {
		return phase.Add(wide.SplatF32(k * third)).Cos().Add(cut).Div(den).Clamp(0, 1)
	}
	return ch(0), ch(1), ch(2)
}

// compress flattens counts so that the buffer edge maps to zero.
func (p *Palette) compress(f wide.F32x8) wide.F32x8 {
	switch p.Compression {
	case CompressPow:
		edge := float32(math.Pow(float64(p.Buffer), float64(p.Exponent)))
		return f.Pow(p.Exponent).Sub(wide.SplatF32(edge))
	case CompressSqrt:
		return f.Sqrt().Sub(wide.SplatF32(float32(math.Sqrt(float64(p.Buffer)))))
	default:
		edge := float32(math.Log2(float64(max(p.Buffer, 1))))
		return f.Clamp(1, math.MaxFloat32).Log2().Sub(wide.SplatF32(edge))
	}
}

// EvalLanes colors eight counts at once.
func (p *Palette) EvalLanes(n wide.U32x8) (r, g, b wide.F32x8) {
	f := n.Float()
	r, g, b = p.rainbow(p.compress(f))

	if p.Buffer > 0 {
		inside := f.Less(wide.SplatF32(p.Buffer))
		if inside.Any() {
			er, eg, eb := p.rainbow(wide.F32x8{})
			w := f.Div(wide.SplatF32(p.Buffer))
			one := wide.SplatF32(1)
			r = one.Lerp(er, w).Select(inside, r)
			g = one.Lerp(eg, w).Select(inside, g)
			b = one.Lerp(eb, w).Select(inside, b)
		}
	}

	black := n.AtLeast(p.MaxIterations)
	zero := wide.F32x8{}
	return zero.Select(black, r), zero.Select(black, g), zero.Select(black, b)
}

// Eval colors a single count.
func (p *Palette) Eval(n uint32) ColorF32 {
	r, g, b := p.EvalLanes(wide.U32x8{n})
	return ColorF32{R: r[0], G: g[0], B: b[0], A: 1}
}

// Store converts a computed color to bytes in the palette's output space.
func (p *Palette) Store(c ColorF32) ColorU8 {
	if p.Linear {
		return LinearToSRGBU8(c)
	}
	return F32ToU8(c)
}

// Colorize writes one RGBA pixel per count into dst, which must hold
// exactly 4·len(counts) bytes.
func (p *Palette) Colorize(dst []byte, counts []uint32) error {
	if len(dst) != 4*len(counts) {
		return fmt.Errorf("%w: %d bytes for %d counts", ErrPixelBuffer, len(dst), len(counts))
	}
	for i := 0; i < len(counts); i += wide.Lanes {
		var lanes wide.U32x8
		n := copy(lanes[:], counts[i:])
		r, g, b := p.EvalLanes(lanes)
		for l := range n {
			c := p.Store(ColorF32{R: r[l], G: g[l], B: b[l], A: 1})
			o := 4 * (i + l)
			dst[o], dst[o+1], dst[o+2], dst[o+3] = c.R, c.G, c.B, c.A
		}
	}
	return nil
}
