// Package config handles deepzoom.toml render configuration.
//
// A file has five sections, all optional:
//
//	[view]
//	width = 800
//	height = 600
//	scale = 1.0
//	center_x = "-0.743643887037158704752191506114774"
//	center_y = "0.131825904205311970493132056385139"
//	zoom = "1e20"
//
//	[precision]
//	word_count = 4
//	auto = true
//	extra_bits = 10
//
//	[depth]
//	max = 100000
//	fps = 30
//	fast = true
//	fast_iterations = 1024
//	calibrate = true
//
//	[palette]
//	preset = "log"
//	shift = 4.0
//
//	[render]
//	workers = 0
//	strategy = "identity"
//	gpu = false
//	overlay = 14.0
//	output = "deepzoom.png"
//
// Missing keys keep their defaults. Palette keys other than preset
// override single fields of the preset.
package config

import (
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/gogpu/deepzoom"
	"github.com/gogpu/deepzoom/internal/color"
	"github.com/gogpu/deepzoom/internal/fixed"
	"github.com/gogpu/deepzoom/internal/kernel"
)

var (
	// ErrUnknownKey is returned for keys no section defines.
	ErrUnknownKey = errors.New("config: unknown key")

	// ErrSize is returned for a non-positive or oversized image.
	ErrSize = errors.New("config: invalid image size")

	// ErrScale is returned for a scale below 1.
	ErrScale = errors.New("config: scale must be at least 1")

	// ErrView is returned for a centre or zoom that does not parse.
	ErrView = errors.New("config: invalid view")

	// ErrPrecision is returned for an out-of-range word count or extra bits.
	ErrPrecision = errors.New("config: invalid precision")

	// ErrDepth is returned for a zero maximum depth or frame rate.
	ErrDepth = errors.New("config: invalid depth settings")

	// ErrRender is returned for an unknown strategy or negative overlay size.
	ErrRender = errors.New("config: invalid render settings")
)

// Config is a parsed deepzoom.toml.
type Config struct {
	View      View      `toml:"view"`
	Precision Precision `toml:"precision"`
	Depth     Depth     `toml:"depth"`
	Palette   Palette   `toml:"palette"`
	Render    Render    `toml:"render"`
}

// View is the [view] section.
type View struct {
	Width   int     `toml:"width"`
	Height  int     `toml:"height"`
	Scale   float64 `toml:"scale"`
	CenterX string  `toml:"center_x"`
	CenterY string  `toml:"center_y"`
	Zoom    string  `toml:"zoom"`
}

// Precision is the [precision] section.
type Precision struct {
	WordCount int  `toml:"word_count"`
	Auto      bool `toml:"auto"`
	ExtraBits int  `toml:"extra_bits"`
}

// Depth is the [depth] section.
type Depth struct {
	Max            uint32 `toml:"max"`
	FPS            int    `toml:"fps"`
	Fast           bool   `toml:"fast"`
	FastIterations uint32 `toml:"fast_iterations"`
	Calibrate      bool   `toml:"calibrate"`
}

// Palette is the [palette] section. Nil fields keep the preset value.
type Palette struct {
	Preset      string   `toml:"preset"`
	Compression *string  `toml:"compression"`
	Exponent    *float64 `toml:"exponent"`
	Shift       *float64 `toml:"shift"`
	Cutoff      *float64 `toml:"cutoff"`
	Buffer      *float64 `toml:"buffer"`
	Linear      *bool    `toml:"linear"`
}

// Render is the [render] section.
type Render struct {
	Workers  int     `toml:"workers"`
	Strategy string  `toml:"strategy"`
	GPU      bool    `toml:"gpu"`
	Overlay  float64 `toml:"overlay"`
	Output   string  `toml:"output"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		View: View{
			Width:   800,
			Height:  600,
			Scale:   1,
			CenterX: "0",
			CenterY: "0",
			Zoom:    "1",
		},
		Precision: Precision{
			WordCount: deepzoom.DefaultWordCount,
			Auto:      true,
			ExtraBits: deepzoom.DefaultExtraBits,
		},
		Depth: Depth{
			Max:            deepzoom.DefaultMaxDepth,
			FPS:            30,
			Fast:           true,
			FastIterations: kernel.DefaultFastIterations,
			Calibrate:      true,
		},
		Palette: Palette{Preset: color.DefaultPreset},
		Render: Render{
			Strategy: kernel.StrategyIdentity.String(),
			Output:   "deepzoom.png",
		},
	}
}

// Load parses the file at path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	defer f.Close()

	c, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Decode parses TOML from r over the defaults and validates the result.
func Decode(r io.Reader) (*Config, error) {
	c := Default()
	md, err := toml.NewDecoder(r).Decode(c)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, strings.Join(keys, ", "))
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Encode writes c as TOML.
func (c *Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// Validate reports settings that cannot produce a render.
func (c *Config) Validate() error {
	v := c.View
	if v.Width <= 0 || v.Height <= 0 || v.Width > kernel.MaxGridSide || v.Height > kernel.MaxGridSide {
		return fmt.Errorf("%w: %dx%d", ErrSize, v.Width, v.Height)
	}
	if !(v.Scale >= 1) {
		return fmt.Errorf("%w: %g", ErrScale, v.Scale)
	}
	for _, s := range []string{v.CenterX, v.CenterY} {
		if _, _, err := big.ParseFloat(s, 10, 64, big.ToNearestEven); err != nil {
			return fmt.Errorf("%w: centre %q", ErrView, s)
		}
	}
	z, _, err := big.ParseFloat(v.Zoom, 10, 64, big.ToNearestEven)
	if err != nil || z.Sign() <= 0 || z.IsInf() {
		return fmt.Errorf("%w: zoom %q", ErrView, v.Zoom)
	}

	p := c.Precision
	if !fixed.ValidWordCount(p.WordCount) {
		return fmt.Errorf("%w: word_count %d outside [%d, %d]", ErrPrecision, p.WordCount, fixed.MinWordCount, fixed.MaxWordCount)
	}
	if p.ExtraBits < 1 || p.ExtraBits > fixed.WordBits*fixed.MaxWordCount/2 {
		return fmt.Errorf("%w: extra_bits %d", ErrPrecision, p.ExtraBits)
	}

	if c.Depth.Max == 0 {
		return fmt.Errorf("%w: max must be positive", ErrDepth)
	}
	if c.Depth.FPS <= 0 {
		return fmt.Errorf("%w: fps %d", ErrDepth, c.Depth.FPS)
	}

	if _, err := c.PaletteValue(); err != nil {
		return err
	}

	if _, err := kernel.ParseStrategy(c.Render.Strategy); err != nil {
		return fmt.Errorf("%w: %w", ErrRender, err)
	}
	if c.Render.Overlay < 0 {
		return fmt.Errorf("%w: overlay %g", ErrRender, c.Render.Overlay)
	}
	return nil
}

// FrameBudget is the pass duration that keeps the configured frame rate.
func (c *Config) FrameBudget() time.Duration {
	return time.Second / time.Duration(max(c.Depth.FPS, 1))
}

// PaletteValue returns the preset with the section's overrides applied.
func (c *Config) PaletteValue() (deepzoom.Palette, error) {
	pc := c.Palette
	p, err := deepzoom.NewPalette(pc.Preset)
	if err != nil {
		return p, err
	}
	if pc.Compression != nil {
		if p.Compression, err = color.ParseCompression(*pc.Compression); err != nil {
			return p, err
		}
	}
	set := func(dst *float32, src *float64) {
		if src != nil {
			*dst = float32(*src)
		}
	}
	set(&p.Exponent, pc.Exponent)
	set(&p.Shift, pc.Shift)
	set(&p.Cutoff, pc.Cutoff)
	set(&p.Buffer, pc.Buffer)
	if pc.Linear != nil {
		p.Linear = *pc.Linear
	}
	return p, p.Validate()
}

// Options converts the configuration into session options.
func (c *Config) Options() ([]deepzoom.Option, error) {
	pal, err := c.PaletteValue()
	if err != nil {
		return nil, err
	}
	strategy, err := kernel.ParseStrategy(c.Render.Strategy)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	return []deepzoom.Option{
		deepzoom.WithWordCount(c.Precision.WordCount),
		deepzoom.WithAutoPrecision(c.Precision.Auto),
		deepzoom.WithExtraBits(c.Precision.ExtraBits),
		deepzoom.WithMaxDepth(c.Depth.Max),
		deepzoom.WithFrameBudget(c.FrameBudget()),
		deepzoom.WithFastPath(c.Depth.Fast),
		deepzoom.WithFastIterations(c.Depth.FastIterations),
		deepzoom.WithCalibration(c.Depth.Calibrate),
		deepzoom.WithPalette(pal),
		deepzoom.WithScale(c.View.Scale),
		deepzoom.WithWorkers(c.Render.Workers),
		deepzoom.WithStrategy(strategy),
		deepzoom.WithGPU(c.Render.GPU),
		deepzoom.WithOverlay(c.Render.Overlay),
	}, nil
}

// NewSession creates a session for the configured image and moves it to
// the configured view.
func (c *Config) NewSession(extra ...deepzoom.Option) (*deepzoom.Session, error) {
	opts, err := c.Options()
	if err != nil {
		return nil, err
	}
	s, err := deepzoom.NewSession(c.View.Width, c.View.Height, append(opts, extra...)...)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyView(s.Viewport()); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// ApplyView moves v to the configured centre and zoom. The default view
// is left framed so that resizing re-frames it.
func (c *Config) ApplyView(v *deepzoom.Viewport) error {
	if isZero(c.View.CenterX) && isZero(c.View.CenterY) && isOne(c.View.Zoom) {
		return nil
	}
	if err := v.SetCenter(c.View.CenterX, c.View.CenterY); err != nil {
		return fmt.Errorf("%w: %w", ErrView, err)
	}
	if err := v.SetZoom(c.View.Zoom); err != nil {
		return fmt.Errorf("%w: %w", ErrView, err)
	}
	return nil
}

func isZero(s string) bool {
	f, _, err := big.ParseFloat(s, 10, 64, big.ToNearestEven)
	return err == nil && f.Sign() == 0
}

func isOne(s string) bool {
	f, _, err := big.ParseFloat(s, 10, 64, big.ToNearestEven)
	return err == nil && f.Cmp(big.NewFloat(1)) == 0
}
