package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gogpu/deepzoom"
	"github.com/gogpu/deepzoom/internal/color"
)

func TestDefaultValidates(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if c.FrameBudget() != time.Second/30 {
		t.Errorf("FrameBudget() = %v, want %v", c.FrameBudget(), time.Second/30)
	}
}

func TestDecodeOverridesDefaults(t *testing.T) {
	const doc = `
[view]
width = 320
center_x = "-0.75"
zoom = "1e12"

[precision]
auto = false
word_count = 6

[depth]
max = 5000
fps = 60

[palette]
preset = "pow"
exponent = 0.5
linear = false

[render]
strategy = "cross"
overlay = 12.0
`
	c, err := Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Decode() = %v", err)
	}

	tests := []struct {
		name string
		ok   bool
	}{
		{"width", c.View.Width == 320},
		{"height default", c.View.Height == 600},
		{"center_x", c.View.CenterX == "-0.75"},
		{"center_y default", c.View.CenterY == "0"},
		{"zoom", c.View.Zoom == "1e12"},
		{"auto", !c.Precision.Auto},
		{"word_count", c.Precision.WordCount == 6},
		{"extra_bits default", c.Precision.ExtraBits == deepzoom.DefaultExtraBits},
		{"max", c.Depth.Max == 5000},
		{"fast default", c.Depth.Fast},
		{"strategy", c.Render.Strategy == "cross"},
		{"overlay", c.Render.Overlay == 12},
		{"output default", c.Render.Output == "deepzoom.png"},
	}
	for _, tt := range tests {
		if !tt.ok {
			t.Errorf("%s not decoded as expected: %+v", tt.name, c)
		}
	}
	if c.FrameBudget() != time.Second/60 {
		t.Errorf("FrameBudget() = %v, want %v", c.FrameBudget(), time.Second/60)
	}

	p, err := c.PaletteValue()
	if err != nil {
		t.Fatalf("PaletteValue() = %v", err)
	}
	if p.Compression != color.CompressPow || p.Exponent != 0.5 || p.Linear {
		t.Errorf("PaletteValue() = %+v, want pow 0.5 raw", p)
	}
	if p.Shift != 4 {
		t.Errorf("Shift = %g, want the preset value 4", p.Shift)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"unknown key", "[view]\ncolour = 3\n", ErrUnknownKey},
		{"unknown section", "[sound]\nvolume = 3\n", ErrUnknownKey},
		{"zero width", "[view]\nwidth = 0\n", ErrSize},
		{"huge height", "[view]\nheight = 100000\n", ErrSize},
		{"scale", "[view]\nscale = 0.5\n", ErrScale},
		{"centre", "[view]\ncenter_y = \"north\"\n", ErrView},
		{"zoom", "[view]\nzoom = \"-3\"\n", ErrView},
		{"word count", "[precision]\nword_count = 1\n", ErrPrecision},
		{"extra bits", "[precision]\nextra_bits = 0\n", ErrPrecision},
		{"depth", "[depth]\nmax = 0\n", ErrDepth},
		{"fps", "[depth]\nfps = -1\n", ErrDepth},
		{"cutoff", "[palette]\ncutoff = 2.5\n", color.ErrCutoff},
		{"strategy", "[render]\nstrategy = \"guess\"\n", ErrRender},
		{"overlay", "[render]\noverlay = -1.0\n", ErrRender},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc))
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode() = %v, want %v", err, tt.want)
			}
		})
	}

	for _, doc := range []string{"[palette]\npreset = \"plaid\"\n", "[palette]\ncompression = \"cube\"\n", "[view\n"} {
		if _, err := Decode(strings.NewReader(doc)); err == nil {
			t.Errorf("Decode(%q) succeeded", doc)
		}
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deepzoom.toml")
	if err := os.WriteFile(path, []byte("[view]\nwidth = 64\nheight = 48\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if c.View.Width != 64 || c.View.Height != 48 {
		t.Errorf("size = %dx%d, want 64x48", c.View.Width, c.View.Height)
	}

	if _, err := Load(filepath.Join(dir, "missing.toml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load(missing) = %v, want os.ErrNotExist", err)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	c := Default()
	c.View.Zoom = "1e30"
	shift := 2.5
	c.Palette.Shift = &shift

	var buf bytes.Buffer
	if err := c.Encode(&buf); err != nil {
		t.Fatalf("Encode() = %v", err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode(Encode()) = %v", err)
	}
	if got.View.Zoom != "1e30" {
		t.Errorf("zoom = %q, want 1e30", got.View.Zoom)
	}
	if got.Palette.Shift == nil || *got.Palette.Shift != 2.5 {
		t.Errorf("palette shift = %v, want 2.5", got.Palette.Shift)
	}
	if got.Palette.Cutoff != nil {
		t.Errorf("palette cutoff = %v, want unset", *got.Palette.Cutoff)
	}
}

func TestNewSession(t *testing.T) {
	c := Default()
	c.View.Width, c.View.Height = 40, 30
	c.View.CenterX, c.View.CenterY = "-0.5", "0.25"
	c.View.Zoom = "8"
	c.Render.Workers = 1

	s, err := c.NewSession()
	if err != nil {
		t.Fatalf("NewSession() = %v", err)
	}
	defer s.Close()

	if w, h := s.Size(); w != 40 || h != 30 {
		t.Errorf("Size() = %dx%d, want 40x30", w, h)
	}
	m, _ := s.Viewport().Magnification().Float64()
	if m < 7.99 || m > 8.01 {
		t.Errorf("Magnification() = %g, want 8", m)
	}
	if s.MaxDepth() != deepzoom.DefaultMaxDepth {
		t.Errorf("MaxDepth() = %d, want %d", s.MaxDepth(), deepzoom.DefaultMaxDepth)
	}
}

func TestApplyViewDefaultKeepsFraming(t *testing.T) {
	c := Default()
	v, err := deepzoom.NewViewport(40, 20, 4)
	if err != nil {
		t.Fatal(err)
	}
	gen := v.Generation()
	if err := c.ApplyView(v); err != nil {
		t.Fatal(err)
	}
	if v.Generation() != gen {
		t.Error("ApplyView changed the default view")
	}
}
