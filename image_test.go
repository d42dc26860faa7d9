package deepzoom

import (
	"context"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func fastTestSession(t *testing.T, w, h int, opts ...Option) *Session {
	t.Helper()
	base := []Option{WithWorkers(2), WithMaxDepth(1024)}
	s, err := NewSession(w, h, append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewSession() = %v", err)
	}
	t.Cleanup(s.Close)
	if _, err := s.Step(context.Background()); err != nil {
		t.Fatalf("Step() = %v", err)
	}
	return s
}

func rgbaAt(p *Pixmap, x, y int) (r, g, b, a uint8) {
	i := (y*p.Width() + x) * 4
	d := p.Data()
	return d[i], d[i+1], d[i+2], d[i+3]
}

// =============================================================================
// Image
// =============================================================================

func TestImageBeforeStep(t *testing.T) {
	s, err := NewSession(8, 8, WithWorkers(1))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, err := s.Image(); !errors.Is(err, ErrNothingRendered) {
		t.Errorf("Image() = %v, want ErrNothingRendered", err)
	}
}

func TestImageColors(t *testing.T) {
	s := fastTestSession(t, 32, 24)
	img, err := s.Image()
	if err != nil {
		t.Fatalf("Image() = %v", err)
	}
	if img.Width() != 32 || img.Height() != 24 {
		t.Fatalf("Image() size = %dx%d, want 32x24", img.Width(), img.Height())
	}

	// Centre is inside the set.
	if r, g, b, a := rgbaAt(img, 16, 12); r != 0 || g != 0 || b != 0 || a != 255 {
		t.Errorf("centre = %d,%d,%d,%d, want opaque black", r, g, b, a)
	}
	// The corner escapes before the first step.
	if r, g, b, _ := rgbaAt(img, 0, 0); r != 255 || g != 255 || b != 255 {
		t.Errorf("corner = %d,%d,%d, want white", r, g, b)
	}
}

func TestImageScaled(t *testing.T) {
	s := fastTestSession(t, 64, 48, WithScale(2))
	img, err := s.Image()
	if err != nil {
		t.Fatalf("Image() = %v", err)
	}
	if img.Width() != 64 || img.Height() != 48 {
		t.Fatalf("Image() size = %dx%d, want 64x48", img.Width(), img.Height())
	}
	if r, _, _, a := rgbaAt(img, 0, 0); r < 200 || a != 255 {
		t.Errorf("corner r = %d a = %d, want near white and opaque", r, a)
	}

	// A second call reuses the scaled image.
	again, err := s.Image()
	if err != nil {
		t.Fatal(err)
	}
	if again != img {
		t.Error("Image() reallocated without a change")
	}
}

func TestImageSetPalette(t *testing.T) {
	s := fastTestSession(t, 32, 24)
	img, err := s.Image()
	if err != nil {
		t.Fatal(err)
	}
	before := append([]byte(nil), img.Data()...)

	pal, err := NewPalette("sqrt")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetPalette(pal); err != nil {
		t.Fatalf("SetPalette() = %v", err)
	}
	img, err = s.Image()
	if err != nil {
		t.Fatal(err)
	}
	if string(before) == string(img.Data()) {
		t.Error("Image() unchanged after SetPalette")
	}

	pal.Cutoff = 3
	if err := s.SetPalette(pal); err == nil {
		t.Error("SetPalette() accepted cutoff 3")
	}
}

func TestSessionSavePNG(t *testing.T) {
	s := fastTestSession(t, 40, 30, WithOverlay(DefaultOverlaySize))
	path := filepath.Join(t.TempDir(), "frame.png")
	if err := s.SavePNG(path); err != nil {
		t.Fatalf("SavePNG() = %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("png.Decode() = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 30 {
		t.Errorf("decoded size = %dx%d, want 40x30", b.Dx(), b.Dy())
	}
}

// =============================================================================
// Overlay
// =============================================================================

func TestNewOverlayInvalidSize(t *testing.T) {
	for _, size := range []float64{0, -3} {
		if _, err := NewOverlay(size); err == nil {
			t.Errorf("NewOverlay(%g) succeeded", size)
		}
	}
}

func TestOverlayText(t *testing.T) {
	o, err := NewOverlay(DefaultOverlaySize)
	if err != nil {
		t.Fatal(err)
	}
	defer o.Close()

	got := o.Text(Info{Depth: 12345, MaxDepth: 100000, WordCount: 6, FastPath: true, Done: true})
	for _, want := range []string{"depth 12,345/100,000", "words 6", "zoom 1", "fast", "done"} {
		if !strings.Contains(got, want) {
			t.Errorf("Text() = %q, missing %q", got, want)
		}
	}
}

func TestOverlayApply(t *testing.T) {
	s := fastTestSession(t, 120, 60)
	img, err := s.Image()
	if err != nil {
		t.Fatal(err)
	}
	o, err := NewOverlay(DefaultOverlaySize)
	if err != nil {
		t.Fatal(err)
	}
	defer o.Close()

	out, err := o.Apply(img, s.Info())
	if err != nil {
		t.Fatalf("Apply() = %v", err)
	}
	if out.Bounds() != img.Bounds() {
		t.Errorf("Apply() bounds = %v, want %v", out.Bounds(), img.Bounds())
	}
	// The band darkens the white corner; the source is left alone.
	if r := out.RGBAAt(1, 1).R; r >= 128 {
		t.Errorf("banded corner r = %d, want darkened", r)
	}
	if r, _, _, _ := rgbaAt(img, 1, 1); r != 255 {
		t.Errorf("source corner r = %d, want 255", r)
	}
	if _, err := o.Apply(nil, Info{}); !errors.Is(err, ErrNothingRendered) {
		t.Errorf("Apply(nil) = %v, want ErrNothingRendered", err)
	}
}

func TestSessionInfo(t *testing.T) {
	s := fastTestSession(t, 32, 24)
	info := s.Info()
	if info.Depth != 1024 || info.MaxDepth != 1024 {
		t.Errorf("Info depth = %d/%d, want 1024/1024", info.Depth, info.MaxDepth)
	}
	if !info.FastPath || !info.Done {
		t.Errorf("Info = %+v, want fast and done", info)
	}
	if info.WordCount != DefaultWordCount {
		t.Errorf("Info.WordCount = %d, want %d", info.WordCount, DefaultWordCount)
	}
}
