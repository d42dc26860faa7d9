// Command deepzoom-view explores the Mandelbrot set in a window.
//
// Controls:
//
//	wheel        zoom at the cursor
//	drag         pan
//	= / -        double / halve the maximum depth
//	] / [        one more / one less word of precision
//	P            next palette preset
//	O            toggle the status line
//	S            save the current image as deepzoom-<n>.png
//	R            reset the view
//	Esc          quit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/gogpu/deepzoom"
	"github.com/gogpu/deepzoom/config"
	_ "github.com/gogpu/deepzoom/gpu" // registers the GPU accelerator
	"github.com/gogpu/deepzoom/internal/color"
)

// zoomPerNotch is the zoom delta of one wheel notch.
const zoomPerNotch = 0.25

func main() {
	var (
		configPath = flag.String("config", "", "TOML configuration file")
		useGPU     = flag.Bool("gpu", false, "run passes on the GPU when available")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	deepzoom.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if *useGPU {
		cfg.Render.GPU = true
	}

	s, err := cfg.NewSession()
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	defer s.Close()

	overlay, err := deepzoom.NewOverlay(max(cfg.Render.Overlay, deepzoom.DefaultOverlaySize))
	if err != nil {
		log.Fatalf("Failed to load overlay font: %v", err)
	}
	defer overlay.Close()

	g := &viewer{
		s:           s,
		scale:       cfg.View.Scale,
		overlay:     overlay,
		showOverlay: cfg.Render.Overlay > 0,
		palettes:    color.PresetNames(),
	}
	ebiten.SetWindowTitle("deepzoom")
	ebiten.SetWindowSize(cfg.View.Width, cfg.View.Height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(cfg.Depth.FPS)
	if err := ebiten.RunGame(g); err != nil && !errors.Is(err, ebiten.Termination) {
		log.Fatal(err)
	}
}

type viewer struct {
	s     *deepzoom.Session
	scale float64

	overlay     *deepzoom.Overlay
	showOverlay bool

	palettes []string
	palette  int
	saved    int

	dragging     bool
	lastX, lastY int

	// Window size requested by Layout, applied on the next Update.
	width, height int

	frame *ebiten.Image
	fresh bool
}

func (g *viewer) Update() error {
	if g.width > 0 && g.height > 0 {
		if w, h := g.s.Size(); w != g.width || h != g.height {
			if err := g.s.Resize(g.width, g.height); err != nil {
				return err
			}
		}
	}
	if err := g.handleKeys(); err != nil {
		return err
	}
	g.handleMouse()

	if g.s.Done() {
		return nil
	}
	if _, err := g.s.Step(context.Background()); err != nil {
		return err
	}
	g.fresh = true
	return nil
}

func (g *viewer) handleKeys() error {
	v := g.s.Viewport()
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyEscape):
		return ebiten.Termination
	case inpututil.IsKeyJustPressed(ebiten.KeyEqual):
		g.s.SetMaxDepth(g.s.MaxDepth() * 2)
	case inpututil.IsKeyJustPressed(ebiten.KeyMinus):
		g.s.SetMaxDepth(g.s.MaxDepth() / 2)
	case inpututil.IsKeyJustPressed(ebiten.KeyBracketRight):
		g.warn(v.SetWordCount(v.WordCount() + 1))
	case inpututil.IsKeyJustPressed(ebiten.KeyBracketLeft):
		g.warn(v.SetWordCount(v.WordCount() - 1))
	case inpututil.IsKeyJustPressed(ebiten.KeyP):
		g.palette = (g.palette + 1) % len(g.palettes)
		p, err := deepzoom.NewPalette(g.palettes[g.palette])
		if err == nil {
			err = g.s.SetPalette(p)
		}
		g.warn(err)
		g.fresh = true
	case inpututil.IsKeyJustPressed(ebiten.KeyO):
		g.showOverlay = !g.showOverlay
		g.fresh = true
	case inpututil.IsKeyJustPressed(ebiten.KeyS):
		g.saved++
		name := fmt.Sprintf("deepzoom-%d.png", g.saved)
		if err := g.s.SavePNG(name); err != nil {
			g.warn(err)
		} else {
			deepzoom.Logger().Info("saved", "file", name)
		}
	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		g.warn(v.Reset())
	}
	return nil
}

func (g *viewer) handleMouse() {
	v := g.s.Viewport()
	x, y := ebiten.CursorPosition()
	px, py := g.gridPoint(x, y)

	if _, dy := ebiten.Wheel(); dy != 0 {
		g.warn(v.ZoomAt(dy*zoomPerNotch, px, py))
	}

	if !ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		g.dragging = false
		return
	}
	if g.dragging {
		lx, ly := g.gridPoint(g.lastX, g.lastY)
		if dx, dy := px-lx, py-ly; dx != 0 || dy != 0 {
			g.warn(v.Pan(dx, dy))
			g.lastX, g.lastY = x, y
		}
		return
	}
	g.dragging = true
	g.lastX, g.lastY = x, y
}

// gridPoint converts window coordinates to grid pixels.
func (g *viewer) gridPoint(x, y int) (int, int) {
	return int(float64(x) / g.scale), int(float64(y) / g.scale)
}

// warn logs view changes that were refused; the view stays as it was.
func (g *viewer) warn(err error) {
	if err != nil {
		deepzoom.Logger().Warn("view change refused", "err", err)
	}
}

func (g *viewer) Draw(screen *ebiten.Image) {
	if g.fresh {
		g.upload()
	}
	if g.frame != nil {
		screen.DrawImage(g.frame, nil)
	}
}

// upload copies the session image into the frame texture.
func (g *viewer) upload() {
	img, err := g.s.Image()
	if err != nil {
		return
	}
	pix := img.Data()
	if g.showOverlay {
		withText, err := g.overlay.Apply(img, g.s.Info())
		if err != nil {
			g.warn(err)
			return
		}
		pix = withText.Pix
	}
	if g.frame == nil || g.frame.Bounds().Dx() != img.Width() || g.frame.Bounds().Dy() != img.Height() {
		if g.frame != nil {
			g.frame.Deallocate()
		}
		g.frame = ebiten.NewImage(img.Width(), img.Height())
	}
	g.frame.WritePixels(pix)
	g.fresh = false
}

func (g *viewer) Layout(outsideWidth, outsideHeight int) (int, int) {
	g.width, g.height = outsideWidth, outsideHeight
	return outsideWidth, outsideHeight
}
