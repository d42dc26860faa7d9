// Command deepzoom renders a Mandelbrot view to a PNG file.
//
// The view is rendered progressively: passes go deeper until the maximum
// depth, a timeout or an interrupt, and the image at the depth reached is
// saved. A snapshot file lets a later run continue where this one stopped.
//
//	deepzoom -x -0.743643887037158704752191506114774 \
//	    -y 0.131825904205311970493132056385139 -zoom 1e25 -depth 20000
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/gogpu/deepzoom"
	"github.com/gogpu/deepzoom/config"
	_ "github.com/gogpu/deepzoom/gpu" // registers the GPU accelerator
)

func main() {
	var (
		configPath = flag.String("config", "", "TOML configuration file")
		width      = flag.Int("width", 800, "image width")
		height     = flag.Int("height", 600, "image height")
		scale      = flag.Float64("scale", 1, "compute at 1/scale of the image resolution")
		centerX    = flag.String("x", "0", "real part of the view centre")
		centerY    = flag.String("y", "0", "imaginary part of the view centre")
		zoom       = flag.String("zoom", "1", "magnification relative to the default framing")
		words      = flag.Int("words", deepzoom.DefaultWordCount, "initial 32-bit words per coordinate")
		auto       = flag.Bool("auto", true, "adjust the word count to the zoom")
		depth      = flag.Uint("depth", deepzoom.DefaultMaxDepth, "maximum iteration depth")
		palette    = flag.String("palette", "log", "palette preset (log, pow, sqrt)")
		workers    = flag.Int("workers", 0, "CPU workers (0 = GOMAXPROCS)")
		strategy   = flag.String("strategy", "identity", "iteration strategy (identity, cross)")
		useGPU     = flag.Bool("gpu", false, "run passes on the GPU when available")
		overlay    = flag.Float64("overlay", 0, "status line font size in points (0 = none)")
		output     = flag.String("output", "deepzoom.png", "output file")
		timeout    = flag.Duration("timeout", 0, "stop deepening after this long (0 = no limit)")
		resume     = flag.String("resume", "", "snapshot to continue from")
		snapshot   = flag.String("snapshot", "", "write a snapshot here when done")
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

	// Flags given on the command line override the file.
	depthSet := false
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "width":
			cfg.View.Width = *width
		case "height":
			cfg.View.Height = *height
		case "scale":
			cfg.View.Scale = *scale
		case "x":
			cfg.View.CenterX = *centerX
		case "y":
			cfg.View.CenterY = *centerY
		case "zoom":
			cfg.View.Zoom = *zoom
		case "words":
			cfg.Precision.WordCount = *words
		case "auto":
			cfg.Precision.Auto = *auto
		case "depth":
			cfg.Depth.Max = uint32(min(*depth, 1<<32-1)) //nolint:gosec // clamped
			depthSet = true
		case "palette":
			cfg.Palette = config.Palette{Preset: *palette}
		case "workers":
			cfg.Render.Workers = *workers
		case "strategy":
			cfg.Render.Strategy = *strategy
		case "gpu":
			cfg.Render.GPU = *useGPU
		case "overlay":
			cfg.Render.Overlay = *overlay
		case "output":
			cfg.Render.Output = *output
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	s, err := cfg.NewSession()
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	defer s.Close()

	if *resume != "" {
		if err := loadSnapshot(s, *resume); err != nil {
			log.Fatalf("Failed to resume: %v", err)
		}
		if depthSet {
			s.SetMaxDepth(cfg.Depth.Max)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	if err := render(ctx, s); err != nil {
		log.Fatalf("Render failed: %v", err)
	}

	if err := s.SavePNG(cfg.Render.Output); err != nil {
		log.Fatalf("Failed to save: %v", err)
	}
	info := s.Info()
	log.Printf("Saved %s (%dx%d) at depth %d, %d words\n",
		cfg.Render.Output, cfg.View.Width, cfg.View.Height, info.Depth, info.WordCount)

	if *snapshot != "" {
		if err := saveSnapshot(s, *snapshot); err != nil {
			log.Fatalf("Failed to write snapshot: %v", err)
		}
	}
}

// render steps s until it is done or ctx ends. Passes are sized to the
// frame budget and always run to completion, so a stop keeps the depth of
// the last pass; a cancelled pass would discard the whole checkpoint.
func render(ctx context.Context, s *deepzoom.Session) error {
	start := time.Now()
	pass := context.WithoutCancel(ctx)
	for !s.Done() && ctx.Err() == nil {
		st, err := s.Step(pass)
		if err != nil {
			return err
		}
		deepzoom.Logger().Debug("pass done",
			"depth", s.Depth(), "tiles", st.Tiles, "active", st.Active, "elapsed", st.Elapsed)
	}
	if err := ctx.Err(); err != nil {
		deepzoom.Logger().Info("render stopped", "depth", s.Depth(), "reason", err)
	}
	deepzoom.Logger().Info("render finished", "depth", s.Depth(), "elapsed", time.Since(start).Round(time.Millisecond))
	if s.Depth() == 0 {
		return errors.New("no pass completed")
	}
	return nil
}

func loadSnapshot(s *deepzoom.Session, path string) error {
	f, err := os.Open(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return err
	}
	defer f.Close()
	return s.LoadSnapshot(f)
}

func saveSnapshot(s *deepzoom.Session, path string) error {
	f, err := os.Create(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return err
	}
	if err := s.SaveSnapshot(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
