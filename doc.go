// Package deepzoom renders the Mandelbrot set at arbitrary zoom depth.
//
// # Overview
//
// Coordinates are multi-word fixed-point numbers whose word count grows as
// the view zooms in, so the only limit on depth is time. Each pixel keeps
// its orbit between passes: a pass at a higher iteration limit resumes from
// where the previous one stopped instead of starting over. Coarse views,
// where float32 still resolves neighbouring pixels, take a vectorized float
// path instead.
//
// # Quick Start
//
//	s, err := deepzoom.NewSession(800, 600)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	if err := s.Viewport().SetCenter("-0.743643887037151", "0.131825904205330"); err != nil {
//	    log.Fatal(err)
//	}
//	if err := s.Viewport().SetZoom("1e12"); err != nil {
//	    log.Fatal(err)
//	}
//	for !s.Done() {
//	    if _, err := s.Step(ctx); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//	s.SavePNG("deep.png")
//
// # Progressive rendering
//
// Step runs one pass. The first pass after a view change resets every pixel
// and runs to the presentation depth chosen by the Balancer; later passes
// resume to a deeper limit, sized to the frame budget, until the configured
// maximum depth. Image colors the counts at the depth reached so far.
//
// # GPU
//
// Importing github.com/gogpu/deepzoom/gpu registers a WebGPU compute
// backend. Sessions created WithGPU(true) run passes on it and fall back to
// the CPU when it fails.
//
// # Coordinate System
//
// Pixel (0, 0) is the top-left corner and maps to the viewport origin; x
// grows right along the real axis and y grows down along the imaginary axis.
package deepzoom
