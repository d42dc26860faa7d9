//go:build !nogpu

// Package gpu registers the WebGPU pass accelerator.
//
// Import this package to let sessions created WithGPU(true) run escape-time
// passes as a compute shader. The kernel uses the same fixed-point layout as
// the CPU path, so a render may switch between the two at any pass.
//
// If GPU initialization fails (no Vulkan adapter available), the
// registration is skipped with a warning and passes stay on the CPU.
//
// Usage:
//
//	import _ "github.com/gogpu/deepzoom/gpu" // enable GPU passes
package gpu

import (
	"github.com/gogpu/deepzoom"
	gpuimpl "github.com/gogpu/deepzoom/internal/gpu"
)

func init() {
	if err := deepzoom.RegisterAccelerator(&gpuimpl.Accelerator{}); err != nil {
		deepzoom.Logger().Warn("GPU accelerator not available", "err", err)
	}
}
