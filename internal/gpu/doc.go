//go:build !nogpu

// Package gpu runs escape-time passes as a WebGPU compute shader.
//
// The kernel is written in WGSL with the word count as a compile-time
// constant. It is specialized per word count, compiled to SPIR-V by
// gogpu/naga and dispatched through the gogpu/wgpu HAL, one invocation per
// pixel. The shader reads and writes the same checkpoint layout as the CPU
// runner in internal/kernel, so a pass may move between the two backends
// without losing progress.
//
// # Dispatch
//
//	d, err := gpu.Open()
//	if err != nil {
//	    // no adapter; stay on the CPU
//	}
//	defer d.Close()
//	stats, err := d.RunPass(ctx, params, buffers)
//
// Each pass uploads the parameter record, both checkpoint buffers, runs
// ceil(width/64)×height workgroups and reads both buffers back.
package gpu
