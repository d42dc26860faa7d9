//go:build !nogpu

package gpu

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/deepzoom/internal/kernel"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// fenceTimeout bounds the wait for one pass. Deep passes on large grids are
// the slowest thing the kernel does; anything beyond this is a hung device.
const fenceTimeout = 30 * time.Second

var (
	// ErrNoAdapter is returned by Open when no GPU backend or adapter exists.
	ErrNoAdapter = errors.New("gpu: no adapter available")

	// ErrClosed is returned by RunPass after Close.
	ErrClosed = errors.New("gpu: dispatcher closed")
)

// pipeline is the compiled kernel for one word count.
type pipeline struct {
	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	compute    hal.ComputePipeline
}

// Dispatcher runs passes on a GPU device. Pipelines are built lazily, one
// per word count, and the least recently used is destroyed once more than
// DefaultMaxPipelines are held.
//
// Thread safety: RunPass calls are serialized internally.
type Dispatcher struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	name     string

	pipelines *pipelineCache

	externalDevice bool // true when using shared device (don't destroy on Close)
	closed         bool
}

// Open creates a dispatcher on the first discrete or integrated Vulkan
// adapter, or the first adapter of any kind.
func Open() (*Dispatcher, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan backend not registered", ErrNoAdapter)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("%w: create instance: %w", ErrNoAdapter, err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("gpu: open device: %w", err)
	}

	d := &Dispatcher{
		instance: instance,
		device:   openDev.Device,
		queue:    openDev.Queue,
		name:     selected.Info.Name,
	}
	d.pipelines = newPipelineCache(DefaultMaxPipelines, d.destroyPipeline)
	slogger().Info("gpu: dispatcher ready", "adapter", d.name)
	return d, nil
}

// NewDispatcher wraps a device owned by the caller. Close releases the
// pipelines but leaves the device alone.
func NewDispatcher(device hal.Device, queue hal.Queue) (*Dispatcher, error) {
	if device == nil || queue == nil {
		return nil, fmt.Errorf("%w: nil device or queue", ErrNoAdapter)
	}
	d := &Dispatcher{
		device:         device,
		queue:          queue,
		name:           "external",
		externalDevice: true,
	}
	d.pipelines = newPipelineCache(DefaultMaxPipelines, d.destroyPipeline)
	return d, nil
}

// Name returns the adapter name.
func (d *Dispatcher) Name() string { return d.name }

// Close destroys every pipeline and, unless the device is shared, the
// device itself.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	d.pipelines.clear()
	if !d.externalDevice {
		if d.device != nil {
			d.device.Destroy()
		}
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.device = nil
	d.instance = nil
	d.queue = nil
}

// Prepare builds the pipeline for wordCount ahead of the first pass.
func (d *Dispatcher) Prepare(wordCount int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	_, err := d.pipelineFor(wordCount)
	return err
}

// SetMaxPipelines changes how many compiled word counts are kept.
func (d *Dispatcher) SetMaxPipelines(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pipelines.setCapacity(n)
}

// PipelineStats returns the pipeline cache counters.
func (d *Dispatcher) PipelineStats() PipelineStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pipelines.stats()
}

func (d *Dispatcher) pipelineFor(wordCount int) (*pipeline, error) {
	if pl, ok := d.pipelines.get(wordCount); ok {
		return pl, nil
	}
	spirv, err := CompileKernel(wordCount)
	if err != nil {
		return nil, err
	}

	pl := &pipeline{}
	label := fmt.Sprintf("escape_%d", wordCount)
	if pl.shader, err = createShaderModule(d.device, label, spirv); err != nil {
		return nil, fmt.Errorf("gpu: create shader module: %w", err)
	}
	pl.bindLayout, err = d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: label + "_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
			{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		d.destroyPipeline(pl)
		return nil, fmt.Errorf("gpu: create bind group layout: %w", err)
	}
	pl.pipeLayout, err = d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: label + "_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{pl.bindLayout},
	})
	if err != nil {
		d.destroyPipeline(pl)
		return nil, fmt.Errorf("gpu: create pipeline layout: %w", err)
	}
	pl.compute, err = d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: label + "_pipeline", Layout: pl.pipeLayout,
		Compute: hal.ComputeState{Module: pl.shader, EntryPoint: "main"},
	})
	if err != nil {
		d.destroyPipeline(pl)
		return nil, fmt.Errorf("gpu: create compute pipeline: %w", err)
	}

	d.pipelines.put(wordCount, pl)
	slogger().Debug("gpu: pipeline built", "words", wordCount, "spirv_words", len(spirv))
	return pl, nil
}

func (d *Dispatcher) destroyPipeline(pl *pipeline) {
	if d.device == nil {
		return
	}
	if pl.compute != nil {
		d.device.DestroyComputePipeline(pl.compute)
	}
	if pl.pipeLayout != nil {
		d.device.DestroyPipelineLayout(pl.pipeLayout)
	}
	if pl.bindLayout != nil {
		d.device.DestroyBindGroupLayout(pl.bindLayout)
	}
	if pl.shader != nil {
		d.device.DestroyShaderModule(pl.shader)
	}
}

// RunPass advances every pixel of b to the depth limit of p on the GPU.
//
// It follows the checkpoint rules of kernel.Runner.RunPass. The dispatch
// itself cannot be interrupted: ctx is checked before submission, and a
// cancellation observed then leaves the buffers untouched.
func (d *Dispatcher) RunPass(ctx context.Context, p *kernel.Params, b *kernel.Buffers) (kernel.Stats, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return kernel.Stats{}, ErrClosed
	}
	if err := b.Check(p); err != nil {
		return kernel.Stats{}, err
	}
	pl, err := d.pipelineFor(p.WordCount())
	if err != nil {
		return kernel.Stats{}, err
	}
	if err := ctx.Err(); err != nil {
		return kernel.Stats{}, err
	}

	start := time.Now()
	if err := b.Begin(p); err != nil {
		return kernel.Stats{}, err
	}
	err = d.dispatch(pl, p, b)
	b.Finish(p, err)
	if err != nil {
		return kernel.Stats{}, err
	}
	b.RefreshActive()

	st := kernel.Stats{
		Tiles:   b.Tiles().TileCount(),
		Pixels:  p.Width * p.Height,
		Active:  b.Tiles().ActiveCount(),
		Elapsed: time.Since(start),
	}
	slogger().Debug("gpu: pass done", "depth", p.DepthLimit, "pixels", st.Pixels, "elapsed", st.Elapsed)
	return st, nil
}

// passBuffers holds the device buffers of one pass.
type passBuffers struct {
	params, iterations, intermediate hal.Buffer
	iterStaging, interStaging        hal.Buffer
}

func (d *Dispatcher) destroyBuffers(pb *passBuffers) {
	for _, buf := range []hal.Buffer{pb.params, pb.iterations, pb.intermediate, pb.iterStaging, pb.interStaging} {
		if buf != nil {
			d.device.DestroyBuffer(buf)
		}
	}
}

func (d *Dispatcher) createBuffer(label string, size uint64, usage gputypes.BufferUsage) (hal.Buffer, error) {
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{Label: label, Size: size, Usage: usage})
	if err != nil {
		return nil, fmt.Errorf("gpu: create %s buffer: %w", label, err)
	}
	return buf, nil
}

func (d *Dispatcher) dispatch(pl *pipeline, p *kernel.Params, b *kernel.Buffers) error {
	paramBytes := packWords(p.Encode(make([]uint32, 0, kernel.EncodedSize(p.WordCount()))))
	iterBytes := packWords(b.Iterations)
	interBytes := packWords(b.Intermediate)
	iterSize, interSize := uint64(len(iterBytes)), uint64(len(interBytes))

	storage := gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst
	staging := gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst

	var pb passBuffers
	defer d.destroyBuffers(&pb)
	var err error
	if pb.params, err = d.createBuffer("escape_params", uint64(len(paramBytes)), gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst); err != nil {
		return err
	}
	if pb.iterations, err = d.createBuffer("escape_iterations", iterSize, storage); err != nil {
		return err
	}
	if pb.intermediate, err = d.createBuffer("escape_intermediate", interSize, storage); err != nil {
		return err
	}
	if pb.iterStaging, err = d.createBuffer("escape_iterations_staging", iterSize, staging); err != nil {
		return err
	}
	if pb.interStaging, err = d.createBuffer("escape_intermediate_staging", interSize, staging); err != nil {
		return err
	}

	d.queue.WriteBuffer(pb.params, 0, paramBytes)
	d.queue.WriteBuffer(pb.iterations, 0, iterBytes)
	d.queue.WriteBuffer(pb.intermediate, 0, interBytes)

	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: "escape_bind", Layout: pl.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: pb.params.NativeHandle(), Offset: 0, Size: uint64(len(paramBytes))}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: pb.iterations.NativeHandle(), Offset: 0, Size: iterSize}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: pb.intermediate.NativeHandle(), Offset: 0, Size: interSize}},
		},
	})
	if err != nil {
		return fmt.Errorf("gpu: create bind group: %w", err)
	}
	defer d.device.DestroyBindGroup(bg)

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "escape_encoder"})
	if err != nil {
		return fmt.Errorf("gpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("escape"); err != nil {
		return fmt.Errorf("gpu: begin encoding: %w", err)
	}
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "escape_pass"})
	pass.SetPipeline(pl.compute)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch(workgroups(p.Width, p.Height))
	pass.End()
	encoder.CopyBufferToBuffer(pb.iterations, pb.iterStaging, []hal.BufferCopy{{SrcOffset: 0, DstOffset: 0, Size: iterSize}})
	encoder.CopyBufferToBuffer(pb.intermediate, pb.interStaging, []hal.BufferCopy{{SrcOffset: 0, DstOffset: 0, Size: interSize}})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("gpu: end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("gpu: create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)
	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("gpu: submit: %w", err)
	}
	fenceOK, err := d.device.Wait(fence, 1, fenceTimeout)
	if err != nil || !fenceOK {
		return fmt.Errorf("gpu: wait for pass: ok=%v err=%w", fenceOK, err)
	}

	if err := d.queue.ReadBuffer(pb.iterStaging, 0, iterBytes); err != nil {
		return fmt.Errorf("gpu: read iterations: %w", err)
	}
	if err := d.queue.ReadBuffer(pb.interStaging, 0, interBytes); err != nil {
		return fmt.Errorf("gpu: read orbits: %w", err)
	}
	unpackWords(iterBytes, b.Iterations)
	unpackWords(interBytes, b.Intermediate)
	return nil
}

// packWords serializes words little-endian, the layout of WGSL u32 arrays.
// Counts and fixed.Word orbits share the representation.
// maxWorkgroupsPerDimension is the default WebGPU limit on each dimension
// of a dispatch.
const maxWorkgroupsPerDimension = 65535

// workgroups returns the dispatch size for a grid: one row of workgroups per
// pixel row. Validated grids never exceed maxWorkgroupsPerDimension.
func workgroups(width, height int) (x, y, z uint32) {
	//nolint:gosec // grid sides are bounded by kernel.MaxGridSide
	return uint32((width + WorkgroupWidth - 1) / WorkgroupWidth), uint32(height), 1
}

func packWords(words []uint32) []byte {
	out := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[4*i:], w)
	}
	return out
}

func unpackWords(data []byte, dst []uint32) {
	for i := range dst {
		dst[i] = binary.LittleEndian.Uint32(data[4*i:])
	}
}
