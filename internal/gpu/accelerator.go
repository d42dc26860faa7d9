//go:build !nogpu

package gpu

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gogpu/deepzoom/internal/kernel"
)

// Accelerator adapts a Dispatcher to deepzoom.PassAccelerator. The device is
// opened by Init, not by construction, so registration can fail cleanly.
type Accelerator struct {
	mu sync.Mutex
	d  *Dispatcher
}

// Name returns the accelerator name.
func (a *Accelerator) Name() string { return "wgpu" }

// Init opens the GPU device.
func (a *Accelerator) Init() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.d != nil {
		return nil
	}
	d, err := Open()
	if err != nil {
		return err
	}
	a.d = d
	return nil
}

// Close releases the device.
func (a *Accelerator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.d != nil {
		a.d.Close()
		a.d = nil
	}
}

// RunPass runs one pass on the device.
func (a *Accelerator) RunPass(ctx context.Context, p *kernel.Params, b *kernel.Buffers) (kernel.Stats, error) {
	a.mu.Lock()
	d := a.d
	a.mu.Unlock()
	if d == nil {
		return kernel.Stats{}, ErrClosed
	}
	return d.RunPass(ctx, p, b)
}

// SetLogger routes the package logs to l.
func (a *Accelerator) SetLogger(l *slog.Logger) { SetLogger(l) }
