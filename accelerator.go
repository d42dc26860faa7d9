package deepzoom

import (
	"context"
	"errors"
	"sync"

	"github.com/gogpu/deepzoom/internal/kernel"
)

// ErrFallbackToCPU indicates the accelerator cannot run this pass.
// The session transparently runs it on the CPU instead.
var ErrFallbackToCPU = errors.New("deepzoom: falling back to CPU")

// PassAccelerator runs escape-time passes on other hardware.
//
// Implementations live in backend packages inside this module. Users opt
// in via blank import:
//
//	import _ "github.com/gogpu/deepzoom/gpu" // enables GPU passes
type PassAccelerator interface {
	// Name returns the accelerator name (e.g., "wgpu").
	Name() string

	// Init acquires the device. Called once during registration.
	Init() error

	// Close releases the device.
	Close()

	// RunPass has the contract of the CPU pass runner: it validates before
	// touching b, and leaves b resumable when a resume pass fails.
	RunPass(ctx context.Context, p *kernel.Params, b *kernel.Buffers) (kernel.Stats, error)
}

var (
	accelMu sync.RWMutex
	accel   PassAccelerator
)

// RegisterAccelerator registers the accelerator used by sessions created
// WithGPU(true).
//
// Only one accelerator can be registered. Subsequent calls replace the previous one.
// The accelerator's Init() method is called during registration.
// If Init() fails, the accelerator is not registered and the error is returned.
func RegisterAccelerator(a PassAccelerator) error {
	if a == nil {
		return errors.New("deepzoom: accelerator must not be nil")
	}
	if err := a.Init(); err != nil {
		return err
	}
	propagateLogger(a, Logger())
	accelMu.Lock()
	old := accel
	accel = a
	accelMu.Unlock()
	if old != nil {
		old.Close()
	}
	Logger().Info("deepzoom: accelerator registered", "name", a.Name())
	return nil
}

// Accelerator returns the currently registered accelerator, or nil if none.
func Accelerator() PassAccelerator {
	accelMu.RLock()
	a := accel
	accelMu.RUnlock()
	return a
}

// UnregisterAccelerator closes and removes the registered accelerator.
func UnregisterAccelerator() {
	accelMu.Lock()
	old := accel
	accel = nil
	accelMu.Unlock()
	if old != nil {
		old.Close()
	}
}
