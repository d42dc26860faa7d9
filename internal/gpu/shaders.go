//go:build !nogpu

package gpu

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/deepzoom/internal/fixed"
)

//go:embed shaders/escape.wgsl
var escapeShaderTemplate string

// wordCountDecl is the line of the template that fixes the word count.
const wordCountDecl = "const word_count: u32 = 8u;"

// WorkgroupWidth is the x size of the kernel workgroup.
const WorkgroupWidth = 64

// ErrShaderTemplate is returned when the embedded kernel lacks the word
// count declaration.
var ErrShaderTemplate = errors.New("gpu: shader template has no word count declaration")

// KernelSource returns the WGSL kernel specialized for wordCount.
func KernelSource(wordCount int) (string, error) {
	if !fixed.ValidWordCount(wordCount) {
		return "", fmt.Errorf("%w: %d", fixed.ErrWordCount, wordCount)
	}
	if !strings.Contains(escapeShaderTemplate, wordCountDecl) {
		return "", ErrShaderTemplate
	}
	decl := fmt.Sprintf("const word_count: u32 = %du;", wordCount)
	return strings.Replace(escapeShaderTemplate, wordCountDecl, decl, 1), nil
}

// CompileKernel compiles the kernel for wordCount to SPIR-V words.
func CompileKernel(wordCount int) ([]uint32, error) {
	src, err := KernelSource(wordCount)
	if err != nil {
		return nil, err
	}
	spirvBytes, err := naga.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("gpu: compile kernel (%d words): %w", wordCount, err)
	}

	// SPIR-V is little-endian 32-bit words
	spirvCode := make([]uint32, len(spirvBytes)/4)
	for i := range spirvCode {
		spirvCode[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return spirvCode, nil
}

// createShaderModule creates a HAL shader module from SPIR-V code.
func createShaderModule(device hal.Device, label string, spirvCode []uint32) (hal.ShaderModule, error) {
	return device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label: label,
		Source: hal.ShaderSource{
			SPIRV: spirvCode,
		},
	})
}
