package provider

import (
	"strconv"

	"github.com/jo-hoe/goinfer/internal/runtime"
)

// CPU is the baseline execution provider. It is supported everywhere and
// acts as the fallback when nothing faster is configured.
type CPU struct {
	options Options
}

// NewCPU creates a CPU provider with default options.
func NewCPU() *CPU {
	return &CPU{}
}

// WithArenaAllocator toggles the pooled arena allocator for intermediate
// buffers.
func (p *CPU) WithArenaAllocator(enabled bool) *CPU {
	p.options.Set("cpu:arenaAllocator", boolOption(enabled))
	return p
}

// WithThreads caps the number of worker goroutines used per run.
func (p *CPU) WithThreads(n int) *CPU {
	p.options.Set("cpu:threads", strconv.Itoa(n))
	return p
}

// WithArbitraryOption sets a raw option for forward compatibility with
// backend-specific keys.
func (p *CPU) WithArbitraryOption(key, value string) *CPU {
	p.options.Set(key, value)
	return p
}

func (p *CPU) Name() string {
	return "cpu"
}

func (p *CPU) SupportedByPlatform() bool {
	return true
}

func (p *CPU) Config() runtime.ProviderConfig {
	return runtime.ProviderConfig{Name: p.Name(), Options: p.options.Entries()}
}
