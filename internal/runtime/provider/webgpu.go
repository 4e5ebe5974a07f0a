package provider

import (
	"runtime"
	"strconv"

	rt "github.com/jo-hoe/goinfer/internal/runtime"
)

// PreferredLayout selects the tensor memory layout a GPU provider should
// prefer.
type PreferredLayout int

const (
	// LayoutNCHW stores channels before spatial dimensions.
	LayoutNCHW PreferredLayout = iota
	// LayoutNHWC stores channels last, matching raw RGBA buffers.
	LayoutNHWC
)

func (l PreferredLayout) String() string {
	if l == LayoutNHWC {
		return "NHWC"
	}
	return "NCHW"
}

// BufferCacheMode controls how a GPU provider recycles device buffers.
type BufferCacheMode int

const (
	// CacheDisabled allocates and frees every buffer.
	CacheDisabled BufferCacheMode = iota
	// CacheLazyRelease frees buffers only at session end.
	CacheLazyRelease
	// CacheSimple reuses buffers of exactly matching size.
	CacheSimple
	// CacheBucket reuses buffers from size-bucketed pools.
	CacheBucket
)

func (m BufferCacheMode) String() string {
	switch m {
	case CacheLazyRelease:
		return "lazyRelease"
	case CacheSimple:
		return "simple"
	case CacheBucket:
		return "bucket"
	default:
		return "disabled"
	}
}

// WebGPU configures the WebGPU execution provider. Whether it is honored
// depends on the backend; the remote backend forwards the options, the
// in-process backend skips it.
type WebGPU struct {
	options Options
}

// NewWebGPU creates a WebGPU provider with default options.
func NewWebGPU() *WebGPU {
	return &WebGPU{}
}

// WithPreferredLayout sets the preferred tensor layout.
func (p *WebGPU) WithPreferredLayout(layout PreferredLayout) *WebGPU {
	p.options.Set("webgpu:preferredLayout", layout.String())
	return p
}

// WithDeviceID pins execution to a device index.
func (p *WebGPU) WithDeviceID(id int) *WebGPU {
	p.options.Set("webgpu:deviceId", strconv.Itoa(id))
	return p
}

// WithGraphCapture toggles whole-graph capture and replay.
func (p *WebGPU) WithGraphCapture(enabled bool) *WebGPU {
	p.options.Set("webgpu:enableGraphCapture", boolOption(enabled))
	return p
}

// WithStorageBufferCacheMode sets the cache mode for storage buffers.
func (p *WebGPU) WithStorageBufferCacheMode(mode BufferCacheMode) *WebGPU {
	p.options.Set("webgpu:storageBufferCacheMode", mode.String())
	return p
}

// WithUniformBufferCacheMode sets the cache mode for uniform buffers.
func (p *WebGPU) WithUniformBufferCacheMode(mode BufferCacheMode) *WebGPU {
	p.options.Set("webgpu:uniformBufferCacheMode", mode.String())
	return p
}

// WithArbitraryOption sets a raw option for forward compatibility.
func (p *WebGPU) WithArbitraryOption(key, value string) *WebGPU {
	p.options.Set(key, value)
	return p
}

func (p *WebGPU) Name() string {
	return "webgpu"
}

func (p *WebGPU) SupportedByPlatform() bool {
	switch runtime.GOOS {
	case "windows", "linux", "js":
		return true
	default:
		return false
	}
}

func (p *WebGPU) Config() rt.ProviderConfig {
	return rt.ProviderConfig{Name: p.Name(), Options: p.options.Entries()}
}
