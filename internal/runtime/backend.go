package runtime

import (
	"context"

	"github.com/jo-hoe/goinfer/internal/runtime/metadata"
	"github.com/jo-hoe/goinfer/internal/runtime/value"
)

// Backend is an interchangeable implementation of the inference execution
// engine. The default backend is linked at build time (see the backend
// package's build-tagged registration files); an alternative can be
// installed at startup with Use before any other library use.
type Backend interface {
	// Name returns a short stable identifier, e.g. "remote" or "inprocess".
	Name() string

	// Available reports whether the backend can run in this build and
	// environment. Unavailable backends describe why in the returned error.
	Available() error

	// OpenSession loads a model and prepares it for execution.
	OpenSession(ctx context.Context, src ModelSource, opts SessionOptions) (Session, error)
}

// Session is a loaded model ready to execute. Implementations must be safe
// for concurrent Run calls; Close releases resources and is idempotent.
type Session interface {
	// Run executes the model on the given named inputs and returns named
	// outputs. Inputs are validated against the model signature.
	Run(ctx context.Context, inputs map[string]*value.Tensor) (map[string]*value.Tensor, error)

	// Descriptor returns the model's parsed descriptor.
	Descriptor() *ModelDescriptor

	// Metadata returns the model's metadata.
	Metadata() *metadata.Model

	Close() error
}

// OptimizationLevel controls how aggressively a backend may rewrite the
// model before execution.
type OptimizationLevel int

const (
	// OptDisable disables all optimizations.
	OptDisable OptimizationLevel = iota
	// OptBasic enables basic, always-safe rewrites.
	OptBasic
	// OptExtended enables extended rewrites that may change numerics
	// within tolerance.
	OptExtended
	// OptAll enables every optimization the backend implements.
	OptAll
)

// ProviderOption is one key/value entry of an execution provider's
// configuration.
type ProviderOption struct {
	Key   string
	Value string
}

// ProviderConfig is the serialized configuration of one execution provider,
// in registration order.
type ProviderConfig struct {
	Name    string
	Options []ProviderOption
}

// SessionOptions carries everything a backend needs to open a session.
type SessionOptions struct {
	OptimizationLevel OptimizationLevel
	IntraThreads      int
	Providers         []ProviderConfig

	// StrictProviders causes OpenSession to fail when a requested provider
	// is not supported instead of skipping it.
	StrictProviders bool
}
