// Package session builds and commits inference sessions against the active
// backend.
package session

import (
	"context"

	"github.com/jo-hoe/goinfer/internal/runtime"
	"github.com/jo-hoe/goinfer/internal/runtime/provider"
	"github.com/jo-hoe/goinfer/internal/telemetry"
)

// Builder accumulates session options fluently. Configuration errors are
// deferred until Commit so call sites stay chainable.
type Builder struct {
	opts runtime.SessionOptions
	err  error
}

// NewBuilder creates a builder with default options: basic optimizations,
// backend-chosen thread count, no execution providers.
func NewBuilder() *Builder {
	return &Builder{
		opts: runtime.SessionOptions{
			OptimizationLevel: runtime.OptBasic,
		},
	}
}

// WithOptimizationLevel sets how aggressively the backend may rewrite the
// model.
func (b *Builder) WithOptimizationLevel(level runtime.OptimizationLevel) *Builder {
	if level < runtime.OptDisable || level > runtime.OptAll {
		return b.fail(runtime.Errorf(runtime.CodeInvalidArgument, "invalid optimization level %d", level))
	}
	b.opts.OptimizationLevel = level
	return b
}

// WithIntraThreads caps parallelism inside a single Run call. Zero means
// backend-chosen.
func (b *Builder) WithIntraThreads(n int) *Builder {
	if n < 0 {
		return b.fail(runtime.Errorf(runtime.CodeInvalidArgument, "intra thread count cannot be negative, got %d", n))
	}
	b.opts.IntraThreads = n
	return b
}

// WithExecutionProviders registers execution providers in priority order.
// Providers the platform cannot support are skipped with a warning unless
// WithStrictProviders is set.
func (b *Builder) WithExecutionProviders(providers ...provider.Provider) *Builder {
	logger := telemetry.Logger("runtime.session")
	for _, p := range providers {
		if !p.SupportedByPlatform() {
			if b.opts.StrictProviders {
				return b.fail(runtime.Errorf(runtime.CodeBackendUnavailable, "execution provider %s is not supported on this platform", p.Name()))
			}
			logger.Warn("skipping unsupported execution provider", "provider", p.Name())
			continue
		}
		b.opts.Providers = append(b.opts.Providers, p.Config())
	}
	return b
}

// WithStrictProviders makes unsupported execution providers a hard error
// instead of a skipped warning. Set it before WithExecutionProviders.
func (b *Builder) WithStrictProviders() *Builder {
	b.opts.StrictProviders = true
	return b
}

// CommitFromFile loads the model at path and opens a session on the active
// backend.
func (b *Builder) CommitFromFile(ctx context.Context, path string) (runtime.Session, error) {
	return b.commit(ctx, runtime.FileSource(path))
}

// CommitFromBytes opens a session for an in-memory model.
func (b *Builder) CommitFromBytes(ctx context.Context, data []byte) (runtime.Session, error) {
	return b.commit(ctx, runtime.BytesSource(data))
}

func (b *Builder) commit(ctx context.Context, src runtime.ModelSource) (runtime.Session, error) {
	if b.err != nil {
		return nil, b.err
	}

	environment, err := runtime.Active()
	if err != nil {
		return nil, err
	}

	backend := environment.Backend()
	sess, err := backend.OpenSession(ctx, src, b.opts)
	if err != nil {
		return nil, err
	}

	telemetry.Logger("runtime.session").Info("session opened",
		"backend", backend.Name(),
		"model", sess.Metadata().Name,
		"optimization_level", int(b.opts.OptimizationLevel),
		"provider_count", len(b.opts.Providers))
	return sess, nil
}

func (b *Builder) fail(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}
