package runtime

import (
	"fmt"
	"sync"

	"github.com/jo-hoe/goinfer/internal/telemetry"
)

// Version is overridden via ldflags during release builds.
var Version = "dev"

// Environment is the process-wide runtime state: a name used in logs and
// the backend every new session is opened against. There is at most one
// Environment per process.
type Environment struct {
	name    string
	backend Backend
}

var (
	envMu sync.Mutex
	env   *Environment

	// override is set by Use before initialization.
	override Backend

	// defaultFactory is installed by the build-tag-selected default backend
	// registration (see internal/backend).
	defaultFactory func() Backend
)

// RegisterDefaultBackend installs the factory for the build's default
// backend. It is called from init functions of build-tagged registration
// files; exactly one such file is compiled into any build.
func RegisterDefaultBackend(factory func() Backend) {
	envMu.Lock()
	defer envMu.Unlock()
	if defaultFactory != nil {
		panic("runtime: default backend registered twice; build tag configuration is broken")
	}
	defaultFactory = factory
}

// Use installs an alternative backend implementation. It must be called
// before Init or any other library use; afterwards it fails with
// ErrEnvironmentInitialized.
func Use(backend Backend) error {
	if backend == nil {
		return NewError(CodeInvalidArgument, "cannot install nil backend")
	}
	envMu.Lock()
	defer envMu.Unlock()
	if env != nil {
		return ErrEnvironmentInitialized
	}
	if err := backend.Available(); err != nil {
		return Errorf(CodeBackendUnavailable, "backend %s is not available: %w", backend.Name(), err)
	}
	override = backend
	return nil
}

// Option configures environment initialization.
type Option func(*Environment)

// WithName sets the environment name used in log records.
func WithName(name string) Option {
	return func(e *Environment) {
		e.name = name
	}
}

// Init creates the process environment. Later calls return the existing
// environment and ignore further options. Most callers can rely on Active
// instead, which initializes lazily with defaults.
func Init(opts ...Option) (*Environment, error) {
	envMu.Lock()
	defer envMu.Unlock()
	return initLocked(opts...)
}

func initLocked(opts ...Option) (*Environment, error) {
	if env != nil {
		return env, nil
	}

	created := &Environment{name: "goinfer"}
	for _, opt := range opts {
		opt(created)
	}

	backend := override
	if backend == nil {
		if defaultFactory == nil {
			return nil, NewError(CodeBackendUnavailable, "no default backend linked into this build and none installed via Use")
		}
		backend = defaultFactory()
	}
	if err := backend.Available(); err != nil {
		return nil, Errorf(CodeBackendUnavailable, "backend %s is not available: %w", backend.Name(), err)
	}

	created.backend = backend
	env = created

	telemetry.Logger("runtime").Info("environment initialized",
		"name", created.name,
		"backend", backend.Name(),
		"version", Version)
	return env, nil
}

// Active returns the process environment, initializing it with defaults on
// first use.
func Active() (*Environment, error) {
	envMu.Lock()
	defer envMu.Unlock()
	return initLocked()
}

// Name returns the environment name.
func (e *Environment) Name() string {
	return e.name
}

// Backend returns the backend sessions are opened against.
func (e *Environment) Backend() Backend {
	return e.backend
}

// Info returns a human-readable build summary, including the library
// version and the active or default backend.
func Info() string {
	envMu.Lock()
	defer envMu.Unlock()

	backendName := "none"
	switch {
	case env != nil:
		backendName = env.backend.Name()
	case override != nil:
		backendName = override.Name()
	case defaultFactory != nil:
		backendName = defaultFactory().Name()
	}
	return fmt.Sprintf("goinfer %s (backend=%s)", Version, backendName)
}

// reset clears the environment and any installed override. Test use only.
func reset() {
	envMu.Lock()
	defer envMu.Unlock()
	env = nil
	override = nil
}
