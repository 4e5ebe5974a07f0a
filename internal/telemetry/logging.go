package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// LevelTrace sits below slog.LevelDebug and is used for very chatty
// per-operation logging (tensor copies, per-request session runs).
const LevelTrace slog.Level = slog.LevelDebug - 4

// EnvLog is the environment variable controlling log verbosity.
// Its value is a comma-separated list of directives, e.g.
//
//	GOINFER_LOG="info,runtime.session=trace,store=warn"
//
// The first bare level sets the root verbosity; namespace=level entries
// override it for that namespace and all namespaces below it.
const EnvLog = "GOINFER_LOG"

// LevelSpec holds the parsed per-namespace verbosity configuration.
type LevelSpec struct {
	root   slog.Level
	scopes map[string]slog.Level
}

// ParseLevel converts a level name to a slog level.
// Recognized names are trace, debug, info, warn and error.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q (expected trace, debug, info, warn or error)", name)
	}
}

// ParseLevelSpec parses a verbosity directive list as described on EnvLog.
// An empty spec defaults to info.
func ParseLevelSpec(spec string) (*LevelSpec, error) {
	result := &LevelSpec{
		root:   slog.LevelInfo,
		scopes: make(map[string]slog.Level),
	}

	for _, directive := range strings.Split(spec, ",") {
		directive = strings.TrimSpace(directive)
		if directive == "" {
			continue
		}

		name, levelName, scoped := strings.Cut(directive, "=")
		if !scoped {
			level, err := ParseLevel(name)
			if err != nil {
				return nil, err
			}
			result.root = level
			continue
		}

		namespace := strings.TrimSpace(name)
		if namespace == "" {
			return nil, fmt.Errorf("invalid log directive %q: empty namespace", directive)
		}
		level, err := ParseLevel(levelName)
		if err != nil {
			return nil, fmt.Errorf("invalid log directive %q: %w", directive, err)
		}
		if _, exists := result.scopes[namespace]; exists {
			return nil, fmt.Errorf("duplicate log directive for namespace %q", namespace)
		}
		result.scopes[namespace] = level
	}

	return result, nil
}

// LevelFor returns the effective level for a namespace. Scoped directives
// apply to the namespace itself and everything below it, so a directive for
// "runtime" also covers "runtime.session". The longest matching scope wins.
func (s *LevelSpec) LevelFor(namespace string) slog.Level {
	level := s.root
	bestLen := -1
	for scope, scopeLevel := range s.scopes {
		if scope != namespace && !strings.HasPrefix(namespace, scope+".") {
			continue
		}
		if len(scope) > bestLen {
			bestLen = len(scope)
			level = scopeLevel
		}
	}
	return level
}

var (
	mu      sync.RWMutex
	spec    = &LevelSpec{root: slog.LevelInfo, scopes: map[string]slog.Level{}}
	handler slog.Handler = slog.NewTextHandler(os.Stderr, defaultHandlerOptions(LevelTrace))
)

func defaultHandlerOptions(min slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: min,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			// slog renders custom levels as "DEBUG-4"; name ours properly.
			if a.Key == slog.LevelKey {
				if level, ok := a.Value.Any().(slog.Level); ok && level == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
}

// Setup parses EnvLog and installs the resulting verbosity configuration.
// Log output goes to w; pass os.Stderr for services whose stdout carries
// payload data. Setup also installs the root logger as slog's default.
func Setup(w io.Writer) error {
	parsed, err := ParseLevelSpec(os.Getenv(EnvLog))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", EnvLog, err)
	}

	mu.Lock()
	spec = parsed
	// Level gating happens per namespace in leveledHandler; the base handler
	// must not filter anything out on its own.
	handler = slog.NewTextHandler(w, defaultHandlerOptions(LevelTrace))
	mu.Unlock()

	slog.SetDefault(Logger(""))
	return nil
}

// Logger returns a logger for the given dotted namespace, filtered to the
// level configured for that namespace. The namespace is attached to every
// record as the "namespace" attribute.
func Logger(namespace string) *slog.Logger {
	mu.RLock()
	base := handler
	level := spec.LevelFor(namespace)
	mu.RUnlock()

	scoped := &leveledHandler{inner: base, min: level}
	logger := slog.New(scoped)
	if namespace != "" {
		logger = logger.With("namespace", namespace)
	}
	return logger
}

// leveledHandler gates an inner handler at a fixed minimum level.
type leveledHandler struct {
	inner slog.Handler
	min   slog.Level
}

func (h *leveledHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.min
}

func (h *leveledHandler) Handle(ctx context.Context, record slog.Record) error {
	return h.inner.Handle(ctx, record)
}

func (h *leveledHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &leveledHandler{inner: h.inner.WithAttrs(attrs), min: h.min}
}

func (h *leveledHandler) WithGroup(name string) slog.Handler {
	return &leveledHandler{inner: h.inner.WithGroup(name), min: h.min}
}
