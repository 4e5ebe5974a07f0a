// Package provider implements execution provider configuration. A provider
// is a named, ordered set of string options handed to the backend when a
// session is opened; backends pick the providers they understand and skip
// (or, in strict mode, reject) the rest.
package provider

import (
	"github.com/jo-hoe/goinfer/internal/runtime"
)

// Provider is a configured execution provider ready to attach to session
// options.
type Provider interface {
	// Name returns the provider identifier, e.g. "cpu" or "webgpu".
	Name() string

	// SupportedByPlatform reports whether the provider can work on the
	// current OS and architecture at all.
	SupportedByPlatform() bool

	// Config serializes the provider's options in insertion order.
	Config() runtime.ProviderConfig
}

// Options is an ordered string key/value option set. Setting an existing
// key replaces its value in place, preserving the original position so
// serialization stays stable.
type Options struct {
	entries []runtime.ProviderOption
}

// Set adds or replaces an option.
func (o *Options) Set(key, value string) {
	for i := range o.entries {
		if o.entries[i].Key == key {
			o.entries[i].Value = value
			return
		}
	}
	o.entries = append(o.entries, runtime.ProviderOption{Key: key, Value: value})
}

// Get returns the value for a key and whether it is present.
func (o *Options) Get(key string) (string, bool) {
	for _, entry := range o.entries {
		if entry.Key == key {
			return entry.Value, true
		}
	}
	return "", false
}

// Entries returns the options in insertion order.
func (o *Options) Entries() []runtime.ProviderOption {
	out := make([]runtime.ProviderOption, len(o.entries))
	copy(out, o.entries)
	return out
}

func boolOption(enabled bool) string {
	if enabled {
		return "1"
	}
	return "0"
}
