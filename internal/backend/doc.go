// Package backend selects the default inference backend at build time.
//
// Importing it for side effects registers exactly one default backend with
// the runtime: the networked remote backend in regular builds, or the
// pure-Go in-process backend when building with -tags inprocess. The two
// registration files carry mutually exclusive build constraints, so no build
// can link both defaults.
//
// Either concrete backend can still be installed explicitly at startup with
// runtime.Use, regardless of build tags.
package backend
