//go:build !inprocess

package backend

import (
	"github.com/jo-hoe/goinfer/internal/backend/remote"
	"github.com/jo-hoe/goinfer/internal/runtime"
)

func init() {
	runtime.RegisterDefaultBackend(func() runtime.Backend {
		return remote.New()
	})
}
