//go:build inprocess

package backend

import (
	"github.com/jo-hoe/goinfer/internal/backend/inprocess"
	"github.com/jo-hoe/goinfer/internal/runtime"
)

func init() {
	runtime.RegisterDefaultBackend(func() runtime.Backend {
		return inprocess.New()
	})
}
