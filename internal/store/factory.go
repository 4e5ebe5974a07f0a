package store

import (
	"fmt"

	"github.com/jo-hoe/goinfer/internal/telemetry"
)

// New creates a store for the configured driver. The schema is created
// idempotently, which matters for in-memory sqlite databases.
func New(driver, connectionString string) (Service, error) {
	switch driver {
	case "sqlite":
		service, err := NewSQLiteStore(connectionString)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		telemetry.Logger("store").Info("store initialized", "driver", driver)
		return service, nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}
}
