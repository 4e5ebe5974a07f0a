// Package store persists uploaded images and their detection results.
package store

import (
	"time"

	"github.com/jo-hoe/goinfer/internal/detect"
)

// Record is one stored image together with the detections computed for it.
type Record struct {
	ID         string
	Name       string
	Image      []byte
	Detections []detect.Detection
	CreatedAt  time.Time
}

// Service is the persistence interface of the demo server.
type Service interface {
	// Create inserts an image with its detections in a single statement and
	// returns the generated id.
	Create(name string, image []byte, detections []detect.Detection) (string, error)

	// Get returns one record by id.
	Get(id string) (*Record, error)

	// List returns all records, newest first, without image payloads.
	List() ([]*Record, error)

	// ImageByID returns the stored image payload.
	ImageByID(id string) ([]byte, error)

	Delete(id string) error

	Close() error
}
