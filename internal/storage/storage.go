// Package storage defines the extraction archive backends.
package storage

import (
	"errors"

	"github.com/vehicle-extractor/extension/pkg/core"
)

// ErrNotInitialized is returned when a backend is used before Init.
var ErrNotInitialized = errors.New("storage backend not initialized")

// Backend is the interface all archive implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// RecordExtraction archives one completed extraction.
	RecordExtraction(e *core.Extraction) error
}

// Lister is an optional interface for backends that can read extractions back.
type Lister interface {
	// RecentExtractions returns up to limit extractions, newest first.
	RecentExtractions(limit int) ([]core.Extraction, error)
}

// ModelCounter is an optional interface for backends that can aggregate
// extractions per model.
type ModelCounter interface {
	CountByModel() (map[string]int64, error)
}

// Flusher is an optional interface for backends that buffer writes.
type Flusher interface {
	Flush() error
}
