// Package memory keeps recent extractions in process memory and can export
// them as JSON when closed.
package memory

import (
	"sort"

	"github.com/vehicle-extractor/extension/internal/config"
	"github.com/vehicle-extractor/extension/internal/queue"
	"github.com/vehicle-extractor/extension/internal/storage"
	"github.com/vehicle-extractor/extension/pkg/core"
)

// DefaultLimit applies when the configured limit is not positive.
const DefaultLimit = 256

// Backend stores extractions in memory.
type Backend struct {
	cfg     config.MemoryConfig
	records *queue.Queue[core.Extraction]

	// set after Close when an export was written
	exportedPath string
}

var (
	_ storage.Backend      = (*Backend)(nil)
	_ storage.Lister       = (*Backend)(nil)
	_ storage.ModelCounter = (*Backend)(nil)
)

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	limit := cfg.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Backend{
		cfg:     cfg,
		records: queue.NewBounded[core.Extraction](limit),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close exports the held extractions when an export directory is set.
func (b *Backend) Close() error {
	if b.cfg.ExportDir == "" || b.records.Empty() {
		return nil
	}
	path, err := b.exportJSON()
	if err != nil {
		return err
	}
	b.exportedPath = path
	return nil
}

// RecordExtraction keeps a copy of e. The oldest record is evicted once the
// limit is reached.
func (b *Backend) RecordExtraction(e *core.Extraction) error {
	if e == nil {
		return nil
	}
	b.records.Push(*e)
	return nil
}

// RecentExtractions returns up to limit extractions, newest first.
func (b *Backend) RecentExtractions(limit int) ([]core.Extraction, error) {
	all := b.records.Snapshot()
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].ExtractedAt.After(all[j].ExtractedAt)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// CountByModel counts the held extractions per model name.
func (b *Backend) CountByModel() (map[string]int64, error) {
	out := make(map[string]int64)
	for _, e := range b.records.Snapshot() {
		out[e.Snapshot.ModelName]++
	}
	return out, nil
}

// Len returns how many extractions are held.
func (b *Backend) Len() int {
	return b.records.Len()
}

// Evicted returns how many extractions were dropped by the limit.
func (b *Backend) Evicted() uint64 {
	return b.records.Dropped()
}

// GetExportedFilePath returns the path written by Close, if any.
func (b *Backend) GetExportedFilePath() string {
	return b.exportedPath
}
