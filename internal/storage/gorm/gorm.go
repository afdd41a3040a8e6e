// Package gormstorage implements storage.Backend on any GORM dialect.
package gormstorage

import (
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/vehicle-extractor/extension/internal/database"
	"github.com/vehicle-extractor/extension/internal/logging"
	"github.com/vehicle-extractor/extension/internal/model"
	"github.com/vehicle-extractor/extension/internal/model/convert"
	"github.com/vehicle-extractor/extension/internal/queue"
	"github.com/vehicle-extractor/extension/internal/storage"
	"github.com/vehicle-extractor/extension/pkg/core"
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB         *gorm.DB
	DBManager  *database.Manager
	LogManager *logging.SlogManager
}

// Backend archives extractions through GORM. Records are converted on
// arrival and written in batches by Flush.
type Backend struct {
	deps    Dependencies
	pending *queue.Queue[model.Extraction]

	mu    sync.Mutex
	ready bool
}

var (
	_ storage.Backend      = (*Backend)(nil)
	_ storage.Lister       = (*Backend)(nil)
	_ storage.Flusher      = (*Backend)(nil)
	_ storage.ModelCounter = (*Backend)(nil)
)

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	return &Backend{
		deps:    deps,
		pending: queue.New[model.Extraction](),
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init migrates the archive schema.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return fmt.Errorf("gorm backend: %w", storage.ErrNotInitialized)
	}
	if b.deps.DBManager != nil {
		if err := b.deps.DBManager.Setup(b.deps.DB); err != nil {
			return fmt.Errorf("failed to setup DB: %w", err)
		}
	} else if err := b.deps.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	b.mu.Lock()
	b.ready = true
	b.mu.Unlock()
	return nil
}

// Close writes anything still pending.
func (b *Backend) Close() error {
	if !b.isReady() {
		return nil
	}
	return b.Flush()
}

func (b *Backend) isReady() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

// RecordExtraction converts e and queues it for the next Flush.
func (b *Backend) RecordExtraction(e *core.Extraction) error {
	if e == nil {
		return nil
	}
	row, err := convert.CoreToExtraction(*e)
	if err != nil {
		return err
	}
	b.pending.Push(row)
	return nil
}

// Pending returns the number of rows waiting for Flush.
func (b *Backend) Pending() int {
	return b.pending.Len()
}

// Flush writes all queued rows in one batch. On failure the rows are
// requeued so the next flush retries them.
func (b *Backend) Flush() error {
	if !b.isReady() {
		return storage.ErrNotInitialized
	}
	rows := b.pending.GetAndEmpty()
	if len(rows) == 0 {
		return nil
	}

	if err := b.deps.DB.CreateInBatches(&rows, 100).Error; err != nil {
		for i := range rows {
			rows[i].ID = 0
		}
		b.pending.Requeue(rows...)
		if b.deps.LogManager != nil {
			b.deps.LogManager.WriteLog("gorm:Flush", fmt.Sprintf("Failed to write %d extractions: %v", len(rows), err), "ERROR")
		}
		return fmt.Errorf("failed to write extractions: %w", err)
	}

	if b.deps.LogManager != nil {
		b.deps.LogManager.WriteLog("gorm:Flush", fmt.Sprintf("Wrote %d extractions", len(rows)), "DEBUG")
	}
	return nil
}

// RecentExtractions returns up to limit archived extractions, newest first.
// Rows still pending are not included.
func (b *Backend) RecentExtractions(limit int) ([]core.Extraction, error) {
	if !b.isReady() {
		return nil, storage.ErrNotInitialized
	}
	if limit <= 0 {
		limit = 10
	}

	var rows []model.Extraction
	if err := b.deps.DB.Order("extracted_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query extractions: %w", err)
	}

	out := make([]core.Extraction, 0, len(rows))
	for _, row := range rows {
		e, err := convert.ExtractionToCore(row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// CountByModel returns how many extractions exist per model name.
func (b *Backend) CountByModel() (map[string]int64, error) {
	if !b.isReady() {
		return nil, storage.ErrNotInitialized
	}
	var rows []struct {
		ModelName string
		Count     int64
	}
	err := b.deps.DB.Model(&model.Extraction{}).
		Select("model_name, COUNT(*) AS count").
		Group("model_name").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count extractions: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.ModelName] = r.Count
	}
	return out, nil
}
