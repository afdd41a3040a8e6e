// Package sqlitestorage archives extractions in a local SQLite file. It
// wraps the GORM backend and flushes it on an interval.
package sqlitestorage

import (
	"fmt"
	"sync"
	"time"

	"github.com/vehicle-extractor/extension/internal/database"
	"github.com/vehicle-extractor/extension/internal/logging"
	gormstorage "github.com/vehicle-extractor/extension/internal/storage/gorm"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	Path          string
	FlushInterval time.Duration
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	cfg Config
	log *logging.SlogManager

	stopChan chan struct{}
	done     sync.WaitGroup
	once     sync.Once
}

// New opens the SQLite file at cfg.Path.
func New(cfg Config, dbManager *database.Manager, logManager *logging.SlogManager) (*Backend, error) {
	db, err := dbManager.OpenSQLite(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite archive: %w", err)
	}

	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			DB:         db,
			DBManager:  dbManager,
			LogManager: logManager,
		}),
		cfg:      cfg,
		log:      logManager,
		stopChan: make(chan struct{}),
	}, nil
}

// Init migrates the schema and starts the flush goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}
	if b.cfg.FlushInterval > 0 {
		b.done.Add(1)
		go b.flushLoop()
	}
	return nil
}

// Close stops the flush goroutine, writes what is pending and closes the file.
func (b *Backend) Close() error {
	b.once.Do(func() { close(b.stopChan) })
	b.done.Wait()

	err := b.Backend.Close()
	if cerr := database.Close(b.DB()); err == nil {
		err = cerr
	}
	return err
}

func (b *Backend) flushLoop() {
	defer b.done.Done()
	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if b.Pending() == 0 {
				continue
			}
			if err := b.Flush(); err != nil && b.log != nil {
				b.log.WriteLog("sqlite:flushLoop", fmt.Sprintf("Error flushing archive: %v", err), "ERROR")
			}
		}
	}
}
