// Package postgres archives extractions in PostgreSQL through the GORM backend.
package postgres

import (
	"fmt"

	"github.com/vehicle-extractor/extension/internal/config"
	"github.com/vehicle-extractor/extension/internal/database"
	"github.com/vehicle-extractor/extension/internal/logging"
	gormstorage "github.com/vehicle-extractor/extension/internal/storage/gorm"
)

// Backend is a GORM backend whose connection is opened on Init.
type Backend struct {
	*gormstorage.Backend
	cfg       config.DBConfig
	dbManager *database.Manager
	log       *logging.SlogManager
}

// New creates a PostgreSQL backend. Nothing is opened until Init.
func New(cfg config.DBConfig, dbManager *database.Manager, logManager *logging.SlogManager) *Backend {
	return &Backend{
		Backend:   gormstorage.New(gormstorage.Dependencies{DBManager: dbManager, LogManager: logManager}),
		cfg:       cfg,
		dbManager: dbManager,
		log:       logManager,
	}
}

// Init connects to the server and migrates the schema.
func (b *Backend) Init() error {
	db, err := b.dbManager.OpenPostgres(b.cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	b.Backend = gormstorage.New(gormstorage.Dependencies{
		DB:         db,
		DBManager:  b.dbManager,
		LogManager: b.log,
	})
	return b.Backend.Init()
}

// Close writes pending rows and closes the connection pool.
func (b *Backend) Close() error {
	err := b.Backend.Close()
	if cerr := database.Close(b.DB()); err == nil {
		err = cerr
	}
	return err
}
