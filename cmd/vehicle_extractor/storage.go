package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vehicle-extractor/extension/internal/config"
	"github.com/vehicle-extractor/extension/internal/database"
	"github.com/vehicle-extractor/extension/internal/storage"
	"github.com/vehicle-extractor/extension/internal/storage/memory"
	pgstorage "github.com/vehicle-extractor/extension/internal/storage/postgres"
	sqlitestorage "github.com/vehicle-extractor/extension/internal/storage/sqlite"
	wsstorage "github.com/vehicle-extractor/extension/internal/storage/websocket"
	"github.com/vehicle-extractor/extension/internal/worker"
)

// initArchive creates the configured archive backend and starts the worker
// that feeds it. Storage type "none" leaves the archive off.
func initArchive(storageCfg config.StorageConfig) error {
	backend, err := createStorageBackend(storageCfg)
	if err != nil {
		return fmt.Errorf("failed to create storage backend: %w", err)
	}
	if backend == nil {
		Logger.Info("Archive disabled")
		return nil
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	archiveBackend = backend

	workerManager = worker.NewManager(archiveBackend, storageCfg.FlushInterval, Logger)
	archiveWG.Add(1)
	go func() {
		defer archiveWG.Done()
		workerManager.Run(rootCtx)
	}()

	Logger.Info("Archive initialized", "type", storageCfg.Type)
	return nil
}

func newDBManager() *database.Manager {
	return database.NewManager(zerolog.New(zerolog.ConsoleWriter{Out: logWriter(), NoColor: true}).
		With().Timestamp().Str("component", "database").Logger())
}

func createStorageBackend(storageCfg config.StorageConfig) (storage.Backend, error) {
	switch strings.ToLower(storageCfg.Type) {
	case "", "none":
		return nil, nil

	case "memory":
		memCfg := storageCfg.Memory
		if memCfg.ExportDir != "" && !filepath.IsAbs(memCfg.ExportDir) {
			memCfg.ExportDir = filepath.Join(ModuleFolder, memCfg.ExportDir)
		}
		return memory.New(memCfg), nil

	case "sqlite":
		path := storageCfg.SQLite.Path
		if path != "" && !filepath.IsAbs(path) {
			path = filepath.Join(ModuleFolder, path)
		}
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			Path:          path,
			FlushInterval: storageCfg.FlushInterval,
		}, newDBManager(), SlogManager)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		return backend, nil

	case "postgres":
		return pgstorage.New(config.GetDBConfig(), newDBManager(), SlogManager), nil

	case "websocket":
		if storageCfg.WebSocket.URL == "" {
			return nil, errors.New("websocket archive needs storage.websocket.url")
		}
		return wsstorage.New(wsstorage.Config{
			URL:     httpToWS(storageCfg.WebSocket.URL),
			Secret:  storageCfg.WebSocket.Secret,
			Version: CurrentExtensionVersion,
			Logger:  Logger,
		}), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", storageCfg.Type)
	}
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
