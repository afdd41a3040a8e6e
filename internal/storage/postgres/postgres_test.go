package postgres

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/vehicle-extractor/extension/internal/config"
	"github.com/vehicle-extractor/extension/internal/database"
	"github.com/vehicle-extractor/extension/internal/storage"
)

var (
	_ storage.Backend = (*Backend)(nil)
	_ storage.Lister  = (*Backend)(nil)
	_ storage.Flusher = (*Backend)(nil)
)

func TestInit_UnreachableServer(t *testing.T) {
	b := New(config.DBConfig{
		Host:     "127.0.0.1",
		Port:     "1",
		Username: "postgres",
		Password: "postgres",
		Database: "vehicles",
	}, database.NewManager(zerolog.Nop()), nil)

	err := b.Init()
	assert.ErrorContains(t, err, "failed to connect to postgres")
}

func TestClose_BeforeInit(t *testing.T) {
	b := New(config.DBConfig{}, database.NewManager(zerolog.Nop()), nil)
	assert.NoError(t, b.Close())
}
