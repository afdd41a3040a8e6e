package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vehicle-extractor/extension/internal/config"
	"github.com/vehicle-extractor/extension/pkg/core"
)

func record(model string, at time.Time) *core.Extraction {
	return core.NewExtraction(at, core.VehicleSnapshot{
		ModelName:              model,
		DebugName:              model + "_PB",
		RequiredPrimaryColorID: core.Some(12),
	}, "new DispatchableVehicle() {\n}\n", "VehiclesDataOutput.cs", time.Millisecond)
}

func TestBackend_RecentNewestFirst(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.Init())

	base := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		require.NoError(t, b.RecordExtraction(record(fmt.Sprintf("CAR%d", i), base.Add(time.Duration(i)*time.Second))))
	}
	require.NoError(t, b.RecordExtraction(nil))

	got, err := b.RecentExtractions(2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "CAR3", got[0].Snapshot.ModelName)
	assert.Equal(t, "CAR2", got[1].Snapshot.ModelName)

	all, err := b.RecentExtractions(0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestBackend_LimitEvictsOldest(t *testing.T) {
	b := New(config.MemoryConfig{Limit: 2})
	now := time.Now()
	for _, m := range []string{"A", "B", "C"} {
		require.NoError(t, b.RecordExtraction(record(m, now)))
	}

	assert.Equal(t, 2, b.Len())
	assert.Equal(t, uint64(1), b.Evicted())
}

func TestBackend_CountByModel(t *testing.T) {
	b := New(config.MemoryConfig{})
	now := time.Now()
	for _, m := range []string{"ADDER", "T20", "ADDER"} {
		require.NoError(t, b.RecordExtraction(record(m, now)))
	}

	counts, err := b.CountByModel()
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"ADDER": 2, "T20": 1}, counts)
}

func TestBackend_StoresCopies(t *testing.T) {
	b := New(config.MemoryConfig{})
	e := record("ADDER", time.Now())
	require.NoError(t, b.RecordExtraction(e))

	e.Snapshot.ModelName = "CHANGED"
	got, err := b.RecentExtractions(1)
	require.NoError(t, err)
	assert.Equal(t, "ADDER", got[0].Snapshot.ModelName)
}

func TestClose_NoExportDir(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.RecordExtraction(record("ADDER", time.Now())))
	require.NoError(t, b.Close())
	assert.Empty(t, b.GetExportedFilePath())
}

func TestClose_ExportsGzip(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{ExportDir: dir, Compress: true})
	require.NoError(t, b.RecordExtraction(record("ADDER", time.Now())))
	require.NoError(t, b.Close())

	path := b.GetExportedFilePath()
	require.NotEmpty(t, path)
	assert.True(t, strings.HasSuffix(path, ".json.gz"))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)

	var export Export
	require.NoError(t, json.NewDecoder(gz).Decode(&export))
	assert.Equal(t, ExportVersion, export.Version)
	assert.Equal(t, 1, export.Count)
	require.Len(t, export.Extractions, 1)
	assert.Equal(t, "ADDER", export.Extractions[0].Snapshot.ModelName)
	primary, ok := export.Extractions[0].Snapshot.RequiredPrimaryColorID.Get()
	assert.True(t, ok)
	assert.Equal(t, 12, primary)
}

func TestClose_ExportsPlainJSON(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{ExportDir: dir})
	require.NoError(t, b.RecordExtraction(record("T20", time.Now())))
	require.NoError(t, b.Close())

	data, err := os.ReadFile(b.GetExportedFilePath())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"modelName": "T20"`)
}

func TestClose_EmptySkipsExport(t *testing.T) {
	b := New(config.MemoryConfig{ExportDir: t.TempDir()})
	require.NoError(t, b.Close())
	assert.Empty(t, b.GetExportedFilePath())
}
