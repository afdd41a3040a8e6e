package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/vehicle-extractor/extension/pkg/core"
)

// ExportVersion is written into every export.
const ExportVersion = 1

// Export is the root JSON structure
type Export struct {
	Version     int               `json:"version"`
	ExportedAt  time.Time         `json:"exportedAt"`
	Count       int               `json:"count"`
	Evicted     uint64            `json:"evicted"`
	Extractions []core.Extraction `json:"extractions"`
}

func (b *Backend) buildExport(now time.Time) Export {
	records := b.records.Snapshot()
	return Export{
		Version:     ExportVersion,
		ExportedAt:  now.UTC(),
		Count:       len(records),
		Evicted:     b.records.Dropped(),
		Extractions: records,
	}
}

// exportJSON writes the held extractions to a JSON file, gzipped when
// configured, and returns its path.
func (b *Backend) exportJSON() (string, error) {
	now := time.Now()
	export := b.buildExport(now)

	filename := fmt.Sprintf("extractions_%s.json", now.Format("20060102_150405"))
	if b.cfg.Compress {
		filename += ".gz"
	}
	outputPath := filepath.Join(b.cfg.ExportDir, filename)

	if err := os.MkdirAll(b.cfg.ExportDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	var w io.Writer = f
	var gz *gzip.Writer
	if b.cfg.Compress {
		gz = gzip.NewWriter(f)
		w = gz
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(export); err != nil {
		return "", fmt.Errorf("failed to encode export: %w", err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return "", fmt.Errorf("failed to finish gzip stream: %w", err)
		}
	}
	return outputPath, nil
}
