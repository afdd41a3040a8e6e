package core

import (
	"time"

	"github.com/google/uuid"
)

// Extraction is one completed extraction: the snapshot, the literal that was
// written for it and where it went.
type Extraction struct {
	ID          uuid.UUID       `json:"id"`
	ExtractedAt time.Time       `json:"extractedAt"`
	Policy      string          `json:"policy"`
	Snapshot    VehicleSnapshot `json:"snapshot"`
	Literal     string          `json:"literal"`
	OutputPath  string          `json:"outputPath"`
	Duration    time.Duration   `json:"duration"`
}

// NewExtraction stamps a fresh ID on an extraction record.
func NewExtraction(at time.Time, s VehicleSnapshot, literal, outputPath string, d time.Duration) *Extraction {
	return &Extraction{
		ID:          uuid.New(),
		ExtractedAt: at,
		Snapshot:    s,
		Literal:     literal,
		OutputPath:  outputPath,
		Duration:    d,
	}
}
