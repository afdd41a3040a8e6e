// Package convert maps archived extractions between GORM models and core types.
package convert

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/vehicle-extractor/extension/internal/model"
	"github.com/vehicle-extractor/extension/pkg/core"
)

// CoreToExtraction converts a core.Extraction to a GORM model.Extraction.
func CoreToExtraction(e core.Extraction) (model.Extraction, error) {
	snapshot, err := json.Marshal(e.Snapshot)
	if err != nil {
		return model.Extraction{}, fmt.Errorf("encoding snapshot: %w", err)
	}

	s := e.Snapshot
	primary, _ := s.RequiredPrimaryColorID.Get()
	secondary, _ := s.RequiredSecondaryColorID.Get()

	return model.Extraction{
		UUID:           e.ID.String(),
		ExtractedAt:    e.ExtractedAt,
		Policy:         e.Policy,
		ModelName:      s.ModelName,
		DebugName:      s.DebugName,
		RequiresDLC:    s.RequiresDLC,
		PrimaryColor:   primary,
		SecondaryColor: secondary,
		ExtraCount:     len(s.RequiredVariation.Extras),
		ToggleCount:    len(s.RequiredVariation.Toggles),
		ModCount:       len(s.RequiredVariation.Mods),
		Snapshot:       datatypes.JSON(snapshot),
		Literal:        e.Literal,
		OutputPath:     e.OutputPath,
		DurationUs:     e.Duration.Microseconds(),
	}, nil
}

// ExtractionToCore converts a GORM model.Extraction back to a core.Extraction.
func ExtractionToCore(m model.Extraction) (core.Extraction, error) {
	id, err := uuid.Parse(m.UUID)
	if err != nil {
		return core.Extraction{}, fmt.Errorf("parsing extraction id %q: %w", m.UUID, err)
	}

	var s core.VehicleSnapshot
	if len(m.Snapshot) > 0 {
		if err := json.Unmarshal(m.Snapshot, &s); err != nil {
			return core.Extraction{}, fmt.Errorf("decoding snapshot: %w", err)
		}
	}

	return core.Extraction{
		ID:          id,
		ExtractedAt: m.ExtractedAt,
		Policy:      m.Policy,
		Snapshot:    s,
		Literal:     m.Literal,
		OutputPath:  m.OutputPath,
		Duration:    time.Duration(m.DurationUs) * time.Microsecond,
	}, nil
}
