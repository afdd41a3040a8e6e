package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DatabaseModels lists every table in the archive schema.
var DatabaseModels = []interface{}{
	&ArchiveInfo{},
	&Extraction{},
}

// ArchiveInfo describes the archive instance. There is a single row.
type ArchiveInfo struct {
	gorm.Model
	SchemaVersion int    `json:"schemaVersion"`
	Extension     string `json:"extension" gorm:"size:64"`
}

// TableName overrides the default table name.
func (*ArchiveInfo) TableName() string {
	return "archive_info"
}

// Extraction is one archived vehicle extraction.
type Extraction struct {
	ID          uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	CreatedAt   time.Time `json:"createdAt"`
	UUID        string    `json:"uuid" gorm:"size:36;uniqueIndex"`
	ExtractedAt time.Time `json:"extractedAt" gorm:"index"`
	Policy      string    `json:"policy" gorm:"size:16"`

	ModelName   string `json:"modelName" gorm:"size:64;index"`
	DebugName   string `json:"debugName" gorm:"size:72"`
	RequiresDLC bool   `json:"requiresDlc"`

	PrimaryColor   int `json:"primaryColor"`
	SecondaryColor int `json:"secondaryColor"`
	ExtraCount     int `json:"extraCount"`
	ToggleCount    int `json:"toggleCount"`
	ModCount       int `json:"modCount"`

	// Snapshot is the full core.VehicleSnapshot as JSON.
	Snapshot   datatypes.JSON `json:"snapshot"`
	Literal    string         `json:"literal" gorm:"type:text"`
	OutputPath string         `json:"outputPath" gorm:"size:255"`
	DurationUs int64          `json:"durationUs"`
}

// TableName overrides the default table name.
func (*Extraction) TableName() string {
	return "extractions"
}
