package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProgressReport (reporte de avance) is append-only.
type ProgressReport struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	LineItemID uuid.UUID       `gorm:"type:uuid;index;not null" json:"line_item_id"`
	Quantity   float64         `gorm:"not null" json:"quantity"`
	ReportedAt time.Time       `gorm:"index;not null" json:"reported_at"`
	Comment    string          `gorm:"size:500" json:"comment"`
	Latitude   *float64        `json:"latitude"`
	Longitude  *float64        `json:"longitude"`
	WorkerID   *uuid.UUID      `gorm:"type:uuid;index" json:"worker_id"`
	Photos     []EvidencePhoto `gorm:"foreignKey:ReportID" json:"photos,omitempty"`
}

func (ProgressReport) TableName() string { return "reportes_avance" }

func (r *ProgressReport) BeforeCreate(tx *gorm.DB) error {
	ensureID(&r.ID)
	if r.ReportedAt.IsZero() {
		r.ReportedAt = time.Now().UTC()
	}
	return nil
}

type EvidencePhoto struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ReportID uuid.UUID `gorm:"type:uuid;index;not null" json:"report_id"`
	URL      string    `gorm:"size:255;not null" json:"url"`
}

func (EvidencePhoto) TableName() string { return "fotos_evidencia" }

func (p *EvidencePhoto) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
