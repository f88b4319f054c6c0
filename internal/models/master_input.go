package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InputCategory string

const (
	CategoryMaterial  InputCategory = "material"
	CategoryLabor     InputCategory = "mano_obra"
	CategoryEquipment InputCategory = "equipo"
)

// MasterInput is the global catalog entry for a material, labor or equipment input.
// (Category, Description, PurchaseUnit) identifies it; price is last-write-wins.
type MasterInput struct {
	ID             uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	Category       InputCategory `gorm:"size:20;not null;uniqueIndex:idx_insumo_identity" json:"category"`
	Description    string        `gorm:"size:200;not null;uniqueIndex:idx_insumo_identity" json:"description"`
	PurchaseUnit   string        `gorm:"size:30;not null;uniqueIndex:idx_insumo_identity" json:"purchase_unit"`
	ReferencePrice float64       `gorm:"not null;default:0" json:"reference_price"`
	LastProbedAt   time.Time     `json:"last_probed_at"`
}

func (MasterInput) TableName() string { return "insumos_maestro" }

func (m *MasterInput) BeforeCreate(tx *gorm.DB) error {
	ensureID(&m.ID)
	return nil
}

// PriceHistory rows are append-only; one per reference price overwrite.
type PriceHistory struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	MasterInputID uuid.UUID  `gorm:"type:uuid;index;not null" json:"master_input_id"`
	OldPrice      float64    `gorm:"not null" json:"old_price"`
	NewPrice      float64    `gorm:"not null" json:"new_price"`
	LineItemID    *uuid.UUID `gorm:"type:uuid" json:"line_item_id"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (PriceHistory) TableName() string { return "historial_precios" }

func (h *PriceHistory) BeforeCreate(tx *gorm.DB) error {
	ensureID(&h.ID)
	return nil
}
