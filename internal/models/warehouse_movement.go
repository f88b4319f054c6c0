package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MovementDirection string

const (
	MovementIn  MovementDirection = "ENTRADA"
	MovementOut MovementDirection = "SALIDA"
)

// WarehouseMovement stores a positive magnitude; Direction carries the sign.
type WarehouseMovement struct {
	ID            uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	MasterInputID uuid.UUID         `gorm:"type:uuid;index;not null" json:"master_input_id"`
	ProjectID     uuid.UUID         `gorm:"type:uuid;index;not null" json:"project_id"`
	Direction     MovementDirection `gorm:"size:10;not null" json:"direction"`
	Quantity      float64           `gorm:"not null" json:"quantity"`
	Note          string            `gorm:"size:255" json:"note"`
	Date          time.Time         `gorm:"index;not null" json:"date"`
}

func (WarehouseMovement) TableName() string { return "movimientos_bodega" }

func (m *WarehouseMovement) BeforeCreate(tx *gorm.DB) error {
	ensureID(&m.ID)
	if m.Date.IsZero() {
		m.Date = time.Now().UTC()
	}
	return nil
}

func (m WarehouseMovement) SignedQuantity() float64 {
	if m.Direction == MovementOut {
		return -m.Quantity
	}
	return m.Quantity
}
