package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const DefaultWasteFactor = 1.05

// BudgetLineItem (renglón). UnitCost is cached and only rewritten by a full composition build.
type BudgetLineItem struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID   uuid.UUID        `gorm:"type:uuid;index;not null" json:"project_id"`
	Description string           `gorm:"size:255;not null" json:"description"`
	Unit        string           `gorm:"size:20;not null" json:"unit"`
	Quantity    float64          `gorm:"not null" json:"quantity"`
	UnitCost    float64          `gorm:"not null;default:0" json:"unit_cost"`
	Composition []CompositionRow `gorm:"foreignKey:LineItemID;constraint:OnDelete:CASCADE" json:"composition,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

func (BudgetLineItem) TableName() string { return "presupuesto_renglones" }

func (b *BudgetLineItem) BeforeCreate(tx *gorm.DB) error {
	ensureID(&b.ID)
	return nil
}

// Total is the budgeted amount of the line item.
func (b BudgetLineItem) Total() float64 {
	return b.Quantity * b.UnitCost
}

// CompositionRow is one APU input. AppliedPrice is frozen at build time.
type CompositionRow struct {
	ID            uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	LineItemID    uuid.UUID    `gorm:"type:uuid;index;not null" json:"line_item_id"`
	MasterInputID uuid.UUID    `gorm:"type:uuid;index;not null" json:"master_input_id"`
	MasterInput   *MasterInput `gorm:"foreignKey:MasterInputID" json:"master_input,omitempty"`
	Yield         float64      `gorm:"not null" json:"yield"`
	WasteFactor   float64      `gorm:"not null;default:1.05" json:"waste_factor"`
	AppliedPrice  float64      `gorm:"not null" json:"applied_price"`
}

func (CompositionRow) TableName() string { return "apu_composicion" }

func (c *CompositionRow) BeforeCreate(tx *gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// Cost is the row's contribution to the line item's unit cost.
func (c CompositionRow) Cost() float64 {
	return c.Yield * c.AppliedPrice * c.WasteFactor
}
