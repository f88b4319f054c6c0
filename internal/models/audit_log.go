package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionDelete AuditAction = "delete"
)

type AuditLog struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	ProjectID *uuid.UUID `gorm:"type:uuid;index" json:"project_id"`

	// e.g. "purchase_order", "budget_line_item"
	EntityType string    `gorm:"size:50;index" json:"entity_type"`
	EntityID   uuid.UUID `gorm:"type:uuid;index" json:"entity_id"`

	Action      AuditAction `gorm:"size:20" json:"action"`
	Description string      `gorm:"size:255" json:"description"`

	// JSON snapshots
	BeforeData string `gorm:"type:text" json:"before_data"`
	AfterData  string `gorm:"type:text" json:"after_data"`
}

func (l *AuditLog) BeforeCreate(tx *gorm.DB) error {
	ensureID(&l.ID)
	return nil
}

// All lists every persisted model, in migration order.
func All() []interface{} {
	return []interface{}{
		&Project{},
		&MasterInput{},
		&PriceHistory{},
		&BudgetLineItem{},
		&CompositionRow{},
		&WarehouseMovement{},
		&PurchaseOrder{},
		&PurchaseOrderLine{},
		&ProgressReport{},
		&EvidencePhoto{},
		&Worker{},
		&AttendanceRecord{},
		&PayrollPayment{},
		&ProjectIncome{},
		&StatementSnapshot{},
		&PersonalExpense{},
		&WithdrawalSetting{},
		&AuditLog{},
	}
}
