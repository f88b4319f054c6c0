package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StatementSnapshot freezes a project statement each time it is produced.
// The owner balance reads the latest one per project.
type StatementSnapshot struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID     uuid.UUID `gorm:"type:uuid;index;not null" json:"project_id"`
	Income        float64   `gorm:"not null;default:0" json:"income"`
	MaterialSpend float64   `gorm:"not null;default:0" json:"material_spend"`
	PayrollSpend  float64   `gorm:"not null;default:0" json:"payroll_spend"`
	NetProfit     float64   `gorm:"not null;default:0" json:"net_profit"`
	MarginPercent float64   `gorm:"not null;default:0" json:"margin_percent"`
	TakenAt       time.Time `gorm:"index;not null" json:"taken_at"`
}

func (StatementSnapshot) TableName() string { return "flujo_caja_consolidado" }

func (s *StatementSnapshot) BeforeCreate(tx *gorm.DB) error {
	ensureID(&s.ID)
	if s.TakenAt.IsZero() {
		s.TakenAt = time.Now().UTC()
	}
	return nil
}

// PersonalExpense is a household expense of the business owner. OwnerID is
// opaque here; identities live with the auth provider.
type PersonalExpense struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID     uuid.UUID `gorm:"type:uuid;index;not null" json:"owner_id"`
	Category    string    `gorm:"size:50;not null" json:"category"`
	Description string    `gorm:"size:200;not null" json:"description"`
	Amount      float64   `gorm:"not null" json:"amount"`
	SpentAt     time.Time `gorm:"index;not null" json:"spent_at"`
}

func (PersonalExpense) TableName() string { return "gastos_personales" }

func (e *PersonalExpense) BeforeCreate(tx *gorm.DB) error {
	ensureID(&e.ID)
	if e.SpentAt.IsZero() {
		e.SpentAt = time.Now().UTC()
	}
	return nil
}

type WithdrawalMode string

const (
	WithdrawalFixed   WithdrawalMode = "fijo"
	WithdrawalPercent WithdrawalMode = "porcentaje"
)

// WithdrawalSetting is how much of the company profit the owner takes home:
// a fixed amount or a percentage of the latest project profits.
type WithdrawalSetting struct {
	OwnerID   uuid.UUID      `gorm:"type:uuid;primaryKey" json:"owner_id"`
	Mode      WithdrawalMode `gorm:"size:20;not null" json:"mode"`
	Value     float64        `gorm:"not null;default:0" json:"value"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (WithdrawalSetting) TableName() string { return "config_retiros" }
