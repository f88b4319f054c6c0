package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProjectIncome is a client payment received for a project.
type ProjectIncome struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID     uuid.UUID `gorm:"type:uuid;index;not null" json:"project_id"`
	Amount        float64   `gorm:"not null" json:"amount"`
	Concept       string    `gorm:"size:200" json:"concept"`
	CollectedAt   time.Time `gorm:"not null" json:"collected_at"`
	BankReference string    `gorm:"size:100" json:"bank_reference"`
}

func (ProjectIncome) TableName() string { return "ingresos_proyecto" }

func (i *ProjectIncome) BeforeCreate(tx *gorm.DB) error {
	ensureID(&i.ID)
	if i.CollectedAt.IsZero() {
		i.CollectedAt = time.Now().UTC()
	}
	return nil
}
