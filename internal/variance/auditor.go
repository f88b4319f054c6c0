// Package variance compares a project's theoretical budget with its real purchase spend.
package variance

import (
	"context"
	"fmt"

	"obra-backend/internal/logger"
	"obra-backend/internal/project"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const DefaultCriticalPercent = 105

type Report struct {
	TheoreticalBudget float64 `json:"theoretical_budget"`
	ActualSpend       float64 `json:"actual_spend"`
	PercentConsumed   float64 `json:"percent_consumed"`
	IsCritical        bool    `json:"is_critical"`
}

type Auditor struct {
	db        *gorm.DB
	log       *logger.Logger
	threshold decimal.Decimal
}

func NewAuditor(db *gorm.DB, log *logger.Logger, criticalPercent float64) *Auditor {
	if criticalPercent <= 0 {
		criticalPercent = DefaultCriticalPercent
	}
	return &Auditor{
		db:        db,
		log:       log.With("service", "variance"),
		threshold: decimal.NewFromFloat(criticalPercent),
	}
}

// Audit returns budget vs. spend for the project. Spend covers every order
// status. The critical flag is decided on the unrounded percentage.
func (a *Auditor) Audit(ctx context.Context, projectID uuid.UUID) (*Report, error) {
	db := a.db.WithContext(ctx)
	if err := project.Exists(ctx, a.db, projectID); err != nil {
		return nil, err
	}

	var budget float64
	if err := db.Table("presupuesto_renglones").
		Select("COALESCE(SUM(quantity * unit_cost), 0)").
		Where("project_id = ?", projectID).
		Scan(&budget).Error; err != nil {
		return nil, fmt.Errorf("theoretical budget: %w", err)
	}

	var spend float64
	if err := db.Table("detalle_orden_compra AS d").
		Select("COALESCE(SUM(COALESCE(d.subtotal, d.quantity * d.unit_price)), 0)").
		Joins("JOIN ordenes_compra o ON o.id = d.order_id").
		Where("o.project_id = ?", projectID).
		Scan(&spend).Error; err != nil {
		return nil, fmt.Errorf("actual spend: %w", err)
	}

	r := Evaluate(budget, spend, a.threshold)
	if r.IsCritical {
		a.log.Warn("budget overrun", "project_id", projectID, "percent_consumed", r.PercentConsumed)
	}
	return r, nil
}

// Evaluate is the pure part of Audit.
func Evaluate(budget, spend float64, threshold decimal.Decimal) *Report {
	r := &Report{TheoreticalBudget: budget, ActualSpend: spend}
	if budget <= 0 {
		return r
	}
	// spend×100/budget in decimal so 1050 of 1000 is exactly 105
	pct := decimal.NewFromFloat(spend).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromFloat(budget))
	r.IsCritical = pct.GreaterThan(threshold)
	r.PercentConsumed = pct.Round(2).InexactFloat64()
	return r
}
