// Package finance tracks client income, the per-project profit statement and
// the owner's personal balance against those profits.
package finance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"obra-backend/internal/apperr"
	"obra-backend/internal/logger"
	"obra-backend/internal/models"
	"obra-backend/internal/project"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrInvalidAmount = errors.New("amount must be > 0")

type Service struct {
	db  *gorm.DB
	log *logger.Logger
	now func() time.Time
}

func NewService(db *gorm.DB, log *logger.Logger) *Service {
	return &Service{
		db:  db,
		log: log.With("service", "finance"),
		now: func() time.Time { return time.Now().UTC() },
	}
}

type IncomeRequest struct {
	ProjectID     uuid.UUID
	Amount        float64
	Concept       string
	BankReference string
	CollectedAt   time.Time
}

func (s *Service) RegisterIncome(ctx context.Context, req IncomeRequest) (*models.ProjectIncome, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	income := &models.ProjectIncome{
		ProjectID:     req.ProjectID,
		Amount:        req.Amount,
		Concept:       strings.TrimSpace(req.Concept),
		BankReference: strings.TrimSpace(req.BankReference),
		CollectedAt:   req.CollectedAt,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := project.Exists(ctx, tx, req.ProjectID); err != nil {
			return err
		}
		return tx.Create(income).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("income registered", "project_id", req.ProjectID, "amount", req.Amount)
	return income, nil
}

type Statement struct {
	ProjectID     uuid.UUID `json:"project_id"`
	ProjectName   string    `json:"project_name"`
	Income        float64   `json:"income"`
	MaterialSpend float64   `json:"material_spend"`
	PayrollSpend  float64   `json:"payroll_spend"`
	TotalOutflow  float64   `json:"total_outflow"`
	NetProfit     float64   `json:"net_profit"`
	MarginPercent float64   `json:"margin_percent"`
}

// ProjectStatement is the cash view of a project: collected income against
// delivered materials and paid payroll.
func (s *Service) ProjectStatement(ctx context.Context, projectID uuid.UUID) (*Statement, error) {
	var p models.Project
	db := s.db.WithContext(ctx)
	if err := db.First(&p, "id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("project", projectID)
		}
		return nil, err
	}

	st := &Statement{ProjectID: p.ID, ProjectName: p.Name}

	if err := db.Model(&models.ProjectIncome{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("project_id = ?", projectID).
		Scan(&st.Income).Error; err != nil {
		return nil, fmt.Errorf("income: %w", err)
	}

	if err := db.Table("detalle_orden_compra AS d").
		Select("COALESCE(SUM(COALESCE(d.subtotal, d.quantity * d.unit_price)), 0)").
		Joins("JOIN ordenes_compra o ON o.id = d.order_id").
		Where("o.project_id = ? AND o.status = ?", projectID, models.OrderDelivered).
		Scan(&st.MaterialSpend).Error; err != nil {
		return nil, fmt.Errorf("material spend: %w", err)
	}

	if err := db.Model(&models.PayrollPayment{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("project_id = ? AND status = ?", projectID, models.PaymentPaid).
		Scan(&st.PayrollSpend).Error; err != nil {
		return nil, fmt.Errorf("payroll spend: %w", err)
	}

	income := decimal.NewFromFloat(st.Income)
	outflow := decimal.NewFromFloat(st.MaterialSpend).Add(decimal.NewFromFloat(st.PayrollSpend))
	profit := income.Sub(outflow)

	st.TotalOutflow = outflow.InexactFloat64()
	st.NetProfit = profit.InexactFloat64()
	if income.IsPositive() {
		st.MarginPercent = profit.Mul(decimal.NewFromInt(100)).Div(income).Round(2).InexactFloat64()
	}
	return st, nil
}

// RecordStatement computes the statement and stores it as the project's
// latest snapshot.
func (s *Service) RecordStatement(ctx context.Context, projectID uuid.UUID) (*Statement, error) {
	st, err := s.ProjectStatement(ctx, projectID)
	if err != nil {
		return nil, err
	}
	snap := models.StatementSnapshot{
		ProjectID:     st.ProjectID,
		Income:        st.Income,
		MaterialSpend: st.MaterialSpend,
		PayrollSpend:  st.PayrollSpend,
		NetProfit:     st.NetProfit,
		MarginPercent: st.MarginPercent,
		TakenAt:       s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&snap).Error; err != nil {
		return nil, fmt.Errorf("statement snapshot: %w", err)
	}
	return st, nil
}
