package finance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"obra-backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrInvalidWithdrawal = errors.New("withdrawal mode must be fijo or porcentaje with a value >= 0 (porcentaje <= 100)")

const defaultExpenseCategory = "Hogar"

const (
	HealthStable   = "Estable"
	HealthCritical = "Crítica"
)

type PersonalExpenseRequest struct {
	OwnerID     uuid.UUID
	Category    string
	Description string
	Amount      float64
	SpentAt     time.Time
}

func (s *Service) RegisterPersonalExpense(ctx context.Context, req PersonalExpenseRequest) (*models.PersonalExpense, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	desc := strings.TrimSpace(req.Description)
	if desc == "" {
		return nil, fmt.Errorf("description is required")
	}
	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = defaultExpenseCategory
	}
	spent := req.SpentAt
	if spent.IsZero() {
		spent = s.now()
	}

	e := &models.PersonalExpense{
		OwnerID:     req.OwnerID,
		Category:    category,
		Description: desc,
		Amount:      req.Amount,
		SpentAt:     spent.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	s.log.Info("personal expense registered", "owner_id", req.OwnerID, "amount", req.Amount)
	return e, nil
}

type ExpenseSummary struct {
	Total    float64                  `json:"total"`
	Expenses []models.PersonalExpense `json:"expenses"`
}

// PersonalExpenses lists every expense of the owner, newest first.
func (s *Service) PersonalExpenses(ctx context.Context, ownerID uuid.UUID) (*ExpenseSummary, error) {
	out := &ExpenseSummary{Expenses: []models.PersonalExpense{}}
	if err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("spent_at DESC").
		Find(&out.Expenses).Error; err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, e := range out.Expenses {
		total = total.Add(decimal.NewFromFloat(e.Amount))
	}
	out.Total = total.InexactFloat64()
	return out, nil
}

// SetWithdrawal creates or replaces the owner's withdrawal setting.
func (s *Service) SetWithdrawal(ctx context.Context, ownerID uuid.UUID, mode models.WithdrawalMode, value float64) (*models.WithdrawalSetting, error) {
	mode = models.WithdrawalMode(strings.ToLower(strings.TrimSpace(string(mode))))
	switch {
	case mode != models.WithdrawalFixed && mode != models.WithdrawalPercent:
		return nil, ErrInvalidWithdrawal
	case value < 0:
		return nil, ErrInvalidWithdrawal
	case mode == models.WithdrawalPercent && value > 100:
		return nil, ErrInvalidWithdrawal
	}

	setting := &models.WithdrawalSetting{OwnerID: ownerID, Mode: mode, Value: value, UpdatedAt: s.now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"mode", "value", "updated_at"}),
	}).Create(setting).Error
	if err != nil {
		return nil, err
	}
	s.log.Info("withdrawal updated", "owner_id", ownerID, "mode", mode, "value", value)
	return setting, nil
}

type OwnerBalance struct {
	OwnerID       uuid.UUID `json:"owner_id"`
	ProjectProfit float64   `json:"project_profit"`
	Withdrawal    float64   `json:"withdrawal"`
	MonthExpenses float64   `json:"month_expenses"`
	MonthSavings  float64   `json:"month_savings"`
	Health        string    `json:"health"`
}

// Balance weighs what the owner takes out of the business this month against
// this month's personal expenses. Profit is the sum of the latest snapshot
// of each project, so repeated statements are not added up.
func (s *Service) Balance(ctx context.Context, ownerID uuid.UUID) (*OwnerBalance, error) {
	db := s.db.WithContext(ctx)

	profit, err := latestProfit(db)
	if err != nil {
		return nil, err
	}

	withdrawal := decimal.Zero
	var setting models.WithdrawalSetting
	err = db.First(&setting, "owner_id = ?", ownerID).Error
	switch {
	case err == nil && setting.Mode == models.WithdrawalPercent:
		withdrawal = profit.Mul(decimal.NewFromFloat(setting.Value)).Div(decimal.NewFromInt(100))
	case err == nil:
		withdrawal = decimal.NewFromFloat(setting.Value)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	now := s.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	var spent float64
	if err := db.Model(&models.PersonalExpense{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("owner_id = ? AND spent_at >= ? AND spent_at < ?", ownerID, monthStart, monthStart.AddDate(0, 1, 0)).
		Scan(&spent).Error; err != nil {
		return nil, fmt.Errorf("month expenses: %w", err)
	}
	expenses := decimal.NewFromFloat(spent)

	b := &OwnerBalance{
		OwnerID:       ownerID,
		ProjectProfit: profit.Round(2).InexactFloat64(),
		Withdrawal:    withdrawal.Round(2).InexactFloat64(),
		MonthExpenses: expenses.Round(2).InexactFloat64(),
		MonthSavings:  withdrawal.Sub(expenses).Round(2).InexactFloat64(),
		Health:        HealthCritical,
	}
	if withdrawal.GreaterThan(expenses) {
		b.Health = HealthStable
	}
	return b, nil
}

func latestProfit(db *gorm.DB) (decimal.Decimal, error) {
	var snaps []models.StatementSnapshot
	if err := db.Order("taken_at DESC").Find(&snaps).Error; err != nil {
		return decimal.Zero, fmt.Errorf("statement snapshots: %w", err)
	}
	seen := map[uuid.UUID]bool{}
	total := decimal.Zero
	for _, sn := range snaps {
		if seen[sn.ProjectID] {
			continue
		}
		seen[sn.ProjectID] = true
		total = total.Add(decimal.NewFromFloat(sn.NetProfit))
	}
	return total, nil
}
