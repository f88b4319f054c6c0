package inventory

import (
	"context"
	"errors"
	"fmt"

	"obra-backend/internal/apperr"
	"obra-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Consumption is the theoretical quantity of one input used up by reported progress.
type Consumption struct {
	InputID  uuid.UUID `json:"input_id"`
	Quantity float64   `json:"quantity"`
}

// AvailableQuantity returns what is still purchasable of an input under the
// project's budget: Σ(line item quantity × yield) minus everything already
// ordered, whatever the order status. Negative means over-ordered.
//
// db may be a transaction handle.
func AvailableQuantity(db *gorm.DB, projectID, inputID uuid.UUID) (float64, error) {
	var budgeted float64
	err := db.Table("apu_composicion AS ac").
		Select("COALESCE(SUM(li.quantity * ac.yield), 0)").
		Joins("JOIN presupuesto_renglones li ON li.id = ac.line_item_id").
		Where("li.project_id = ? AND ac.master_input_id = ?", projectID, inputID).
		Scan(&budgeted).Error
	if err != nil {
		return 0, fmt.Errorf("budgeted quantity: %w", err)
	}

	ordered, err := OrderedQuantity(db, projectID, inputID)
	if err != nil {
		return 0, err
	}
	return budgeted - ordered, nil
}

// OrderedQuantity sums purchase-order lines of the project for the input.
func OrderedQuantity(db *gorm.DB, projectID, inputID uuid.UUID) (float64, error) {
	var ordered float64
	err := db.Table("detalle_orden_compra AS d").
		Select("COALESCE(SUM(d.quantity), 0)").
		Joins("JOIN ordenes_compra o ON o.id = d.order_id").
		Where("o.project_id = ? AND d.master_input_id = ?", projectID, inputID).
		Scan(&ordered).Error
	if err != nil {
		return 0, fmt.Errorf("ordered quantity: %w", err)
	}
	return ordered, nil
}

// ConsumptionForProgress computes advanced × yield × waste for every
// composition row of the line item, in row order.
func ConsumptionForProgress(db *gorm.DB, lineItemID uuid.UUID, advanced float64) ([]Consumption, error) {
	var item models.BudgetLineItem
	if err := db.Preload("Composition").First(&item, "id = ?", lineItemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("line item", lineItemID)
		}
		return nil, err
	}
	return consumptionOf(item.Composition, advanced), nil
}

func consumptionOf(rows []models.CompositionRow, advanced float64) []Consumption {
	out := make([]Consumption, 0, len(rows))
	for _, r := range rows {
		out = append(out, Consumption{
			InputID:  r.MasterInputID,
			Quantity: advanced * r.Yield * r.WasteFactor,
		})
	}
	return out
}

// AvailableQuantity reports an unknown project or input as not found. The
// package-level function skips those checks for callers that already made them.
func (s *Service) AvailableQuantity(ctx context.Context, projectID, inputID uuid.UUID) (float64, error) {
	db := s.db.WithContext(ctx)
	if err := mustExist(db, &models.Project{}, "project", projectID); err != nil {
		return 0, err
	}
	if err := mustExist(db, &models.MasterInput{}, "input", inputID); err != nil {
		return 0, err
	}
	return AvailableQuantity(db, projectID, inputID)
}

func (s *Service) ConsumptionForProgress(ctx context.Context, lineItemID uuid.UUID, advanced float64) ([]Consumption, error) {
	return ConsumptionForProgress(s.db.WithContext(ctx), lineItemID, advanced)
}
