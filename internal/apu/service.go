package apu

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"obra-backend/internal/apperr"
	"obra-backend/internal/audit"
	"obra-backend/internal/logger"
	"obra-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Service struct {
	db           *gorm.DB
	log          *logger.Logger
	defaultWaste float64
	now          func() time.Time
}

func NewService(db *gorm.DB, log *logger.Logger, defaultWaste float64) *Service {
	if defaultWaste <= 0 {
		defaultWaste = models.DefaultWasteFactor
	}
	return &Service{
		db:           db,
		log:          log.With("service", "apu"),
		defaultWaste: defaultWaste,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

type BuildRequest struct {
	ProjectID    uuid.UUID
	LineItemName string
	Quantity     float64
	Payload      Payload
	// Zero means the service default.
	WasteFactor float64
}

func (s *Service) waste(w float64) (float64, error) {
	if w == 0 {
		return s.defaultWaste, nil
	}
	if w < 0 {
		return 0, &apperr.InvalidCompositionError{Field: "waste_factor", Reason: "must be > 0"}
	}
	return w, nil
}

// Build validates the payload, upserts the master inputs it references and
// persists a new line item with its composition, all in one transaction.
func (s *Service) Build(ctx context.Context, req BuildRequest) (*models.BudgetLineItem, []models.CompositionRow, error) {
	name := strings.TrimSpace(req.LineItemName)
	if name == "" {
		return nil, nil, &apperr.InvalidCompositionError{Field: "line_item_name", Reason: "is required"}
	}
	if req.Quantity <= 0 {
		return nil, nil, &apperr.InvalidCompositionError{Field: "total_quantity", Reason: "must be > 0"}
	}
	waste, err := s.waste(req.WasteFactor)
	if err != nil {
		return nil, nil, err
	}
	payload := req.Payload
	if err := payload.Validate(); err != nil {
		return nil, nil, err
	}

	item := &models.BudgetLineItem{
		ID:          uuid.New(),
		ProjectID:   req.ProjectID,
		Description: name,
		Unit:        payload.Unit,
		Quantity:    req.Quantity,
	}
	var rows []models.CompositionRow

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Project{}).Where("id = ?", req.ProjectID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return apperr.NotFound("project", req.ProjectID)
		}

		rows, err = s.upsertRows(tx, item.ID, payload.Inputs, waste)
		if err != nil {
			return err
		}
		item.UnitCost = UnitCost(rows)

		if err := tx.Create(item).Error; err != nil {
			return fmt.Errorf("create line item: %w", err)
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("create composition rows: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	item.Composition = rows
	s.log.Info("line item built",
		"project_id", req.ProjectID, "line_item_id", item.ID,
		"inputs", len(rows), "unit_cost", item.UnitCost)
	return item, rows, nil
}

// Rebuild replaces the whole composition of an existing line item and
// recomputes its unit cost. Quantity and description are kept.
func (s *Service) Rebuild(ctx context.Context, lineItemID uuid.UUID, payload Payload, wasteFactor float64) (*models.BudgetLineItem, []models.CompositionRow, error) {
	waste, err := s.waste(wasteFactor)
	if err != nil {
		return nil, nil, err
	}
	if err := payload.Validate(); err != nil {
		return nil, nil, err
	}

	var item models.BudgetLineItem
	var rows []models.CompositionRow
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&item, "id = ?", lineItemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("line item", lineItemID)
			}
			return err
		}
		before := map[string]any{"unit": item.Unit, "unit_cost": item.UnitCost}

		if err := tx.Where("line_item_id = ?", item.ID).Delete(&models.CompositionRow{}).Error; err != nil {
			return fmt.Errorf("delete composition rows: %w", err)
		}
		rows, err = s.upsertRows(tx, item.ID, payload.Inputs, waste)
		if err != nil {
			return err
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("create composition rows: %w", err)
			}
		}

		item.Unit = payload.Unit
		item.UnitCost = UnitCost(rows)
		if err := tx.Model(&item).Updates(map[string]interface{}{
			"unit":      item.Unit,
			"unit_cost": item.UnitCost,
		}).Error; err != nil {
			return fmt.Errorf("update line item: %w", err)
		}

		return audit.WriteLog(tx, audit.LogOptions{
			ProjectID:   &item.ProjectID,
			EntityType:  "budget_line_item",
			EntityID:    item.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Composition rebuilt: %s (%d inputs)", item.Description, len(rows)),
			Before:      before,
			After:       map[string]any{"unit": item.Unit, "unit_cost": item.UnitCost},
		})
	})
	if err != nil {
		return nil, nil, err
	}

	item.Composition = rows
	s.log.Info("line item rebuilt", "line_item_id", item.ID, "inputs", len(rows), "unit_cost", item.UnitCost)
	return &item, rows, nil
}

func (s *Service) upsertRows(tx *gorm.DB, lineItemID uuid.UUID, inputs []Input, waste float64) ([]models.CompositionRow, error) {
	now := s.now()
	rows := make([]models.CompositionRow, 0, len(inputs))
	for _, in := range inputs {
		master, err := upsertMasterInput(tx, in, lineItemID, now)
		if err != nil {
			return nil, err
		}
		rows = append(rows, models.CompositionRow{
			ID:            uuid.New(),
			LineItemID:    lineItemID,
			MasterInputID: master.ID,
			Yield:         in.Yield,
			WasteFactor:   waste,
			AppliedPrice:  in.ReferencePrice,
		})
	}
	return rows, nil
}

// upsertMasterInput finds the input by its identity key and refreshes its price,
// or creates it. A changed price leaves a PriceHistory row behind.
func upsertMasterInput(tx *gorm.DB, in Input, lineItemID uuid.UUID, now time.Time) (*models.MasterInput, error) {
	var master models.MasterInput
	err := tx.Where("category = ? AND description = ? AND purchase_unit = ?", in.Category, in.Name, in.PurchaseUnit).
		First(&master).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		master = models.MasterInput{
			Category:       models.InputCategory(in.Category),
			Description:    in.Name,
			PurchaseUnit:   in.PurchaseUnit,
			ReferencePrice: in.ReferencePrice,
			LastProbedAt:   now,
		}
		if err := tx.Create(&master).Error; err != nil {
			return nil, fmt.Errorf("create master input %q: %w", in.Name, err)
		}
		return &master, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup master input %q: %w", in.Name, err)
	}

	if master.ReferencePrice != in.ReferencePrice {
		history := models.PriceHistory{
			MasterInputID: master.ID,
			OldPrice:      master.ReferencePrice,
			NewPrice:      in.ReferencePrice,
			LineItemID:    &lineItemID,
		}
		if err := tx.Create(&history).Error; err != nil {
			return nil, fmt.Errorf("price history %q: %w", in.Name, err)
		}
	}
	if err := tx.Model(&master).Updates(map[string]interface{}{
		"reference_price": in.ReferencePrice,
		"last_probed_at":  now,
	}).Error; err != nil {
		return nil, fmt.Errorf("refresh master input %q: %w", in.Name, err)
	}
	master.ReferencePrice = in.ReferencePrice
	master.LastProbedAt = now
	return &master, nil
}

// UnitCost is Σ yield × applied price × waste over the rows.
func UnitCost(rows []models.CompositionRow) float64 {
	var total float64
	for _, r := range rows {
		total += r.Cost()
	}
	return total
}

func (s *Service) Get(ctx context.Context, lineItemID uuid.UUID) (*models.BudgetLineItem, error) {
	var item models.BudgetLineItem
	err := s.db.WithContext(ctx).
		Preload("Composition.MasterInput").
		First(&item, "id = ?", lineItemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("line item", lineItemID)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListByProject returns the project's line items with their composition and inputs.
func (s *Service) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.BudgetLineItem, error) {
	var items []models.BudgetLineItem
	err := s.db.WithContext(ctx).
		Preload("Composition.MasterInput").
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

func (s *Service) PriceHistory(ctx context.Context, masterInputID uuid.UUID) ([]models.PriceHistory, error) {
	var out []models.PriceHistory
	err := s.db.WithContext(ctx).
		Where("master_input_id = ?", masterInputID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}
