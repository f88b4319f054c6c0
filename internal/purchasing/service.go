// Package purchasing creates purchase orders under the budget's availability
// guarantee and moves them through their status lifecycle.
package purchasing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"obra-backend/internal/apperr"
	"obra-backend/internal/audit"
	"obra-backend/internal/inventory"
	"obra-backend/internal/logger"
	"obra-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const epsilon = 1e-9

var (
	ErrEmptyOrder       = errors.New("purchase order needs at least one line")
	ErrInvalidLine      = errors.New("invalid purchase order line")
	ErrInvalidStatus    = errors.New("invalid purchase order status")
	ErrAlreadyDelivered = errors.New("purchase order already delivered")
	ErrTotalMismatch    = errors.New("purchase order total does not match its lines")
)

type Service struct {
	db     *gorm.DB
	log    *logger.Logger
	locker Locker
	now    func() time.Time
}

func NewService(db *gorm.DB, log *logger.Logger, locker Locker) *Service {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Service{
		db:     db,
		log:    log.With("service", "purchasing"),
		locker: locker,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type LineRequest struct {
	InputID   uuid.UUID
	Quantity  float64
	UnitPrice float64
}

type OrderRequest struct {
	ProjectID  uuid.UUID
	SupplierID *uuid.UUID
	Lines      []LineRequest
}

func lockKey(projectID, inputID uuid.UUID) string {
	return projectID.String() + ":" + inputID.String()
}

// CreateOrder validates every line against the input's remaining budget and
// writes the order only if all of them fit. Lines earlier in the same order
// count as already ordered.
func (s *Service) CreateOrder(ctx context.Context, req OrderRequest) (*models.PurchaseOrder, error) {
	if len(req.Lines) == 0 {
		return nil, ErrEmptyOrder
	}
	for i, l := range req.Lines {
		if l.Quantity <= 0 || l.UnitPrice < 0 {
			return nil, fmt.Errorf("%w: line %d needs quantity > 0 and unit_price >= 0", ErrInvalidLine, i)
		}
	}

	keys := make([]string, 0, len(req.Lines))
	seen := map[string]bool{}
	for _, l := range req.Lines {
		k := lockKey(req.ProjectID, l.InputID)
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	// fixed order so two orders sharing inputs cannot deadlock
	sort.Strings(keys)
	for _, k := range keys {
		release, err := s.locker.Acquire(ctx, k)
		if err != nil {
			return nil, err
		}
		defer release()
	}
	s.log.Debug("purchase-order locks held", "project_id", req.ProjectID, "keys", keys)

	order := &models.PurchaseOrder{
		ProjectID:  req.ProjectID,
		SupplierID: req.SupplierID,
		IssuedAt:   s.now(),
		Status:     models.OrderPending,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Project{}).Where("id = ?", req.ProjectID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return apperr.NotFound("project", req.ProjectID)
		}

		inOrder := map[uuid.UUID]float64{}
		for _, l := range req.Lines {
			if _, checked := inOrder[l.InputID]; !checked {
				if err := tx.Model(&models.MasterInput{}).Where("id = ?", l.InputID).Count(&n).Error; err != nil {
					return err
				}
				if n == 0 {
					return apperr.NotFound("input", l.InputID)
				}
			}

			available, err := inventory.AvailableQuantity(tx, req.ProjectID, l.InputID)
			if err != nil {
				return err
			}
			remaining := available - inOrder[l.InputID]
			if l.Quantity > remaining+epsilon {
				return &apperr.OverBudgetError{
					InputID:   l.InputID.String(),
					Requested: l.Quantity,
					Available: remaining,
				}
			}
			inOrder[l.InputID] += l.Quantity

			subtotal := l.Quantity * l.UnitPrice
			order.Lines = append(order.Lines, models.PurchaseOrderLine{
				MasterInputID: l.InputID,
				Quantity:      l.Quantity,
				UnitPrice:     l.UnitPrice,
				Subtotal:      &subtotal,
			})
			order.Total += subtotal
		}

		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("create purchase order: %w", err)
		}
		return audit.WriteLog(tx, audit.LogOptions{
			ProjectID:   &order.ProjectID,
			EntityType:  "purchase_order",
			EntityID:    order.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Purchase order created (%d lines, total %.2f)", len(order.Lines), order.Total),
			After:       map[string]any{"status": order.Status, "total": order.Total},
		})
	})
	if err != nil {
		var over *apperr.OverBudgetError
		if errors.As(err, &over) {
			s.log.Warn("purchase order rejected",
				"project_id", req.ProjectID, "input_id", over.InputID,
				"requested", over.Requested, "available", over.Available)
		}
		return nil, err
	}

	s.log.Info("purchase order created",
		"order_id", order.ID, "project_id", order.ProjectID,
		"lines", len(order.Lines), "total", order.Total)
	return order, nil
}

// UpdateStatus moves an order to a new status. Delivery books one ENTRADA per
// line into the project's warehouse; a delivered order is final.
func (s *Service) UpdateStatus(ctx context.Context, orderID uuid.UUID, status models.OrderStatus) (*models.PurchaseOrder, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	var order models.PurchaseOrder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Lines").First(&order, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("purchase order", orderID)
			}
			return err
		}
		if order.Status == status {
			return nil
		}
		if order.Status == models.OrderDelivered {
			return ErrAlreadyDelivered
		}
		before := order.Status

		if err := tx.Model(&order).Update("status", status).Error; err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		order.Status = status

		if status == models.OrderDelivered {
			for _, l := range order.Lines {
				mv := models.WarehouseMovement{
					MasterInputID: l.MasterInputID,
					ProjectID:     order.ProjectID,
					Direction:     models.MovementIn,
					Quantity:      l.Quantity,
					Note:          fmt.Sprintf("Recepción OC %s", order.ID),
					Date:          s.now(),
				}
				if err := tx.Create(&mv).Error; err != nil {
					return fmt.Errorf("receive order line: %w", err)
				}
			}
		}

		return audit.WriteLog(tx, audit.LogOptions{
			ProjectID:   &order.ProjectID,
			EntityType:  "purchase_order",
			EntityID:    order.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Status %s -> %s", before, status),
			Before:      map[string]any{"status": before},
			After:       map[string]any{"status": status},
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("purchase order status updated", "order_id", order.ID, "status", order.Status)
	return &order, nil
}

// ListPending returns pending orders, oldest first. A nil project lists all of them.
func (s *Service) ListPending(ctx context.Context, projectID *uuid.UUID) ([]models.PurchaseOrder, error) {
	q := s.db.WithContext(ctx).Preload("Lines").Where("status = ?", models.OrderPending)
	if projectID != nil {
		q = q.Where("project_id = ?", *projectID)
	}
	var out []models.PurchaseOrder
	err := q.Order("issued_at ASC").Find(&out).Error
	return out, err
}

func (s *Service) Get(ctx context.Context, orderID uuid.UUID) (*models.PurchaseOrder, error) {
	var order models.PurchaseOrder
	err := s.db.WithContext(ctx).Preload("Lines").First(&order, "id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("purchase order", orderID)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// CheckTotal recomputes Σ line amounts and compares it with the stored total.
func (s *Service) CheckTotal(ctx context.Context, orderID uuid.UUID) (float64, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, l := range order.Lines {
		sum += l.Amount()
	}
	if math.Abs(sum-order.Total) > 1e-6 {
		return sum, fmt.Errorf("%w: stored %.4f, lines %.4f", ErrTotalMismatch, order.Total, sum)
	}
	return sum, nil
}
