package purchasing

import (
	"errors"

	"obra-backend/internal/httpx"
	"obra-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type CreateOrderLine struct {
	InputID   uuid.UUID `json:"input_id" validate:"required"`
	Quantity  float64   `json:"quantity" validate:"gt=0"`
	UnitPrice float64   `json:"unit_price" validate:"gte=0"`
}

type CreateOrderRequest struct {
	SupplierID *uuid.UUID        `json:"supplier_id"`
	Lines      []CreateOrderLine `json:"lines" validate:"required,min=1,dive"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type OrderResponse struct {
	*models.PurchaseOrder
	TotalConsistent bool `json:"total_consistent"`
}

// maps the package's sentinel errors; domain errors pass through to the app error handler
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrEmptyOrder), errors.Is(err, ErrInvalidLine), errors.Is(err, ErrInvalidStatus):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrAlreadyDelivered):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrLockNotObtained):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	return err
}

// POST /api/projects/:id/purchase-orders
func CreateOrderHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		var body CreateOrderRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}

		req := OrderRequest{ProjectID: projectID, SupplierID: body.SupplierID}
		for _, l := range body.Lines {
			req.Lines = append(req.Lines, LineRequest{InputID: l.InputID, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
		}

		order, err := svc.CreateOrder(c.UserContext(), req)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(order)
	}
}

// GET /api/purchase-orders/pending?project_id=...
func ListPendingHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var projectID *uuid.UUID
		if s := c.Query("project_id"); s != "" {
			id, err := uuid.Parse(s)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid project_id")
			}
			projectID = &id
		}
		orders, err := svc.ListPending(c.UserContext(), projectID)
		if err != nil {
			return err
		}
		return c.JSON(orders)
	}
}

// GET /api/purchase-orders/:id
func GetOrderHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		order, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return err
		}
		_, checkErr := svc.CheckTotal(c.UserContext(), id)
		if checkErr != nil && !errors.Is(checkErr, ErrTotalMismatch) {
			return checkErr
		}
		return c.JSON(OrderResponse{PurchaseOrder: order, TotalConsistent: checkErr == nil})
	}
}

// PUT /api/purchase-orders/:id/status
func UpdateStatusHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		var body UpdateStatusRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		order, err := svc.UpdateStatus(c.UserContext(), id, models.OrderStatus(body.Status))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(order)
	}
}
