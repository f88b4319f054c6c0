package apu

import (
	"obra-backend/internal/httpx"
	"obra-backend/internal/models"
	"obra-backend/internal/quantity"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// -------------------------
// Request/Response Types
// -------------------------

type BuildLineItemRequest struct {
	Name        string  `json:"name" validate:"required"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
	WasteFactor float64 `json:"waste_factor" validate:"gte=0"`
	Payload     Payload `json:"payload" validate:"-"`
}

type PreciseRequest struct {
	Name        string  `json:"name" validate:"required"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
	WasteFactor float64 `json:"waste_factor" validate:"gte=0"`
	// Estimated is the language-model draft (prices, labor, equipment).
	Estimated Payload `json:"estimated" validate:"-"`
}

type RebuildRequest struct {
	WasteFactor float64 `json:"waste_factor" validate:"gte=0"`
	Payload     Payload `json:"payload" validate:"-"`
}

type RuleQuantitiesRequest struct {
	Name     string  `json:"name" validate:"required"`
	Quantity float64 `json:"quantity"`
}

type RuleQuantitiesResponse struct {
	Unit       string             `json:"unit"`
	Quantities map[string]float64 `json:"quantities"`
	Details    []quantity.Detail  `json:"details"`
}

type CompositionRowResponse struct {
	InputID      uuid.UUID `json:"input_id"`
	Category     string    `json:"category"`
	Name         string    `json:"name"`
	PurchaseUnit string    `json:"purchase_unit"`
	Yield        float64   `json:"yield"`
	WasteFactor  float64   `json:"waste_factor"`
	AppliedPrice float64   `json:"applied_price"`
	Cost         float64   `json:"cost"`
}

type LineItemResponse struct {
	ID          uuid.UUID                `json:"id"`
	ProjectID   uuid.UUID                `json:"project_id"`
	Description string                   `json:"description"`
	Unit        string                   `json:"unit"`
	Quantity    float64                  `json:"quantity"`
	UnitCost    float64                  `json:"unit_cost"`
	Total       float64                  `json:"total"`
	Composition []CompositionRowResponse `json:"composition"`
}

func toResponse(item *models.BudgetLineItem, payload *Payload) LineItemResponse {
	resp := LineItemResponse{
		ID:          item.ID,
		ProjectID:   item.ProjectID,
		Description: item.Description,
		Unit:        item.Unit,
		Quantity:    item.Quantity,
		UnitCost:    item.UnitCost,
		Total:       item.Total(),
		Composition: make([]CompositionRowResponse, 0, len(item.Composition)),
	}
	for i, row := range item.Composition {
		r := CompositionRowResponse{
			InputID:      row.MasterInputID,
			Yield:        row.Yield,
			WasteFactor:  row.WasteFactor,
			AppliedPrice: row.AppliedPrice,
			Cost:         row.Cost(),
		}
		switch {
		case row.MasterInput != nil:
			r.Category = string(row.MasterInput.Category)
			r.Name = row.MasterInput.Description
			r.PurchaseUnit = row.MasterInput.PurchaseUnit
		case payload != nil && i < len(payload.Inputs):
			// freshly built rows follow payload order
			r.Category = payload.Inputs[i].Category
			r.Name = payload.Inputs[i].Name
			r.PurchaseUnit = payload.Inputs[i].PurchaseUnit
		}
		resp.Composition = append(resp.Composition, r)
	}
	return resp
}

// -------------------------
// Handlers
// -------------------------

// POST /api/projects/:id/line-items
func BuildLineItemHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		var body BuildLineItemRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}

		item, _, err := svc.Build(c.UserContext(), BuildRequest{
			ProjectID:    projectID,
			LineItemName: body.Name,
			Quantity:     body.Quantity,
			Payload:      body.Payload,
			WasteFactor:  body.WasteFactor,
		})
		if err != nil {
			return err
		}
		body.Payload.Normalize()
		return c.Status(fiber.StatusCreated).JSON(toResponse(item, &body.Payload))
	}
}

// POST /api/projects/:id/apu/precise
// Quantities come from the rule engine; the estimate only fills prices, labor and equipment.
func BuildPreciseHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		var body PreciseRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}

		unit, details := quantity.Detailed(body.Name, body.Quantity)
		payload := MergePrecise(unit, details, body.Estimated)

		item, _, err := svc.Build(c.UserContext(), BuildRequest{
			ProjectID:    projectID,
			LineItemName: body.Name,
			Quantity:     body.Quantity,
			Payload:      payload,
			WasteFactor:  body.WasteFactor,
		})
		if err != nil {
			return err
		}
		payload.Normalize()
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"line_item":           toResponse(item, &payload),
			"physical_quantities": quantity.Quantities(body.Name, body.Quantity),
		})
	}
}

// PUT /api/line-items/:id/composition
func RebuildCompositionHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		var body RebuildRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		item, _, err := svc.Rebuild(c.UserContext(), id, body.Payload, body.WasteFactor)
		if err != nil {
			return err
		}
		body.Payload.Normalize()
		return c.JSON(toResponse(item, &body.Payload))
	}
}

// GET /api/line-items/:id
func GetLineItemHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		item, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(toResponse(item, nil))
	}
}

// GET /api/projects/:id/line-items
func ListLineItemsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		items, err := svc.ListByProject(c.UserContext(), projectID)
		if err != nil {
			return err
		}
		resp := make([]LineItemResponse, 0, len(items))
		for i := range items {
			resp = append(resp, toResponse(&items[i], nil))
		}
		return c.JSON(resp)
	}
}

// GET /api/inputs/:id/price-history
func PriceHistoryHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		history, err := svc.PriceHistory(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(history)
	}
}

// POST /api/rules/quantities
func RuleQuantitiesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RuleQuantitiesRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		unit, details := quantity.Detailed(body.Name, body.Quantity)
		return c.JSON(RuleQuantitiesResponse{
			Unit:       unit,
			Quantities: quantity.Quantities(body.Name, body.Quantity),
			Details:    details,
		})
	}
}
