package matrix

import (
	"obra-backend/internal/apu"
	"obra-backend/internal/httpx"

	"github.com/gofiber/fiber/v2"
)

type SeedRequest struct {
	BaseQuantity float64 `json:"base_quantity" validate:"gt=0"`
	WasteFactor  float64 `json:"waste_factor" validate:"gte=0"`
	// Reference prices for materials, e.g. from the latest quote.
	Prices apu.Payload `json:"prices" validate:"-"`
}

// GET /api/matrix
func MasterHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		items, err := Master()
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"items": items})
	}
}

// POST /api/projects/:id/matrix/seed
func SeedHandler(svc *apu.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		var body SeedRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}

		res, err := Seed(c.UserContext(), svc, projectID, body.BaseQuantity, body.WasteFactor, body.Prices)
		if err != nil {
			return err
		}
		status := "ok"
		if len(res.Skipped) > 0 {
			status = "partial"
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"status":  status,
			"created": res.Created,
			"skipped": res.Skipped,
		})
	}
}
