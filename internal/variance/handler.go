package variance

import (
	"obra-backend/internal/httpx"

	"github.com/gofiber/fiber/v2"
)

// GET /api/projects/:id/variance
func AuditHandler(a *Auditor) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		report, err := a.Audit(c.UserContext(), projectID)
		if err != nil {
			return err
		}
		return c.JSON(report)
	}
}
