package export

import (
	"fmt"

	"obra-backend/internal/httpx"

	"github.com/gofiber/fiber/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// GET /api/projects/:id/budget.xlsx
func BudgetHandler(e *Exporter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		buf, name, err := e.Budget(c.UserContext(), projectID)
		if err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, xlsxContentType)
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, name))
		return c.Send(buf.Bytes())
	}
}
