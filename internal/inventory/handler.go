package inventory

import (
	"time"

	"obra-backend/internal/httpx"
	"obra-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type AvailabilityResponse struct {
	ProjectID uuid.UUID `json:"project_id"`
	InputID   uuid.UUID `json:"input_id"`
	Available float64   `json:"available"`
	NetStock  float64   `json:"net_stock"`
}

type CreateMovementRequest struct {
	InputID   uuid.UUID `json:"input_id" validate:"required"`
	Direction string    `json:"direction" validate:"required,oneof=ENTRADA SALIDA entrada salida"`
	Quantity  float64   `json:"quantity" validate:"gt=0"`
	Note      string    `json:"note"`
	Date      string    `json:"date"` // YYYY-MM-DD, optional
}

type ReportProgressRequest struct {
	LineItemID uuid.UUID  `json:"line_item_id" validate:"required"`
	Quantity   float64    `json:"quantity" validate:"gt=0"`
	Latitude   *float64   `json:"latitude"`
	Longitude  *float64   `json:"longitude"`
	Comment    string     `json:"comment"`
	Photos     []string   `json:"photos"`
	WorkerID   *uuid.UUID `json:"worker_id"`
}

type ReportProgressResponse struct {
	Report      *models.ProgressReport `json:"report"`
	Consumption []Consumption          `json:"consumption"`
}

// GET /api/projects/:id/inputs/:inputId/available
func AvailableQuantityHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		inputID, err := httpx.ParamUUID(c, "inputId")
		if err != nil {
			return err
		}

		available, err := svc.AvailableQuantity(c.UserContext(), projectID, inputID)
		if err != nil {
			return err
		}
		net, err := svc.NetStock(c.UserContext(), projectID, inputID)
		if err != nil {
			return err
		}
		return c.JSON(AvailabilityResponse{
			ProjectID: projectID,
			InputID:   inputID,
			Available: available,
			NetStock:  net,
		})
	}
}

// GET /api/projects/:id/stock
func StockSummaryHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		lines, err := svc.StockSummary(c.UserContext(), projectID)
		if err != nil {
			return err
		}
		return c.JSON(lines)
	}
}

// POST /api/projects/:id/movements
func RecordMovementHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		var body CreateMovementRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}

		var date time.Time
		if body.Date != "" {
			date, err = time.Parse(httpx.DateLayout, body.Date)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
			}
		}

		mv, err := svc.RecordMovement(c.UserContext(), MovementRequest{
			ProjectID: projectID,
			InputID:   body.InputID,
			Direction: models.MovementDirection(body.Direction),
			Quantity:  body.Quantity,
			Note:      body.Note,
			Date:      date,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(mv)
	}
}

// POST /api/progress-reports
func ReportProgressHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ReportProgressRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		report, consumption, err := svc.ReportProgress(c.UserContext(), ProgressRequest{
			LineItemID: body.LineItemID,
			Quantity:   body.Quantity,
			Latitude:   body.Latitude,
			Longitude:  body.Longitude,
			Comment:    body.Comment,
			PhotoURLs:  body.Photos,
			WorkerID:   body.WorkerID,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(ReportProgressResponse{Report: report, Consumption: consumption})
	}
}

// GET /api/projects/:id/evidence?limit=50
func ListEvidenceHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		items, err := svc.ListEvidence(c.UserContext(), projectID, c.QueryInt("limit", defaultEvidenceLimit))
		if err != nil {
			return err
		}
		return c.JSON(items)
	}
}
