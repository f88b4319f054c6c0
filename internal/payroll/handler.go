package payroll

import (
	"errors"
	"time"

	"obra-backend/internal/httpx"
	"obra-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type CreateWorkerRequest struct {
	FullName         string     `json:"full_name" validate:"required"`
	DPI              string     `json:"dpi" validate:"required"`
	Role             string     `json:"role"`
	PayType          string     `json:"pay_type" validate:"required"`
	BaseRate         *float64   `json:"base_rate"`
	CurrentProjectID *uuid.UUID `json:"current_project_id"`
}

type AttendanceRequestBody struct {
	WorkerID  uuid.UUID `json:"worker_id" validate:"required"`
	At        time.Time `json:"at"`
	Latitude  *float64  `json:"latitude"`
	Longitude *float64  `json:"longitude"`
}

type ClosePayrollRequest struct {
	Start string `json:"start"` // YYYY-MM-DD, optional
	End   string `json:"end"`   // YYYY-MM-DD, exclusive, optional
}

type PayrollResponse struct {
	WorkerID uuid.UUID `json:"worker_id"`
	Start    string    `json:"start"`
	End      string    `json:"end"`
	Amount   float64   `json:"amount"`
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidPeriod), errors.Is(err, ErrInvalidWorker):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrAlreadyPaid):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	return err
}

// POST /api/workers
func CreateWorkerHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateWorkerRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		w, err := svc.CreateWorker(c.UserContext(), WorkerRequest{
			FullName:         body.FullName,
			DPI:              body.DPI,
			Role:             body.Role,
			PayType:          models.PayType(body.PayType),
			BaseRate:         body.BaseRate,
			CurrentProjectID: body.CurrentProjectID,
		})
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(w)
	}
}

// POST /api/attendance
func RecordAttendanceHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body AttendanceRequestBody
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		rec, err := svc.RecordAttendance(c.UserContext(), AttendanceRequest{
			WorkerID:  body.WorkerID,
			At:        body.At.UTC(),
			Latitude:  body.Latitude,
			Longitude: body.Longitude,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(rec)
	}
}

// GET /api/workers/:id/payroll?start=2025-01-06&end=2025-01-13
func WorkerPayrollHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		start, err := httpx.QueryDate(c, "start")
		if err != nil {
			return err
		}
		end, err := httpx.QueryDate(c, "end")
		if err != nil {
			return err
		}
		if !end.After(start) {
			return httpError(ErrInvalidPeriod)
		}

		amount, err := svc.PayrollForPeriod(c.UserContext(), id, start, end)
		if err != nil {
			return err
		}
		return c.JSON(PayrollResponse{
			WorkerID: id,
			Start:    start.Format(httpx.DateLayout),
			End:      end.Format(httpx.DateLayout),
			Amount:   amount,
		})
	}
}

// POST /api/projects/:id/payroll/close
func ClosePayrollHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		var body ClosePayrollRequest
		if len(c.Body()) > 0 {
			if err := httpx.ParseBody(c, &body); err != nil {
				return err
			}
		}

		var start, end time.Time
		if body.Start != "" {
			if start, err = time.Parse(httpx.DateLayout, body.Start); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "start must be YYYY-MM-DD")
			}
		}
		if body.End != "" {
			if end, err = time.Parse(httpx.DateLayout, body.End); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "end must be YYYY-MM-DD")
			}
		}

		lines, err := svc.ClosePayroll(c.UserContext(), projectID, start, end)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"status": "closed",
			"lines":  lines,
		})
	}
}

// PUT /api/payroll-payments/:id/paid
func MarkPaidHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		p, err := svc.MarkPaid(c.UserContext(), id)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(p)
	}
}
