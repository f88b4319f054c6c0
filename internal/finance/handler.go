package finance

import (
	"errors"
	"time"

	"obra-backend/internal/httpx"
	"obra-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type RegisterIncomeRequest struct {
	Amount        float64 `json:"amount" validate:"gt=0"`
	Concept       string  `json:"concept" validate:"required"`
	BankReference string  `json:"bank_reference"`
	CollectedAt   string  `json:"collected_at"` // YYYY-MM-DD, optional
}

// POST /api/projects/:id/incomes
func RegisterIncomeHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		var body RegisterIncomeRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}

		var collected time.Time
		if body.CollectedAt != "" {
			if collected, err = time.Parse(httpx.DateLayout, body.CollectedAt); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "collected_at must be YYYY-MM-DD")
			}
		}

		income, err := svc.RegisterIncome(c.UserContext(), IncomeRequest{
			ProjectID:     projectID,
			Amount:        body.Amount,
			Concept:       body.Concept,
			BankReference: body.BankReference,
			CollectedAt:   collected,
		})
		if errors.Is(err, ErrInvalidAmount) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(income)
	}
}

// GET /api/projects/:id/statement
// Every call also stores a snapshot that feeds the owner balance.
func StatementHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		st, err := svc.RecordStatement(c.UserContext(), projectID)
		if err != nil {
			return err
		}
		return c.JSON(st)
	}
}

type PersonalExpenseBody struct {
	Category    string  `json:"category" validate:"max=50"`
	Description string  `json:"description" validate:"required,max=200"`
	Amount      float64 `json:"amount" validate:"gt=0"`
	SpentAt     string  `json:"spent_at"` // YYYY-MM-DD, optional
}

// POST /api/owners/:id/expenses
func RegisterPersonalExpenseHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		var body PersonalExpenseBody
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		var spent time.Time
		if body.SpentAt != "" {
			if spent, err = time.Parse(httpx.DateLayout, body.SpentAt); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "spent_at must be YYYY-MM-DD")
			}
		}

		e, err := svc.RegisterPersonalExpense(c.UserContext(), PersonalExpenseRequest{
			OwnerID:     ownerID,
			Category:    body.Category,
			Description: body.Description,
			Amount:      body.Amount,
			SpentAt:     spent,
		})
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(e)
	}
}

// GET /api/owners/:id/expenses
func PersonalExpensesHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		sum, err := svc.PersonalExpenses(c.UserContext(), ownerID)
		if err != nil {
			return err
		}
		return c.JSON(sum)
	}
}

type WithdrawalBody struct {
	Mode  string  `json:"mode" validate:"required"`
	Value float64 `json:"value" validate:"gte=0"`
}

// PUT /api/owners/:id/withdrawal
func SetWithdrawalHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		var body WithdrawalBody
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		setting, err := svc.SetWithdrawal(c.UserContext(), ownerID, models.WithdrawalMode(body.Mode), body.Value)
		if errors.Is(err, ErrInvalidWithdrawal) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err != nil {
			return err
		}
		return c.JSON(setting)
	}
}

// GET /api/owners/:id/balance
func BalanceHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		b, err := svc.Balance(c.UserContext(), ownerID)
		if err != nil {
			return err
		}
		return c.JSON(b)
	}
}
