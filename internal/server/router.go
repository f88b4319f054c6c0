// Package server assembles the services and mounts them on a fiber app.
package server

import (
	"strings"

	"obra-backend/internal/apu"
	"obra-backend/internal/audit"
	"obra-backend/internal/config"
	"obra-backend/internal/export"
	"obra-backend/internal/finance"
	"obra-backend/internal/httpx"
	"obra-backend/internal/inventory"
	"obra-backend/internal/logger"
	"obra-backend/internal/matrix"
	"obra-backend/internal/payroll"
	"obra-backend/internal/project"
	"obra-backend/internal/purchasing"
	"obra-backend/internal/variance"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"
)

func NewApp(cfg *config.Config, log *logger.Logger, db *gorm.DB, locker purchasing.Locker) *fiber.App {
	projects := project.NewService(db, log)
	apuSvc := apu.NewService(db, log, cfg.DefaultWasteFactor)
	inv := inventory.NewService(db, log)
	purchases := purchasing.NewService(db, log, locker)
	auditor := variance.NewAuditor(db, log, cfg.CriticalThresholdPercent)
	payrollSvc := payroll.NewService(db, log)
	financeSvc := finance.NewService(db, log)
	exporter := export.NewExporter(projects, apuSvc)

	app := fiber.New(fiber.Config{
		AppName:      "obra-backend",
		ErrorHandler: httpx.ErrorHandler(log),
	})
	app.Use(recover.New())

	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// Catalog and rules
	api.Get("/matrix", matrix.MasterHandler())
	api.Post("/rules/quantities", apu.RuleQuantitiesHandler())
	api.Get("/inputs/:id/price-history", apu.PriceHistoryHandler(apuSvc))

	// Projects and budget
	api.Post("/projects", project.CreateProjectHandler(projects))
	api.Get("/projects", project.ListProjectsHandler(projects))
	api.Get("/projects/:id", project.GetProjectHandler(projects))
	api.Post("/projects/:id/line-items", apu.BuildLineItemHandler(apuSvc))
	api.Get("/projects/:id/line-items", apu.ListLineItemsHandler(apuSvc))
	api.Post("/projects/:id/apu/precise", apu.BuildPreciseHandler(apuSvc))
	api.Post("/projects/:id/matrix/seed", matrix.SeedHandler(apuSvc))
	api.Get("/projects/:id/budget.xlsx", export.BudgetHandler(exporter))
	api.Get("/line-items/:id", apu.GetLineItemHandler(apuSvc))
	api.Put("/line-items/:id/composition", apu.RebuildCompositionHandler(apuSvc))

	// Availability, warehouse and field progress
	api.Get("/projects/:id/inputs/:inputId/available", inventory.AvailableQuantityHandler(inv))
	api.Get("/projects/:id/stock", inventory.StockSummaryHandler(inv))
	api.Post("/projects/:id/movements", inventory.RecordMovementHandler(inv))
	api.Post("/progress-reports", inventory.ReportProgressHandler(inv))
	api.Get("/projects/:id/evidence", inventory.ListEvidenceHandler(inv))

	// Purchasing and variance
	api.Post("/projects/:id/purchase-orders", purchasing.CreateOrderHandler(purchases))
	api.Get("/purchase-orders/pending", purchasing.ListPendingHandler(purchases))
	api.Get("/purchase-orders/:id", purchasing.GetOrderHandler(purchases))
	api.Put("/purchase-orders/:id/status", purchasing.UpdateStatusHandler(purchases))
	api.Get("/projects/:id/variance", variance.AuditHandler(auditor))

	// Payroll
	api.Post("/workers", payroll.CreateWorkerHandler(payrollSvc))
	api.Post("/attendance", payroll.RecordAttendanceHandler(payrollSvc))
	api.Get("/workers/:id/payroll", payroll.WorkerPayrollHandler(payrollSvc))
	api.Post("/projects/:id/payroll/close", payroll.ClosePayrollHandler(payrollSvc))
	api.Put("/payroll-payments/:id/paid", payroll.MarkPaidHandler(payrollSvc))

	// Finance
	api.Post("/projects/:id/incomes", finance.RegisterIncomeHandler(financeSvc))
	api.Get("/projects/:id/statement", finance.StatementHandler(financeSvc))
	api.Post("/owners/:id/expenses", finance.RegisterPersonalExpenseHandler(financeSvc))
	api.Get("/owners/:id/expenses", finance.PersonalExpensesHandler(financeSvc))
	api.Put("/owners/:id/withdrawal", finance.SetWithdrawalHandler(financeSvc))
	api.Get("/owners/:id/balance", finance.BalanceHandler(financeSvc))

	// Audit logs
	api.Get("/audit-logs", audit.ListAuditLogsHandler(db))

	return app
}
