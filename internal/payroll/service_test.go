package payroll

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"obra-backend/internal/apperr"
	"obra-backend/internal/logger"
	"obra-backend/internal/models"
	"obra-backend/internal/testdb"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	weekStart = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	weekEnd   = weekStart.AddDate(0, 0, 7)
)

func rate(v float64) *float64 { return &v }

func seedWorker(t *testing.T, db *gorm.DB, w models.Worker) models.Worker {
	t.Helper()
	if w.DPI == "" {
		w.DPI = uuid.NewString()[:13]
	}
	if err := db.Create(&w).Error; err != nil {
		t.Fatalf("seed worker: %v", err)
	}
	return w
}

func seedLineItem(t *testing.T, db *gorm.DB, projectID uuid.UUID) models.BudgetLineItem {
	t.Helper()
	item := models.BudgetLineItem{ProjectID: projectID, Description: "Repello", Unit: "m2", Quantity: 100}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("seed line item: %v", err)
	}
	return item
}

func TestPayrollDailyRate(t *testing.T) {
	db := testdb.Open(t)
	svc := NewService(db, logger.NewNop())
	w := seedWorker(t, db, models.Worker{FullName: "Juan Pérez", PayType: models.PayDaily, BaseRate: rate(100)})

	for d := 0; d < 5; d++ {
		at := weekStart.AddDate(0, 0, d).Add(7 * time.Hour)
		if _, err := svc.RecordAttendance(context.Background(), AttendanceRequest{WorkerID: w.ID, At: at}); err != nil {
			t.Fatalf("attendance: %v", err)
		}
	}
	// outside the half-open range
	if _, err := svc.RecordAttendance(context.Background(), AttendanceRequest{WorkerID: w.ID, At: weekEnd}); err != nil {
		t.Fatalf("attendance: %v", err)
	}

	pay, err := svc.PayrollForPeriod(context.Background(), w.ID, weekStart, weekEnd)
	if err != nil {
		t.Fatalf("payroll: %v", err)
	}
	if pay != 500 {
		t.Fatalf("expected 500 got %v", pay)
	}
}

func TestPayrollPieceRate(t *testing.T) {
	db := testdb.Open(t)
	svc := NewService(db, logger.NewNop())
	p := models.Project{Name: "Casa Antigua"}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed project: %v", err)
	}
	item := seedLineItem(t, db, p.ID)
	w := seedWorker(t, db, models.Worker{FullName: "Pedro Xol", PayType: models.PayPieceRate, BaseRate: rate(10)})
	other := seedWorker(t, db, models.Worker{FullName: "Otro", PayType: models.PayPieceRate, BaseRate: rate(10)})

	reports := []models.ProgressReport{
		{LineItemID: item.ID, Quantity: 12, ReportedAt: weekStart.Add(9 * time.Hour), WorkerID: &w.ID},
		{LineItemID: item.ID, Quantity: 11.5, ReportedAt: weekStart.AddDate(0, 0, 3), WorkerID: &w.ID},
		{LineItemID: item.ID, Quantity: 40, ReportedAt: weekStart.AddDate(0, 0, 2), WorkerID: &other.ID},
		{LineItemID: item.ID, Quantity: 99, ReportedAt: weekStart.AddDate(0, 0, -1), WorkerID: &w.ID},
	}
	for i := range reports {
		if err := db.Create(&reports[i]).Error; err != nil {
			t.Fatalf("seed report: %v", err)
		}
	}

	pay, err := svc.PayrollForPeriod(context.Background(), w.ID, weekStart, weekEnd)
	if err != nil {
		t.Fatalf("payroll: %v", err)
	}
	if math.Abs(pay-235) > 1e-9 {
		t.Fatalf("expected 235 got %v", pay)
	}
}

func TestPayrollEdgeCases(t *testing.T) {
	db := testdb.Open(t)
	svc := NewService(db, logger.NewNop())
	ctx := context.Background()

	unconfigured := seedWorker(t, db, models.Worker{FullName: "Sin tarifa", PayType: models.PayDaily})
	zero := seedWorker(t, db, models.Worker{FullName: "Tarifa cero", PayType: "iguala", BaseRate: rate(0)})
	iguala := seedWorker(t, db, models.Worker{FullName: "Iguala", PayType: "iguala", BaseRate: rate(3000)})

	for _, w := range []models.Worker{unconfigured, zero} {
		pay, err := svc.PayrollForPeriod(ctx, w.ID, weekStart, weekEnd)
		if err != nil || pay != 0 {
			t.Fatalf("%s: expected 0, nil got %v, %v", w.FullName, pay, err)
		}
	}

	_, err := svc.PayrollForPeriod(ctx, iguala.ID, weekStart, weekEnd)
	var unsupported *apperr.UnsupportedPayTypeError
	if !errors.As(err, &unsupported) || unsupported.PayType != "iguala" {
		t.Fatalf("expected UnsupportedPayTypeError got %v", err)
	}

	_, err = svc.PayrollForPeriod(ctx, uuid.New(), weekStart, weekEnd)
	var nf *apperr.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError got %v", err)
	}
}

func TestClosePayroll(t *testing.T) {
	db := testdb.Open(t)
	svc := NewService(db, logger.NewNop())
	ctx := context.Background()
	p := models.Project{Name: "Bodega Amatitlán"}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed project: %v", err)
	}

	a := seedWorker(t, db, models.Worker{FullName: "Ana", PayType: models.PayDaily, BaseRate: rate(120), CurrentProjectID: &p.ID})
	seedWorker(t, db, models.Worker{FullName: "Beto", PayType: models.PayDaily, BaseRate: rate(90), CurrentProjectID: &p.ID})
	seedWorker(t, db, models.Worker{FullName: "Carla", PayType: models.PayDaily, BaseRate: rate(500)}) // other project
	for d := 0; d < 3; d++ {
		if _, err := svc.RecordAttendance(ctx, AttendanceRequest{WorkerID: a.ID, At: weekStart.AddDate(0, 0, d)}); err != nil {
			t.Fatalf("attendance: %v", err)
		}
	}

	lines, err := svc.ClosePayroll(ctx, p.ID, weekStart, weekEnd)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(lines) != 2 || lines[0].Worker != "Ana" || lines[0].Amount != 360 || lines[1].Amount != 0 {
		t.Fatalf("unexpected payslips %+v", lines)
	}

	var payments []models.PayrollPayment
	if err := db.Where("project_id = ?", p.ID).Find(&payments).Error; err != nil {
		t.Fatalf("load payments: %v", err)
	}
	if len(payments) != 2 {
		t.Fatalf("expected 2 payments got %d", len(payments))
	}
	for _, pay := range payments {
		if pay.Status != models.PaymentPending {
			t.Fatalf("expected pendiente got %s", pay.Status)
		}
	}

	paid, err := svc.MarkPaid(ctx, lines[0].PaymentID)
	if err != nil || paid.Status != models.PaymentPaid {
		t.Fatalf("mark paid: %v", err)
	}
	if _, err := svc.MarkPaid(ctx, lines[0].PaymentID); !errors.Is(err, ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid got %v", err)
	}
}

func TestClosePayrollIsAllOrNothing(t *testing.T) {
	db := testdb.Open(t)
	svc := NewService(db, logger.NewNop())
	p := models.Project{Name: "Puente"}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed project: %v", err)
	}
	seedWorker(t, db, models.Worker{FullName: "A Bueno", PayType: models.PayDaily, BaseRate: rate(100), CurrentProjectID: &p.ID})
	seedWorker(t, db, models.Worker{FullName: "Z Malo", PayType: "mensual", BaseRate: rate(100), CurrentProjectID: &p.ID})

	_, err := svc.ClosePayroll(context.Background(), p.ID, weekStart, weekEnd)
	var unsupported *apperr.UnsupportedPayTypeError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedPayTypeError got %v", err)
	}
	var n int64
	db.Model(&models.PayrollPayment{}).Count(&n)
	if n != 0 {
		t.Fatalf("expected no payments committed, got %d", n)
	}

	if _, err := svc.ClosePayroll(context.Background(), p.ID, weekEnd, weekStart); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod got %v", err)
	}
}

func TestCreateWorkerRejectsUnknownPayType(t *testing.T) {
	svc := NewService(testdb.Open(t), logger.NewNop())
	_, err := svc.CreateWorker(context.Background(), WorkerRequest{FullName: "X", DPI: "1", PayType: "iguala"})
	var unsupported *apperr.UnsupportedPayTypeError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedPayTypeError got %v", err)
	}
	w, err := svc.CreateWorker(context.Background(), WorkerRequest{FullName: "María", DPI: "2", PayType: " Destajo ", BaseRate: rate(8)})
	if err != nil || w.PayType != models.PayPieceRate {
		t.Fatalf("expected destajo worker, got %+v (%v)", w, err)
	}
}
