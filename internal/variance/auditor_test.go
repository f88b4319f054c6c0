package variance

import (
	"context"
	"errors"
	"math"
	"testing"

	"obra-backend/internal/apperr"
	"obra-backend/internal/logger"
	"obra-backend/internal/models"
	"obra-backend/internal/testdb"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func seedProject(t *testing.T, db *gorm.DB) models.Project {
	t.Helper()
	p := models.Project{Name: "Colegio Villa Nueva"}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed project: %v", err)
	}
	return p
}

func TestAuditZeroBudget(t *testing.T) {
	db := testdb.Open(t)
	p := seedProject(t, db)

	r, err := NewAuditor(db, logger.NewNop(), 0).Audit(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if r.PercentConsumed != 0 || r.IsCritical {
		t.Fatalf("unexpected report %+v", r)
	}
}

func TestAuditSumsBudgetAndEverySpend(t *testing.T) {
	db := testdb.Open(t)
	p := seedProject(t, db)
	input := models.MasterInput{Category: models.CategoryMaterial, Description: "Hierro No. 4", PurchaseUnit: "varilla"}
	if err := db.Create(&input).Error; err != nil {
		t.Fatalf("seed input: %v", err)
	}

	for _, li := range []models.BudgetLineItem{
		{ProjectID: p.ID, Description: "Zapata", Unit: "u", Quantity: 4, UnitCost: 150},
		{ProjectID: p.ID, Description: "Muro", Unit: "m2", Quantity: 10, UnitCost: 40},
	} {
		if err := db.Create(&li).Error; err != nil {
			t.Fatalf("seed line item: %v", err)
		}
	}

	sub := 700.0
	orders := []models.PurchaseOrder{
		{ProjectID: p.ID, Status: models.OrderRejected, Lines: []models.PurchaseOrderLine{
			{MasterInputID: input.ID, Quantity: 10, UnitPrice: 70, Subtotal: &sub},
		}},
		{ProjectID: p.ID, Status: models.OrderDelivered, Lines: []models.PurchaseOrderLine{
			{MasterInputID: input.ID, Quantity: 3, UnitPrice: 117}, // no subtotal: 351
		}},
	}
	for i := range orders {
		if err := db.Create(&orders[i]).Error; err != nil {
			t.Fatalf("seed order: %v", err)
		}
	}

	r, err := NewAuditor(db, logger.NewNop(), 105).Audit(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if r.TheoreticalBudget != 1000 || r.ActualSpend != 1051 {
		t.Fatalf("unexpected sums %+v", r)
	}
	if math.Abs(r.PercentConsumed-105.1) > 1e-9 || !r.IsCritical {
		t.Fatalf("expected 105.1 critical, got %+v", r)
	}
}

func TestAuditUnknownProject(t *testing.T) {
	db := testdb.Open(t)
	_, err := NewAuditor(db, logger.NewNop(), 0).Audit(context.Background(), uuid.New())
	var nf *apperr.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError got %v", err)
	}
}

func TestEvaluateThresholdIsExclusive(t *testing.T) {
	threshold := decimal.NewFromInt(105)
	cases := []struct {
		budget, spend float64
		pct           float64
		critical      bool
	}{
		{1000, 1051, 105.1, true},
		{1000, 1050, 105, false},
		{1000, 1050.01, 105, true}, // rounds to 105.00 but is over
		{0, 500, 0, false},
		{-10, 500, 0, false},
		{3, 1, 33.33, false},
	}
	for _, tc := range cases {
		r := Evaluate(tc.budget, tc.spend, threshold)
		if math.Abs(r.PercentConsumed-tc.pct) > 1e-9 || r.IsCritical != tc.critical {
			t.Fatalf("budget=%v spend=%v: got %+v", tc.budget, tc.spend, r)
		}
	}
}
