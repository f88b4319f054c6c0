package export

import (
	"bytes"
	"context"
	"testing"

	"obra-backend/internal/apu"
	"obra-backend/internal/logger"
	"obra-backend/internal/project"
	"obra-backend/internal/testdb"

	"github.com/xuri/excelize/v2"
)

func TestBudgetExport(t *testing.T) {
	db := testdb.Open(t)
	log := logger.NewNop()
	projects := project.NewService(db, log)
	apuSvc := apu.NewService(db, log, 0)
	ctx := context.Background()

	p, err := projects.Create(ctx, "Casa López", "Petén")
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	_, _, err = apuSvc.Build(ctx, apu.BuildRequest{
		ProjectID:    p.ID,
		LineItemName: "Piso cerámico",
		Quantity:     20,
		WasteFactor:  1,
		Payload: apu.Payload{Unit: "m2", Inputs: []apu.Input{
			{Category: "material", Name: "Piso", PurchaseUnit: "m2", Yield: 1, ReferencePrice: 100},
			{Category: "mano_obra", Name: "Albañil", PurchaseUnit: "m2", Yield: 1, ReferencePrice: 25},
		}},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	buf, name, err := NewExporter(projects, apuSvc).Budget(ctx, p.ID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if name != "presupuesto_Casa_Lpez.xlsx" {
		t.Fatalf("unexpected file name %q", name)
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	cases := map[string]string{
		"A1": "Casa López",
		"B4": "Piso cerámico",
		"D4": "20",
		"E4": "125",
		"F4": "2500",
		"E6": "TOTAL",
		"F6": "2500",
	}
	for cell, want := range cases {
		got, err := f.GetCellValue(SheetBudget, cell)
		if err != nil {
			t.Fatalf("%s: %v", cell, err)
		}
		if got != want {
			t.Fatalf("%s: expected %q got %q", cell, want, got)
		}
	}

	rows, err := f.GetRows(SheetComposition)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 composition rows, got %d", len(rows))
	}
}
