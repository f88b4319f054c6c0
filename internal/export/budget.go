// Package export renders project budgets as spreadsheets.
package export

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"obra-backend/internal/apu"
	"obra-backend/internal/models"
	"obra-backend/internal/project"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	SheetBudget      = "Presupuesto"
	SheetComposition = "APU"
)

var (
	budgetHeader      = []string{"No.", "Renglón", "Unidad", "Cantidad", "Costo unitario", "Total"}
	compositionHeader = []string{"Renglón", "Categoría", "Insumo", "Unidad compra", "Rendimiento", "Desperdicio", "Precio", "Costo"}
)

type Exporter struct {
	projects *project.Service
	apu      *apu.Service
}

func NewExporter(projects *project.Service, apuSvc *apu.Service) *Exporter {
	return &Exporter{projects: projects, apu: apuSvc}
}

// Budget returns the project's workbook and a file name for it.
func (e *Exporter) Budget(ctx context.Context, projectID uuid.UUID) (*bytes.Buffer, string, error) {
	p, err := e.projects.Get(ctx, projectID)
	if err != nil {
		return nil, "", err
	}
	items, err := e.apu.ListByProject(ctx, projectID)
	if err != nil {
		return nil, "", err
	}

	f, err := BudgetWorkbook(p, items)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("write workbook: %w", err)
	}
	return buf, fileName(p.Name), nil
}

func fileName(projectName string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '_'
		}
		return -1
	}, projectName)
	if name == "" {
		name = "proyecto"
	}
	return "presupuesto_" + name + ".xlsx"
}

// BudgetWorkbook lays out line items on one sheet and their compositions on another.
// Items must come with Composition.MasterInput preloaded.
func BudgetWorkbook(p *models.Project, items []models.BudgetLineItem) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetBudget); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetComposition); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	set := func(sheet string, col, row int, v any) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellValue(sheet, cell, v)
	}

	if err := set(SheetBudget, 1, 1, p.Name); err != nil {
		return nil, err
	}
	if err := set(SheetBudget, 2, 1, p.Department); err != nil {
		return nil, err
	}
	for i, h := range budgetHeader {
		if err := set(SheetBudget, i+1, 3, h); err != nil {
			return nil, err
		}
	}
	for i, h := range compositionHeader {
		if err := set(SheetComposition, i+1, 1, h); err != nil {
			return nil, err
		}
	}
	if err := f.SetCellStyle(SheetBudget, "A3", "F3", bold); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(SheetComposition, "A1", "H1", bold); err != nil {
		return nil, err
	}

	grand := decimal.Zero
	row, apuRow := 4, 2
	for n, it := range items {
		total := decimal.NewFromFloat(it.Quantity).Mul(decimal.NewFromFloat(it.UnitCost)).Round(2)
		grand = grand.Add(total)

		values := []any{n + 1, it.Description, it.Unit, it.Quantity, round2(it.UnitCost), total.InexactFloat64()}
		for col, v := range values {
			if err := set(SheetBudget, col+1, row, v); err != nil {
				return nil, err
			}
		}
		row++

		for _, c := range it.Composition {
			var category, name, unit string
			if c.MasterInput != nil {
				category = string(c.MasterInput.Category)
				name = c.MasterInput.Description
				unit = c.MasterInput.PurchaseUnit
			}
			values := []any{it.Description, category, name, unit, c.Yield, c.WasteFactor, c.AppliedPrice, round2(c.Cost())}
			for col, v := range values {
				if err := set(SheetComposition, col+1, apuRow, v); err != nil {
					return nil, err
				}
			}
			apuRow++
		}
	}

	if err := set(SheetBudget, 5, row+1, "TOTAL"); err != nil {
		return nil, err
	}
	if err := set(SheetBudget, 6, row+1, grand.InexactFloat64()); err != nil {
		return nil, err
	}
	totalCell, _ := excelize.CoordinatesToCellName(5, row+1)
	if err := f.SetCellStyle(SheetBudget, totalCell, totalCell, bold); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(SheetBudget, "B", "B", 45); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(SheetComposition, "A", "C", 30); err != nil {
		return nil, err
	}
	return f, nil
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
