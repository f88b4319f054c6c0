// Package matrix serves the master construction sequence and seeds project
// budgets from it.
package matrix

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"obra-backend/internal/apperr"
	"obra-backend/internal/apu"
	"obra-backend/internal/quantity"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

//go:embed master.yaml
var masterYAML []byte

type Item struct {
	Phase     string `yaml:"phase" json:"phase"`
	LineItem  string `yaml:"line_item" json:"line_item"`
	Unit      string `yaml:"unit" json:"unit"`
	KeyInputs string `yaml:"key_inputs" json:"key_inputs"`
}

// Name is the line-item description used when the item is seeded into a budget.
func (i Item) Name() string {
	if i.Phase == "" {
		return i.LineItem
	}
	return i.Phase + " - " + i.LineItem
}

var (
	loadOnce sync.Once
	items    []Item
	loadErr  error
)

// Master returns the embedded sequence in construction order.
func Master() ([]Item, error) {
	loadOnce.Do(func() {
		items, loadErr = parse(masterYAML)
	})
	return items, loadErr
}

func parse(raw []byte) ([]Item, error) {
	var out []Item
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("master matrix: %w", err)
	}
	for i, it := range out {
		if strings.TrimSpace(it.LineItem) == "" {
			return nil, fmt.Errorf("master matrix: item %d has no line_item", i)
		}
	}
	return out, nil
}

type SeedResult struct {
	Created []SeededItem  `json:"created"`
	Skipped []SkippedItem `json:"skipped"`
}

type SeededItem struct {
	LineItemID uuid.UUID `json:"line_item_id"`
	Name       string    `json:"name"`
	UnitCost   float64   `json:"unit_cost"`
}

type SkippedItem struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Seed builds a line item for every matrix entry the rule engine can quantify.
// The optional price sheet only prices the rule's own materials. Each entry is its own unit of work, so
// one failure does not undo the others. A missing project aborts the seed.
func Seed(ctx context.Context, svc *apu.Service, projectID uuid.UUID, baseQuantity, wasteFactor float64, prices apu.Payload) (*SeedResult, error) {
	all, err := Master()
	if err != nil {
		return nil, err
	}

	res := &SeedResult{Created: []SeededItem{}, Skipped: []SkippedItem{}}
	for _, it := range all {
		unit, details := quantity.Detailed(it.LineItem, baseQuantity)
		if len(details) == 0 {
			res.Skipped = append(res.Skipped, SkippedItem{Name: it.Name(), Reason: "no quantity rule"})
			continue
		}
		if unit == "" {
			unit = it.Unit
		}

		payload := apu.PriceRules(unit, details, prices)
		item, _, err := svc.Build(ctx, apu.BuildRequest{
			ProjectID:    projectID,
			LineItemName: it.Name(),
			Quantity:     baseQuantity,
			Payload:      payload,
			WasteFactor:  wasteFactor,
		})
		var nf *apperr.NotFoundError
		if errors.As(err, &nf) && nf.Entity == "project" {
			return nil, err
		}
		if err != nil {
			res.Skipped = append(res.Skipped, SkippedItem{Name: it.Name(), Reason: err.Error()})
			continue
		}
		res.Created = append(res.Created, SeededItem{LineItemID: item.ID, Name: item.Description, UnitCost: item.UnitCost})
	}
	return res, nil
}
