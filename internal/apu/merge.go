package apu

import (
	"strings"

	"obra-backend/internal/models"
	"obra-backend/internal/quantity"
)

// MergePrecise combines rule-derived materials with an estimated payload.
// Rule yields are authoritative for materials: an estimated material with the
// same name only contributes its price. Labor and equipment rows, and materials
// no rule covers, are taken from the estimate as they are.
func MergePrecise(ruleUnit string, details []quantity.Detail, estimated Payload) Payload {
	unit := ruleUnit
	if len(details) == 0 && estimated.Unit != "" {
		unit = estimated.Unit
	}

	out := Payload{Unit: unit, Inputs: ruleInputs(details, materialPrices(estimated))}
	covered := map[string]bool{}
	for _, d := range details {
		covered[key(d.Name)] = true
	}

	for _, in := range estimated.Inputs {
		if isMaterial(in.Category) && covered[key(in.Name)] {
			continue
		}
		out.Inputs = append(out.Inputs, in)
	}
	return out
}

// PriceRules prices the rule materials from a price sheet. Unlike MergePrecise
// nothing from the sheet becomes a row of its own, so a sheet shared across
// line items cannot add inputs the rule does not use.
func PriceRules(ruleUnit string, details []quantity.Detail, sheet Payload) Payload {
	return Payload{Unit: ruleUnit, Inputs: ruleInputs(details, materialPrices(sheet))}
}

func materialPrices(p Payload) map[string]float64 {
	prices := map[string]float64{}
	for _, in := range p.Inputs {
		if isMaterial(in.Category) {
			prices[key(in.Name)] = in.ReferencePrice
		}
	}
	return prices
}

func ruleInputs(details []quantity.Detail, prices map[string]float64) []Input {
	out := make([]Input, 0, len(details))
	for _, d := range details {
		out = append(out, Input{
			Category:       string(models.CategoryMaterial),
			Name:           d.Name,
			PurchaseUnit:   d.Unit,
			Yield:          d.Yield,
			ReferencePrice: prices[key(d.Name)],
		})
	}
	return out
}

func isMaterial(category string) bool {
	return strings.EqualFold(strings.TrimSpace(category), string(models.CategoryMaterial))
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
