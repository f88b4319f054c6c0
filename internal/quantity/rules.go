// Package quantity holds the deterministic material calculator used for "precise" APUs.
package quantity

import "strings"

const (
	UnitWall     = "m2"
	UnitConcrete = "m3"
	UnitGeneric  = "u"
)

type ratio struct {
	name    string
	unit    string
	perUnit float64
}

type rule struct {
	keywords []string
	unit     string
	inputs   []ratio
}

// Order matters: a name matching several rules takes the first one.
var rules = []rule{
	{
		// 0.14x0.19x0.39 block wall
		keywords: []string{"levantado", "muro"},
		unit:     UnitWall,
		inputs: []ratio{
			{name: "Block de 0.14", unit: "unidad", perUnit: 12.5 * 1.05},
			{name: "Cemento", unit: "bolsa", perUnit: 0.45},
			{name: "Arena de río", unit: "m3", perUnit: 0.045},
			{name: "Agua", unit: "L", perUnit: 10.0},
		},
	},
	{
		// 3000 PSI concrete, 1:2:3
		keywords: []string{"fundicion", "fundición", "concreto"},
		unit:     UnitConcrete,
		inputs: []ratio{
			{name: "Cemento", unit: "bolsa", perUnit: 9.8},
			{name: "Arena de río", unit: "m3", perUnit: 0.55},
			{name: "Piedrin", unit: "m3", perUnit: 0.70},
		},
	},
}

// Detail is one material of a rule-derived composition.
type Detail struct {
	Name          string  `json:"name"`
	Unit          string  `json:"unit"`
	TotalQuantity float64 `json:"total_quantity"`
	Yield         float64 `json:"yield"`
}

func match(lineItemName string) *rule {
	name := strings.ToLower(lineItemName)
	for i := range rules {
		for _, kw := range rules[i].keywords {
			if strings.Contains(name, kw) {
				return &rules[i]
			}
		}
	}
	return nil
}

// Quantities returns the total physical quantity of each material needed for
// totalQuantity units of the line item. An empty map means no rule applies.
func Quantities(lineItemName string, totalQuantity float64) map[string]float64 {
	out := map[string]float64{}
	if totalQuantity <= 0 {
		return out
	}
	r := match(lineItemName)
	if r == nil {
		return out
	}
	for _, in := range r.inputs {
		out[in.name] = totalQuantity * in.perUnit
	}
	return out
}

// Detailed infers the line item's unit and normalizes each material into a
// per-unit yield. Details follow the rule table order.
func Detailed(lineItemName string, totalQuantity float64) (string, []Detail) {
	if totalQuantity <= 0 {
		return "", []Detail{}
	}
	r := match(lineItemName)
	if r == nil {
		return UnitGeneric, []Detail{}
	}

	totals := Quantities(lineItemName, totalQuantity)
	details := make([]Detail, 0, len(r.inputs))
	for _, in := range r.inputs {
		total := totals[in.name]
		details = append(details, Detail{
			Name:          in.name,
			Unit:          in.unit,
			TotalQuantity: total,
			Yield:         total / totalQuantity,
		})
	}
	return r.unit, details
}
