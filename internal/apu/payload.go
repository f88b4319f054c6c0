package apu

import (
	"errors"
	"reflect"
	"strings"

	"obra-backend/internal/apperr"

	"github.com/go-playground/validator/v10"
)

// Input is one row of a composition payload, as produced by the language-model
// client or typed in manually.
type Input struct {
	Category       string  `json:"category" validate:"required,oneof=material mano_obra equipo"`
	Name           string  `json:"name" validate:"required"`
	PurchaseUnit   string  `json:"purchase_unit" validate:"required"`
	Yield          float64 `json:"yield" validate:"gt=0"`
	ReferencePrice float64 `json:"reference_price" validate:"gte=0"`
}

// Payload is the costing payload for one line item.
type Payload struct {
	Unit   string  `json:"unit" validate:"required"`
	Inputs []Input `json:"inputs" validate:"dive"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Normalize trims the free-text fields in place and lowercases the category,
// which is part of the master-input identity.
func (p *Payload) Normalize() {
	p.Unit = strings.TrimSpace(p.Unit)
	for i := range p.Inputs {
		in := &p.Inputs[i]
		in.Category = strings.ToLower(strings.TrimSpace(in.Category))
		in.Name = strings.TrimSpace(in.Name)
		in.PurchaseUnit = strings.TrimSpace(in.PurchaseUnit)
	}
}

// Validate normalizes the payload and rejects it on the first structural defect.
// An empty (non-nil) inputs list is valid.
func (p *Payload) Validate() error {
	p.Normalize()
	if p.Unit == "" {
		return &apperr.InvalidCompositionError{Field: "unit", Reason: "is required"}
	}
	if p.Inputs == nil {
		return &apperr.InvalidCompositionError{Field: "inputs", Reason: "must be a list"}
	}

	err := validate.Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &apperr.InvalidCompositionError{Field: "payload", Reason: err.Error()}
	}
	return fieldError(verrs[0])
}

func fieldError(fe validator.FieldError) *apperr.InvalidCompositionError {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	var reason string
	switch fe.Tag() {
	case "required":
		reason = "is required"
	case "gt":
		reason = "must be > " + fe.Param()
	case "gte":
		reason = "must be >= " + fe.Param()
	case "oneof":
		reason = "must be one of " + fe.Param()
	default:
		reason = "failed " + fe.Tag()
	}
	return &apperr.InvalidCompositionError{Field: field, Reason: reason}
}
