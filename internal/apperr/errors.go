// Package apperr defines the closed set of business errors returned by the costing core.
// Every type implements Error; callers can switch exhaustively over them.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Error interface {
	error
	appError()
}

// InvalidCompositionError reports a malformed composition payload. Never retried.
type InvalidCompositionError struct {
	Field  string
	Reason string
}

func (e *InvalidCompositionError) Error() string {
	return fmt.Sprintf("invalid composition: %s %s", e.Field, e.Reason)
}

// NotFoundError reports a missing project, line item, input, order or worker.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// OverBudgetError rejects a purchase-order line that exceeds the theoretical availability.
type OverBudgetError struct {
	InputID   string
	Requested float64
	Available float64
}

func (e *OverBudgetError) Error() string {
	return fmt.Sprintf("input %s: requested %.4f exceeds available %.4f in budget", e.InputID, e.Requested, e.Available)
}

// UnsupportedPayTypeError flags a worker record with an unknown pay type.
type UnsupportedPayTypeError struct {
	WorkerID string
	PayType  string
}

func (e *UnsupportedPayTypeError) Error() string {
	return fmt.Sprintf("worker %s: unsupported pay type %q", e.WorkerID, e.PayType)
}

func (*InvalidCompositionError) appError() {}
func (*NotFoundError) appError()           {}
func (*OverBudgetError) appError()         {}
func (*UnsupportedPayTypeError) appError() {}

func NotFound(entity string, id fmt.Stringer) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id.String()}
}

// HTTPStatus maps an error to the status the API layer should answer with.
// Anything outside the taxonomy is a 500.
func HTTPStatus(err error) int {
	var appErr Error
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}
	switch appErr.(type) {
	case *InvalidCompositionError:
		return http.StatusUnprocessableEntity
	case *NotFoundError:
		return http.StatusNotFound
	case *OverBudgetError:
		return http.StatusConflict
	case *UnsupportedPayTypeError:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
