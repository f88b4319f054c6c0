package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pendiente"
	OrderApproved  OrderStatus = "aprobada"
	OrderRejected  OrderStatus = "rechazada"
	OrderDelivered OrderStatus = "entregada"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderApproved, OrderRejected, OrderDelivered:
		return true
	}
	return false
}

type PurchaseOrder struct {
	ID         uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID  uuid.UUID           `gorm:"type:uuid;index;not null" json:"project_id"`
	SupplierID *uuid.UUID          `gorm:"type:uuid" json:"supplier_id"` // no supplier table here
	IssuedAt   time.Time           `gorm:"index;not null" json:"issued_at"`
	Status     OrderStatus         `gorm:"size:20;not null;default:'pendiente';index" json:"status"`
	Total      float64             `gorm:"not null;default:0" json:"total"`
	Lines      []PurchaseOrderLine `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"lines,omitempty"`
}

func (PurchaseOrder) TableName() string { return "ordenes_compra" }

func (o *PurchaseOrder) BeforeCreate(tx *gorm.DB) error {
	ensureID(&o.ID)
	if o.IssuedAt.IsZero() {
		o.IssuedAt = time.Now().UTC()
	}
	return nil
}

type PurchaseOrderLine struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID       uuid.UUID `gorm:"type:uuid;index;not null" json:"order_id"`
	MasterInputID uuid.UUID `gorm:"type:uuid;index;not null" json:"master_input_id"`
	Quantity      float64   `gorm:"not null" json:"quantity"`
	UnitPrice     float64   `gorm:"not null" json:"unit_price"`
	Subtotal      *float64  `json:"subtotal"` // legacy rows may lack it
}

func (PurchaseOrderLine) TableName() string { return "detalle_orden_compra" }

func (l *PurchaseOrderLine) BeforeCreate(tx *gorm.DB) error {
	ensureID(&l.ID)
	return nil
}

// Amount returns Subtotal, or Quantity*UnitPrice when it is missing.
func (l PurchaseOrderLine) Amount() float64 {
	if l.Subtotal != nil {
		return *l.Subtotal
	}
	return l.Quantity * l.UnitPrice
}
