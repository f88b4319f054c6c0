package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PayType string

const (
	PayDaily     PayType = "jornal"
	PayPieceRate PayType = "destajo"
)

type Worker struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	FullName         string     `gorm:"size:200;not null" json:"full_name"`
	DPI              string     `gorm:"size:20;not null;unique" json:"dpi"`
	Role             string     `gorm:"size:50" json:"role"`
	PayType          PayType    `gorm:"size:20" json:"pay_type"`
	BaseRate         *float64   `json:"base_rate"`
	CurrentProjectID *uuid.UUID `gorm:"type:uuid;index" json:"current_project_id"`
}

func (Worker) TableName() string { return "trabajadores" }

func (w *Worker) BeforeCreate(tx *gorm.DB) error {
	ensureID(&w.ID)
	return nil
}

type AttendanceRecord struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	WorkerID  uuid.UUID  `gorm:"type:uuid;index;not null" json:"worker_id"`
	Date      time.Time  `gorm:"index;not null" json:"date"`
	CheckIn   *time.Time `json:"check_in"`
	CheckOut  *time.Time `json:"check_out"`
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	GPSCheck  bool       `gorm:"not null;default:false" json:"gps_check"`
}

func (AttendanceRecord) TableName() string { return "asistencia" }

func (a *AttendanceRecord) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pendiente"
	PaymentPaid    PaymentStatus = "pagado"
)

type PayrollPayment struct {
	ID          uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	WorkerID    uuid.UUID     `gorm:"type:uuid;index;not null" json:"worker_id"`
	ProjectID   uuid.UUID     `gorm:"type:uuid;index;not null" json:"project_id"`
	PeriodStart time.Time     `gorm:"not null" json:"period_start"`
	PeriodEnd   time.Time     `gorm:"not null" json:"period_end"`
	Amount      float64       `gorm:"not null" json:"amount"`
	Status      PaymentStatus `gorm:"size:20;not null;default:'pendiente'" json:"status"`
}

func (PayrollPayment) TableName() string { return "planilla_pagos" }

func (p *PayrollPayment) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
