// Package payroll accrues worker pay from attendance or piece-rate progress.
package payroll

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"obra-backend/internal/apperr"
	"obra-backend/internal/logger"
	"obra-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultPeriod is used by ClosePayroll when no range is given.
const DefaultPeriod = 7 * 24 * time.Hour

var (
	ErrInvalidPeriod = errors.New("period end must be after start")
	ErrInvalidWorker = errors.New("invalid worker")
	ErrAlreadyPaid   = errors.New("payroll payment already paid")
)

type Service struct {
	db  *gorm.DB
	log *logger.Logger
	now func() time.Time
}

func NewService(db *gorm.DB, log *logger.Logger) *Service {
	return &Service{
		db:  db,
		log: log.With("service", "payroll"),
		now: func() time.Time { return time.Now().UTC() },
	}
}

type WorkerRequest struct {
	FullName         string
	DPI              string
	Role             string
	PayType          models.PayType
	BaseRate         *float64
	CurrentProjectID *uuid.UUID
}

func (s *Service) CreateWorker(ctx context.Context, req WorkerRequest) (*models.Worker, error) {
	w := &models.Worker{
		FullName:         strings.TrimSpace(req.FullName),
		DPI:              strings.TrimSpace(req.DPI),
		Role:             strings.TrimSpace(req.Role),
		PayType:          models.PayType(strings.ToLower(strings.TrimSpace(string(req.PayType)))),
		BaseRate:         req.BaseRate,
		CurrentProjectID: req.CurrentProjectID,
	}
	if w.FullName == "" || w.DPI == "" {
		return nil, fmt.Errorf("%w: full_name and dpi are required", ErrInvalidWorker)
	}
	if w.PayType != models.PayDaily && w.PayType != models.PayPieceRate {
		return nil, &apperr.UnsupportedPayTypeError{WorkerID: "new", PayType: string(w.PayType)}
	}
	if err := s.db.WithContext(ctx).Create(w).Error; err != nil {
		return nil, fmt.Errorf("create worker: %w", err)
	}
	return w, nil
}

// PayrollForPeriod computes what the worker earned in [start, end). It does not persist.
func (s *Service) PayrollForPeriod(ctx context.Context, workerID uuid.UUID, start, end time.Time) (float64, error) {
	var w models.Worker
	err := s.db.WithContext(ctx).First(&w, "id = ?", workerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, apperr.NotFound("worker", workerID)
	}
	if err != nil {
		return 0, err
	}
	return payFor(s.db.WithContext(ctx), &w, start, end)
}

func payFor(db *gorm.DB, w *models.Worker, start, end time.Time) (float64, error) {
	// an unconfigured worker pays nothing
	if w.BaseRate == nil || *w.BaseRate <= 0 {
		return 0, nil
	}
	rate := *w.BaseRate

	switch w.PayType {
	case models.PayDaily:
		var days int64
		err := db.Model(&models.AttendanceRecord{}).
			Where("worker_id = ? AND date >= ? AND date < ?", w.ID, start, end).
			Count(&days).Error
		if err != nil {
			return 0, fmt.Errorf("attendance count: %w", err)
		}
		return float64(days) * rate, nil

	case models.PayPieceRate:
		var volume float64
		err := db.Model(&models.ProgressReport{}).
			Select("COALESCE(SUM(quantity), 0)").
			Where("worker_id = ? AND reported_at >= ? AND reported_at < ?", w.ID, start, end).
			Scan(&volume).Error
		if err != nil {
			return 0, fmt.Errorf("progress volume: %w", err)
		}
		return volume * rate, nil

	default:
		return 0, &apperr.UnsupportedPayTypeError{WorkerID: w.ID.String(), PayType: string(w.PayType)}
	}
}

type AttendanceRequest struct {
	WorkerID  uuid.UUID
	At        time.Time
	Latitude  *float64
	Longitude *float64
}

// RecordAttendance stores a check-in. GPSCheck is set when coordinates are present.
func (s *Service) RecordAttendance(ctx context.Context, req AttendanceRequest) (*models.AttendanceRecord, error) {
	at := req.At
	if at.IsZero() {
		at = s.now()
	}
	rec := &models.AttendanceRecord{
		WorkerID:  req.WorkerID,
		Date:      at,
		CheckIn:   &at,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		GPSCheck:  req.Latitude != nil && req.Longitude != nil,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Worker{}).Where("id = ?", req.WorkerID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return apperr.NotFound("worker", req.WorkerID)
		}
		return tx.Create(rec).Error
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

type PayslipLine struct {
	PaymentID uuid.UUID      `json:"payment_id"`
	WorkerID  uuid.UUID      `json:"worker_id"`
	Worker    string         `json:"worker"`
	PayType   models.PayType `json:"pay_type"`
	Amount    float64        `json:"amount"`
}

// ClosePayroll writes one pending PayrollPayment per worker currently assigned
// to the project. One bad worker record aborts the whole batch.
func (s *Service) ClosePayroll(ctx context.Context, projectID uuid.UUID, start, end time.Time) ([]PayslipLine, error) {
	if end.IsZero() {
		end = s.now()
	}
	if start.IsZero() {
		start = end.Add(-DefaultPeriod)
	}
	if !end.After(start) {
		return nil, ErrInvalidPeriod
	}

	var lines []PayslipLine
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Project{}).Where("id = ?", projectID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return apperr.NotFound("project", projectID)
		}

		var workers []models.Worker
		if err := tx.Where("current_project_id = ?", projectID).Order("full_name ASC").Find(&workers).Error; err != nil {
			return err
		}

		for i := range workers {
			w := &workers[i]
			amount, err := payFor(tx, w, start, end)
			if err != nil {
				return err
			}
			p := models.PayrollPayment{
				WorkerID:    w.ID,
				ProjectID:   projectID,
				PeriodStart: start,
				PeriodEnd:   end,
				Amount:      amount,
				Status:      models.PaymentPending,
			}
			if err := tx.Create(&p).Error; err != nil {
				return fmt.Errorf("create payroll payment: %w", err)
			}
			lines = append(lines, PayslipLine{
				PaymentID: p.ID,
				WorkerID:  w.ID,
				Worker:    w.FullName,
				PayType:   w.PayType,
				Amount:    amount,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payroll closed", "project_id", projectID, "workers", len(lines), "start", start, "end", end)
	return lines, nil
}

// MarkPaid flips a pending payment to pagado.
func (s *Service) MarkPaid(ctx context.Context, paymentID uuid.UUID) (*models.PayrollPayment, error) {
	var p models.PayrollPayment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&p, "id = ?", paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("payroll payment", paymentID)
			}
			return err
		}
		if p.Status == models.PaymentPaid {
			return ErrAlreadyPaid
		}
		p.Status = models.PaymentPaid
		return tx.Model(&p).Update("status", models.PaymentPaid).Error
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}
