// Package inventory reconciles budgeted quantities against purchase orders
// and keeps the per-project warehouse ledger.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"obra-backend/internal/apperr"
	"obra-backend/internal/logger"
	"obra-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *logger.Logger
	now func() time.Time
}

func NewService(db *gorm.DB, log *logger.Logger) *Service {
	return &Service{
		db:  db,
		log: log.With("service", "inventory"),
		now: func() time.Time { return time.Now().UTC() },
	}
}

type MovementRequest struct {
	ProjectID uuid.UUID
	InputID   uuid.UUID
	Direction models.MovementDirection
	Quantity  float64
	Note      string
	Date      time.Time
}

// RecordMovement appends a manual ENTRADA or SALIDA to the project's warehouse.
func (s *Service) RecordMovement(ctx context.Context, req MovementRequest) (*models.WarehouseMovement, error) {
	dir := models.MovementDirection(strings.ToUpper(strings.TrimSpace(string(req.Direction))))
	if dir != models.MovementIn && dir != models.MovementOut {
		return nil, fmt.Errorf("direction must be ENTRADA or SALIDA")
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be > 0")
	}

	mv := &models.WarehouseMovement{
		MasterInputID: req.InputID,
		ProjectID:     req.ProjectID,
		Direction:     dir,
		Quantity:      req.Quantity,
		Note:          strings.TrimSpace(req.Note),
		Date:          req.Date,
	}
	if mv.Date.IsZero() {
		mv.Date = s.now()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := mustExist(tx, &models.Project{}, "project", req.ProjectID); err != nil {
			return err
		}
		if err := mustExist(tx, &models.MasterInput{}, "input", req.InputID); err != nil {
			return err
		}
		return tx.Create(mv).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("warehouse movement recorded",
		"project_id", mv.ProjectID, "input_id", mv.MasterInputID,
		"direction", mv.Direction, "quantity", mv.Quantity)
	return mv, nil
}

func mustExist(tx *gorm.DB, model any, entity string, id uuid.UUID) error {
	var n int64
	if err := tx.Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound(entity, id)
	}
	return nil
}

// NetStock is Σ ENTRADA − Σ SALIDA for the input in the project.
func (s *Service) NetStock(ctx context.Context, projectID, inputID uuid.UUID) (float64, error) {
	db := s.db.WithContext(ctx)
	if err := mustExist(db, &models.Project{}, "project", projectID); err != nil {
		return 0, err
	}
	if err := mustExist(db, &models.MasterInput{}, "input", inputID); err != nil {
		return 0, err
	}
	var net float64
	err := db.Model(&models.WarehouseMovement{}).
		Select("COALESCE(SUM(CASE WHEN direction = ? THEN quantity ELSE -quantity END), 0)", models.MovementIn).
		Where("project_id = ? AND master_input_id = ?", projectID, inputID).
		Scan(&net).Error
	return net, err
}

type StockLine struct {
	InputID      uuid.UUID `json:"input_id"`
	Description  string    `json:"description"`
	PurchaseUnit string    `json:"purchase_unit"`
	In           float64   `json:"in"`
	Out          float64   `json:"out"`
	Net          float64   `json:"net"`
}

// StockSummary lists every input that has moved in the project's warehouse,
// ordered by description.
func (s *Service) StockSummary(ctx context.Context, projectID uuid.UUID) ([]StockLine, error) {
	db := s.db.WithContext(ctx)
	if err := mustExist(db, &models.Project{}, "project", projectID); err != nil {
		return nil, err
	}

	var moves []models.WarehouseMovement
	if err := db.Where("project_id = ?", projectID).Order("date ASC").Find(&moves).Error; err != nil {
		return nil, fmt.Errorf("load movements: %w", err)
	}

	byInput := map[uuid.UUID]*StockLine{}
	ids := make([]uuid.UUID, 0)
	for _, m := range moves {
		line, ok := byInput[m.MasterInputID]
		if !ok {
			line = &StockLine{InputID: m.MasterInputID}
			byInput[m.MasterInputID] = line
			ids = append(ids, m.MasterInputID)
		}
		if m.Direction == models.MovementOut {
			line.Out += m.Quantity
		} else {
			line.In += m.Quantity
		}
		line.Net += m.SignedQuantity()
	}

	lines := make([]StockLine, 0, len(ids))
	if len(ids) == 0 {
		return lines, nil
	}
	var inputs []models.MasterInput
	if err := db.Where("id IN ?", ids).Find(&inputs).Error; err != nil {
		return nil, fmt.Errorf("load inputs: %w", err)
	}
	for _, in := range inputs {
		line := byInput[in.ID]
		line.Description = in.Description
		line.PurchaseUnit = in.PurchaseUnit
	}
	for _, id := range ids {
		lines = append(lines, *byInput[id])
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Description < lines[j].Description })
	return lines, nil
}

type ProgressRequest struct {
	LineItemID uuid.UUID
	Quantity   float64
	Latitude   *float64
	Longitude  *float64
	Comment    string
	PhotoURLs  []string
	WorkerID   *uuid.UUID
}

// ReportProgress appends a progress report with its evidence and decrements
// the virtual warehouse by the theoretical consumption, in one transaction.
func (s *Service) ReportProgress(ctx context.Context, req ProgressRequest) (*models.ProgressReport, []Consumption, error) {
	if req.Quantity <= 0 {
		return nil, nil, fmt.Errorf("advanced quantity must be > 0")
	}

	report := &models.ProgressReport{
		LineItemID: req.LineItemID,
		Quantity:   req.Quantity,
		ReportedAt: s.now(),
		Comment:    strings.TrimSpace(req.Comment),
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		WorkerID:   req.WorkerID,
	}
	for _, u := range req.PhotoURLs {
		if u = strings.TrimSpace(u); u != "" {
			report.Photos = append(report.Photos, models.EvidencePhoto{URL: u})
		}
	}

	var consumption []Consumption
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.BudgetLineItem
		if err := tx.Preload("Composition").First(&item, "id = ?", req.LineItemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("line item", req.LineItemID)
			}
			return err
		}
		if req.WorkerID != nil {
			if err := mustExist(tx, &models.Worker{}, "worker", *req.WorkerID); err != nil {
				return err
			}
		}

		if err := tx.Create(report).Error; err != nil {
			return fmt.Errorf("create progress report: %w", err)
		}

		consumption = consumptionOf(item.Composition, req.Quantity)
		for _, c := range consumption {
			if c.Quantity <= 0 {
				continue
			}
			mv := models.WarehouseMovement{
				MasterInputID: c.InputID,
				ProjectID:     item.ProjectID,
				Direction:     models.MovementOut,
				Quantity:      c.Quantity,
				Note:          fmt.Sprintf("Consumo por avance: %s", item.Description),
				Date:          report.ReportedAt,
			}
			if err := tx.Create(&mv).Error; err != nil {
				return fmt.Errorf("create consumption movement: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.log.Info("progress reported",
		"line_item_id", req.LineItemID, "quantity", req.Quantity,
		"photos", len(report.Photos), "movements", len(consumption))
	return report, consumption, nil
}

type Evidence struct {
	PhotoID    uuid.UUID `json:"photo_id"`
	URL        string    `json:"url"`
	ReportID   uuid.UUID `json:"report_id"`
	LineItem   string    `json:"line_item"`
	Quantity   float64   `json:"quantity"`
	Comment    string    `json:"comment"`
	ReportedAt time.Time `json:"reported_at"`
}

const (
	defaultEvidenceLimit = 50
	maxEvidenceLimit     = 200
)

// ListEvidence returns the project's most recent evidence photos.
func (s *Service) ListEvidence(ctx context.Context, projectID uuid.UUID, limit int) ([]Evidence, error) {
	switch {
	case limit <= 0:
		limit = defaultEvidenceLimit
	case limit > maxEvidenceLimit:
		limit = maxEvidenceLimit
	}

	var out []Evidence
	err := s.db.WithContext(ctx).
		Table("fotos_evidencia AS f").
		Select(`f.id AS photo_id, f.url AS url, r.id AS report_id,
			li.description AS line_item, r.quantity AS quantity,
			r.comment AS comment, r.reported_at AS reported_at`).
		Joins("JOIN reportes_avance r ON r.id = f.report_id").
		Joins("JOIN presupuesto_renglones li ON li.id = r.line_item_id").
		Where("li.project_id = ?", projectID).
		Order("r.reported_at DESC").
		Limit(limit).
		Scan(&out).Error
	return out, err
}
