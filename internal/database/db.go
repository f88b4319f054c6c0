package database

import (
	"fmt"

	"obra-backend/internal/config"
	"obra-backend/internal/logger"
	"obra-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open connects to Postgres. The caller owns the returned handle.
func Open(cfg *config.Config, log *logger.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	log.Info("database connected")
	return db, nil
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB, log *logger.Logger) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}

	// Dedup lookups go through this index; AutoMigrate does not always add
	// composite unique indexes to pre-existing tables.
	if !db.Migrator().HasIndex(&models.MasterInput{}, "idx_insumo_identity") {
		log.Warn("creating missing index", "index", "idx_insumo_identity")
		if err := db.Migrator().CreateIndex(&models.MasterInput{}, "idx_insumo_identity"); err != nil {
			return fmt.Errorf("create idx_insumo_identity: %w", err)
		}
	}

	log.Info("migration complete", "tables", len(models.All()))
	return nil
}
