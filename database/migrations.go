package database

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yeremiapane/reservation-app/models"
	"github.com/yeremiapane/reservation-app/utils"
)

// SchemaMigration records which migrations have been applied.
type SchemaMigration struct {
	ID        string    `gorm:"primaryKey;type:varchar(100)"`
	AppliedAt time.Time `gorm:"not null"`
}

type migration struct {
	ID      string
	Migrate func(db *gorm.DB) error
}

// migrations run once at deploy time, in order. Schema changes never happen
// at request time.
var migrations = []migration{
	{
		ID: "20240801_initial_schema",
		Migrate: func(db *gorm.DB) error {
			return db.AutoMigrate(
				&models.Restaurant{},
				&models.Table{},
				&models.Reservation{},
				&models.WaitlistEntry{},
				&models.NotificationLog{},
			)
		},
	},
	{
		ID: "20240801_seed_default_restaurant",
		Migrate: func(db *gorm.DB) error {
			var count int64
			if err := db.Model(&models.Restaurant{}).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return nil
			}
			return db.Create(&models.Restaurant{Name: "Main Dining Room", Timezone: "UTC"}).Error
		},
	},
}

// Migrate applies pending migrations in order and records each one.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&SchemaMigration{}); err != nil {
		return fmt.Errorf("failed to prepare schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var applied int64
		if err := db.Model(&SchemaMigration{}).Where("id = ?", m.ID).Count(&applied).Error; err != nil {
			return fmt.Errorf("failed to check migration %s: %w", m.ID, err)
		}
		if applied > 0 {
			continue
		}

		if err := m.Migrate(db); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.ID, err)
		}
		if err := db.Create(&SchemaMigration{ID: m.ID, AppliedAt: time.Now()}).Error; err != nil {
			return fmt.Errorf("failed to record migration %s: %w", m.ID, err)
		}
		utils.InfoLogger.Printf("Applied migration %s", m.ID)
	}

	return nil
}
