package infra

import (
	"fmt"

	"frontdesk/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx and runs AutoMigrate
// for the gateway's own tables. The gateway only stores its audit trail,
// receipts, and operator accounts — booking and payment state of record lives
// in the booking service.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return db, nil
}

// RunMigrations creates/updates the gateway's tables. Also used by the
// integration test suite against a disposable Postgres.
func RunMigrations(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Operator{},
		&model.SettlementAttempt{},
		&model.Receipt{},
	)
}
