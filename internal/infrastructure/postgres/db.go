package postgres

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to Postgres and migrates the credential schema.
// TranslateError makes unique and foreign-key violations surface as gorm sentinels.
func Open(ctx context.Context, dsn string, debug bool) (*gorm.DB, error) {
	level := logger.Warn
	if debug {
		level = logger.Info
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the tables. Order matters: referenced tables come first.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(
		&userRow{},
		&roleRow{},
		&roleUserRow{},
		&accessTokenRow{},
		&verificationCodeRow{},
	); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
