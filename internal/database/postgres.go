package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/noah-isme/lostfound-go-api/internal/models"
)

// ConnectPostgres establishes a connection to the PostgreSQL database using the provided DSN.
// Driver errors are translated so unique violations surface as gorm.ErrDuplicatedKey.
func ConnectPostgres(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn must not be empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), GormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return db, nil
}

// GormConfig returns the gorm settings shared by every dialect. Timestamps are stamped in
// UTC at microsecond precision, matching what postgres stores, so a value returned from a
// write compares equal to the same row read back later.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		NowFunc:        Now,
	}
}

// Now is the clock gorm uses for CreatedAt and UpdatedAt.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Migrate creates or updates the tables and indexes the service relies on.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Report{}, &models.ChatThread{}, &models.ChatMessage{}, &models.Notification{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
