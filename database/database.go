package database

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/ulugbekw/imtihon/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewDatabase opens the postgres connection used by all repositories.
// TranslateError is required: the result repository relies on
// gorm.ErrDuplicatedKey to detect a concurrent finalization of the same
// participant.
func NewDatabase(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password, cfg.Database.Name,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info().Str("host", cfg.Database.Host).Str("database", cfg.Database.Name).Msg("Database connected")
	return db, nil
}
