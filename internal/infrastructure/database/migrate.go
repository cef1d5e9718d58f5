package database

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"zapdesk/services/routing-api/internal/infrastructure/database/entities"
)

// AutoMigrate applies database schema changes.
func AutoMigrate(ctx context.Context, db *gorm.DB, log zerolog.Logger) error {
	if err := db.WithContext(ctx).AutoMigrate(
		&entities.Session{},
		&entities.Conversation{},
		&entities.Message{},
		&entities.AssignmentEvent{},
		&entities.Department{},
		&entities.DepartmentMember{},
	); err != nil {
		return err
	}
	log.Info().Msg("applied routing schema migrations")
	return nil
}
