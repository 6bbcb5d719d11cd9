package repository

import (
	"fmt"

	"wedding-chat/internal/domain/conversation"
	"wedding-chat/internal/domain/message"

	"gorm.io/gorm"
)

// Models lists every table owned by the service, in creation order.
func Models() []interface{} {
	return []interface{}{
		&conversation.Conversation{},
		&message.Message{},
	}
}

// InitSchema creates or updates the conversation and message tables.
func InitSchema(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to auto-migrate: %w", err)
	}
	return nil
}

// DropSchema removes the service tables, messages first.
func DropSchema(db *gorm.DB) error {
	models := Models()
	for i := len(models) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(models[i]); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
	}
	return nil
}
