// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"wedding-chat/internal/domain/conversation"
	"wedding-chat/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB returns an isolated in-memory sqlite database with the schema
// applied. A single connection keeps every statement on the same memory DB,
// so code under test must run transactional work through the tx handle.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared&_busy_timeout=5000", name, uuid.NewString()[:8])
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, repository.InitSchema(db))
	return db
}

// SeedConversation inserts a conversation between a fresh client and provider.
func SeedConversation(t *testing.T, db *gorm.DB) conversation.Conversation {
	t.Helper()

	c := conversation.Conversation{
		ID:           uuid.New(),
		ClientID:     uuid.New(),
		ProviderID:   uuid.New(),
		ProviderType: conversation.ProviderEstablishment,
	}
	require.NoError(t, db.Create(&c).Error)
	return c
}
