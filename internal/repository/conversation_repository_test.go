package repository_test

import (
	"context"
	"testing"
	"time"

	"wedding-chat/internal/domain/conversation"
	"wedding-chat/internal/domain/message"
	"wedding-chat/internal/repository"
	"wedding-chat/internal/testutil"
	chat_errors "wedding-chat/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestConversationRepository_CreateRejectsDuplicatePair(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewConversationRepository(db)
	ctx := context.Background()

	first := conversation.Conversation{ClientID: uuid.New(), ProviderID: uuid.New(), ProviderType: conversation.ProviderPartner}
	require.NoError(t, repo.Create(ctx, &first))
	assert.NotEqual(t, uuid.Nil, first.ID)

	dup := conversation.Conversation{ClientID: first.ClientID, ProviderID: first.ProviderID, ProviderType: conversation.ProviderPartner}
	err := repo.Create(ctx, &dup)
	assert.ErrorIs(t, err, chat_errors.ErrAlreadyExists)

	found, err := repo.GetByPair(ctx, first.ClientID, first.ProviderID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
}

func TestConversationRepository_GetByIDNotFound(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewConversationRepository(db)

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, chat_errors.ErrNotFound)
}

func TestConversationRepository_GetByIDForUpdate(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewConversationRepository(db)
	c := testutil.SeedConversation(t, db)
	ctx := context.Background()

	found, err := repo.GetByIDForUpdate(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, found.ID)

	_, err = repo.GetByIDForUpdate(ctx, uuid.New())
	assert.ErrorIs(t, err, chat_errors.ErrNotFound)
}

func TestConversationRepository_GetByIDForUpdateLocksRowOnPostgres(t *testing.T) {
	// sqlite drops locking clauses, so inspect the statement postgres would run
	pg, err := gorm.Open(postgres.Open("host=localhost user=chat dbname=chat sslmode=disable"), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)

	var statement string
	require.NoError(t, pg.Callback().Query().After("gorm:query").Register("capture_sql", func(tx *gorm.DB) {
		statement = tx.Statement.SQL.String()
	}))

	_, err = repository.NewConversationRepository(pg).GetByIDForUpdate(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Contains(t, statement, "FOR UPDATE")
}

func TestConversationRepository_NextSequenceIsMonotonic(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewConversationRepository(db)
	c := testutil.SeedConversation(t, db)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		seq, err := repo.NextSequence(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, want, seq)
	}

	_, err := repo.NextSequence(ctx, uuid.New())
	assert.ErrorIs(t, err, chat_errors.ErrNotFound)
}

func TestConversationRepository_ApplyMessageIncrementsRecipient(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewConversationRepository(db)
	c := testutil.SeedConversation(t, db)
	ctx := context.Background()

	sentAt := time.Now().UTC().Truncate(time.Millisecond)
	msg := message.Message{
		ID:         uuid.New(),
		SenderRole: conversation.RoleClient,
		Content:    "Hello",
		CreatedAt:  sentAt,
	}
	require.NoError(t, repo.ApplyMessage(ctx, c.ID, msg, conversation.RoleProvider))
	require.NoError(t, repo.ApplyMessage(ctx, c.ID, msg, conversation.RoleProvider))

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Unread.Provider)
	assert.Equal(t, 0, got.Unread.Client)
	require.NotNil(t, got.LastMessage.Content)
	assert.Equal(t, "Hello", *got.LastMessage.Content)
	require.NotNil(t, got.LastMessage.MessageID)
	assert.Equal(t, msg.ID, *got.LastMessage.MessageID)
	require.NotNil(t, got.LastMessage.SenderRole)
	assert.Equal(t, conversation.RoleClient, *got.LastMessage.SenderRole)

	require.NoError(t, repo.ResetUnread(ctx, c.ID, conversation.RoleProvider))
	got, err = repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Unread.Provider)
}

func TestConversationRepository_SetLastMessageNilClears(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewConversationRepository(db)
	c := testutil.SeedConversation(t, db)
	ctx := context.Background()

	msg := message.Message{ID: uuid.New(), SenderRole: conversation.RoleProvider, Content: "Quote attached", CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.SetLastMessage(ctx, c.ID, &msg))
	require.NoError(t, repo.SetLastMessage(ctx, c.ID, nil))

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.LastMessage.Empty())
	assert.Nil(t, got.LastMessage.Content)
}

func TestConversationRepository_ListForParticipant(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewConversationRepository(db)
	ctx := context.Background()

	provider := uuid.New()
	older := conversation.Conversation{ClientID: uuid.New(), ProviderID: provider, ProviderType: conversation.ProviderEstablishment}
	newer := conversation.Conversation{ClientID: uuid.New(), ProviderID: provider, ProviderType: conversation.ProviderEstablishment}
	other := conversation.Conversation{ClientID: uuid.New(), ProviderID: uuid.New(), ProviderType: conversation.ProviderPartner}
	require.NoError(t, repo.Create(ctx, &older))
	require.NoError(t, repo.Create(ctx, &newer))
	require.NoError(t, repo.Create(ctx, &other))

	msg := message.Message{ID: uuid.New(), SenderRole: conversation.RoleClient, Content: "hi", CreatedAt: time.Now().UTC().Add(time.Minute)}
	require.NoError(t, repo.ApplyMessage(ctx, older.ID, msg, conversation.RoleProvider))

	items, total, err := repo.ListForParticipant(ctx, provider, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, items, 2)
	assert.Equal(t, older.ID, items[0].ID, "most recently updated first")

	items, total, err = repo.ListForParticipant(ctx, older.ClientID, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, items, 1)
}

func TestConversationRepository_Delete(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewConversationRepository(db)
	c := testutil.SeedConversation(t, db)
	ctx := context.Background()

	require.NoError(t, repo.Delete(ctx, c.ID))
	assert.ErrorIs(t, repo.Delete(ctx, c.ID), chat_errors.ErrNotFound)
}
