package repository

import (
	"context"
	"time"

	"wedding-chat/internal/domain/conversation"
	"wedding-chat/internal/domain/message"

	"github.com/google/uuid"
)

type ConversationRepository interface {
	Create(ctx context.Context, c *conversation.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error)
	// GetByIDForUpdate locks the row for the rest of the transaction.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (conversation.Conversation, error)
	GetByPair(ctx context.Context, clientID, providerID uuid.UUID) (conversation.Conversation, error)
	ListForParticipant(ctx context.Context, userID uuid.UUID, page, limit int) ([]conversation.Conversation, int64, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// NextSequence atomically advances and returns the conversation's message sequence.
	NextSequence(ctx context.Context, id uuid.UUID) (int64, error)
	// ApplyMessage points the summary at msg and increments the recipient's unread counter.
	ApplyMessage(ctx context.Context, id uuid.UUID, msg message.Message, recipient conversation.Role) error
	ResetUnread(ctx context.Context, id uuid.UUID, role conversation.Role) error
	SetUnread(ctx context.Context, id uuid.UUID, role conversation.Role, count int64) error
	// SetLastMessage rewrites the summary without touching counters. A nil msg clears it.
	SetLastMessage(ctx context.Context, id uuid.UUID, msg *message.Message) error
}

type MessageRepository interface {
	Create(ctx context.Context, m *message.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (message.Message, error)
	ListByConversation(ctx context.Context, conversationID uuid.UUID, afterSeq int64, limit int) ([]message.Message, error)
	Latest(ctx context.Context, conversationID uuid.UUID) (message.Message, error)
	MarkReadFrom(ctx context.Context, conversationID uuid.UUID, senderRole conversation.Role, readAt time.Time) (int64, error)
	CountUnreadFrom(ctx context.Context, conversationID uuid.UUID, senderRole conversation.Role) (int64, error)
	DeleteByConversation(ctx context.Context, conversationID uuid.UUID) (int64, error)
}
