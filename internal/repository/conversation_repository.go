package repository

import (
	"context"

	"wedding-chat/internal/domain/conversation"
	"wedding-chat/internal/domain/message"
	chat_errors "wedding-chat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &GormConversationRepository{db: db}
}

func (r *GormConversationRepository) Create(ctx context.Context, c *conversation.Conversation) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return translateError(r.db.WithContext(ctx).Create(c).Error)
}

func (r *GormConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if err != nil {
		return conversation.Conversation{}, translateError(err)
	}
	return c, nil
}

// GetByIDForUpdate reads the row and holds its lock until the transaction
// ends. Senders block on it in NextSequence.
func (r *GormConversationRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		return conversation.Conversation{}, translateError(err)
	}
	return c, nil
}

func (r *GormConversationRepository) GetByPair(ctx context.Context, clientID, providerID uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := r.db.WithContext(ctx).
		Where("client_id = ? AND provider_id = ?", clientID, providerID).
		First(&c).Error
	if err != nil {
		return conversation.Conversation{}, translateError(err)
	}
	return c, nil
}

func (r *GormConversationRepository) ListForParticipant(ctx context.Context, userID uuid.UUID, page, limit int) ([]conversation.Conversation, int64, error) {
	var conversations []conversation.Conversation
	var total int64

	page, limit = normalizePage(page, limit, 20, 100)
	q := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("client_id = ? OR provider_id = ?", userID, userID)

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}
	err := q.Order("updated_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&conversations).Error
	if err != nil {
		return nil, 0, translateError(err)
	}
	return conversations, total, nil
}

func (r *GormConversationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&conversation.Conversation{}, "id = ?", id)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}

// NextSequence must run inside a transaction so the increment and the read
// observe the same row version.
func (r *GormConversationRepository) NextSequence(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ?", id).
		UpdateColumn("last_seq", gorm.Expr("last_seq + ?", 1))
	if res.Error != nil {
		return 0, translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, chat_errors.ErrNotFound
	}

	var seq int64
	err := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ?", id).
		Pluck("last_seq", &seq).Error
	if err != nil {
		return 0, translateError(err)
	}
	return seq, nil
}

func (r *GormConversationRepository) ApplyMessage(ctx context.Context, id uuid.UUID, msg message.Message, recipient conversation.Role) error {
	column := conversation.UnreadColumn(recipient)
	res := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_message_id":          msg.ID,
			"last_message_content":     msg.Content,
			"last_message_sender_role": msg.SenderRole,
			"last_message_sent_at":     msg.CreatedAt,
			column:                     gorm.Expr(column+" + ?", 1),
			"updated_at":               msg.CreatedAt,
		})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}

func (r *GormConversationRepository) ResetUnread(ctx context.Context, id uuid.UUID, role conversation.Role) error {
	return r.SetUnread(ctx, id, role, 0)
}

func (r *GormConversationRepository) SetUnread(ctx context.Context, id uuid.UUID, role conversation.Role, count int64) error {
	if count < 0 {
		count = 0
	}
	res := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ?", id).
		UpdateColumn(conversation.UnreadColumn(role), count)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}

func (r *GormConversationRepository) SetLastMessage(ctx context.Context, id uuid.UUID, msg *message.Message) error {
	values := map[string]interface{}{
		"last_message_id":          nil,
		"last_message_content":     nil,
		"last_message_sender_role": nil,
		"last_message_sent_at":     nil,
	}
	if msg != nil {
		values["last_message_id"] = msg.ID
		values["last_message_content"] = msg.Content
		values["last_message_sender_role"] = msg.SenderRole
		values["last_message_sent_at"] = msg.CreatedAt
	}
	res := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ?", id).
		UpdateColumns(values)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}
