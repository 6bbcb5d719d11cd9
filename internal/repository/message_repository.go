package repository

import (
	"context"
	"time"

	"wedding-chat/internal/domain/conversation"
	"wedding-chat/internal/domain/message"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GormMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &GormMessageRepository{db: db}
}

func (r *GormMessageRepository) Create(ctx context.Context, m *message.Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return translateError(r.db.WithContext(ctx).Create(m).Error)
}

func (r *GormMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	var m message.Message
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return message.Message{}, translateError(err)
	}
	return m, nil
}

func (r *GormMessageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID, afterSeq int64, limit int) ([]message.Message, error) {
	var msgs []message.Message
	_, limit = normalizePage(1, limit, 50, 200)
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND seq > ?", conversationID, afterSeq).
		Order("seq ASC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, translateError(err)
	}
	return msgs, nil
}

func (r *GormMessageRepository) Latest(ctx context.Context, conversationID uuid.UUID) (message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("seq DESC").
		First(&m).Error
	if err != nil {
		return message.Message{}, translateError(err)
	}
	return m, nil
}

func (r *GormMessageRepository) MarkReadFrom(ctx context.Context, conversationID uuid.UUID, senderRole conversation.Role, readAt time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("conversation_id = ? AND sender_role = ? AND read_at IS NULL", conversationID, senderRole).
		UpdateColumn("read_at", readAt)
	if res.Error != nil {
		return 0, translateError(res.Error)
	}
	return res.RowsAffected, nil
}

func (r *GormMessageRepository) CountUnreadFrom(ctx context.Context, conversationID uuid.UUID, senderRole conversation.Role) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("conversation_id = ? AND sender_role = ? AND read_at IS NULL", conversationID, senderRole).
		Count(&n).Error
	if err != nil {
		return 0, translateError(err)
	}
	return n, nil
}

func (r *GormMessageRepository) DeleteByConversation(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).Delete(&message.Message{})
	if res.Error != nil {
		return 0, translateError(res.Error)
	}
	return res.RowsAffected, nil
}
