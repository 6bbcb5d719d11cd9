package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"wedding-chat/internal/domain/conversation"
	"wedding-chat/internal/domain/message"
	"wedding-chat/internal/repository"
	"wedding-chat/internal/transport/wsdto"
	chat_errors "wedding-chat/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const MaxContentLength = 4000

type SendMessageInput struct {
	ConversationID uuid.UUID
	SenderID       uuid.UUID
	SenderName     string
	SenderEmail    string
	// ClaimedRole is the role the caller says it speaks for. When set it
	// must match the role derived from the conversation.
	ClaimedRole conversation.Role
	Content     string
	Kind        message.Kind
	Metadata    json.RawMessage
	// OriginConnectionID is the socket that sent the message, if any. It is
	// excluded from the room broadcast. Sends without one reach every member.
	OriginConnectionID string
}

type MessageService struct {
	db            *gorm.DB
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	broadcaster   Broadcaster
	logger        *zap.Logger
	now           func() time.Time
}

func NewMessageService(db *gorm.DB, broadcaster Broadcaster, logger *zap.Logger) *MessageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageService{
		db:            db,
		conversations: repository.NewConversationRepository(db),
		messages:      repository.NewMessageRepository(db),
		broadcaster:   orNop(broadcaster),
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// SendMessage persists a message, updates the conversation summary and the
// recipient's unread counter in one transaction, then fans the message out
// to the conversation room. Delivery outcomes never change the result.
func (s *MessageService) SendMessage(ctx context.Context, in SendMessageInput) (message.Message, error) {
	content, kind, metadata, err := validateSendMessage(in)
	if err != nil {
		return message.Message{}, err
	}

	var msg message.Message
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		convRepo := repository.NewConversationRepository(tx)
		msgRepo := repository.NewMessageRepository(tx)

		conv, err := convRepo.GetByID(ctx, in.ConversationID)
		if err != nil {
			return err
		}

		role, ok := conv.RoleOf(in.SenderID)
		if !ok {
			return fmt.Errorf("%w: sender is not a party to the conversation", chat_errors.ErrForbidden)
		}
		if in.ClaimedRole != "" && in.ClaimedRole != role {
			return fmt.Errorf("%w: sender type %q does not match %q", chat_errors.ErrForbidden, in.ClaimedRole, role)
		}

		seq, err := convRepo.NextSequence(ctx, conv.ID)
		if err != nil {
			return err
		}

		now := s.now()
		msg = message.Message{
			ID:             uuid.New(),
			ConversationID: conv.ID,
			Seq:            seq,
			SenderID:       in.SenderID,
			SenderRole:     role,
			SenderName:     in.SenderName,
			SenderEmail:    in.SenderEmail,
			Content:        content,
			Kind:           kind,
			Metadata:       metadata,
			CreatedAt:      now,
			DeliveredAt:    &now,
		}
		if err := msgRepo.Create(ctx, &msg); err != nil {
			return err
		}
		return convRepo.ApplyMessage(ctx, conv.ID, msg, role.Opposite())
	})
	if err != nil {
		return message.Message{}, storeError(err)
	}

	s.fanOut(ctx, msg, in.OriginConnectionID)
	return msg, nil
}

func (s *MessageService) fanOut(ctx context.Context, msg message.Message, originConnID string) {
	log := s.logger.With(
		zap.String("conversation_id", msg.ConversationID.String()),
		zap.String("message_id", msg.ID.String()),
	)
	defer func() {
		if r := recover(); r != nil {
			log.Error("broadcast panicked", zap.Any("panic", r))
		}
	}()

	payload, err := wsdto.Encode(wsdto.EventNewMessage, wsdto.FromMessage(msg))
	if err != nil {
		log.Error("encode new-message failed", zap.Error(err))
		return
	}
	// the message is durable at this point; a cancelled caller must not stop delivery
	delivered := s.broadcaster.Broadcast(context.WithoutCancel(ctx), msg.ConversationID, originConnID, payload)
	log.Debug("message fanned out", zap.Int("delivered", delivered))
}

func validateSendMessage(in SendMessageInput) (string, message.Kind, datatypes.JSON, error) {
	if in.ConversationID == uuid.Nil {
		return "", "", nil, fmt.Errorf("%w: conversationId is required", chat_errors.ErrInvalidInput)
	}
	if in.SenderID == uuid.Nil {
		return "", "", nil, fmt.Errorf("%w: sender is required", chat_errors.ErrInvalidInput)
	}
	if in.ClaimedRole != "" && !in.ClaimedRole.Valid() {
		return "", "", nil, fmt.Errorf("%w: unknown sender type %q", chat_errors.ErrInvalidInput, in.ClaimedRole)
	}

	// stored as sent; surrounding whitespace only counts against emptiness and length
	trimmed := strings.TrimSpace(in.Content)
	if trimmed == "" {
		return "", "", nil, fmt.Errorf("%w: content is required", chat_errors.ErrInvalidInput)
	}
	if utf8.RuneCountInString(trimmed) > MaxContentLength {
		return "", "", nil, fmt.Errorf("%w: content exceeds %d characters", chat_errors.ErrInvalidInput, MaxContentLength)
	}

	kind := in.Kind
	if kind == "" {
		kind = message.KindText
	}
	if !kind.Valid() {
		return "", "", nil, fmt.Errorf("%w: unknown message kind %q", chat_errors.ErrInvalidInput, kind)
	}

	var metadata datatypes.JSON
	if raw := strings.TrimSpace(string(in.Metadata)); raw != "" && raw != "null" {
		if !json.Valid([]byte(raw)) {
			return "", "", nil, fmt.Errorf("%w: metadata is not valid JSON", chat_errors.ErrInvalidInput)
		}
		metadata = datatypes.JSON(raw)
	}

	return in.Content, kind, metadata, nil
}

// ListMessages returns the history after afterSeq in send order.
func (s *MessageService) ListMessages(ctx context.Context, conversationID, actorID uuid.UUID, afterSeq int64, limit int) ([]message.Message, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, storeError(err)
	}
	if !conv.IsParty(actorID) {
		return nil, chat_errors.ErrForbidden
	}
	if afterSeq < 0 {
		afterSeq = 0
	}
	msgs, err := s.messages.ListByConversation(ctx, conversationID, afterSeq, limit)
	if err != nil {
		return nil, storeError(err)
	}
	return msgs, nil
}
