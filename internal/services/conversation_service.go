package services

import (
	"context"
	"errors"
	"fmt"

	"wedding-chat/internal/domain/conversation"
	"wedding-chat/internal/repository"
	"wedding-chat/internal/transport/wsdto"
	chat_errors "wedding-chat/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type FindOrCreateInput struct {
	ClientID     uuid.UUID
	ProviderID   uuid.UUID
	ProviderType conversation.ProviderType
	// ActorID must be one of the two parties.
	ActorID uuid.UUID
}

type ConversationService struct {
	db            *gorm.DB
	conversations repository.ConversationRepository
	reconciler    *UnreadReconciler
	broadcaster   Broadcaster
	logger        *zap.Logger
}

func NewConversationService(db *gorm.DB, reconciler *UnreadReconciler, broadcaster Broadcaster, logger *zap.Logger) *ConversationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationService{
		db:            db,
		conversations: repository.NewConversationRepository(db),
		reconciler:    reconciler,
		broadcaster:   orNop(broadcaster),
		logger:        logger,
	}
}

// FindOrCreate returns the conversation for the client/provider pair,
// creating it on first contact. created reports whether this call inserted it.
func (s *ConversationService) FindOrCreate(ctx context.Context, in FindOrCreateInput) (conversation.Conversation, bool, error) {
	if in.ClientID == uuid.Nil || in.ProviderID == uuid.Nil {
		return conversation.Conversation{}, false, fmt.Errorf("%w: clientId and providerId are required", chat_errors.ErrInvalidInput)
	}
	if in.ClientID == in.ProviderID {
		return conversation.Conversation{}, false, fmt.Errorf("%w: client and provider must differ", chat_errors.ErrInvalidInput)
	}
	if !in.ProviderType.Valid() {
		return conversation.Conversation{}, false, fmt.Errorf("%w: unknown provider type %q", chat_errors.ErrInvalidInput, in.ProviderType)
	}
	if in.ActorID != in.ClientID && in.ActorID != in.ProviderID {
		return conversation.Conversation{}, false, chat_errors.ErrForbidden
	}

	existing, err := s.conversations.GetByPair(ctx, in.ClientID, in.ProviderID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, chat_errors.ErrNotFound) {
		return conversation.Conversation{}, false, storeError(err)
	}

	c := conversation.Conversation{
		ID:           uuid.New(),
		ClientID:     in.ClientID,
		ProviderID:   in.ProviderID,
		ProviderType: in.ProviderType,
	}
	err = s.conversations.Create(ctx, &c)
	if errors.Is(err, chat_errors.ErrAlreadyExists) {
		// lost the first-contact race; the winner's row is authoritative
		existing, err = s.conversations.GetByPair(ctx, in.ClientID, in.ProviderID)
		if err != nil {
			return conversation.Conversation{}, false, storeError(err)
		}
		return existing, false, nil
	}
	if err != nil {
		return conversation.Conversation{}, false, storeError(err)
	}

	s.logger.Info("conversation created",
		zap.String("conversation_id", c.ID.String()),
		zap.String("provider_type", string(c.ProviderType)))
	return c, true, nil
}

// Get loads a conversation for one of its parties. Drift in the summary is
// repaired first; a failed repair is logged and the stored row returned.
func (s *ConversationService) Get(ctx context.Context, id, actorID uuid.UUID) (conversation.Conversation, error) {
	c, err := s.conversations.GetByID(ctx, id)
	if err != nil {
		return conversation.Conversation{}, storeError(err)
	}
	if !c.IsParty(actorID) {
		return conversation.Conversation{}, chat_errors.ErrForbidden
	}

	if s.reconciler == nil {
		return c, nil
	}
	changed, err := s.reconciler.Reconcile(ctx, id)
	if err != nil {
		s.logger.Warn("summary reconcile failed", zap.String("conversation_id", id.String()), zap.Error(err))
		return c, nil
	}
	if changed {
		if fresh, err := s.conversations.GetByID(ctx, id); err == nil {
			c = fresh
		}
	}
	return c, nil
}

func (s *ConversationService) ListForParticipant(ctx context.Context, userID uuid.UUID, page, limit int) ([]conversation.Conversation, int64, error) {
	items, total, err := s.conversations.ListForParticipant(ctx, userID, page, limit)
	if err != nil {
		return nil, 0, storeError(err)
	}
	return items, total, nil
}

// IsParty is the join check for realtime rooms.
func (s *ConversationService) IsParty(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	c, err := s.conversations.GetByID(ctx, id)
	if err != nil {
		return false, storeError(err)
	}
	return c.IsParty(userID), nil
}

// Delete removes the conversation and its messages. Either party may do it.
func (s *ConversationService) Delete(ctx context.Context, id, actorID uuid.UUID) error {
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		convRepo := repository.NewConversationRepository(tx)
		msgRepo := repository.NewMessageRepository(tx)

		c, err := convRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !c.IsParty(actorID) {
			return chat_errors.ErrForbidden
		}
		if removed, err = msgRepo.DeleteByConversation(ctx, id); err != nil {
			return err
		}
		return convRepo.Delete(ctx, id)
	})
	if err != nil {
		return storeError(err)
	}

	s.logger.Info("conversation deleted",
		zap.String("conversation_id", id.String()),
		zap.Int64("messages_removed", removed))

	payload, err := wsdto.Encode(wsdto.EventConversationDeleted, wsdto.ConversationRef{ConversationID: id.String()})
	if err == nil {
		s.broadcaster.Broadcast(context.WithoutCancel(ctx), id, "", payload)
	}
	return nil
}
