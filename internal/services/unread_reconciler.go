package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wedding-chat/internal/domain/conversation"
	"wedding-chat/internal/repository"
	"wedding-chat/internal/transport/wsdto"
	chat_errors "wedding-chat/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ReadReceipt struct {
	ConversationID uuid.UUID
	ReaderRole     conversation.Role
	MessagesMarked int64
	ReadAt         time.Time
}

// UnreadReconciler owns the read side of the unread counters.
type UnreadReconciler struct {
	db            *gorm.DB
	conversations repository.ConversationRepository
	broadcaster   Broadcaster
	logger        *zap.Logger
	now           func() time.Time
}

func NewUnreadReconciler(db *gorm.DB, broadcaster Broadcaster, logger *zap.Logger) *UnreadReconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UnreadReconciler{
		db:            db,
		conversations: repository.NewConversationRepository(db),
		broadcaster:   orNop(broadcaster),
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// MarkConversationRead zeroes readerRole's counter and stamps read_at on the
// other side's unread messages. Repeating the call is a no-op.
func (r *UnreadReconciler) MarkConversationRead(ctx context.Context, conversationID uuid.UUID, readerRole conversation.Role) (ReadReceipt, error) {
	if conversationID == uuid.Nil {
		return ReadReceipt{}, fmt.Errorf("%w: conversationId is required", chat_errors.ErrInvalidInput)
	}
	if !readerRole.Valid() {
		return ReadReceipt{}, fmt.Errorf("%w: unknown reader role %q", chat_errors.ErrInvalidInput, readerRole)
	}

	receipt := ReadReceipt{ConversationID: conversationID, ReaderRole: readerRole, ReadAt: r.now()}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		convRepo := repository.NewConversationRepository(tx)
		msgRepo := repository.NewMessageRepository(tx)

		if err := convRepo.ResetUnread(ctx, conversationID, readerRole); err != nil {
			return err
		}
		marked, err := msgRepo.MarkReadFrom(ctx, conversationID, readerRole.Opposite(), receipt.ReadAt)
		if err != nil {
			return err
		}
		receipt.MessagesMarked = marked
		return nil
	})
	if err != nil {
		return ReadReceipt{}, storeError(err)
	}

	if receipt.MessagesMarked > 0 {
		r.announce(ctx, receipt)
	}
	return receipt, nil
}

// MarkConversationReadBy resolves the reader's role from the conversation.
func (r *UnreadReconciler) MarkConversationReadBy(ctx context.Context, conversationID, readerID uuid.UUID) (ReadReceipt, error) {
	conv, err := r.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return ReadReceipt{}, storeError(err)
	}
	role, ok := conv.RoleOf(readerID)
	if !ok {
		return ReadReceipt{}, chat_errors.ErrForbidden
	}
	return r.MarkConversationRead(ctx, conversationID, role)
}

func (r *UnreadReconciler) announce(ctx context.Context, receipt ReadReceipt) {
	payload, err := wsdto.Encode(wsdto.EventMessagesRead, wsdto.ReadPayload{
		ConversationID: receipt.ConversationID.String(),
		ReaderRole:     receipt.ReaderRole,
		MessagesMarked: receipt.MessagesMarked,
		ReadAt:         receipt.ReadAt,
	})
	if err != nil {
		r.logger.Error("encode messages-read failed", zap.Error(err))
		return
	}
	r.broadcaster.Broadcast(context.WithoutCancel(ctx), receipt.ConversationID, "", payload)
}

// Reconcile recomputes the last message summary and both unread counters
// from the message rows and rewrites whatever drifted. It reports whether
// anything was rewritten.
func (r *UnreadReconciler) Reconcile(ctx context.Context, conversationID uuid.UUID) (bool, error) {
	changed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		convRepo := repository.NewConversationRepository(tx)
		msgRepo := repository.NewMessageRepository(tx)

		// counts below must not race a concurrent send's increment
		conv, err := convRepo.GetByIDForUpdate(ctx, conversationID)
		if err != nil {
			return err
		}

		latest, err := msgRepo.Latest(ctx, conversationID)
		switch {
		case errors.Is(err, chat_errors.ErrNotFound):
			if !conv.LastMessage.Empty() {
				if err := convRepo.SetLastMessage(ctx, conversationID, nil); err != nil {
					return err
				}
				changed = true
			}
		case err != nil:
			return err
		case conv.LastMessage.Empty() || *conv.LastMessage.MessageID != latest.ID:
			if err := convRepo.SetLastMessage(ctx, conversationID, &latest); err != nil {
				return err
			}
			changed = true
		}

		for _, role := range []conversation.Role{conversation.RoleClient, conversation.RoleProvider} {
			unread, err := msgRepo.CountUnreadFrom(ctx, conversationID, role.Opposite())
			if err != nil {
				return err
			}
			if int64(conv.Unread.For(role)) == unread {
				continue
			}
			if err := convRepo.SetUnread(ctx, conversationID, role, unread); err != nil {
				return err
			}
			changed = true
		}
		return nil
	})
	if err != nil {
		return false, storeError(err)
	}
	if changed {
		r.logger.Warn("conversation summary drifted, repaired",
			zap.String("conversation_id", conversationID.String()))
	}
	return changed, nil
}
