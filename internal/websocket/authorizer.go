package websocket

import (
	"context"

	"github.com/google/uuid"
)

// RoomAuthorizer decides whether a user may join a conversation room.
type RoomAuthorizer interface {
	IsParty(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
}
