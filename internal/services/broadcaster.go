package services

import (
	"context"

	"github.com/google/uuid"
)

// Broadcaster delivers an encoded frame to every live member of a
// conversation room except excludeConnID. It returns the number of local
// deliveries, which is 0 when delivery happens on another node.
type Broadcaster interface {
	Broadcast(ctx context.Context, conversationID uuid.UUID, excludeConnID string, payload []byte) int
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(context.Context, uuid.UUID, string, []byte) int { return 0 }

func orNop(b Broadcaster) Broadcaster {
	if b == nil {
		return nopBroadcaster{}
	}
	return b
}
