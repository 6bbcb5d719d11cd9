package testutil

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// Broadcast is one call seen by RecordingBroadcaster.
type Broadcast struct {
	ConversationID uuid.UUID
	ExcludeConnID  string
	Event          string
	Data           json.RawMessage
}

// RecordingBroadcaster captures broadcasts instead of delivering them.
type RecordingBroadcaster struct {
	mu    sync.Mutex
	calls []Broadcast
	// Panic makes every call panic after recording it.
	Panic bool
}

func (b *RecordingBroadcaster) Broadcast(_ context.Context, conversationID uuid.UUID, excludeConnID string, payload []byte) int {
	var frame struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	_ = json.Unmarshal(payload, &frame)

	b.mu.Lock()
	b.calls = append(b.calls, Broadcast{
		ConversationID: conversationID,
		ExcludeConnID:  excludeConnID,
		Event:          frame.Event,
		Data:           frame.Data,
	})
	b.mu.Unlock()

	if b.Panic {
		panic("broadcast exploded")
	}
	return 1
}

func (b *RecordingBroadcaster) Calls() []Broadcast {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Broadcast, len(b.calls))
	copy(out, b.calls)
	return out
}
