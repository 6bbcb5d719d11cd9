package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const ConversationChannelPrefix = "channel:conversation:"

func ConversationChannel(conversationID uuid.UUID) string {
	return ConversationChannelPrefix + conversationID.String()
}

// ConversationIDFromChannel is the inverse of ConversationChannel.
func ConversationIDFromChannel(channel string) (uuid.UUID, bool) {
	if !strings.HasPrefix(channel, ConversationChannelPrefix) {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimPrefix(channel, ConversationChannelPrefix))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// FanoutEnvelope carries one room broadcast between instances.
type FanoutEnvelope struct {
	ConversationID      string          `json:"conversationId"`
	ExcludeConnectionID string          `json:"excludeConnectionId,omitempty"`
	Payload             json.RawMessage `json:"payload"`
}

// FanoutPublisher broadcasts by publishing to the conversation channel so
// every instance delivers to its own connections.
type FanoutPublisher struct {
	publisher *Publisher
	logger    *zap.Logger
}

func NewFanoutPublisher(publisher *Publisher, logger *zap.Logger) *FanoutPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FanoutPublisher{publisher: publisher, logger: logger.With(zap.String("component", "fanout"))}
}

// Broadcast always returns 0: delivery happens on the subscribing instances.
func (p *FanoutPublisher) Broadcast(ctx context.Context, conversationID uuid.UUID, excludeConnID string, payload []byte) int {
	if err := p.Publish(ctx, conversationID, excludeConnID, payload); err != nil {
		p.logger.Warn("fanout publish failed",
			zap.String("conversation_id", conversationID.String()),
			zap.Error(err))
	}
	return 0
}

func (p *FanoutPublisher) Publish(ctx context.Context, conversationID uuid.UUID, excludeConnID string, payload []byte) error {
	body, err := json.Marshal(FanoutEnvelope{
		ConversationID:      conversationID.String(),
		ExcludeConnectionID: excludeConnID,
		Payload:             payload,
	})
	if err != nil {
		return fmt.Errorf("encode fanout envelope: %w", err)
	}
	receivers, err := p.publisher.Publish(ctx, ConversationChannel(conversationID), body)
	if err != nil {
		return err
	}
	if receivers == 0 {
		// no instance is subscribed, so nobody holds a socket for this room
		p.logger.Debug("fanout had no subscribers", zap.String("conversation_id", conversationID.String()))
	}
	return nil
}

// DecodeFanout parses a message received on a conversation channel.
func DecodeFanout(channel string, body []byte) (uuid.UUID, FanoutEnvelope, error) {
	var env FanoutEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return uuid.Nil, env, fmt.Errorf("decode fanout envelope: %w", err)
	}
	id, ok := ConversationIDFromChannel(channel)
	if !ok {
		return uuid.Nil, env, fmt.Errorf("not a conversation channel: %q", channel)
	}
	if env.ConversationID != id.String() {
		return uuid.Nil, env, fmt.Errorf("envelope for %s published on %s", env.ConversationID, channel)
	}
	return id, env, nil
}
