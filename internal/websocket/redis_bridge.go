package websocket

import (
	"context"

	"wedding-chat/internal/redis"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RedisBridge delivers broadcasts published by any instance to the
// connections held by this one.
type RedisBridge struct {
	subscriber *redis.Subscriber
	router     *Router
	logger     *WebSocketLogger
	ready      chan struct{}
}

func NewRedisBridge(subscriber *redis.Subscriber, router *Router, logger *WebSocketLogger) *RedisBridge {
	if logger == nil {
		logger = NewWebSocketLogger(nil)
	}
	return &RedisBridge{
		subscriber: subscriber,
		router:     router,
		logger:     logger,
		ready:      make(chan struct{}),
	}
}

// Ready is closed once the subscription is live.
func (b *RedisBridge) Ready() <-chan struct{} {
	return b.ready
}

// Run blocks until ctx ends or the subscription fails.
func (b *RedisBridge) Run(ctx context.Context) error {
	patterns := []string{redis.ConversationChannelPrefix + "*"}
	return b.subscriber.Subscribe(ctx, patterns, func() { close(b.ready) }, func(channel string, payload []byte) {
		b.deliver(ctx, channel, payload)
	})
}

func (b *RedisBridge) deliver(ctx context.Context, channel string, payload []byte) {
	convID, env, err := redis.DecodeFanout(channel, payload)
	if err != nil {
		b.logger.Warn("fanout_rejected", uuid.Nil, "", zap.String("channel", channel), zap.Error(err))
		return
	}
	b.router.Broadcast(ctx, convID, env.ExcludeConnectionID, env.Payload)
}
