package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// Publish sends payload on channel and returns how many subscribers, across
// all instances, received it.
func (p *Publisher) Publish(ctx context.Context, channel string, payload []byte) (int64, error) {
	receivers, err := p.client.Publish(ctx, channel, payload).Result()
	if err != nil {
		return 0, fmt.Errorf("publish %s: %w", channel, err)
	}
	return receivers, nil
}
