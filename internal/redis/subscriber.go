package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Subscriber struct {
	client *redis.Client
}

func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe listens on the given patterns until ctx ends. ready, when not
// nil, runs once the server has confirmed the subscription.
func (s *Subscriber) Subscribe(ctx context.Context, patterns []string, ready func(), handler func(channel string, payload []byte)) error {
	sub := s.client.PSubscribe(ctx, patterns...)
	defer sub.Close()

	// blocking reads only honour deadlines, so closing is what unblocks them
	stop := context.AfterFunc(ctx, func() { _ = sub.Close() })
	defer stop()

	for range patterns {
		msg, err := sub.Receive(ctx)
		if err != nil {
			return err
		}
		if _, ok := msg.(*redis.Subscription); !ok {
			return fmt.Errorf("unexpected reply %T while subscribing", msg)
		}
	}
	if ready != nil {
		ready()
	}

	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		handler(msg.Channel, []byte(msg.Payload))
	}
}
