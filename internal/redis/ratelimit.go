package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	chat_errors "wedding-chat/pkg/errors"

	goredis "github.com/redis/go-redis/v9"
)

// Keys:
// - ratelimit:{user_id}:messages - fixed window counter, TTL = window

type RateLimitConfig struct {
	MessageLimit  int
	MessageWindow time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MessageLimit:  60,
		MessageWindow: 60 * time.Second,
	}
}

type RateLimiter struct {
	client *goredis.Client
	config RateLimitConfig
}

type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
	Limit     int
}

func NewRateLimiter(client *goredis.Client, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		client: client,
		config: config,
	}
}

func messageKey(userID string) string {
	return fmt.Sprintf("ratelimit:%s:messages", userID)
}

// AllowMessage checks and consumes one message from the user's window.
func (r *RateLimiter) AllowMessage(ctx context.Context, userID string) (*RateLimitResult, error) {
	return r.checkLimit(ctx, messageKey(userID), r.config.MessageLimit, r.config.MessageWindow)
}

var limitScript = goredis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])

	local current = redis.call('GET', key)
	if current == false then
		current = 0
	else
		current = tonumber(current)
	end

	local ttl = redis.call('TTL', key)
	if ttl < 0 then
		ttl = window
	end

	if current < limit then
		redis.call('INCR', key)
		if ttl == window then
			redis.call('EXPIRE', key, window)
		end
		return {1, limit - current - 1, ttl}
	else
		return {0, 0, ttl}
	end
`)

func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	result, err := limitScript.Run(ctx, r.client, []string{key}, limit, int(window.Seconds())).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: rate limit check failed: %v", chat_errors.ErrStoreUnavailable, err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) < 3 {
		return nil, fmt.Errorf("unexpected rate limit result format")
	}
	allowed, ok1 := values[0].(int64)
	remaining, ok2 := values[1].(int64)
	ttl, ok3 := values[2].(int64)
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("unexpected rate limit result types")
	}

	return &RateLimitResult{
		Allowed:   allowed == 1,
		Remaining: int(remaining),
		ResetIn:   time.Duration(ttl) * time.Second,
		Limit:     limit,
	}, nil
}

// GetMessageStatus reports the user's window without consuming it.
func (r *RateLimiter) GetMessageStatus(ctx context.Context, userID string) (*RateLimitResult, error) {
	key := messageKey(userID)
	pipe := r.client.Pipeline()
	getCmd := pipe.Get(ctx, key)
	ttlCmd := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("%w: rate limit status failed: %v", chat_errors.ErrStoreUnavailable, err)
	}

	current := 0
	if val, err := getCmd.Int(); err == nil {
		current = val
	}
	ttl := r.config.MessageWindow
	if v := ttlCmd.Val(); v > 0 {
		ttl = v
	}
	remaining := r.config.MessageLimit - current
	if remaining < 0 {
		remaining = 0
	}

	return &RateLimitResult{
		Allowed:   current < r.config.MessageLimit,
		Remaining: remaining,
		ResetIn:   ttl,
		Limit:     r.config.MessageLimit,
	}, nil
}
