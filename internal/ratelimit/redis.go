package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis shares counters between every API replica.
type Redis struct {
	client *redis.Client
	limit  int
	period time.Duration
}

var _ Limiter = (*Redis)(nil)

// NewRedis connects to Redis and pings it to ensure it's alive.
func NewRedis(addr string, limit int, period time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Redis{client: client, limit: limit, period: period}, nil
}

func (r *Redis) key(client string, now time.Time) string {
	slot := now.UnixNano() / int64(r.period)
	return "mailtrust:ratelimit:" + client + ":" + strconv.FormatInt(slot, 10)
}

func (r *Redis) Allow(ctx context.Context, client string) (bool, error) {
	if r.limit <= 0 {
		return true, nil
	}

	key := r.key(client, time.Now())

	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, r.period)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", client, err)
	}

	return incr.Val() <= int64(r.limit), nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
