package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// redisQueue implements Queue on top of a Redis list.
// Send: LPUSH. Receive: RPOP up to max, so batch order matches send order.
type redisQueue struct {
	rdb *redis.Client
	key string
}

// NewRedisQueue returns a Queue backed by the named Redis list.
func NewRedisQueue(rdb *redis.Client, key string) Queue {
	return &redisQueue{rdb: rdb, key: key}
}

func (q *redisQueue) Send(ctx context.Context, body string) error {
	if err := q.rdb.LPush(ctx, q.key, body).Err(); err != nil {
		return fmt.Errorf("send to %s: %w", q.key, err)
	}
	return nil
}

func (q *redisQueue) Receive(ctx context.Context, max int) ([]Message, error) {
	if max < 1 {
		max = 1
	}

	var msgs []Message
	for i := 0; i < max; i++ {
		body, err := q.rdb.RPop(ctx, q.key).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("receive from %s: %w", q.key, err)
		}
		msgs = append(msgs, Message{Body: body})
	}

	return msgs, nil
}
