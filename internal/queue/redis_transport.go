package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTransport stores ready messages in a list and delayed messages in
// a sorted set scored by their ready-at time. Promotion is atomic via a
// lua script so concurrent workers never double-deliver a delayed
// message.
type RedisTransport struct {
	rdb *redis.Client
}

func NewRedisTransport(rdb *redis.Client) *RedisTransport {
	return &RedisTransport{rdb: rdb}
}

func readyKey(queue string) string   { return "queue:" + queue + ":ready" }
func delayedKey(queue string) string { return "queue:" + queue + ":delayed" }
func deadKey(queue string) string    { return "queue:" + queue + ":dead" }

// promoteScript moves every due member of the delayed zset to the ready
// list in one atomic step.
var promoteScript = redis.NewScript(`
	local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 100)
	for _, msg in ipairs(due) do
		redis.call('RPUSH', KEYS[2], msg)
		redis.call('ZREM', KEYS[1], msg)
	end
	return #due
`)

func (t *RedisTransport) Enqueue(ctx context.Context, queue string, msg Message, delay time.Duration, front bool) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if delay > 0 {
		readyAt := float64(time.Now().Add(delay).UnixMilli())
		if err := t.rdb.ZAdd(ctx, delayedKey(queue), redis.Z{Score: readyAt, Member: raw}).Err(); err != nil {
			return fmt.Errorf("enqueue delayed %s: %w", queue, err)
		}
		return nil
	}

	if front {
		err = t.rdb.LPush(ctx, readyKey(queue), raw).Err()
	} else {
		err = t.rdb.RPush(ctx, readyKey(queue), raw).Err()
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", queue, err)
	}
	return nil
}

func (t *RedisTransport) Dequeue(ctx context.Context, queue string, block time.Duration) (*Message, error) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if err := promoteScript.Run(ctx, t.rdb, []string{delayedKey(queue), readyKey(queue)}, now).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("promote delayed %s: %w", queue, err)
	}

	res, err := t.rdb.BLPop(ctx, block, readyKey(queue)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue %s: %w", queue, err)
	}
	// BLPop returns [key, value]
	if len(res) != 2 {
		return nil, nil
	}

	var msg Message
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		return nil, fmt.Errorf("unmarshal message from %s: %w", queue, err)
	}
	return &msg, nil
}

func (t *RedisTransport) DeadLetter(ctx context.Context, queue string, msg Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal dead message: %w", err)
	}
	if err := t.rdb.RPush(ctx, deadKey(queue), raw).Err(); err != nil {
		return fmt.Errorf("dead-letter %s: %w", queue, err)
	}
	return nil
}

func (t *RedisTransport) Depth(ctx context.Context, queue string) (int64, error) {
	ready, err := t.rdb.LLen(ctx, readyKey(queue)).Result()
	if err != nil {
		return 0, fmt.Errorf("queue depth %s: %w", queue, err)
	}
	delayed, err := t.rdb.ZCard(ctx, delayedKey(queue)).Result()
	if err != nil {
		return 0, fmt.Errorf("queue depth %s: %w", queue, err)
	}
	return ready + delayed, nil
}
