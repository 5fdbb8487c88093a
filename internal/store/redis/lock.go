package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locks are advisory and always time-bounded: cooperating processes must
// check them, and long holders must extend before expiry. Each holder
// writes its own token so extend and release only act on locks the caller
// still owns; a lock that expired and was re-acquired elsewhere cannot be
// touched by the previous holder.

var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AcquireLock takes the named lock for ttl. Returns false when another
// holder already owns it.
func (c *Client) AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	token := uuid.NewString()
	ok, err := c.rdb.SetNX(ctx, lockKey(name), token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if ok {
		c.mu.Lock()
		c.lockTokens[name] = token
		c.mu.Unlock()
	}
	return ok, nil
}

// ExtendLock refreshes the ttl of a lock this client still holds. Returns
// false when the lock expired or was taken over by another holder.
func (c *Client) ExtendLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	token, ok := c.heldToken(name)
	if !ok {
		return false, nil
	}
	res, err := extendScript.Run(ctx, c.rdb, []string{lockKey(name)}, token, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("extend lock %s: %w", name, err)
	}
	return res == 1, nil
}

// ReleaseLock drops the named lock if this client still holds it.
// Releasing a lock that expired or changed hands is a no-op.
func (c *Client) ReleaseLock(ctx context.Context, name string) error {
	token, ok := c.heldToken(name)
	if !ok {
		return nil
	}
	c.mu.Lock()
	delete(c.lockTokens, name)
	c.mu.Unlock()

	if err := releaseScript.Run(ctx, c.rdb, []string{lockKey(name)}, token).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

// LockTTL reports the remaining ttl of a lock; used by health inspection.
func (c *Client) LockTTL(ctx context.Context, name string) (time.Duration, error) {
	ttl, err := c.rdb.TTL(ctx, lockKey(name)).Result()
	if err != nil {
		return 0, fmt.Errorf("lock ttl %s: %w", name, err)
	}
	return ttl, nil
}

func (c *Client) heldToken(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	token, ok := c.lockTokens[name]
	return token, ok
}

func lockKey(name string) string {
	return "lock:" + name
}
