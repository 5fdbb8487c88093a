package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient() *Client {
	return &Client{lockTokens: make(map[string]string)}
}

func TestExtendLock_RequiresOwnership(t *testing.T) {
	c := testClient()

	held, err := c.ExtendLock(context.Background(), "fetch-lock", time.Minute)
	require.NoError(t, err)
	assert.False(t, held, "a lock this client never acquired cannot be extended")
}

func TestReleaseLock_UnheldIsANoOp(t *testing.T) {
	c := testClient()

	require.NoError(t, c.ReleaseLock(context.Background(), "fetch-lock"))
}

func TestLockKeyNamespacing(t *testing.T) {
	assert.Equal(t, "lock:single-active-consumer:opensea-listings-fetch",
		lockKey("single-active-consumer:opensea-listings-fetch"))
}
