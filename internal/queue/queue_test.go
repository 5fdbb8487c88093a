package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoff_NextDelay(t *testing.T) {
	fixed := Backoff{Kind: BackoffFixed, Delay: 5 * time.Second}
	assert.Equal(t, 5*time.Second, fixed.NextDelay(0))
	assert.Equal(t, 5*time.Second, fixed.NextDelay(7))

	exp := Backoff{Kind: BackoffExponential, Delay: 20 * time.Second}
	assert.Equal(t, 20*time.Second, exp.NextDelay(0))
	assert.Equal(t, 40*time.Second, exp.NextDelay(1))
	assert.Equal(t, 160*time.Second, exp.NextDelay(3))
	assert.LessOrEqual(t, exp.NextDelay(30), 2*time.Hour)
}

func TestMemoryTransport_DelayedPromotion(t *testing.T) {
	transport := NewMemoryTransport()
	ctx := context.Background()

	require.NoError(t, transport.Enqueue(ctx, "q", NewMessage([]byte(`1`)), 30*time.Millisecond, false))

	msg, err := transport.Dequeue(ctx, "q", 5*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, msg, "delayed message must not be visible before its deadline")

	msg, err = transport.Dequeue(ctx, "q", 200*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.JSONEq(t, `1`, string(msg.Payload))
}

func TestSender_PrioritizedJumpsTheLine(t *testing.T) {
	transport := NewMemoryTransport()
	ctx := context.Background()

	def := Definition{Name: "q", Priority: true}
	sender := NewSender(def, transport)

	require.NoError(t, sender.Send(ctx, map[string]string{"slug": "first"}, 0))
	require.NoError(t, sender.Send(ctx, map[string]string{"slug": "second"}, 0))
	require.NoError(t, sender.SendPrioritized(ctx, map[string]string{"slug": "urgent"}))

	msg, err := transport.Dequeue(ctx, "q", 10*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.JSONEq(t, `{"slug":"urgent"}`, string(msg.Payload))
}

func TestMemoryLocker_AcquireExtendRelease(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	held, err := locker.AcquireLock(ctx, "job", time.Minute)
	require.NoError(t, err)
	assert.True(t, held)

	held, err = locker.AcquireLock(ctx, "job", time.Minute)
	require.NoError(t, err)
	assert.False(t, held, "second acquire must fail while held")

	held, err = locker.ExtendLock(ctx, "job", time.Minute)
	require.NoError(t, err)
	assert.True(t, held)

	require.NoError(t, locker.ReleaseLock(ctx, "job"))

	held, err = locker.ExtendLock(ctx, "job", time.Minute)
	require.NoError(t, err)
	assert.False(t, held, "extend after release must fail")

	held, err = locker.AcquireLock(ctx, "job", time.Minute)
	require.NoError(t, err)
	assert.True(t, held)
}
