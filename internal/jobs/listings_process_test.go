package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d347h-eth/indexer-public/internal/queue"
)

func TestListingsProcess_RegistersPendingAndSchedulesFetch(t *testing.T) {
	transport := queue.NewMemoryTransport()
	locker := queue.NewMemoryLocker()
	pending := &fakePending{}
	fetch := queue.NewSender(ListingsFetchDefinition(), transport)
	job := NewListingsProcessJob(pending, locker, fetch, jobsLogger())

	payload, err := json.Marshal(ProcessPayload{
		Contract:    "0xcollection",
		Collection:  "0xcollectionid",
		Slug:        "cool-cats",
		Prioritized: true,
	})
	require.NoError(t, err)

	require.NoError(t, job.Process(context.Background(), payload))

	require.Len(t, pending.added, 1)
	assert.Equal(t, "cool-cats", pending.added[0].Slug)
	assert.True(t, pending.front, "prioritized requests go to the head of the list")

	assert.True(t, lockHeld(t, locker), "fetch lock is held for the scheduled run")

	msg, err := transport.Dequeue(context.Background(), QueueListingsFetch, 10*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, msg, "a fetch kick-off message was enqueued")
}

func TestListingsProcess_SkipsFetchWhenRunInProgress(t *testing.T) {
	transport := queue.NewMemoryTransport()
	locker := queue.NewMemoryLocker()
	pending := &fakePending{}
	fetch := queue.NewSender(ListingsFetchDefinition(), transport)
	job := NewListingsProcessJob(pending, locker, fetch, jobsLogger())

	ok, err := locker.AcquireLock(context.Background(), listingsFetchLock, listingsFetchLockTTL)
	require.NoError(t, err)
	require.True(t, ok)

	payload, err := json.Marshal(ProcessPayload{Contract: "0xcollection", Slug: "cool-cats"})
	require.NoError(t, err)
	require.NoError(t, job.Process(context.Background(), payload))

	require.Len(t, pending.added, 1, "the request is still registered")

	msg, err := transport.Dequeue(context.Background(), QueueListingsFetch, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, msg, "no second fetch run while one is active")
}

func TestListingsProcess_RejectsPayloadWithoutSlug(t *testing.T) {
	job := NewListingsProcessJob(&fakePending{}, queue.NewMemoryLocker(),
		queue.NewSender(ListingsFetchDefinition(), queue.NewMemoryTransport()), jobsLogger())

	err := job.Process(context.Background(), json.RawMessage(`{"contract":"0xc"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing slug")
}
