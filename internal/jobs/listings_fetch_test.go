package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d347h-eth/indexer-public/internal/domain/model"
	"github.com/d347h-eth/indexer-public/internal/listings"
	"github.com/d347h-eth/indexer-public/internal/queue"
)

type fakeListingsClient struct {
	pages   []pageResult
	cursors []string
}

type pageResult struct {
	page *listings.Page
	err  error
}

func (c *fakeListingsClient) GetBestListings(_ context.Context, slug, cursor string) (*listings.Page, error) {
	c.cursors = append(c.cursors, cursor)
	if len(c.pages) == 0 {
		return nil, fmt.Errorf("unexpected page request for %s", slug)
	}
	next := c.pages[0]
	c.pages = c.pages[1:]
	return next.page, next.err
}

type fakePending struct {
	items []model.PendingListing
	added []model.PendingListing
	front bool
}

func (p *fakePending) Add(_ context.Context, items []model.PendingListing, prioritized bool) error {
	p.added = append(p.added, items...)
	p.front = prioritized
	if prioritized {
		p.items = append(append([]model.PendingListing{}, items...), p.items...)
	} else {
		p.items = append(p.items, items...)
	}
	return nil
}

func (p *fakePending) Get(_ context.Context, count int) ([]model.PendingListing, error) {
	if len(p.items) == 0 {
		return nil, nil
	}
	if count > len(p.items) {
		count = len(p.items)
	}
	out := p.items[:count]
	p.items = p.items[count:]
	return out, nil
}

func jobsLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func listingJSON(t *testing.T, orderHash, contract string) listings.Listing {
	t.Helper()
	return listings.Listing{
		OrderHash:    orderHash,
		Chain:        "ethereum",
		ProtocolData: json.RawMessage(fmt.Sprintf(`{"contract":%q,"price":"1000"}`, contract)),
	}
}

func lockHeld(t *testing.T, locker queue.Locker) bool {
	t.Helper()
	held, err := locker.ExtendLock(context.Background(), listingsFetchLock, listingsFetchLockTTL)
	require.NoError(t, err)
	return held
}

type fetchFixture struct {
	client    *fakeListingsClient
	pending   *fakePending
	locker    *queue.MemoryLocker
	transport *queue.MemoryTransport
	job       *ListingsFetchJob
}

func newFetchFixture(t *testing.T, pages ...pageResult) *fetchFixture {
	t.Helper()
	transport := queue.NewMemoryTransport()
	locker := queue.NewMemoryLocker()
	client := &fakeListingsClient{pages: pages}
	pending := &fakePending{}

	self := queue.NewSender(ListingsFetchDefinition(), transport)
	orders := queue.NewSender(producerDefinition(QueueOrders, false), transport)
	job := NewListingsFetchJob(client, pending, locker, self, orders, jobsLogger())

	return &fetchFixture{client: client, pending: pending, locker: locker, transport: transport, job: job}
}

func (f *fetchFixture) acquireFetchLock(t *testing.T) {
	t.Helper()
	ok, err := f.locker.AcquireLock(context.Background(), listingsFetchLock, listingsFetchLockTTL)
	require.NoError(t, err)
	require.True(t, ok)
}

func (f *fetchFixture) run(t *testing.T, payload FetchPayload) error {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return f.job.Process(context.Background(), raw)
}

func (f *fetchFixture) drainOrders(t *testing.T) []model.GenericOrderInfo {
	t.Helper()
	var out []model.GenericOrderInfo
	for {
		msg, err := f.transport.Dequeue(context.Background(), QueueOrders, 10*time.Millisecond)
		require.NoError(t, err)
		if msg == nil {
			return out
		}
		var order model.GenericOrderInfo
		require.NoError(t, json.Unmarshal(msg.Payload, &order))
		out = append(out, order)
	}
}

func TestListingsFetch_DrainsPendingAndIngestsOrders(t *testing.T) {
	f := newFetchFixture(t,
		pageResult{page: &listings.Page{
			Listings: []listings.Listing{
				listingJSON(t, "0xaaa", "0xCollection"),
				listingJSON(t, "0xbbb", "0xCollection"),
			},
			Next: "cursor-2",
		}},
		pageResult{page: &listings.Page{
			Listings: []listings.Listing{listingJSON(t, "0xccc", "0xCollection")},
		}},
	)
	f.acquireFetchLock(t)
	f.pending.items = []model.PendingListing{{Slug: "cool-cats", Contract: "0xcollection", Collection: "0xcollectionid"}}

	require.NoError(t, f.run(t, FetchPayload{}))

	orders := f.drainOrders(t)
	require.Len(t, orders, 3)
	assert.Equal(t, model.OrderKindBlend, orders[0].Kind)
	assert.True(t, orders[0].Info.IsOpenSea)
	assert.Equal(t, "cool-cats", orders[0].Info.OpenSeaOrderParams.CollectionSlug)
	assert.Equal(t, "0xaaa", orders[0].Info.OpenSeaOrderParams.Hash)
	assert.Equal(t, "rest", orders[0].IngestMethod)

	assert.Equal(t, []string{"", "cursor-2"}, f.client.cursors)
	assert.False(t, lockHeld(t, f.locker), "lock must be released once the pending list is drained")
}

func TestListingsFetch_EmptyPendingReleasesLock(t *testing.T) {
	f := newFetchFixture(t)
	f.acquireFetchLock(t)

	require.NoError(t, f.run(t, FetchPayload{}))
	assert.False(t, lockHeld(t, f.locker))
}

func TestListingsFetch_ContractMismatchSkipped(t *testing.T) {
	f := newFetchFixture(t,
		pageResult{page: &listings.Page{
			Listings: []listings.Listing{
				listingJSON(t, "0xgood", "0xCollection"),
				listingJSON(t, "0xbad", "0xSomethingElse"),
			},
		}},
	)
	f.acquireFetchLock(t)
	f.pending.items = []model.PendingListing{{Slug: "cool-cats", Contract: "0xcollection"}}

	require.NoError(t, f.run(t, FetchPayload{}))

	orders := f.drainOrders(t)
	require.Len(t, orders, 1)
	assert.Equal(t, "0xgood", orders[0].Info.OpenSeaOrderParams.Hash)
}

func TestListingsFetch_ThrottleKeepsLockAndSchedulesContinuation(t *testing.T) {
	f := newFetchFixture(t,
		pageResult{page: &listings.Page{
			Listings: []listings.Listing{listingJSON(t, "0xaaa", "0xCollection")},
			Next:     "cursor-2",
		}},
		pageResult{err: &listings.StatusError{StatusCode: 429, Body: "slow down"}},
	)
	f.acquireFetchLock(t)
	f.pending.items = []model.PendingListing{{Slug: "cool-cats", Contract: "0xcollection"}}

	require.NoError(t, f.run(t, FetchPayload{}))

	assert.True(t, lockHeld(t, f.locker), "lock stays alive across the cooldown")

	depth, err := f.transport.Depth(context.Background(), QueueListingsFetch)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth, "exactly one delayed continuation")
}

func TestListingsFetch_UnauthorizedStopsWithoutRetry(t *testing.T) {
	f := newFetchFixture(t,
		pageResult{err: &listings.StatusError{StatusCode: 401, Body: "bad key"}},
	)
	f.acquireFetchLock(t)
	f.pending.items = []model.PendingListing{{Slug: "cool-cats", Contract: "0xcollection"}}

	require.NoError(t, f.run(t, FetchPayload{}), "credential failures are not retried")
	assert.False(t, lockHeld(t, f.locker))

	depth, err := f.transport.Depth(context.Background(), QueueListingsFetch)
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestListingsFetch_NotFoundReleasesLock(t *testing.T) {
	f := newFetchFixture(t,
		pageResult{err: &listings.StatusError{StatusCode: 404, Body: "no such collection"}},
	)
	f.acquireFetchLock(t)
	f.pending.items = []model.PendingListing{{Slug: "ghost", Contract: "0xcollection"}}

	require.NoError(t, f.run(t, FetchPayload{}))
	assert.False(t, lockHeld(t, f.locker))
}

func TestListingsFetch_ServerErrorReleasesLockAndPropagates(t *testing.T) {
	f := newFetchFixture(t,
		pageResult{err: &listings.StatusError{StatusCode: 502, Body: "bad gateway"}},
	)
	f.acquireFetchLock(t)
	f.pending.items = []model.PendingListing{{Slug: "cool-cats", Contract: "0xcollection"}}

	err := f.run(t, FetchPayload{})
	require.Error(t, err)
	assert.False(t, lockHeld(t, f.locker), "lock is never left stale on the error path")
}

func TestListingsFetch_ResumesFromContinuationCursor(t *testing.T) {
	f := newFetchFixture(t,
		pageResult{page: &listings.Page{
			Listings: []listings.Listing{listingJSON(t, "0xddd", "0xCollection")},
		}},
	)
	f.acquireFetchLock(t)

	require.NoError(t, f.run(t, FetchPayload{Slug: "cool-cats", Contract: "0xcollection", Cursor: "cursor-7"}))

	assert.Equal(t, []string{"cursor-7"}, f.client.cursors)
	require.Len(t, f.drainOrders(t), 1)
	assert.False(t, lockHeld(t, f.locker))
}
