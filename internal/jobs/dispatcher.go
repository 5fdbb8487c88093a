package jobs

import (
	"context"
	"fmt"

	"github.com/d347h-eth/indexer-public/internal/domain/model"
	"github.com/d347h-eth/indexer-public/internal/metrics"
	"github.com/d347h-eth/indexer-public/internal/pipeline"
	"github.com/d347h-eth/indexer-public/internal/queue"
)

// ActivityKind names the activity-indexing payload variants.
type ActivityKind string

const (
	ActivityKindSale     ActivityKind = "sale"
	ActivityKindTransfer ActivityKind = "transfer"
	ActivityKindSwap     ActivityKind = "swap"
)

// ActivityPayload is the envelope accepted by the activity indexing
// queue. Exactly one of the data fields is set, matching Kind.
type ActivityPayload struct {
	Kind     ActivityKind            `json:"kind"`
	Fill     *model.FillEvent        `json:"fill,omitempty"`
	Transfer *model.NftTransferEvent `json:"transfer,omitempty"`
	Swap     *model.Swap             `json:"swap,omitempty"`
}

// QueueDispatcher implements pipeline.Dispatcher over one queue sender
// per downstream queue family.
type QueueDispatcher struct {
	orderUpdatesByID    *queue.Sender
	orderUpdatesByMaker *queue.Sender
	permitUpdates       *queue.Sender
	orders              *queue.Sender
	transferUpdates     *queue.Sender
	mintUpdates         *queue.Sender
	fillUpdates         *queue.Sender
	mintsProcess        *queue.Sender
	fillPostProcess     *queue.Sender
	recalcOwnerCount    *queue.Sender
	activities          *queue.Sender
}

var _ pipeline.Dispatcher = (*QueueDispatcher)(nil)

func NewQueueDispatcher(transport queue.Transport) *QueueDispatcher {
	sender := func(name string) *queue.Sender {
		return queue.NewSender(producerDefinition(name, false), transport)
	}
	return &QueueDispatcher{
		orderUpdatesByID:    sender(QueueOrderUpdatesByID),
		orderUpdatesByMaker: sender(QueueOrderUpdatesByMaker),
		permitUpdates:       sender(QueuePermitUpdates),
		orders:              sender(QueueOrders),
		transferUpdates:     sender(QueueTransferUpdates),
		mintUpdates:         sender(QueueMintUpdates),
		fillUpdates:         sender(QueueFillUpdates),
		mintsProcess:        sender(QueueMintsProcess),
		fillPostProcess:     sender(QueueFillPostProcess),
		recalcOwnerCount:    sender(QueueRecalcOwnerCount),
		activities:          sender(QueueActivities),
	}
}

func dispatch[T any](ctx context.Context, sender *queue.Sender, items []T) error {
	for _, item := range items {
		if err := sender.Send(ctx, item, 0); err != nil {
			return fmt.Errorf("enqueue %s: %w", sender.Name(), err)
		}
	}
	if len(items) > 0 {
		metrics.ProcessJobsDispatched.WithLabelValues(sender.Name()).Add(float64(len(items)))
	}
	return nil
}

func (d *QueueDispatcher) DispatchOrderUpdatesByID(ctx context.Context, infos []model.OrderInfo) error {
	return dispatch(ctx, d.orderUpdatesByID, infos)
}

func (d *QueueDispatcher) DispatchOrderUpdatesByMaker(ctx context.Context, infos []model.MakerInfo) error {
	return dispatch(ctx, d.orderUpdatesByMaker, infos)
}

func (d *QueueDispatcher) DispatchPermitUpdates(ctx context.Context, infos []model.PermitInfo) error {
	return dispatch(ctx, d.permitUpdates, infos)
}

func (d *QueueDispatcher) DispatchOrders(ctx context.Context, orders []model.GenericOrderInfo) error {
	return dispatch(ctx, d.orders, orders)
}

func (d *QueueDispatcher) DispatchTransferUpdates(ctx context.Context, transfers []model.NftTransferEvent) error {
	return dispatch(ctx, d.transferUpdates, transfers)
}

func (d *QueueDispatcher) DispatchMintInfos(ctx context.Context, infos []model.MintInfo) error {
	return dispatch(ctx, d.mintUpdates, infos)
}

func (d *QueueDispatcher) DispatchFillInfos(ctx context.Context, infos []model.FillInfo) error {
	return dispatch(ctx, d.fillUpdates, infos)
}

func (d *QueueDispatcher) DispatchMintsProcess(ctx context.Context, mints []model.MintDetails) error {
	return dispatch(ctx, d.mintsProcess, mints)
}

// DispatchFillPostProcess sends the whole fill set as one batch message;
// the consumer correlates fills within a unit.
func (d *QueueDispatcher) DispatchFillPostProcess(ctx context.Context, fills []model.FillEvent) error {
	if len(fills) == 0 {
		return nil
	}
	if err := d.fillPostProcess.Send(ctx, fills, 0); err != nil {
		return fmt.Errorf("enqueue %s: %w", d.fillPostProcess.Name(), err)
	}
	metrics.ProcessJobsDispatched.WithLabelValues(d.fillPostProcess.Name()).Inc()
	return nil
}

func (d *QueueDispatcher) DispatchRecalcOwnerCount(ctx context.Context, tokens []pipeline.TokenRef) error {
	return dispatch(ctx, d.recalcOwnerCount, tokens)
}

func (d *QueueDispatcher) DispatchFillActivities(ctx context.Context, fills []model.FillEvent) error {
	payloads := make([]ActivityPayload, 0, len(fills))
	for i := range fills {
		payloads = append(payloads, ActivityPayload{Kind: ActivityKindSale, Fill: &fills[i]})
	}
	return dispatch(ctx, d.activities, payloads)
}

func (d *QueueDispatcher) DispatchTransferActivities(ctx context.Context, transfers []model.NftTransferEvent) error {
	payloads := make([]ActivityPayload, 0, len(transfers))
	for i := range transfers {
		payloads = append(payloads, ActivityPayload{Kind: ActivityKindTransfer, Transfer: &transfers[i]})
	}
	return dispatch(ctx, d.activities, payloads)
}

func (d *QueueDispatcher) DispatchSwapActivities(ctx context.Context, swaps []model.Swap) error {
	payloads := make([]ActivityPayload, 0, len(swaps))
	for i := range swaps {
		payloads = append(payloads, ActivityPayload{Kind: ActivityKindSwap, Swap: &swaps[i]})
	}
	return dispatch(ctx, d.activities, payloads)
}
