// Package pipeline persists one accumulated on-chain batch and fans work
// out to downstream job queues. Ordering inside a unit is strict: fills
// commit before anything that reads order fillability, and nothing is
// dispatched for events that did not persist.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/d347h-eth/indexer-public/internal/domain/model"
	"github.com/d347h-eth/indexer-public/internal/events"
	"github.com/d347h-eth/indexer-public/internal/metrics"
	"github.com/d347h-eth/indexer-public/internal/store"
	"github.com/d347h-eth/indexer-public/internal/tracing"
	"github.com/d347h-eth/indexer-public/internal/txsource"
)

const zeroAddress = "0x0000000000000000000000000000000000000000"

// TokenRef identifies one (contract, tokenId) pair touched by a transfer.
type TokenRef struct {
	Contract string `json:"contract"`
	TokenID  string `json:"tokenId"`
}

// Dispatcher fans persisted events out to downstream job queues, one
// method per queue family. Implementations must be safe for concurrent
// use; the pipeline invokes them sequentially.
type Dispatcher interface {
	DispatchOrderUpdatesByID(ctx context.Context, infos []model.OrderInfo) error
	DispatchOrderUpdatesByMaker(ctx context.Context, infos []model.MakerInfo) error
	DispatchPermitUpdates(ctx context.Context, infos []model.PermitInfo) error
	DispatchOrders(ctx context.Context, orders []model.GenericOrderInfo) error
	DispatchTransferUpdates(ctx context.Context, transfers []model.NftTransferEvent) error
	DispatchMintInfos(ctx context.Context, infos []model.MintInfo) error
	DispatchFillInfos(ctx context.Context, infos []model.FillInfo) error
	DispatchMintsProcess(ctx context.Context, mints []model.MintDetails) error
	DispatchFillPostProcess(ctx context.Context, fills []model.FillEvent) error
	DispatchRecalcOwnerCount(ctx context.Context, tokens []TokenRef) error
	DispatchFillActivities(ctx context.Context, fills []model.FillEvent) error
	DispatchTransferActivities(ctx context.Context, transfers []model.NftTransferEvent) error
	DispatchSwapActivities(ctx context.Context, swaps []model.Swap) error
}

// Repos bundles every repository the pipeline writes to.
type Repos struct {
	Fills        store.FillEventRepository
	Cancels      store.CancelEventRepository
	BulkCancels  store.BulkCancelEventRepository
	NonceCancels store.NonceCancelEventRepository
	Approvals    store.ApprovalEventRepository
	Transfers    store.TransferEventRepository
	Transactions store.TransactionRepository
}

// Result reports what one Process call did. Observability only: callers
// must not branch on it.
type Result struct {
	PhaseDurations map[string]time.Duration
	Persisted      map[string]int
}

type Option func(*Processor)

// WithFocusContract narrows the batch to one collection before
// persistence and enables relevant-transaction capture.
func WithFocusContract(contract string, persistRelevantTx bool) Option {
	return func(p *Processor) {
		p.focusContract = contract
		p.persistRelevantTx = persistRelevantTx
	}
}

// WithSwapActivities enables swap activity dispatch in phase 10.
func WithSwapActivities() Option {
	return func(p *Processor) { p.swapActivities = true }
}

// Notifier publishes a summary of each persisted batch to an outbound
// stream. A false return without error means the publisher is currently
// disconnected and the summary was dropped.
type Notifier interface {
	Publish(ctx context.Context, message interface{}, partitionKey string) (bool, error)
}

// WithNotifier publishes a BatchSummary after each successful Process
// call. Publish failures are logged, never propagated.
func WithNotifier(n Notifier) Option {
	return func(p *Processor) { p.notifier = n }
}

// BatchSummary is the stream message emitted after a batch is persisted.
type BatchSummary struct {
	Mode      string         `json:"mode"`
	Persisted map[string]int `json:"persisted"`
	TookMs    int64          `json:"tookMs"`
}

type Processor struct {
	repos      Repos
	dispatcher Dispatcher
	source     txsource.Source
	logger     *slog.Logger
	tracer     trace.Tracer

	focusContract     string
	persistRelevantTx bool
	swapActivities    bool
	notifier          Notifier
}

func NewProcessor(repos Repos, dispatcher Dispatcher, source txsource.Source, logger *slog.Logger, opts ...Option) *Processor {
	p := &Processor{
		repos:      repos,
		dispatcher: dispatcher,
		source:     source,
		logger:     logger.With("component", "pipeline"),
		tracer:     tracing.Tracer("pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process persists one batch and dispatches downstream jobs. During
// backfill the real-time side effects (attribution, order revalidation,
// mint processing) are skipped; everything idempotent still runs. Any
// persistence or dispatch error aborts the unit and propagates so the
// caller's retry policy owns redelivery.
func (p *Processor) Process(ctx context.Context, data *events.OnChainData, backfill bool) (Result, error) {
	mode := "realtime"
	if backfill {
		mode = "backfill"
	}
	metrics.ProcessBatchesTotal.WithLabelValues(mode).Inc()

	if p.focusContract != "" {
		data = events.FilterByCollection(data, p.focusContract)
	}

	result := Result{
		PhaseDurations: make(map[string]time.Duration),
		Persisted:      make(map[string]int),
	}

	if !backfill {
		if err := p.phase(ctx, &result, "attribution", func(ctx context.Context) error {
			p.assignMintComments(data)
			p.assignAttribution(ctx, data)
			return nil
		}); err != nil {
			return result, err
		}
	}

	// Snapshot fills only after attribution so every downstream dispatch
	// carries the resolved taker and source metadata.
	allFills := data.AllFills()
	fillKeys := make(map[model.LogKey]struct{}, len(allFills))
	for _, f := range allFills {
		fillKeys[f.BaseEventParams.Key()] = struct{}{}
	}

	// Transfers that are only the delivery side of a sale are excluded
	// from transfer-update dispatch; mints are handled by the mint jobs.
	var nonFillTransfers []model.NftTransferEvent
	for _, t := range data.NftTransferEvents {
		if _, ok := fillKeys[t.BaseEventParams.Key()]; ok {
			continue
		}
		if strings.EqualFold(t.From, zeroAddress) {
			continue
		}
		nonFillTransfers = append(nonFillTransfers, t)
	}

	if err := p.phase(ctx, &result, "persist_fills", func(ctx context.Context) error {
		return p.persistFills(ctx, data, &result)
	}); err != nil {
		return result, err
	}

	if err := p.phase(ctx, &result, "persist_events", func(ctx context.Context) error {
		return p.persistEvents(ctx, data, backfill, &result)
	}); err != nil {
		return result, err
	}

	if !backfill {
		if err := p.phase(ctx, &result, "dispatch_order_updates", func(ctx context.Context) error {
			if err := p.dispatcher.DispatchOrderUpdatesByID(ctx, data.OrderInfos); err != nil {
				return fmt.Errorf("dispatch order updates by id: %w", err)
			}
			if err := p.dispatcher.DispatchOrderUpdatesByMaker(ctx, data.MakerInfos); err != nil {
				return fmt.Errorf("dispatch order updates by maker: %w", err)
			}
			if err := p.dispatcher.DispatchPermitUpdates(ctx, data.PermitInfos); err != nil {
				return fmt.Errorf("dispatch permit updates: %w", err)
			}
			if err := p.dispatcher.DispatchOrders(ctx, data.Orders); err != nil {
				return fmt.Errorf("dispatch orders: %w", err)
			}
			return nil
		}); err != nil {
			return result, err
		}
	}

	if err := p.phase(ctx, &result, "dispatch_updates", func(ctx context.Context) error {
		if err := p.dispatcher.DispatchTransferUpdates(ctx, nonFillTransfers); err != nil {
			return fmt.Errorf("dispatch transfer updates: %w", err)
		}
		if err := p.dispatcher.DispatchMintInfos(ctx, data.MintInfos); err != nil {
			return fmt.Errorf("dispatch mint infos: %w", err)
		}
		if err := p.dispatcher.DispatchFillInfos(ctx, data.FillInfos); err != nil {
			return fmt.Errorf("dispatch fill infos: %w", err)
		}
		return nil
	}); err != nil {
		return result, err
	}

	if !backfill {
		if err := p.phase(ctx, &result, "dispatch_mints_process", func(ctx context.Context) error {
			if err := p.dispatcher.DispatchMintsProcess(ctx, data.Mints); err != nil {
				return fmt.Errorf("dispatch mints process: %w", err)
			}
			return nil
		}); err != nil {
			return result, err
		}
	}

	if len(allFills) > 0 {
		if err := p.phase(ctx, &result, "dispatch_fill_post_process", func(ctx context.Context) error {
			if err := p.dispatcher.DispatchFillPostProcess(ctx, allFills); err != nil {
				return fmt.Errorf("dispatch fill post process: %w", err)
			}
			return nil
		}); err != nil {
			return result, err
		}
	}

	if err := p.phase(ctx, &result, "dispatch_owner_counts", func(ctx context.Context) error {
		tokens := transferredTokens(data.NftTransferEvents)
		if err := p.dispatcher.DispatchRecalcOwnerCount(ctx, tokens); err != nil {
			return fmt.Errorf("dispatch recalc owner count: %w", err)
		}
		return nil
	}); err != nil {
		return result, err
	}

	if err := p.phase(ctx, &result, "dispatch_activities", func(ctx context.Context) error {
		return p.dispatchActivities(ctx, data, allFills, fillKeys)
	}); err != nil {
		return result, err
	}

	if p.focusContract != "" && p.persistRelevantTx {
		if err := p.phase(ctx, &result, "persist_transactions", func(ctx context.Context) error {
			return p.persistRelevantTransactions(ctx, data, &result)
		}); err != nil {
			return result, err
		}
	}

	p.notifyBatch(ctx, mode, result)
	return result, nil
}

func (p *Processor) notifyBatch(ctx context.Context, mode string, result Result) {
	if p.notifier == nil {
		return
	}
	var took time.Duration
	for _, d := range result.PhaseDurations {
		took += d
	}
	summary := BatchSummary{Mode: mode, Persisted: result.Persisted, TookMs: took.Milliseconds()}
	key := p.focusContract
	if key == "" {
		key = "all"
	}
	if _, err := p.notifier.Publish(ctx, summary, key); err != nil {
		p.logger.Warn("batch summary publish failed", "error", err)
	}
}

func (p *Processor) phase(ctx context.Context, result *Result, name string, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	result.PhaseDurations[name] = elapsed
	metrics.ProcessPhaseDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	return err
}

// assignMintComments copies on-chain mint comments onto fill events from
// the same transaction and contract.
func (p *Processor) assignMintComments(data *events.OnChainData) {
	if len(data.MintComments) == 0 {
		return
	}
	type commentKey struct {
		txHash   string
		contract string
	}
	comments := make(map[commentKey]string, len(data.MintComments))
	for _, c := range data.MintComments {
		comments[commentKey{c.BaseEventParams.TxHash, strings.ToLower(c.Token)}] = c.Comment
	}

	assign := func(fills []model.FillEvent) {
		for i := range fills {
			if fills[i].MintComment != nil {
				continue
			}
			key := commentKey{fills[i].BaseEventParams.TxHash, strings.ToLower(fills[i].Contract)}
			if comment, ok := comments[key]; ok {
				fills[i].MintComment = &comment
			}
		}
	}
	assign(data.FillEvents)
	assign(data.FillEventsPartial)
	assign(data.FillEventsOnChain)
}

// assignAttribution resolves taker and source metadata for fills the
// protocol handler could not attribute. Best effort: a lookup failure
// leaves the fill as-is rather than failing the batch.
func (p *Processor) assignAttribution(ctx context.Context, data *events.OnChainData) {
	assign := func(fills []model.FillEvent) {
		for i := range fills {
			f := &fills[i]
			if f.OrderSourceID != nil || f.FillSourceID != nil || f.AggregatorSourceID != nil {
				continue
			}
			attribution, err := p.source.ExtractAttribution(ctx, f.BaseEventParams.TxHash, f.OrderKind, f.OrderID)
			if err != nil {
				p.logger.Warn("fill attribution lookup failed",
					"tx_hash", f.BaseEventParams.TxHash, "order_id", f.OrderID, "error", err)
				continue
			}
			if attribution.Taker != nil {
				f.Taker = strings.ToLower(*attribution.Taker)
			}
			f.OrderSourceID = attribution.OrderSourceID
			f.AggregatorSourceID = attribution.AggregatorSourceID
			f.FillSourceID = attribution.FillSourceID
		}
	}
	assign(data.FillEvents)
	assign(data.FillEventsPartial)
	assign(data.FillEventsOnChain)
}

// persistFills commits the three fill variants concurrently. The whole
// phase completes before any cancel or approval write because those
// repositories read order fillability that fill persistence transitions.
func (p *Processor) persistFills(ctx context.Context, data *events.OnChainData, result *Result) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := p.repos.Fills.AddEvents(gCtx, data.FillEvents); err != nil {
			return fmt.Errorf("persist fills: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := p.repos.Fills.AddEventsPartial(gCtx, data.FillEventsPartial); err != nil {
			return fmt.Errorf("persist partial fills: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := p.repos.Fills.AddEventsOnChain(gCtx, data.FillEventsOnChain); err != nil {
			return fmt.Errorf("persist on-chain fills: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	count := len(data.FillEvents) + len(data.FillEventsPartial) + len(data.FillEventsOnChain)
	result.Persisted["fill"] = count
	metrics.ProcessEventsPersisted.WithLabelValues("fill").Add(float64(count))
	return nil
}

func (p *Processor) persistEvents(ctx context.Context, data *events.OnChainData, backfill bool, result *Result) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := p.repos.Cancels.AddEvents(gCtx, data.CancelEvents); err != nil {
			return fmt.Errorf("persist cancels: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := p.repos.Cancels.AddEventsOnChain(gCtx, data.CancelEventsOnChain); err != nil {
			return fmt.Errorf("persist on-chain cancels: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := p.repos.BulkCancels.AddEvents(gCtx, data.BulkCancelEvents); err != nil {
			return fmt.Errorf("persist bulk cancels: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := p.repos.NonceCancels.AddEvents(gCtx, data.NonceCancelEvents); err != nil {
			return fmt.Errorf("persist nonce cancels: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := p.repos.Approvals.AddEvents(gCtx, data.NftApprovalEvents); err != nil {
			return fmt.Errorf("persist approvals: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := p.repos.Transfers.AddFtEvents(gCtx, data.FtTransferEvents, backfill); err != nil {
			return fmt.Errorf("persist ft transfers: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := p.repos.Transfers.AddNftEvents(gCtx, data.NftTransferEvents, backfill); err != nil {
			return fmt.Errorf("persist nft transfers: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	persisted := map[string]int{
		"cancel":       len(data.CancelEvents) + len(data.CancelEventsOnChain),
		"bulk_cancel":  len(data.BulkCancelEvents),
		"nonce_cancel": len(data.NonceCancelEvents),
		"approval":     len(data.NftApprovalEvents),
		"ft_transfer":  len(data.FtTransferEvents),
		"nft_transfer": len(data.NftTransferEvents),
	}
	for kind, count := range persisted {
		result.Persisted[kind] = count
		metrics.ProcessEventsPersisted.WithLabelValues(kind).Add(float64(count))
	}
	return nil
}

func (p *Processor) dispatchActivities(ctx context.Context, data *events.OnChainData, allFills []model.FillEvent, fillKeys map[model.LogKey]struct{}) error {
	if err := p.dispatcher.DispatchFillActivities(ctx, allFills); err != nil {
		return fmt.Errorf("dispatch fill activities: %w", err)
	}

	// Mint transfers already covered by a fill activity are excluded;
	// every other transfer gets its own activity.
	var transfers []model.NftTransferEvent
	for _, t := range data.NftTransferEvents {
		isMint := strings.EqualFold(t.From, zeroAddress)
		if _, inFill := fillKeys[t.BaseEventParams.Key()]; inFill && isMint {
			continue
		}
		transfers = append(transfers, t)
	}
	if err := p.dispatcher.DispatchTransferActivities(ctx, transfers); err != nil {
		return fmt.Errorf("dispatch transfer activities: %w", err)
	}

	if p.swapActivities {
		if err := p.dispatcher.DispatchSwapActivities(ctx, data.Swaps); err != nil {
			return fmt.Errorf("dispatch swap activities: %w", err)
		}
	}
	return nil
}

// persistRelevantTransactions captures the transactions behind retained
// events. Individual fetch failures are swallowed: a missing transaction
// must not fail an already-persisted batch.
func (p *Processor) persistRelevantTransactions(ctx context.Context, data *events.OnChainData, result *Result) error {
	hashes := make(map[string]struct{})
	add := func(params model.BaseEventParams) {
		if params.TxHash != "" {
			hashes[params.TxHash] = struct{}{}
		}
	}
	for _, e := range data.AllFills() {
		add(e.BaseEventParams)
	}
	for _, e := range data.NftTransferEvents {
		add(e.BaseEventParams)
	}
	for _, e := range data.FtTransferEvents {
		add(e.BaseEventParams)
	}
	for _, e := range data.NftApprovalEvents {
		add(e.BaseEventParams)
	}
	for _, e := range data.Mints {
		add(e.BaseEventParams)
	}

	txs := make([]*model.Transaction, 0, len(hashes))
	for hash := range hashes {
		tx, err := p.source.FetchTransaction(ctx, hash)
		if err != nil {
			p.logger.Warn("relevant transaction fetch failed", "tx_hash", hash, "error", err)
			continue
		}
		if tx == nil {
			continue
		}
		txs = append(txs, tx)
	}

	if err := p.repos.Transactions.SaveTransactions(ctx, txs); err != nil {
		return fmt.Errorf("persist transactions: %w", err)
	}
	result.Persisted["transaction"] = len(txs)
	metrics.ProcessEventsPersisted.WithLabelValues("transaction").Add(float64(len(txs)))
	return nil
}

func transferredTokens(transfers []model.NftTransferEvent) []TokenRef {
	seen := make(map[TokenRef]struct{}, len(transfers))
	var tokens []TokenRef
	for _, t := range transfers {
		ref := TokenRef{Contract: strings.ToLower(t.BaseEventParams.Address), TokenID: t.TokenID}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		tokens = append(tokens, ref)
	}
	return tokens
}
