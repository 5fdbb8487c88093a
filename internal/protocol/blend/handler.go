package blend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/d347h-eth/indexer-public/internal/domain/model"
	"github.com/d347h-eth/indexer-public/internal/events"
	"github.com/d347h-eth/indexer-public/internal/metrics"
	"github.com/d347h-eth/indexer-public/internal/prices"
	"github.com/d347h-eth/indexer-public/internal/store"
	"github.com/d347h-eth/indexer-public/internal/trace"
	"github.com/d347h-eth/indexer-public/internal/txsource"
)

const (
	SubKindBuyLocked        model.EventSubKind = "blend-buy-locked"
	SubKindNonceIncremented model.EventSubKind = "blend-nonce-incremented"

	// NativeCurrency is the pseudo-address of the chain's native asset.
	NativeCurrency = "0x0000000000000000000000000000000000000000"
)

// Handler reconstructs fills and cancels from blend exchange logs. Buyout
// logs carry no order payload, so the handler re-derives the signed offer
// from the settlement calldata in the transaction trace.
type Handler struct {
	exchange common.Address
	chainID  *big.Int
	source   txsource.Source
	oracle   prices.Oracle
	nonces   store.NonceRepository
	logger   *slog.Logger

	selectors trace.SelectorSet
}

func NewHandler(
	exchange common.Address,
	chainID *big.Int,
	source txsource.Source,
	oracle prices.Oracle,
	nonces store.NonceRepository,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		exchange:  exchange,
		chainID:   chainID,
		source:    source,
		oracle:    oracle,
		nonces:    nonces,
		logger:    logger.With("component", "blend-handler"),
		selectors: trace.NewSelectorSet(Selectors()...),
	}
}

// HandleEvents processes one transaction-ordered slice of classified logs,
// appending derived events to data. Trade ranks are tracked per call so
// batched buyouts within one transaction resolve to successive trace nodes.
func (h *Handler) HandleEvents(ctx context.Context, evts []model.EnhancedEvent, data *events.OnChainData) error {
	tradeRank := make(map[string]int)

	for _, ev := range evts {
		switch ev.SubKind {
		case SubKindNonceIncremented:
			maker, newNonce, err := parseNonceIncremented(ev.Log)
			if err != nil {
				h.logger.Warn("malformed nonce-incremented log",
					"tx_hash", ev.BaseEventParams.TxHash, "log_index", ev.BaseEventParams.LogIndex, "error", err)
				continue
			}
			data.BulkCancelEvents = append(data.BulkCancelEvents, model.BulkCancelEvent{
				OrderKind:       model.OrderKindBlend,
				Maker:           maker,
				MinNonce:        newNonce,
				BaseEventParams: ev.BaseEventParams,
			})

		case SubKindBuyLocked:
			if err := h.handleBuyLocked(ctx, ev, data, tradeRank); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *Handler) handleBuyLocked(ctx context.Context, ev model.EnhancedEvent, data *events.OnChainData, tradeRank map[string]int) error {
	txHash := ev.BaseEventParams.TxHash
	logger := h.logger.With("tx_hash", txHash, "log_index", ev.BaseEventParams.LogIndex)

	raw, err := h.source.FetchTransactionTrace(ctx, txHash)
	if err != nil {
		return fmt.Errorf("fetch transaction trace %s: %w", txHash, err)
	}
	if len(raw) == 0 {
		logger.Warn("transaction trace unavailable")
		return nil
	}

	root, err := trace.Normalize(raw)
	if err != nil {
		logger.Warn("malformed transaction trace", "error", err)
		return nil
	}
	trace.Sanitize(root)

	rank := tradeRank[txHash]
	call, err := trace.FindProtocolCall(root, h.exchange.Hex(), h.selectors, rank)
	if err != nil {
		if errors.Is(err, trace.ErrNoMatch) {
			metrics.ProtocolCallMatchesTotal.WithLabelValues("none").Inc()
			logger.Warn("no settlement call in trace", "trade_rank", rank)
			return nil
		}
		return fmt.Errorf("match settlement call %s: %w", txHash, err)
	}
	metrics.ProtocolCallMatchesTotal.WithLabelValues("found").Inc()

	callData, err := DecodeCalldata(call.Input)
	if err != nil {
		logger.Warn("undecodable settlement calldata", "error", err)
		return nil
	}

	currencyPrice := callData.Offer.Price.String()
	priceData, err := h.oracle.GetPrice(ctx, NativeCurrency, currencyPrice, ev.BaseEventParams.Timestamp)
	if err != nil {
		return fmt.Errorf("price lookup for %s: %w", txHash, err)
	}
	if priceData.NativePrice == nil {
		logger.Warn("no native price for fill", "currency", NativeCurrency)
		return nil
	}

	maker := strings.ToLower(callData.Offer.Borrower.Hex())
	minNonce, err := h.nonces.GetMinNonce(ctx, model.OrderKindBlend, maker)
	if err != nil {
		return fmt.Errorf("load min nonce for %s: %w", maker, err)
	}

	order := OrderFromOffer(callData.Offer, big.NewInt(minNonce), callData.Signature)
	orderID := order.Hash().Hex()

	validated := false
	for nonce := minNonce; nonce >= 0; nonce-- {
		order.Nonce = big.NewInt(nonce)
		if err := order.CheckSignature(h.chainID, h.exchange); err == nil {
			metrics.OrderSignatureWalkDepth.WithLabelValues(string(model.OrderKindBlend)).Observe(float64(minNonce - nonce + 1))
			validated = true
			break
		}
	}
	if !validated {
		logger.Warn("order signature did not validate at any nonce",
			"order_id", orderID, "min_nonce", minNonce)
		return nil
	}

	taker := strings.ToLower(call.From)
	attribution, err := h.source.ExtractAttribution(ctx, txHash, model.OrderKindBlend, orderID)
	if err != nil {
		return fmt.Errorf("extract attribution for %s: %w", txHash, err)
	}
	if attribution.Taker != nil {
		taker = strings.ToLower(*attribution.Taker)
	}

	contract := strings.ToLower(callData.Lien.Collection.Hex())
	tokenID := callData.Lien.TokenId.String()

	data.FillEvents = append(data.FillEvents, model.FillEvent{
		OrderKind:          model.OrderKindBlend,
		OrderID:            orderID,
		OrderSide:          model.OrderSideSell,
		Maker:              maker,
		Taker:              taker,
		Price:              *priceData.NativePrice,
		Currency:           NativeCurrency,
		CurrencyPrice:      currencyPrice,
		USDPrice:           priceData.USDPrice,
		Contract:           contract,
		TokenID:            tokenID,
		Amount:             "1",
		OrderSourceID:      attribution.OrderSourceID,
		AggregatorSourceID: attribution.AggregatorSourceID,
		FillSourceID:       attribution.FillSourceID,
		BaseEventParams:    ev.BaseEventParams,
	})

	data.FillInfos = append(data.FillInfos, model.FillInfo{
		Context:   fmt.Sprintf("%s-%s-%d", orderID, txHash, ev.BaseEventParams.LogIndex),
		OrderID:   orderID,
		OrderSide: model.OrderSideSell,
		Contract:  contract,
		TokenID:   tokenID,
		Amount:    "1",
		Price:     *priceData.NativePrice,
		Timestamp: ev.BaseEventParams.Timestamp,
		Maker:     maker,
		Taker:     taker,
	})

	metrics.OrdersReconstructedTotal.WithLabelValues(string(model.OrderKindBlend)).Inc()
	tradeRank[txHash] = rank + 1
	return nil
}

// parseNonceIncremented extracts (user, newNonce) from a NonceIncremented
// log: the user is the first indexed topic, the nonce is the data word.
func parseNonceIncremented(log model.RawLog) (maker string, newNonce string, err error) {
	if len(log.Topics) < 2 {
		return "", "", fmt.Errorf("expected 2 topics, got %d", len(log.Topics))
	}

	topic := strings.TrimPrefix(strings.ToLower(log.Topics[1]), "0x")
	if len(topic) != 64 {
		return "", "", fmt.Errorf("malformed address topic %q", log.Topics[1])
	}
	maker = "0x" + topic[24:]

	dataHex := strings.TrimPrefix(strings.ToLower(log.Data), "0x")
	nonce, ok := new(big.Int).SetString(dataHex, 16)
	if !ok {
		return "", "", fmt.Errorf("malformed nonce data %q", log.Data)
	}
	return maker, nonce.String(), nil
}
