package txsource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/d347h-eth/indexer-public/internal/domain/model"
	"github.com/d347h-eth/indexer-public/internal/metrics"
)

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return e.Message
}

type rpcTransaction struct {
	Hash        string `json:"hash"`
	BlockNumber string `json:"blockNumber"`
	BlockHash   string `json:"blockHash"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	Input       string `json:"input"`
	GasPrice    string `json:"gasPrice"`
}

type rpcReceipt struct {
	GasUsed           string `json:"gasUsed"`
	EffectiveGasPrice string `json:"effectiveGasPrice"`
}

// RPCSource implements Source over an Ethereum JSON-RPC endpoint that
// supports debug_traceTransaction with the callTracer. Calls go through a
// client-side token bucket so a hot batch cannot hammer the node.
type RPCSource struct {
	httpClient *http.Client
	rpcURL     string
	requestID  atomic.Int64
	limiter    *rate.Limiter
	logger     *slog.Logger

	// Known aggregator router addresses (lowercased) mapped to their
	// source ids, used for fill attribution.
	routers map[string]string
}

type RPCSourceConfig struct {
	URL     string
	Timeout time.Duration
	RPS     float64 // requests per second, 0 disables limiting
	Burst   int
	Routers map[string]string
}

func NewRPCSource(cfg RPCSourceConfig, logger *slog.Logger) *RPCSource {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 50
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RPS)
	}
	routers := make(map[string]string, len(cfg.Routers))
	for addr, source := range cfg.Routers {
		routers[strings.ToLower(addr)] = source
	}
	return &RPCSource{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		rpcURL:     cfg.URL,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		logger:     logger.With("component", "rpc-source"),
		routers:    routers,
	}
}

// FetchTransactionTrace returns the raw callTracer output. A "not found"
// RPC error becomes (nil, nil) so the caller can skip the event.
func (s *RPCSource) FetchTransactionTrace(ctx context.Context, txHash string) (json.RawMessage, error) {
	result, err := s.call(ctx, "debug_traceTransaction", []interface{}{
		txHash, map[string]interface{}{"tracer": "callTracer"},
	})
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) && strings.Contains(strings.ToLower(rpcErr.Message), "not found") {
			return nil, nil
		}
		return nil, fmt.Errorf("debug_traceTransaction(%s): %w", txHash, err)
	}
	if string(result) == "null" {
		return nil, nil
	}
	return result, nil
}

func (s *RPCSource) FetchTransaction(ctx context.Context, txHash string) (*model.Transaction, error) {
	raw, err := s.call(ctx, "eth_getTransactionByHash", []interface{}{txHash})
	if err != nil {
		return nil, fmt.Errorf("eth_getTransactionByHash(%s): %w", txHash, err)
	}
	if string(raw) == "null" {
		return nil, nil
	}
	var tx rpcTransaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, fmt.Errorf("unmarshal transaction %s: %w", txHash, err)
	}

	blockNumber, err := parseHexInt64(tx.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("parse block number for %s: %w", txHash, err)
	}

	out := &model.Transaction{
		Hash:        strings.ToLower(tx.Hash),
		From:        strings.ToLower(tx.From),
		To:          strings.ToLower(tx.To),
		Value:       hexToDecimal(tx.Value),
		Data:        tx.Input,
		BlockNumber: blockNumber,
		BlockHash:   tx.BlockHash,
	}
	if tx.GasPrice != "" {
		price := hexToDecimal(tx.GasPrice)
		out.GasPrice = &price
	}

	// The receipt is best effort: gas data is informational and a pruned
	// node may no longer have it.
	if rawReceipt, err := s.call(ctx, "eth_getTransactionReceipt", []interface{}{txHash}); err == nil && string(rawReceipt) != "null" {
		var receipt rpcReceipt
		if err := json.Unmarshal(rawReceipt, &receipt); err == nil {
			if receipt.GasUsed != "" {
				used := hexToDecimal(receipt.GasUsed)
				out.GasUsed = &used
			}
			if receipt.EffectiveGasPrice != "" {
				price := hexToDecimal(receipt.EffectiveGasPrice)
				out.GasPrice = &price
			}
		}
	}

	return out, nil
}

// ExtractAttribution resolves the true taker of a fill. When the
// transaction went through a known aggregator router, the router's source
// id is attributed and the externally-owned sender is the taker.
func (s *RPCSource) ExtractAttribution(ctx context.Context, txHash string, orderKind model.OrderKind, orderID string) (AttributionData, error) {
	tx, err := s.FetchTransaction(ctx, txHash)
	if err != nil {
		return AttributionData{}, err
	}
	if tx == nil {
		return AttributionData{}, nil
	}

	sourceID, routed := s.routers[tx.To]
	if !routed {
		return AttributionData{}, nil
	}

	taker := tx.From
	return AttributionData{
		Taker:              &taker,
		AggregatorSourceID: &sourceID,
		FillSourceID:       &sourceID,
	}, nil
}

func (s *RPCSource) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	if err := s.waitLimiter(ctx, method); err != nil {
		return nil, err
	}

	result, err := s.doCall(ctx, method, params)
	metrics.RPCCallsTotal.WithLabelValues(method, callStatus(err)).Inc()
	return result, err
}

func (s *RPCSource) waitLimiter(ctx context.Context, method string) error {
	r := s.limiter.Reserve()
	if !r.OK() {
		return fmt.Errorf("rate: cannot reserve token")
	}
	delay := r.Delay()
	if delay > 0 {
		metrics.RPCRateLimitWaits.WithLabelValues(method).Inc()
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			r.Cancel()
			return ctx.Err()
		}
	}
	return nil
}

func (s *RPCSource) doCall(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      int(s.requestID.Add(1)),
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, truncate(respBody, 512))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}

func callStatus(err error) string {
	if err == nil {
		return "ok"
	}
	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		return "timeout"
	case strings.Contains(lower, "429") || strings.Contains(lower, "too many requests"):
		return "rate_limited"
	case strings.Contains(lower, "status 5"):
		return "server_error"
	default:
		return "error"
	}
}

func parseHexInt64(hex string) (int64, error) {
	n, ok := new(big.Int).SetString(strings.TrimPrefix(hex, "0x"), 16)
	if !ok {
		return 0, fmt.Errorf("invalid hex number %q", hex)
	}
	return n.Int64(), nil
}

func hexToDecimal(hex string) string {
	n, ok := new(big.Int).SetString(strings.TrimPrefix(hex, "0x"), 16)
	if !ok {
		return "0"
	}
	return n.String()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

var _ Source = (*RPCSource)(nil)
