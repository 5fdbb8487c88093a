package txsource

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d347h-eth/indexer-public/internal/circuitbreaker"
	"github.com/d347h-eth/indexer-public/internal/domain/model"
)

type flakySource struct {
	traceCalls int
	err        error
}

func (f *flakySource) FetchTransactionTrace(ctx context.Context, txHash string) (json.RawMessage, error) {
	f.traceCalls++
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(`{"type":"CALL","calls":[]}`), nil
}

func (f *flakySource) FetchTransaction(ctx context.Context, txHash string) (*model.Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.Transaction{Hash: txHash}, nil
}

func (f *flakySource) ExtractAttribution(ctx context.Context, txHash string, orderKind model.OrderKind, orderID string) (AttributionData, error) {
	if f.err != nil {
		return AttributionData{}, f.err
	}
	return AttributionData{}, nil
}

func guarded(inner Source, threshold int, openTimeout time.Duration) *GuardedSource {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewGuardedSource(inner, circuitbreaker.Config{
		FailureThreshold: threshold,
		SuccessThreshold: 1,
		OpenTimeout:      openTimeout,
	}, logger)
}

func TestGuardedSource_PassesThroughOnSuccess(t *testing.T) {
	inner := &flakySource{}
	src := guarded(inner, 3, time.Minute)

	raw, err := src.FetchTransactionTrace(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"CALL","calls":[]}`, string(raw))

	tx, err := src.FetchTransaction(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", tx.Hash)
}

func TestGuardedSource_OpensAfterRepeatedFailures(t *testing.T) {
	inner := &flakySource{err: errors.New("connection refused")}
	src := guarded(inner, 3, time.Minute)

	for i := 0; i < 3; i++ {
		_, err := src.FetchTransactionTrace(context.Background(), "0xabc")
		require.Error(t, err)
	}

	_, err := src.FetchTransactionTrace(context.Background(), "0xabc")
	require.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, 3, inner.traceCalls, "open breaker fails fast without touching the node")
}

func TestGuardedSource_RecoversAfterOpenTimeout(t *testing.T) {
	inner := &flakySource{err: errors.New("connection refused")}
	src := guarded(inner, 1, 10*time.Millisecond)

	_, err := src.FetchTransactionTrace(context.Background(), "0xabc")
	require.Error(t, err)
	_, err = src.FetchTransactionTrace(context.Background(), "0xabc")
	require.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)

	time.Sleep(20 * time.Millisecond)
	inner.err = nil

	_, err = src.FetchTransactionTrace(context.Background(), "0xabc")
	require.NoError(t, err)

	_, err = src.ExtractAttribution(context.Background(), "0xabc", model.OrderKindBlend, "0xorder")
	require.NoError(t, err)
}

func TestGuardedSource_AllCallsShareOneBreaker(t *testing.T) {
	inner := &flakySource{err: errors.New("connection refused")}
	src := guarded(inner, 2, time.Minute)

	_, err := src.FetchTransaction(context.Background(), "0xabc")
	require.Error(t, err)
	_, err = src.ExtractAttribution(context.Background(), "0xabc", model.OrderKindBlend, "0xorder")
	require.Error(t, err)

	_, err = src.FetchTransactionTrace(context.Background(), "0xabc")
	require.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
}
