package txsource

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/d347h-eth/indexer-public/internal/circuitbreaker"
	"github.com/d347h-eth/indexer-public/internal/domain/model"
	"github.com/d347h-eth/indexer-public/internal/metrics"
)

const breakerName = "trace-source"

// GuardedSource wraps a Source with a circuit breaker so a struggling
// trace endpoint sheds load instead of stalling every handler on RPC
// timeouts. While the breaker is open, calls fail fast with
// circuitbreaker.ErrCircuitOpen, which the retry classifier treats as
// transient.
type GuardedSource struct {
	inner   Source
	breaker *circuitbreaker.Breaker
}

// NewGuardedSource wraps inner with a breaker configured by cfg. The
// OnStateChange hook is owned by the wrapper.
func NewGuardedSource(inner Source, cfg circuitbreaker.Config, logger *slog.Logger) *GuardedSource {
	log := logger.With("component", "txsource")
	cfg.OnStateChange = func(from, to circuitbreaker.State) {
		metrics.BreakerStateChanges.WithLabelValues(breakerName, to.String()).Inc()
		log.Warn("trace source breaker state changed", "from", from.String(), "to", to.String())
	}
	return &GuardedSource{
		inner:   inner,
		breaker: circuitbreaker.New(cfg),
	}
}

func (g *GuardedSource) FetchTransactionTrace(ctx context.Context, txHash string) (json.RawMessage, error) {
	var raw json.RawMessage
	err := g.call(func() error {
		var err error
		raw, err = g.inner.FetchTransactionTrace(ctx, txHash)
		return err
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (g *GuardedSource) FetchTransaction(ctx context.Context, txHash string) (*model.Transaction, error) {
	var tx *model.Transaction
	err := g.call(func() error {
		var err error
		tx, err = g.inner.FetchTransaction(ctx, txHash)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (g *GuardedSource) ExtractAttribution(ctx context.Context, txHash string, orderKind model.OrderKind, orderID string) (AttributionData, error) {
	var data AttributionData
	err := g.call(func() error {
		var err error
		data, err = g.inner.ExtractAttribution(ctx, txHash, orderKind, orderID)
		return err
	})
	if err != nil {
		return AttributionData{}, err
	}
	return data, nil
}

func (g *GuardedSource) call(fn func() error) error {
	if err := g.breaker.Allow(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		g.breaker.RecordFailure()
		return err
	}
	g.breaker.RecordSuccess()
	return nil
}

var _ Source = (*GuardedSource)(nil)
