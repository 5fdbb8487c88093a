// Package reconciliation cross-checks the nft_balances materialization
// against the nft_transfer_events ledger. Realtime writes apply ownership
// deltas atomically with the event insert, so the two only diverge when
// something went wrong, with one exception: backfill writes skip the
// delta, so freshly backfilled ranges report drift until balances are
// rebuilt.
package reconciliation

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/d347h-eth/indexer-public/internal/alert"
	"github.com/d347h-eth/indexer-public/internal/metrics"
)

// Drift is one balance row that disagrees with the transfer ledger.
type Drift struct {
	Contract string `json:"contract"`
	TokenID  string `json:"tokenId"`
	Owner    string `json:"owner"`
	Stored   string `json:"stored"`
	Ledger   string `json:"ledger"`
}

// RunResult aggregates one reconciliation pass.
type RunResult struct {
	Contract   string    `json:"contract,omitempty"`
	Checked    int       `json:"checked"`
	Drifted    int       `json:"drifted"`
	Drifts     []Drift   `json:"drifts,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Service runs the ledger-vs-balances consistency check.
type Service struct {
	db       *sql.DB
	contract string // empty checks every collection
	maxDrift int    // cap on reported rows per run
	alerter  alert.Alerter
	logger   *slog.Logger
}

func NewService(db *sql.DB, contract string, alerter alert.Alerter, logger *slog.Logger) *Service {
	return &Service{
		db:       db,
		contract: contract,
		maxDrift: 100,
		alerter:  alerter,
		logger:   logger.With("component", "reconciliation"),
	}
}

const driftQuery = `
	WITH ledger AS (
		SELECT contract, token_id, owner, SUM(delta) AS amount FROM (
			SELECT address AS contract, token_id, "from" AS owner, -amount AS delta
			FROM nft_transfer_events
			WHERE $1 = '' OR address = $1
			UNION ALL
			SELECT address AS contract, token_id, "to" AS owner, amount AS delta
			FROM nft_transfer_events
			WHERE $1 = '' OR address = $1
		) t
		GROUP BY contract, token_id, owner
	)
	SELECT
		COALESCE(b.contract, l.contract),
		COALESCE(b.token_id, l.token_id)::text,
		COALESCE(b.owner, l.owner),
		COALESCE(b.amount, 0)::text,
		COALESCE(l.amount, 0)::text
	FROM nft_balances b
	FULL OUTER JOIN ledger l
		ON b.contract = l.contract AND b.token_id = l.token_id AND b.owner = l.owner
	WHERE ($1 = '' OR COALESCE(b.contract, l.contract) = $1)
		AND COALESCE(b.amount, 0) <> COALESCE(l.amount, 0)
	LIMIT $2`

const checkedQuery = `
	SELECT COUNT(*) FROM nft_balances WHERE $1 = '' OR contract = $1`

// Run executes one reconciliation pass and alerts when drift is found.
func (s *Service) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{Contract: s.contract, StartedAt: time.Now()}

	if err := s.db.QueryRowContext(ctx, checkedQuery, s.contract).Scan(&result.Checked); err != nil {
		return nil, fmt.Errorf("count balance rows: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, driftQuery, s.contract, s.maxDrift)
	if err != nil {
		return nil, fmt.Errorf("query balance drift: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d Drift
		if err := rows.Scan(&d.Contract, &d.TokenID, &d.Owner, &d.Stored, &d.Ledger); err != nil {
			return nil, fmt.Errorf("scan balance drift row: %w", err)
		}
		result.Drifts = append(result.Drifts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balance drift rows: %w", err)
	}
	result.Drifted = len(result.Drifts)
	result.FinishedAt = time.Now()

	metrics.ReconciliationRunsTotal.Inc()
	if result.Drifted > 0 {
		metrics.ReconciliationMismatchesTotal.Add(float64(result.Drifted))
		s.logger.Warn("balance drift detected",
			"checked", result.Checked,
			"drifted", result.Drifted,
			"contract", s.contract,
		)
		if s.alerter != nil {
			_ = s.alerter.Send(ctx, alert.Alert{
				Type:    alert.AlertTypeBalanceDrift,
				Title:   "NFT balance drift detected",
				Message: fmt.Sprintf("%d of %d balance rows disagree with the transfer ledger", result.Drifted, result.Checked),
				Fields: map[string]string{
					"contract": s.contract,
					"sample":   sampleDrift(result.Drifts),
				},
			})
		}
	} else {
		s.logger.Info("balance reconciliation clean",
			"checked", result.Checked,
			"contract", s.contract,
			"tookMs", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		)
	}

	return result, nil
}

// RunPeriodic runs reconciliation at the given interval until the
// context is cancelled. Query failures are logged and retried on the
// next tick.
func (s *Service) RunPeriodic(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Hour
	}

	s.logger.Info("periodic reconciliation started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("periodic reconciliation stopping")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Run(ctx); err != nil {
				s.logger.Warn("reconciliation run failed", "error", err)
			}
		}
	}
}

func sampleDrift(drifts []Drift) string {
	if len(drifts) == 0 {
		return ""
	}
	d := drifts[0]
	return fmt.Sprintf("%s/%s owner=%s stored=%s ledger=%s", d.Contract, d.TokenID, d.Owner, d.Stored, d.Ledger)
}
