package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/forecastarena/internal/domain"
)

// BetStore implements domain.BetStore using PostgreSQL.
type BetStore struct {
	pool *pgxpool.Pool
}

// NewBetStore creates a new BetStore backed by the given connection pool.
func NewBetStore(pool *pgxpool.Pool) *BetStore {
	return &BetStore{pool: pool}
}

// Insert creates a bet row and fills in b.ID. Inserting the same
// (agent, market, round) twice leaves the original row untouched and fills
// b.ID from it. Callers must not repeat the side effects that precede an
// insert (the bankroll debit in particular); the unique key only dedupes
// the row itself.
func (s *BetStore) Insert(ctx context.Context, b *domain.Bet) error {
	keyFactors := b.KeyFactors
	if keyFactors == nil {
		keyFactors = []string{}
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO bets (
			agent_id, market_id, cohort_id, round_id,
			action, confidence, bet_size_pct, bet_amount, estimated_probability,
			market_price_at_bet, reasoning, key_factors, prompt_text, raw_response,
			settled, pnl, brier_score, api_cost, api_latency_ms
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9,
			$10, $11, $12, $13, $14,
			FALSE, 0, NULL, $15, $16
		)
		ON CONFLICT (agent_id, market_id, round_id) DO NOTHING
		RETURNING id`,
		b.AgentID, b.MarketID, b.CohortID, b.RoundID,
		string(b.Action), b.Confidence, b.BetSizePct, b.BetAmount, b.EstimatedProbability,
		b.MarketPriceAtBet, b.Reasoning, keyFactors, b.PromptText, b.RawResponse,
		b.APICost, b.APILatencyMs,
	).Scan(&b.ID)
	if err == nil {
		return nil
	}
	if err != pgx.ErrNoRows {
		return fmt.Errorf("postgres: insert bet %s/%s: %w", b.AgentID, b.MarketID, err)
	}

	// Conflict path: the bet already exists from an earlier run.
	err = s.pool.QueryRow(ctx,
		`SELECT id FROM bets WHERE agent_id = $1 AND market_id = $2 AND round_id = $3`,
		b.AgentID, b.MarketID, b.RoundID,
	).Scan(&b.ID)
	if err != nil {
		return fmt.Errorf("postgres: find existing bet %s/%s: %w", b.AgentID, b.MarketID, err)
	}
	return nil
}

const betCols = `id, agent_id, market_id, cohort_id, round_id,
	action, confidence, bet_size_pct, bet_amount, estimated_probability,
	market_price_at_bet, reasoning, key_factors, prompt_text, raw_response,
	settled, pnl, brier_score, api_cost, api_latency_ms, created_at`

func scanBet(row pgx.Row) (domain.Bet, error) {
	var b domain.Bet
	var action string
	err := row.Scan(
		&b.ID, &b.AgentID, &b.MarketID, &b.CohortID, &b.RoundID,
		&action, &b.Confidence, &b.BetSizePct, &b.BetAmount, &b.EstimatedProbability,
		&b.MarketPriceAtBet, &b.Reasoning, &b.KeyFactors, &b.PromptText, &b.RawResponse,
		&b.Settled, &b.PnL, &b.BrierScore, &b.APICost, &b.APILatencyMs, &b.CreatedAt,
	)
	if err != nil {
		return domain.Bet{}, err
	}
	b.Action = domain.BetAction(action)
	return b, nil
}

func (s *BetStore) listBets(ctx context.Context, query string, args ...any) ([]domain.Bet, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bets: %w", err)
	}
	defer rows.Close()

	var bets []domain.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan bet: %w", err)
		}
		bets = append(bets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list bets rows: %w", err)
	}
	return bets, nil
}

// ListByRound returns every bet in a round ordered by placement time.
func (s *BetStore) ListByRound(ctx context.Context, roundID string) ([]domain.Bet, error) {
	return s.listBets(ctx,
		`SELECT `+betCols+` FROM bets WHERE round_id = $1 ORDER BY created_at, id`,
		roundID)
}

// ListUnsettled returns open non-pass bets, the settlement work queue.
func (s *BetStore) ListUnsettled(ctx context.Context) ([]domain.Bet, error) {
	return s.listBets(ctx,
		`SELECT `+betCols+` FROM bets
		 WHERE NOT settled AND action <> 'pass' ORDER BY created_at, id`)
}

// ListRecentForMarket returns the agent's latest bets on one market in one
// cohort, newest first.
func (s *BetStore) ListRecentForMarket(ctx context.Context, agentID, marketID, cohortID string, limit int) ([]domain.Bet, error) {
	query := `SELECT ` + betCols + ` FROM bets
		WHERE agent_id = $1 AND market_id = $2 AND cohort_id = $3
		ORDER BY created_at DESC, id DESC`
	args := []any{agentID, marketID, cohortID}
	if limit > 0 {
		query += " LIMIT $4"
		args = append(args, limit)
	}
	return s.listBets(ctx, query, args...)
}

// Settle performs the one-time settled transition. Settling an already
// settled bet is a no-op.
func (s *BetStore) Settle(ctx context.Context, betID int64, pnl float64, brier *float64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE bets SET settled = TRUE, pnl = $2, brier_score = $3
		 WHERE id = $1 AND NOT settled`,
		betID, pnl, brier)
	if err != nil {
		return fmt.Errorf("postgres: settle bet %d: %w", betID, err)
	}
	return nil
}

// SettleOpenPasses closes out all open pass bets on a market with zero pnl.
func (s *BetStore) SettleOpenPasses(ctx context.Context, marketID string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE bets SET settled = TRUE, pnl = 0
		 WHERE market_id = $1 AND action = 'pass' AND NOT settled`,
		marketID)
	if err != nil {
		return 0, fmt.Errorf("postgres: settle passes for market %s: %w", marketID, err)
	}
	return tag.RowsAffected(), nil
}

// TotalAPICost returns cumulative gateway spend across all bets.
func (s *BetStore) TotalAPICost(ctx context.Context) (float64, error) {
	var total float64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(api_cost), 0) FROM bets`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("postgres: total api cost: %w", err)
	}
	return total, nil
}

// CostByAgent returns gateway spend per agent, most expensive first.
func (s *BetStore) CostByAgent(ctx context.Context) ([]domain.AgentCost, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.id, a.display_name, COALESCE(SUM(b.api_cost), 0) AS cost
		FROM agents a
		LEFT JOIN bets b ON b.agent_id = a.id
		GROUP BY a.id, a.display_name
		ORDER BY cost DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: cost by agent: %w", err)
	}
	defer rows.Close()

	var costs []domain.AgentCost
	for rows.Next() {
		var c domain.AgentCost
		if err := rows.Scan(&c.AgentID, &c.DisplayName, &c.Cost); err != nil {
			return nil, fmt.Errorf("postgres: scan agent cost: %w", err)
		}
		costs = append(costs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: cost by agent rows: %w", err)
	}
	return costs, nil
}

// CostByRound returns gateway spend per round, newest first.
func (s *BetStore) CostByRound(ctx context.Context) ([]domain.RoundCost, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.id, r.created_at, COALESCE(SUM(b.api_cost), 0) AS cost
		FROM rounds r
		LEFT JOIN bets b ON b.round_id = r.id
		GROUP BY r.id, r.created_at
		ORDER BY r.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: cost by round: %w", err)
	}
	defer rows.Close()

	var costs []domain.RoundCost
	for rows.Next() {
		var c domain.RoundCost
		if err := rows.Scan(&c.RoundID, &c.CreatedAt, &c.Cost); err != nil {
			return nil, fmt.Errorf("postgres: scan round cost: %w", err)
		}
		costs = append(costs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: cost by round rows: %w", err)
	}
	return costs, nil
}

// CostByDay returns daily gateway spend with a running cumulative total,
// oldest day first.
func (s *BetStore) CostByDay(ctx context.Context) ([]domain.DailyCost, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT day, cost, SUM(cost) OVER (ORDER BY day) AS cumulative
		FROM (
			SELECT TO_CHAR(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
			       SUM(api_cost) AS cost
			FROM bets
			GROUP BY 1
		) daily
		ORDER BY day`)
	if err != nil {
		return nil, fmt.Errorf("postgres: cost by day: %w", err)
	}
	defer rows.Close()

	var costs []domain.DailyCost
	for rows.Next() {
		var c domain.DailyCost
		if err := rows.Scan(&c.Date, &c.Cost, &c.Cumulative); err != nil {
			return nil, fmt.Errorf("postgres: scan daily cost: %w", err)
		}
		costs = append(costs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: cost by day rows: %w", err)
	}
	return costs, nil
}

// AgentStats aggregates one leaderboard row per agent; a nil cohortID means
// all-time. Bankroll comes from the given cohort's ledger, or the active
// cohort's when unscoped. AvgDifficulty and AdjustedPnL are left at zero for
// the scoring layer to fill in.
func (s *BetStore) AgentStats(ctx context.Context, cohortID *string) ([]domain.AgentStats, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT
			a.id, a.display_name, a.provider,
			COALESCE(l.bankroll, 0) AS bankroll,
			COALESCE(SUM(b.pnl) FILTER (WHERE b.settled AND b.action <> 'pass'), 0) AS total_pnl,
			COALESCE(AVG(b.brier_score) FILTER (WHERE b.settled), 0) AS brier_score,
			COUNT(b.id) FILTER (WHERE b.action <> 'pass') AS total_bets,
			COALESCE(
				COUNT(b.id) FILTER (WHERE b.settled AND b.brier_score IS NOT NULL AND b.pnl > 0)::float /
				NULLIF(COUNT(b.id) FILTER (WHERE b.settled AND b.brier_score IS NOT NULL), 0),
			0) AS win_rate,
			COALESCE(
				COUNT(b.id) FILTER (WHERE b.action = 'pass')::float /
				NULLIF(COUNT(b.id), 0),
			0) AS pass_rate,
			COALESCE(AVG(b.confidence) FILTER (WHERE b.action <> 'pass'), 0) AS avg_confidence,
			COALESCE(AVG(b.bet_size_pct) FILTER (WHERE b.action <> 'pass'), 0) AS avg_bet_size,
			COALESCE(SUM(b.api_cost), 0) AS total_api_cost
		FROM agents a
		LEFT JOIN bets b
			ON b.agent_id = a.id AND ($1::text IS NULL OR b.cohort_id = $1)
		LEFT JOIN cohorts ac ON ac.status = 'active'
		LEFT JOIN ledgers l
			ON l.agent_id = a.id AND l.cohort_id = COALESCE($1, ac.id)
		GROUP BY a.id, a.display_name, a.provider, l.bankroll
		ORDER BY total_pnl DESC, a.id`,
		cohortID)
	if err != nil {
		return nil, fmt.Errorf("postgres: agent stats: %w", err)
	}
	defer rows.Close()

	var stats []domain.AgentStats
	for rows.Next() {
		var st domain.AgentStats
		if err := rows.Scan(
			&st.AgentID, &st.DisplayName, &st.Provider,
			&st.Bankroll, &st.TotalPnL, &st.BrierScore, &st.TotalBets,
			&st.WinRate, &st.PassRate, &st.AvgConfidence, &st.AvgBetSize,
			&st.TotalAPICost,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan agent stats: %w", err)
		}
		st.ROIPct = st.TotalPnL / domain.DefaultInitialBankroll * 100
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: agent stats rows: %w", err)
	}
	return stats, nil
}

// ListNonPassPrices returns the market price observed at bet time for an
// agent's non-pass bets.
func (s *BetStore) ListNonPassPrices(ctx context.Context, agentID string, cohortID *string) ([]float64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT market_price_at_bet FROM bets
		WHERE agent_id = $1 AND action <> 'pass'
		  AND ($2::text IS NULL OR cohort_id = $2)`,
		agentID, cohortID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list non-pass prices: %w", err)
	}
	defer rows.Close()

	var prices []float64
	for rows.Next() {
		var p float64
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("postgres: scan price: %w", err)
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list non-pass prices rows: %w", err)
	}
	return prices, nil
}

// ListCalibrationSamples returns (forecast probability, realized outcome)
// pairs for settled scored bets, optionally scoped to one agent and cohort.
func (s *BetStore) ListCalibrationSamples(ctx context.Context, agentID, cohortID *string) ([]domain.CalibrationSample, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT b.estimated_probability, m.resolution = 'yes'
		FROM bets b
		JOIN markets m ON m.id = b.market_id
		WHERE b.settled AND b.brier_score IS NOT NULL
		  AND b.estimated_probability IS NOT NULL
		  AND m.resolution IN ('yes', 'no')
		  AND ($1::text IS NULL OR b.agent_id = $1)
		  AND ($2::text IS NULL OR b.cohort_id = $2)`,
		agentID, cohortID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list calibration samples: %w", err)
	}
	defer rows.Close()

	var samples []domain.CalibrationSample
	for rows.Next() {
		var cs domain.CalibrationSample
		if err := rows.Scan(&cs.Probability, &cs.ResolvedYes); err != nil {
			return nil, fmt.Errorf("postgres: scan calibration sample: %w", err)
		}
		samples = append(samples, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list calibration samples rows: %w", err)
	}
	return samples, nil
}

// ListSettled returns settled non-pass bets with their market questions,
// ordered by placement time ascending.
func (s *BetStore) ListSettled(ctx context.Context, cohortID *string) ([]domain.SettledBet, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT b.agent_id, b.market_id, m.question, b.pnl, b.created_at
		FROM bets b
		JOIN markets m ON m.id = b.market_id
		WHERE b.settled AND b.action <> 'pass'
		  AND ($1::text IS NULL OR b.cohort_id = $1)
		ORDER BY b.created_at, b.id`,
		cohortID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settled bets: %w", err)
	}
	defer rows.Close()

	var bets []domain.SettledBet
	for rows.Next() {
		var sb domain.SettledBet
		if err := rows.Scan(&sb.AgentID, &sb.MarketID, &sb.Question, &sb.PnL, &sb.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan settled bet: %w", err)
		}
		bets = append(bets, sb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list settled bets rows: %w", err)
	}
	return bets, nil
}
