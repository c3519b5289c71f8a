package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/forecastarena/internal/domain"
)

// LedgerStore implements domain.LedgerStore using PostgreSQL. Bankroll
// mutations are single-statement atomic increments so concurrent debits and
// credits never lose updates.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a new LedgerStore backed by the given connection pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// Bankroll returns the current bankroll for one (cohort, agent) pair.
func (s *LedgerStore) Bankroll(ctx context.Context, cohortID, agentID string) (float64, error) {
	var bankroll float64
	err := s.pool.QueryRow(ctx,
		`SELECT bankroll FROM ledgers WHERE cohort_id = $1 AND agent_id = $2`,
		cohortID, agentID,
	).Scan(&bankroll)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("postgres: get bankroll %s/%s: %w", cohortID, agentID, err)
	}
	return bankroll, nil
}

// Add atomically adjusts a bankroll by delta (negative to debit).
func (s *LedgerStore) Add(ctx context.Context, cohortID, agentID string, delta float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE ledgers SET bankroll = bankroll + $3 WHERE cohort_id = $1 AND agent_id = $2`,
		cohortID, agentID, delta)
	if err != nil {
		return fmt.Errorf("postgres: adjust bankroll %s/%s: %w", cohortID, agentID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByCohort returns every ledger row in a cohort ordered by bankroll
// descending.
func (s *LedgerStore) ListByCohort(ctx context.Context, cohortID string) ([]domain.Ledger, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT cohort_id, agent_id, bankroll FROM ledgers
		 WHERE cohort_id = $1 ORDER BY bankroll DESC`,
		cohortID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list ledgers %s: %w", cohortID, err)
	}
	defer rows.Close()

	var ledgers []domain.Ledger
	for rows.Next() {
		var l domain.Ledger
		if err := rows.Scan(&l.CohortID, &l.AgentID, &l.Bankroll); err != nil {
			return nil, fmt.Errorf("postgres: scan ledger: %w", err)
		}
		ledgers = append(ledgers, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list ledgers rows: %w", err)
	}
	return ledgers, nil
}
