package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/forecastarena/internal/domain"
)

// CohortStore implements domain.CohortStore using PostgreSQL.
type CohortStore struct {
	pool *pgxpool.Pool
}

// NewCohortStore creates a new CohortStore backed by the given connection pool.
func NewCohortStore(pool *pgxpool.Pool) *CohortStore {
	return &CohortStore{pool: pool}
}

// Rollover demotes the current active cohort to settling, inserts c as the
// new active cohort, and seeds one ledger row per agent at bankroll, all in
// a single transaction. Inserting a cohort ID that already exists returns
// domain.ErrAlreadyExists and leaves every cohort untouched.
func (s *CohortStore) Rollover(ctx context.Context, c domain.Cohort, agentIDs []string, bankroll float64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin rollover: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE cohorts SET status = 'settling' WHERE status = 'active'`,
	); err != nil {
		return fmt.Errorf("postgres: demote active cohort: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO cohorts (id, start_date, end_date, status, market_count)
		 VALUES ($1, $2, $3, 'active', 0)`,
		c.ID, c.StartDate, c.EndDate,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("postgres: cohort %s: %w", c.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: insert cohort %s: %w", c.ID, err)
	}

	for _, agentID := range agentIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO ledgers (cohort_id, agent_id, bankroll)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (cohort_id, agent_id) DO NOTHING`,
			c.ID, agentID, bankroll,
		); err != nil {
			return fmt.Errorf("postgres: seed ledger %s/%s: %w", c.ID, agentID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit rollover: %w", err)
	}
	return nil
}

const cohortCols = `id, start_date, end_date, status, market_count, created_at`

func scanCohort(row pgx.Row) (domain.Cohort, error) {
	var c domain.Cohort
	var status string
	err := row.Scan(&c.ID, &c.StartDate, &c.EndDate, &status, &c.MarketCount, &c.CreatedAt)
	if err != nil {
		return domain.Cohort{}, err
	}
	c.Status = domain.CohortStatus(status)
	return c, nil
}

// GetByID retrieves a cohort by its primary key.
func (s *CohortStore) GetByID(ctx context.Context, id string) (domain.Cohort, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+cohortCols+` FROM cohorts WHERE id = $1`, id)
	c, err := scanCohort(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Cohort{}, domain.ErrNotFound
		}
		return domain.Cohort{}, fmt.Errorf("postgres: get cohort %s: %w", id, err)
	}
	return c, nil
}

// GetActive returns the single active cohort, or domain.ErrNoActiveCohort.
func (s *CohortStore) GetActive(ctx context.Context) (domain.Cohort, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+cohortCols+` FROM cohorts WHERE status = 'active'`)
	c, err := scanCohort(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Cohort{}, domain.ErrNoActiveCohort
		}
		return domain.Cohort{}, fmt.Errorf("postgres: get active cohort: %w", err)
	}
	return c, nil
}

// List returns cohorts newest first.
func (s *CohortStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Cohort, error) {
	query := `SELECT ` + cohortCols + ` FROM cohorts ORDER BY start_date DESC`
	args := []any{}
	argIdx := 1

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list cohorts: %w", err)
	}
	defer rows.Close()

	var cohorts []domain.Cohort
	for rows.Next() {
		c, err := scanCohort(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan cohort: %w", err)
		}
		cohorts = append(cohorts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list cohorts rows: %w", err)
	}
	return cohorts, nil
}

// IncrementMarketCount adds delta to a cohort's market counter.
func (s *CohortStore) IncrementMarketCount(ctx context.Context, id string, delta int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE cohorts SET market_count = market_count + $2 WHERE id = $1`,
		id, delta)
	if err != nil {
		return fmt.Errorf("postgres: increment market count %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CompleteSettled transitions every settling cohort with zero unsettled bets
// to completed and returns how many cohorts moved.
func (s *CohortStore) CompleteSettled(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE cohorts c SET status = 'completed'
		WHERE c.status = 'settling'
		  AND NOT EXISTS (
			SELECT 1 FROM bets b WHERE b.cohort_id = c.id AND NOT b.settled
		  )`)
	if err != nil {
		return 0, fmt.Errorf("postgres: complete settled cohorts: %w", err)
	}
	return tag.RowsAffected(), nil
}
