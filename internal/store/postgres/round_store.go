package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/forecastarena/internal/domain"
)

// RoundStore implements domain.RoundStore using PostgreSQL.
type RoundStore struct {
	pool *pgxpool.Pool
}

// NewRoundStore creates a new RoundStore backed by the given connection pool.
func NewRoundStore(pool *pgxpool.Pool) *RoundStore {
	return &RoundStore{pool: pool}
}

// Create inserts a new round.
func (s *RoundStore) Create(ctx context.Context, r domain.Round) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO rounds (id, cohort_id, market_ids, status)
		 VALUES ($1, $2, $3, $4)`,
		r.ID, r.CohortID, r.MarketIDs, string(r.Status))
	if err != nil {
		return fmt.Errorf("postgres: create round %s: %w", r.ID, err)
	}
	return nil
}

// SetStatus updates a round's lifecycle state.
func (s *RoundStore) SetStatus(ctx context.Context, id string, status domain.RoundStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE rounds SET status = $2 WHERE id = $1`,
		id, string(status))
	if err != nil {
		return fmt.Errorf("postgres: set round status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const roundCols = `id, cohort_id, market_ids, status, created_at`

func scanRound(row pgx.Row) (domain.Round, error) {
	var r domain.Round
	var status string
	err := row.Scan(&r.ID, &r.CohortID, &r.MarketIDs, &status, &r.CreatedAt)
	if err != nil {
		return domain.Round{}, err
	}
	r.Status = domain.RoundStatus(status)
	return r, nil
}

// GetByID retrieves a round by its primary key.
func (s *RoundStore) GetByID(ctx context.Context, id string) (domain.Round, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+roundCols+` FROM rounds WHERE id = $1`, id)
	r, err := scanRound(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Round{}, domain.ErrNotFound
		}
		return domain.Round{}, fmt.Errorf("postgres: get round %s: %w", id, err)
	}
	return r, nil
}

// ListRecent returns the latest rounds, newest first.
func (s *RoundStore) ListRecent(ctx context.Context, limit int) ([]domain.Round, error) {
	query := `SELECT ` + roundCols + ` FROM rounds ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list rounds: %w", err)
	}
	defer rows.Close()

	var rounds []domain.Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan round: %w", err)
		}
		rounds = append(rounds, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list rounds rows: %w", err)
	}
	return rounds, nil
}
