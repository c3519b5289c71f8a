package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/forecastarena/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

// UpsertBatch inserts or refreshes market snapshots in a single batch. The
// update never touches resolution or resolved_at, so a market that resolved
// between fetches keeps its terminal state.
func (s *MarketStore) UpsertBatch(ctx context.Context, markets []domain.Market) error {
	if len(markets) == 0 {
		return nil
	}

	const query = `
		INSERT INTO markets (
			id, question, description, slug, condition_id,
			yes_price, no_price, volume_24h, end_date, fetched_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10
		)
		ON CONFLICT (id) DO UPDATE SET
			question    = EXCLUDED.question,
			description = EXCLUDED.description,
			slug        = EXCLUDED.slug,
			yes_price   = EXCLUDED.yes_price,
			no_price    = EXCLUDED.no_price,
			volume_24h  = EXCLUDED.volume_24h,
			end_date    = EXCLUDED.end_date,
			fetched_at  = EXCLUDED.fetched_at`

	batch := &pgx.Batch{}
	for _, m := range markets {
		fetchedAt := m.FetchedAt
		if fetchedAt.IsZero() {
			fetchedAt = time.Now().UTC()
		}
		batch.Queue(query,
			m.ID, m.Question, m.Description, m.Slug, m.ConditionID,
			m.YesPrice, m.NoPrice, m.Volume24h, m.EndDate, fetchedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range markets {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert market batch item %d: %w", i, err)
		}
	}
	return nil
}

const marketCols = `id, question, description, slug, condition_id,
	yes_price, no_price, volume_24h, end_date, resolution, resolved_at, fetched_at`

func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var resolution string
	err := row.Scan(
		&m.ID, &m.Question, &m.Description, &m.Slug, &m.ConditionID,
		&m.YesPrice, &m.NoPrice, &m.Volume24h, &m.EndDate,
		&resolution, &m.ResolvedAt, &m.FetchedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Resolution = domain.MarketResolution(resolution)
	return m, nil
}

// GetByID retrieves a market by its primary key.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// ListOpen returns unresolved markets ordered by 24h volume descending.
func (s *MarketStore) ListOpen(ctx context.Context, limit int) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets
		WHERE resolution = 'open' ORDER BY volume_24h DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}
	return s.list(ctx, query, args...)
}

// List returns markets most recently fetched first.
func (s *MarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets ORDER BY fetched_at DESC`
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
	return s.list(ctx, query, args...)
}

func (s *MarketStore) list(ctx context.Context, query string, args ...any) ([]domain.Market, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets rows: %w", err)
	}
	return markets, nil
}

// SetResolution records a terminal resolution. A market that already left
// the open state keeps its original resolution; setting it again is a no-op.
func (s *MarketStore) SetResolution(ctx context.Context, id string, res domain.MarketResolution, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE markets SET resolution = $2, resolved_at = $3
		 WHERE id = $1 AND resolution = 'open'`,
		id, string(res), at)
	if err != nil {
		return fmt.Errorf("postgres: set resolution %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM markets WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return fmt.Errorf("postgres: check market %s: %w", id, err)
		}
		if !exists {
			return domain.ErrNotFound
		}
	}
	return nil
}

// Count returns the total number of markets in the database.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}
