package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/forecastarena/internal/domain"
)

// AgentStore implements domain.AgentStore using PostgreSQL.
type AgentStore struct {
	pool *pgxpool.Pool
}

// NewAgentStore creates a new AgentStore backed by the given connection pool.
func NewAgentStore(pool *pgxpool.Pool) *AgentStore {
	return &AgentStore{pool: pool}
}

// Seed inserts agents, skipping ones that already exist.
func (s *AgentStore) Seed(ctx context.Context, agents []domain.Agent) error {
	const query = `
		INSERT INTO agents (id, display_name, provider, gateway_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`

	batch := &pgx.Batch{}
	for _, a := range agents {
		batch.Queue(query, a.ID, a.DisplayName, a.Provider, a.GatewayID)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range agents {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: seed agent %s: %w", agents[i].ID, err)
		}
	}
	return nil
}

const agentCols = `id, display_name, provider, gateway_id, created_at`

func scanAgent(row pgx.Row) (domain.Agent, error) {
	var a domain.Agent
	err := row.Scan(&a.ID, &a.DisplayName, &a.Provider, &a.GatewayID, &a.CreatedAt)
	return a, err
}

// GetByID retrieves an agent by its primary key.
func (s *AgentStore) GetByID(ctx context.Context, id string) (domain.Agent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+agentCols+` FROM agents WHERE id = $1`, id)
	a, err := scanAgent(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Agent{}, domain.ErrNotFound
		}
		return domain.Agent{}, fmt.Errorf("postgres: get agent %s: %w", id, err)
	}
	return a, nil
}

// List returns all agents, ensemble included, ordered by identifier.
func (s *AgentStore) List(ctx context.Context) ([]domain.Agent, error) {
	return s.list(ctx, `SELECT `+agentCols+` FROM agents ORDER BY id`)
}

// ListForecasters returns every agent except the ensemble.
func (s *AgentStore) ListForecasters(ctx context.Context) ([]domain.Agent, error) {
	return s.list(ctx,
		`SELECT `+agentCols+` FROM agents WHERE id <> $1 ORDER BY id`,
		domain.EnsembleAgentID)
}

func (s *AgentStore) list(ctx context.Context, query string, args ...any) ([]domain.Agent, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list agents: %w", err)
	}
	defer rows.Close()

	var agents []domain.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan agent: %w", err)
		}
		agents = append(agents, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list agents rows: %w", err)
	}
	return agents, nil
}
