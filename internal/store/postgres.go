package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lexlab/tracer/internal/domain"
)

// PostgresStore persists MasteryState blobs as jsonb rows keyed by
// (learner_id, tenant_id). The version column is the write precondition.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the backing table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS mastery_states (
			learner_id uuid NOT NULL,
			tenant_id  uuid NOT NULL,
			state      jsonb NOT NULL,
			version    bigint NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now(),
			PRIMARY KEY (learner_id, tenant_id)
		)`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, learnerID, tenantID uuid.UUID) (*domain.MasteryState, error) {
	var blob []byte
	var version int64
	err := s.db.QueryRow(ctx,
		`SELECT state, version FROM mastery_states WHERE learner_id = $1 AND tenant_id = $2`,
		learnerID, tenantID,
	).Scan(&blob, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load state: %w", err)
	}

	state := &domain.MasteryState{}
	if err := json.Unmarshal(blob, state); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	// The column is authoritative for optimistic concurrency.
	state.Version = version
	return state, nil
}

func (s *PostgresStore) Save(ctx context.Context, state *domain.MasteryState, expectedVersion int64) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tag, err := s.db.Exec(ctx,
		`INSERT INTO mastery_states (learner_id, tenant_id, state, version, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (learner_id, tenant_id) DO UPDATE
		 SET state = EXCLUDED.state, version = EXCLUDED.version, updated_at = now()
		 WHERE mastery_states.version = $5`,
		state.LearnerID, state.TenantID, blob, state.Version, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (s *PostgresStore) ListTenants(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT tenant_id FROM mastery_states`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		tenants = append(tenants, id)
	}
	return tenants, rows.Err()
}

func (s *PostgresStore) ForEachByTenant(ctx context.Context, tenantID uuid.UUID, fn func(*domain.MasteryState) error) error {
	rows, err := s.db.Query(ctx,
		`SELECT state, version FROM mastery_states WHERE tenant_id = $1`,
		tenantID,
	)
	if err != nil {
		return fmt.Errorf("scan tenant states: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var blob []byte
		var version int64
		if err := rows.Scan(&blob, &version); err != nil {
			return err
		}
		state := &domain.MasteryState{}
		if err := json.Unmarshal(blob, state); err != nil {
			return fmt.Errorf("decode state: %w", err)
		}
		state.Version = version
		if err := fn(state); err != nil {
			return err
		}
	}
	return rows.Err()
}
