package persistence

import (
	"context"
	"database/sql"
	"errors"

	"github.com/petrijr/opsflow/pkg/api"
)

// PostgresWorkflowStore is a WorkflowStore backed by PostgreSQL.
//
// It expects an *sql.DB that uses a PostgreSQL driver (for example,
// "github.com/jackc/pgx/v5/stdlib").
//
// The caller is responsible for:
//   - importing the driver for its side effects, e.g.:
//     _ "github.com/jackc/pgx/v5/stdlib"
//   - providing a DSN via sql.Open.
type PostgresWorkflowStore struct {
	db *sql.DB
}

var _ WorkflowStore = (*PostgresWorkflowStore)(nil)

// NewPostgresWorkflowStore initializes the required schema in the given
// database and returns a new PostgresWorkflowStore.
func NewPostgresWorkflowStore(db *sql.DB) (*PostgresWorkflowStore, error) {
	s := &PostgresWorkflowStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresWorkflowStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS workflows (
			id TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	return err
}

func (s *PostgresWorkflowStore) SaveWorkflow(ctx context.Context, wf *api.Workflow) error {
	data, err := prepareWorkflow(wf)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflows (id, payload, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	`, wf.ID, string(data))
	return err
}

func (s *PostgresWorkflowStore) GetWorkflow(ctx context.Context, id string) (*api.Workflow, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM workflows WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWorkflowNotFound
	}
	if err != nil {
		return nil, err
	}
	return DecodeWorkflow([]byte(payload))
}
