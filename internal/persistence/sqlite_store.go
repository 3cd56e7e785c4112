package persistence

import (
	"context"
	"database/sql"
	"errors"

	"github.com/petrijr/opsflow/pkg/api"
)

// SQLiteWorkflowStore is a WorkflowStore backed by SQLite.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing
// the driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteWorkflowStore struct {
	db *sql.DB
}

var _ WorkflowStore = (*SQLiteWorkflowStore)(nil)

// NewSQLiteWorkflowStore initializes the required schema in the given
// database and returns a new SQLiteWorkflowStore.
func NewSQLiteWorkflowStore(db *sql.DB) (*SQLiteWorkflowStore, error) {
	s := &SQLiteWorkflowStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteWorkflowStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS workflows (
			id TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
	)
	return err
}

func (s *SQLiteWorkflowStore) SaveWorkflow(ctx context.Context, wf *api.Workflow) error {
	data, err := prepareWorkflow(wf)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflows (id, payload, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		wf.ID,
		string(data),
	)
	return err
}

func (s *SQLiteWorkflowStore) GetWorkflow(ctx context.Context, id string) (*api.Workflow, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM workflows WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWorkflowNotFound
	}
	if err != nil {
		return nil, err
	}
	return DecodeWorkflow([]byte(payload))
}
