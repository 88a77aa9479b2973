package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// UnitOfWork groups repository writes into one atomic commit.
// *sqlx.Tx satisfies it.
type UnitOfWork interface {
	DBExecutor
	Commit() error
	Rollback() error
}

// TxManager opens read-committed units of work on a PostgreSQL pool
type TxManager struct {
	db *sqlx.DB
}

// NewTxManager creates a new TxManager
func NewTxManager(db *sqlx.DB) *TxManager {
	return &TxManager{db: db}
}

// Begin starts a unit of work
func (m *TxManager) Begin(ctx context.Context) (UnitOfWork, error) {
	tx, err := m.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// Reader returns the executor used for reads outside a unit of work
func (m *TxManager) Reader() DBExecutor {
	return m.db
}
