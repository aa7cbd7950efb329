package store

import (
	"context"
	"database/sql"
	"fmt"
)

// IsolationLevel represents the transaction isolation level
type IsolationLevel int

const (
	// ReadCommitted prevents dirty reads (PostgreSQL default)
	ReadCommitted IsolationLevel = iota
	// RepeatableRead prevents non-repeatable reads
	RepeatableRead
	// Serializable provides full isolation
	Serializable
)

// String returns the string representation of the isolation level
func (l IsolationLevel) String() string {
	switch l {
	case RepeatableRead:
		return "REPEATABLE READ"
	case Serializable:
		return "SERIALIZABLE"
	default:
		return "READ COMMITTED"
	}
}

// ToSQLOptions converts the level to sql.TxOptions.
func (l IsolationLevel) ToSQLOptions(readOnly bool) *sql.TxOptions {
	var level sql.IsolationLevel
	switch l {
	case RepeatableRead:
		level = sql.LevelRepeatableRead
	case Serializable:
		level = sql.LevelSerializable
	default:
		level = sql.LevelReadCommitted
	}
	return &sql.TxOptions{Isolation: level, ReadOnly: readOnly}
}

// TxManager runs functions inside database transactions.
type TxManager struct {
	db *sql.DB
}

// NewTxManager creates a transaction manager.
func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

// WithTransaction runs fn inside a read-write transaction, committing on
// success and rolling back on error or panic.
func (m *TxManager) WithTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return m.run(ctx, ReadCommitted.ToSQLOptions(false), fn)
}

// WithReadTransaction runs fn inside a read-only REPEATABLE READ transaction,
// so multiple reads (a page and its count) observe one snapshot.
func (m *TxManager) WithReadTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return m.run(ctx, RepeatableRead.ToSQLOptions(true), fn)
}

func (m *TxManager) run(ctx context.Context, opts *sql.TxOptions, fn func(tx *sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-throw panic after rollback
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w, rollback failed: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
