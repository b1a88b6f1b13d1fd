package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// TxStores bundles the repositories bound to one open transaction.
type TxStores struct {
	Courses     CourseStore
	Enrollments EnrollmentStore
}

// TxManager runs a function inside a single database transaction. The
// enrollment service uses it so invariant-checking reads and the final
// write commit or roll back as one unit.
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, stores TxStores) error) error
}

// PostgresTxManager implements TxManager on a sqlx database handle.
type PostgresTxManager struct {
	db *sqlx.DB
}

// NewPostgresTxManager constructs a transaction manager.
func NewPostgresTxManager(db *sqlx.DB) *PostgresTxManager {
	return &PostgresTxManager{db: db}
}

// WithTx opens a READ COMMITTED transaction, hands tx-bound stores to
// fn, and commits only when fn returns nil. Row locks taken through
// the stores (FOR UPDATE on courses) hold until commit or rollback.
func (m *PostgresTxManager) WithTx(ctx context.Context, fn func(ctx context.Context, stores TxStores) error) error {
	tx, err := m.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	stores := TxStores{
		Courses:     newCourseRepositoryTx(tx),
		Enrollments: newEnrollmentRepositoryTx(tx),
	}

	if err := fn(ctx, stores); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("rollback after %w: %v", err, rollbackErr)
		}
		return err
	}

	return tx.Commit()
}
