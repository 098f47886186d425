package repository

import (
	"errors"

	"go-batch-ledger/internal/model"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrDuplicate is returned when a unique constraint rejects a write
	ErrDuplicate = errors.New("duplicate key")
	// ErrSerialization is returned for deadlocks and serialization failures
	ErrSerialization = errors.New("serialization failure")
	// ErrStaleVersion is returned when a version-checked update matched no row
	ErrStaleVersion = errors.New("row was modified concurrently")
)

// AutoMigrate creates or updates the ledger tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Batch{},
		&model.GenealogyEdge{},
		&model.Allocation{},
		&model.QuantityAdjustment{},
	)
}

// forUpdate adds SELECT ... FOR UPDATE on dialects with row locks. SQLite
// locks the whole database for writers and rejects the clause.
func forUpdate(tx *gorm.DB) *gorm.DB {
	switch tx.Dialector.Name() {
	case "postgres", "mysql":
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// TranslateError maps driver specific failures onto repository sentinels
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.Join(ErrDuplicate, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return errors.Join(ErrDuplicate, err)
		case "40001", "40P01", "55P03": // serialization_failure, deadlock_detected, lock_not_available
			return errors.Join(ErrSerialization, err)
		}
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1062: // ER_DUP_ENTRY
			return errors.Join(ErrDuplicate, err)
		case 1205, 1213: // lock wait timeout, deadlock
			return errors.Join(ErrSerialization, err)
		}
	}

	return err
}
