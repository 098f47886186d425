package service

import (
	"errors"
	"fmt"

	"go-batch-ledger/internal/model"
	"go-batch-ledger/internal/repository"
	"go-batch-ledger/pkg/lock"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("concurrent modification, retry the request")
	ErrCycleDetected     = errors.New("genealogy cycle detected")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError reports malformed or out-of-range input
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationf(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// TransitionError is returned for a status change the state machine forbids
type TransitionError struct {
	BatchNumber string
	From        model.BatchStatus
	To          model.BatchStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("batch %s cannot change status from %s to %s", e.BatchNumber, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// InsufficientQuantityError carries both amounts so clients can show them
type InsufficientQuantityError struct {
	BatchID     uint64
	BatchNumber string
	Requested   decimal.Decimal
	Available   decimal.Decimal
}

func (e *InsufficientQuantityError) Error() string {
	return fmt.Sprintf("insufficient quantity on batch %s: requested %s, available %s",
		e.BatchNumber, e.Requested.String(), e.Available.String())
}

func notFound(entity string, id interface{}) error {
	return fmt.Errorf("%s %v: %w", entity, id, ErrNotFound)
}

// mapStoreError turns repository and lock failures into ledger errors. Domain
// errors pass through untouched.
func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrStaleVersion),
		errors.Is(err, repository.ErrSerialization),
		errors.Is(err, lock.ErrNotObtained):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, repository.ErrDuplicate):
		return validationf("batch number already exists")
	}
	return err
}
