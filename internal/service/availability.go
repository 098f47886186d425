package service

import (
	"context"
	"fmt"

	"go-batch-ledger/internal/model"
	"go-batch-ledger/internal/repository"

	"github.com/shopspring/decimal"
)

// Availability is the derived allocation state of one batch
type Availability struct {
	BatchID           uint64          `json:"batchId"`
	BatchNumber       string          `json:"batchNumber"`
	TotalQuantity     decimal.Decimal `json:"totalQuantity"`
	AllocatedQuantity decimal.Decimal `json:"allocatedQuantity"`
	AvailableQuantity decimal.Decimal `json:"availableQuantity"`
	FullyAllocated    bool            `json:"fullyAllocated"`
}

type AvailabilityCalculator interface {
	Available(ctx context.Context, batchID uint64) (decimal.Decimal, error)
	Availability(ctx context.Context, batchID uint64) (*Availability, error)
}

type availabilityCalculator struct {
	store *Store
}

func NewAvailabilityCalculator(store *Store) AvailabilityCalculator {
	return &availabilityCalculator{store: store}
}

func (c *availabilityCalculator) Available(ctx context.Context, batchID uint64) (decimal.Decimal, error) {
	a, err := c.Availability(ctx, batchID)
	if err != nil {
		return decimal.Zero, err
	}
	return a.AvailableQuantity, nil
}

func (c *availabilityCalculator) Availability(ctx context.Context, batchID uint64) (*Availability, error) {
	db := c.store.DB.WithContext(ctx)
	batch, err := findBatch(c.store.Batches.WithTx(db), batchID)
	if err != nil {
		return nil, err
	}
	return availabilityOf(c.store.Allocations.WithTx(db), batch)
}

// availabilityOf reads the active allocations of batch through repo, which
// may be bound to an open transaction
func availabilityOf(repo repository.AllocationRepository, batch *model.Batch) (*Availability, error) {
	totals, err := repo.ActiveTotals([]uint64{batch.ID})
	if err != nil {
		return nil, fmt.Errorf("sum allocations of batch %d: %w", batch.ID, err)
	}
	allocated := totals[batch.ID]
	available := batch.Quantity.Sub(allocated)

	return &Availability{
		BatchID:           batch.ID,
		BatchNumber:       batch.BatchNumber,
		TotalQuantity:     batch.Quantity,
		AllocatedQuantity: allocated,
		AvailableQuantity: available,
		FullyAllocated:    !available.IsPositive(),
	}, nil
}
