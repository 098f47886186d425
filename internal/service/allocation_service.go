package service

import (
	"context"
	"errors"
	"fmt"

	"go-batch-ledger/internal/model"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

type AllocationService interface {
	Allocate(ctx context.Context, req *AllocateRequest, actor string) (*model.Allocation, error)
	Release(ctx context.Context, allocationID uint64, actor string) error
	ListForBatch(ctx context.Context, batchID uint64) ([]model.Allocation, error)
	ListForOrderLine(ctx context.Context, orderLineID string) ([]model.Allocation, error)
}

type allocationService struct {
	store     *Store
	publisher EventPublisher
}

func NewAllocationService(store *Store, publisher EventPublisher) AllocationService {
	return &allocationService{store: store, publisher: publisherOrNop(publisher)}
}

// Allocate reserves quantity of a batch for an order line. The availability
// read and the insert share one transaction under the batch lock.
func (s *allocationService) Allocate(ctx context.Context, req *AllocateRequest, actor string) (allocation *model.Allocation, err error) {
	ctx, span := startSpan(ctx, "AllocationService.Allocate", batchIDAttr(req.BatchID))
	defer func() { endSpan(span, err) }()

	if err = validateRequest(req); err != nil {
		return nil, err
	}

	err = s.store.inLock(ctx, []uint64{req.BatchID}, func(r *txRepos) error {
		batch, err := r.lockBatch(req.BatchID)
		if err != nil {
			return err
		}
		if !batch.Allocatable() {
			return validationf("batch %s is %s and cannot be allocated", batch.BatchNumber, batch.Status)
		}

		a, err := availabilityOf(r.allocations, batch)
		if err != nil {
			return err
		}
		if req.Quantity.GreaterThan(a.AvailableQuantity) {
			return &InsufficientQuantityError{
				BatchID:     batch.ID,
				BatchNumber: batch.BatchNumber,
				Requested:   req.Quantity,
				Available:   a.AvailableQuantity,
			}
		}

		rec := &model.Allocation{
			BatchID:     batch.ID,
			BatchNumber: batch.BatchNumber,
			OrderLineID: req.OrderLineID,
			OrderID:     req.OrderID,
			ProductID:   req.ProductID,
			Quantity:    req.Quantity,
			Unit:        batch.Unit,
			Status:      model.AllocationAllocated,
		}
		rec.Stamp(actor)
		if err := r.allocations.Create(rec); err != nil {
			return fmt.Errorf("create allocation: %w", err)
		}
		allocation = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(model.NewLedgerEvent(model.EventAllocationCreated, actor,
		fmt.Sprintf("%s allocated %s %s of batch %s to order line %s", actor,
			allocation.Quantity.String(), allocation.Unit, allocation.BatchNumber, allocation.OrderLineID),
		allocation))
	return allocation, nil
}

// Release frees an allocation. It never touches the batch row: availability
// is always derived from the allocation ledger.
func (s *allocationService) Release(ctx context.Context, allocationID uint64, actor string) (err error) {
	ctx, span := startSpan(ctx, "AllocationService.Release", attribute.Int64("allocation.id", int64(allocationID)))
	defer func() { endSpan(span, err) }()

	existing, err := s.store.Allocations.WithTx(s.store.DB.WithContext(ctx)).FindByID(allocationID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound("allocation", allocationID)
	}
	if err != nil {
		return fmt.Errorf("find allocation %d: %w", allocationID, err)
	}

	var released *model.Allocation
	err = s.store.inLock(ctx, []uint64{existing.BatchID}, func(r *txRepos) error {
		rec, err := r.allocations.LockByID(allocationID)
		if err != nil {
			return fmt.Errorf("lock allocation %d: %w", allocationID, err)
		}
		if rec.Status == model.AllocationReleased {
			return validationf("allocation already released")
		}
		if err := r.allocations.MarkReleased(rec, actor); err != nil {
			return err
		}
		released = rec
		return nil
	})
	if err != nil {
		return err
	}

	s.publisher.Publish(model.NewLedgerEvent(model.EventAllocationReleased, actor,
		fmt.Sprintf("%s released allocation %d on batch %s", actor, released.ID, released.BatchNumber),
		released))
	return nil
}

func (s *allocationService) ListForBatch(ctx context.Context, batchID uint64) ([]model.Allocation, error) {
	db := s.store.DB.WithContext(ctx)
	if _, err := findBatch(s.store.Batches.WithTx(db), batchID); err != nil {
		return nil, err
	}
	return s.store.Allocations.WithTx(db).ListByBatch(batchID)
}

func (s *allocationService) ListForOrderLine(ctx context.Context, orderLineID string) ([]model.Allocation, error) {
	return s.store.Allocations.WithTx(s.store.DB.WithContext(ctx)).ListByOrderLine(orderLineID)
}
