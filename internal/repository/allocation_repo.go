package repository

import (
	"time"

	"go-batch-ledger/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type AllocationRepository interface {
	WithTx(tx *gorm.DB) AllocationRepository
	Create(allocation *model.Allocation) error
	FindByID(id uint64) (*model.Allocation, error)
	LockByID(id uint64) (*model.Allocation, error)
	ListByBatch(batchID uint64) ([]model.Allocation, error)
	ListByOrderLine(orderLineID string) ([]model.Allocation, error)
	ActiveTotals(batchIDs []uint64) (map[uint64]decimal.Decimal, error)
	MarkReleased(allocation *model.Allocation, releasedBy string) error
	CountActive() (int64, error)
}

type allocationRepo struct {
	db *gorm.DB
}

func NewAllocationRepo(db *gorm.DB) AllocationRepository {
	return &allocationRepo{db}
}

func (r *allocationRepo) WithTx(tx *gorm.DB) AllocationRepository {
	return &allocationRepo{tx}
}

func (r *allocationRepo) Create(allocation *model.Allocation) error {
	return TranslateError(r.db.Create(allocation).Error)
}

func (r *allocationRepo) FindByID(id uint64) (*model.Allocation, error) {
	var allocation model.Allocation
	if err := r.db.First(&allocation, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &allocation, nil
}

func (r *allocationRepo) LockByID(id uint64) (*model.Allocation, error) {
	var allocation model.Allocation
	if err := forUpdate(r.db).First(&allocation, "id = ?", id).Error; err != nil {
		return nil, TranslateError(err)
	}
	return &allocation, nil
}

func (r *allocationRepo) ListByBatch(batchID uint64) ([]model.Allocation, error) {
	var allocations []model.Allocation
	err := r.db.Where("batch_id = ?", batchID).Order("created_at ASC, id ASC").Find(&allocations).Error
	return allocations, err
}

func (r *allocationRepo) ListByOrderLine(orderLineID string) ([]model.Allocation, error) {
	var allocations []model.Allocation
	err := r.db.Where("order_line_id = ?", orderLineID).Order("created_at ASC, id ASC").Find(&allocations).Error
	return allocations, err
}

// ActiveTotals sums ALLOCATED quantities per batch. The sum is done with
// decimal arithmetic rather than SQL SUM so every dialect agrees exactly.
func (r *allocationRepo) ActiveTotals(batchIDs []uint64) (map[uint64]decimal.Decimal, error) {
	totals := make(map[uint64]decimal.Decimal, len(batchIDs))
	if len(batchIDs) == 0 {
		return totals, nil
	}

	var rows []struct {
		BatchID  uint64
		Quantity decimal.Decimal
	}
	err := r.db.Model(&model.Allocation{}).
		Select("batch_id, quantity").
		Where("batch_id IN ? AND status = ?", batchIDs, model.AllocationAllocated).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		totals[row.BatchID] = totals[row.BatchID].Add(row.Quantity)
	}
	return totals, nil
}

// MarkReleased flips ALLOCATED to RELEASED. The status guard in the WHERE
// clause makes a second release match nothing.
func (r *allocationRepo) MarkReleased(allocation *model.Allocation, releasedBy string) error {
	now := time.Now()
	res := r.db.Model(&model.Allocation{}).
		Where("id = ? AND status = ?", allocation.ID, model.AllocationAllocated).
		Updates(map[string]interface{}{
			"status":      model.AllocationReleased,
			"released_by": releasedBy,
			"released_at": now,
			"updated_by":  releasedBy,
			"updated_at":  now,
		})
	if res.Error != nil {
		return TranslateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStaleVersion
	}
	allocation.Status = model.AllocationReleased
	allocation.ReleasedBy = releasedBy
	allocation.ReleasedAt = &now
	allocation.UpdatedBy = releasedBy
	allocation.UpdatedAt = now
	return nil
}

func (r *allocationRepo) CountActive() (int64, error) {
	var count int64
	err := r.db.Model(&model.Allocation{}).Where("status = ?", model.AllocationAllocated).Count(&count).Error
	return count, err
}
