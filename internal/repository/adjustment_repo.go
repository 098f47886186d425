package repository

import (
	"go-batch-ledger/internal/model"

	"gorm.io/gorm"
)

// AdjustmentRepository is append-only: there is no update or delete
type AdjustmentRepository interface {
	WithTx(tx *gorm.DB) AdjustmentRepository
	Create(adjustment *model.QuantityAdjustment) error
	ListByBatch(batchID uint64) ([]model.QuantityAdjustment, error)
}

type adjustmentRepo struct {
	db *gorm.DB
}

func NewAdjustmentRepo(db *gorm.DB) AdjustmentRepository {
	return &adjustmentRepo{db}
}

func (r *adjustmentRepo) WithTx(tx *gorm.DB) AdjustmentRepository {
	return &adjustmentRepo{tx}
}

func (r *adjustmentRepo) Create(adjustment *model.QuantityAdjustment) error {
	return TranslateError(r.db.Create(adjustment).Error)
}

func (r *adjustmentRepo) ListByBatch(batchID uint64) ([]model.QuantityAdjustment, error) {
	var adjustments []model.QuantityAdjustment
	err := r.db.Where("batch_id = ?", batchID).Order("id ASC").Find(&adjustments).Error
	return adjustments, err
}
