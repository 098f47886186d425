package repository

import (
	"time"

	"go-batch-ledger/internal/model"

	"gorm.io/gorm"
)

// BatchFilter narrows List results. Zero values mean "any".
type BatchFilter struct {
	MaterialID string
	Status     model.BatchStatus
	Limit      int
	Offset     int
}

type BatchRepository interface {
	WithTx(tx *gorm.DB) BatchRepository
	Create(batch *model.Batch) error
	FindByID(id uint64) (*model.Batch, error)
	FindByNumber(batchNumber string) (*model.Batch, error)
	FindByIDs(ids []uint64) ([]model.Batch, error)
	LockByIDs(ids []uint64) ([]model.Batch, error)
	TakenNumbers(numbers []string) ([]string, error)
	List(filter BatchFilter) ([]model.Batch, int64, error)
	Save(batch *model.Batch) error
	CountByStatus() (map[model.BatchStatus]int64, error)
	FindAll() ([]model.Batch, error)
}

type batchRepo struct {
	db *gorm.DB
}

func NewBatchRepo(db *gorm.DB) BatchRepository {
	return &batchRepo{db}
}

func (r *batchRepo) WithTx(tx *gorm.DB) BatchRepository {
	return &batchRepo{tx}
}

func (r *batchRepo) Create(batch *model.Batch) error {
	if batch.Version == 0 {
		batch.Version = 1
	}
	return TranslateError(r.db.Create(batch).Error)
}

func (r *batchRepo) FindByID(id uint64) (*model.Batch, error) {
	var batch model.Batch
	if err := r.db.First(&batch, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *batchRepo) FindByNumber(batchNumber string) (*model.Batch, error) {
	var batch model.Batch
	if err := r.db.First(&batch, "batch_number = ?", batchNumber).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *batchRepo) FindByIDs(ids []uint64) ([]model.Batch, error) {
	var batches []model.Batch
	if len(ids) == 0 {
		return batches, nil
	}
	err := r.db.Where("id IN ?", ids).Order("id ASC").Find(&batches).Error
	return batches, err
}

// LockByIDs reads and row-locks the batches in ascending id order, so two
// transactions touching overlapping sets cannot deadlock each other
func (r *batchRepo) LockByIDs(ids []uint64) ([]model.Batch, error) {
	var batches []model.Batch
	if len(ids) == 0 {
		return batches, nil
	}
	err := forUpdate(r.db).Where("id IN ?", ids).Order("id ASC").Find(&batches).Error
	return batches, TranslateError(err)
}

// TakenNumbers returns the subset of numbers already used by some batch
func (r *batchRepo) TakenNumbers(numbers []string) ([]string, error) {
	var taken []string
	if len(numbers) == 0 {
		return taken, nil
	}
	err := r.db.Model(&model.Batch{}).Where("batch_number IN ?", numbers).Pluck("batch_number", &taken).Error
	return taken, err
}

func (r *batchRepo) List(filter BatchFilter) ([]model.Batch, int64, error) {
	var (
		batches []model.Batch
		total   int64
	)

	q := r.db.Model(&model.Batch{})
	if filter.MaterialID != "" {
		q = q.Where("material_id = ?", filter.MaterialID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	err := q.Order("id DESC").Limit(limit).Offset(filter.Offset).Find(&batches).Error
	return batches, total, err
}

// Save writes the mutable columns of batch, guarded by its version. On
// success batch.Version is advanced to the stored value.
func (r *batchRepo) Save(batch *model.Batch) error {
	now := time.Now()
	res := r.db.Model(&model.Batch{}).
		Where("id = ? AND version = ?", batch.ID, batch.Version).
		Updates(map[string]interface{}{
			"quantity":         batch.Quantity,
			"status":           batch.Status,
			"approved_by":      batch.ApprovedBy,
			"approved_at":      batch.ApprovedAt,
			"rejected_by":      batch.RejectedBy,
			"rejected_at":      batch.RejectedAt,
			"rejection_reason": batch.RejectionReason,
			"updated_by":       batch.UpdatedBy,
			"updated_at":       now,
			"version":          batch.Version + 1,
		})
	if res.Error != nil {
		return TranslateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStaleVersion
	}
	batch.Version++
	batch.UpdatedAt = now
	return nil
}

func (r *batchRepo) CountByStatus() (map[model.BatchStatus]int64, error) {
	var rows []struct {
		Status model.BatchStatus
		Count  int64
	}
	err := r.db.Model(&model.Batch{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[model.BatchStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *batchRepo) FindAll() ([]model.Batch, error) {
	var batches []model.Batch
	err := r.db.Order("id ASC").Find(&batches).Error
	return batches, err
}
