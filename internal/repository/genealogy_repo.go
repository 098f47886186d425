package repository

import (
	"go-batch-ledger/internal/model"

	"gorm.io/gorm"
)

type GenealogyRepository interface {
	WithTx(tx *gorm.DB) GenealogyRepository
	Create(edge *model.GenealogyEdge) error
	// ParentEdges returns edges whose target is one of ids
	ParentEdges(ids []uint64) ([]model.GenealogyEdge, error)
	// ChildEdges returns edges whose source is one of ids
	ChildEdges(ids []uint64) ([]model.GenealogyEdge, error)
	FindAll() ([]model.GenealogyEdge, error)
	Count() (int64, error)
}

type genealogyRepo struct {
	db *gorm.DB
}

func NewGenealogyRepo(db *gorm.DB) GenealogyRepository {
	return &genealogyRepo{db}
}

func (r *genealogyRepo) WithTx(tx *gorm.DB) GenealogyRepository {
	return &genealogyRepo{tx}
}

func (r *genealogyRepo) Create(edge *model.GenealogyEdge) error {
	return TranslateError(r.db.Create(edge).Error)
}

func (r *genealogyRepo) ParentEdges(ids []uint64) ([]model.GenealogyEdge, error) {
	var edges []model.GenealogyEdge
	if len(ids) == 0 {
		return edges, nil
	}
	err := r.db.Where("target_batch_id IN ?", ids).Order("id ASC").Find(&edges).Error
	return edges, err
}

func (r *genealogyRepo) ChildEdges(ids []uint64) ([]model.GenealogyEdge, error) {
	var edges []model.GenealogyEdge
	if len(ids) == 0 {
		return edges, nil
	}
	err := r.db.Where("source_batch_id IN ?", ids).Order("id ASC").Find(&edges).Error
	return edges, err
}

func (r *genealogyRepo) FindAll() ([]model.GenealogyEdge, error) {
	var edges []model.GenealogyEdge
	err := r.db.Order("id ASC").Find(&edges).Error
	return edges, err
}

func (r *genealogyRepo) Count() (int64, error) {
	var count int64
	err := r.db.Model(&model.GenealogyEdge{}).Count(&count).Error
	return count, err
}
