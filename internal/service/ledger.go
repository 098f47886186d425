package service

import (
	"context"
	"errors"
	"fmt"

	"go-batch-ledger/internal/model"
	"go-batch-ledger/internal/repository"
	"go-batch-ledger/pkg/lock"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("go-batch-ledger/internal/service")

// EventPublisher receives ledger events after their transaction commits
type EventPublisher interface {
	Publish(event model.LedgerEvent)
}

type nopPublisher struct{}

func (nopPublisher) Publish(model.LedgerEvent) {}

func publisherOrNop(p EventPublisher) EventPublisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

// Store bundles what every mutating service needs: the database, the batch
// locker and the repositories bound to the root connection
type Store struct {
	DB          *gorm.DB
	Locker      lock.Locker
	Batches     repository.BatchRepository
	Allocations repository.AllocationRepository
	Genealogy   repository.GenealogyRepository
	Adjustments repository.AdjustmentRepository
}

func NewStore(db *gorm.DB, locker lock.Locker) *Store {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	return &Store{
		DB:          db,
		Locker:      locker,
		Batches:     repository.NewBatchRepo(db),
		Allocations: repository.NewAllocationRepo(db),
		Genealogy:   repository.NewGenealogyRepo(db),
		Adjustments: repository.NewAdjustmentRepo(db),
	}
}

// txRepos are the repositories bound to one open transaction
type txRepos struct {
	tx          *gorm.DB
	batches     repository.BatchRepository
	allocations repository.AllocationRepository
	genealogy   repository.GenealogyRepository
	adjustments repository.AdjustmentRepository
}

// inLock holds the batch locks for ids and runs fn in a single transaction.
// Locks are taken before a connection is, never while holding one.
func (s *Store) inLock(ctx context.Context, ids []uint64, fn func(r *txRepos) error) error {
	release, err := s.Locker.Lock(ctx, ids...)
	if err != nil {
		return mapStoreError(err)
	}
	defer release()

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&txRepos{
			tx:          tx,
			batches:     s.Batches.WithTx(tx),
			allocations: s.Allocations.WithTx(tx),
			genealogy:   s.Genealogy.WithTx(tx),
			adjustments: s.Adjustments.WithTx(tx),
		})
	})
	return mapStoreError(err)
}

// lockBatches row-locks ids and returns them keyed by id. Any missing id is
// reported as not found.
func (r *txRepos) lockBatches(ids []uint64) (map[uint64]*model.Batch, error) {
	rows, err := r.batches.LockByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("lock batches: %w", err)
	}
	byID := make(map[uint64]*model.Batch, len(rows))
	for i := range rows {
		byID[rows[i].ID] = &rows[i]
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, notFound("batch", id)
		}
	}
	return byID, nil
}

func (r *txRepos) lockBatch(id uint64) (*model.Batch, error) {
	byID, err := r.lockBatches([]uint64{id})
	if err != nil {
		return nil, err
	}
	return byID[id], nil
}

func findBatch(repo repository.BatchRepository, id uint64) (*model.Batch, error) {
	batch, err := repo.FindByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("batch", id)
	}
	if err != nil {
		return nil, fmt.Errorf("find batch %d: %w", id, err)
	}
	return batch, nil
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func batchIDAttr(id uint64) attribute.KeyValue {
	return attribute.Int64("batch.id", int64(id))
}
