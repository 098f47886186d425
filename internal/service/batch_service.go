package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-batch-ledger/internal/model"
	"go-batch-ledger/internal/repository"
	"go-batch-ledger/pkg/validator"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type BatchService interface {
	Create(ctx context.Context, req *CreateBatchRequest, actor string) (*model.Batch, error)
	GetByID(ctx context.Context, id uint64) (*model.Batch, error)
	GetByNumber(ctx context.Context, batchNumber string) (*model.Batch, error)
	List(ctx context.Context, filter repository.BatchFilter) ([]model.Batch, int64, error)
	UpdateStatus(ctx context.Context, id uint64, status model.BatchStatus, actor string) (*model.Batch, error)
	AdjustQuantity(ctx context.Context, id uint64, req *AdjustQuantityRequest, actor string) (*model.QuantityAdjustment, error)
	Adjustments(ctx context.Context, id uint64) ([]model.QuantityAdjustment, error)
	Approve(ctx context.Context, id uint64, actor string) (*model.Batch, error)
	Reject(ctx context.Context, id uint64, reason, actor string) (*model.Batch, error)
}

type batchService struct {
	store     *Store
	publisher EventPublisher
}

func NewBatchService(store *Store, publisher EventPublisher) BatchService {
	return &batchService{store: store, publisher: publisherOrNop(publisher)}
}

// trimmer is implemented by requests whose text fields are stored trimmed.
// Trimming runs first so length rules see the stored value.
type trimmer interface {
	trim()
}

func validateRequest(req interface{}) error {
	if t, ok := req.(trimmer); ok {
		t.trim()
	}
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return &ValidationError{Message: validator.Message(errs)}
	}
	return nil
}

// newBatch validates req as the starting point of a batch. Split and merge
// build their batches directly and never come through here.
func newBatch(req *CreateBatchRequest, actor string) (*model.Batch, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = model.BatchAvailable
	}
	if !status.Valid() {
		return nil, validationf("unknown status %q", status)
	}
	if status.Terminal() {
		return nil, validationf("a batch cannot be created in terminal status %s", status)
	}

	channel := req.CreatedVia
	if channel == "" {
		channel = model.CreatedByManual
	}
	if !channel.Valid() {
		return nil, validationf("unknown creation channel %q", channel)
	}
	if channel == model.CreatedBySplit || channel == model.CreatedByMerge {
		return nil, validationf("creation channel %s is reserved for split and merge", channel)
	}

	batch := &model.Batch{
		BatchNumber:         req.BatchNumber,
		MaterialID:          req.MaterialID,
		MaterialName:        req.MaterialName,
		Quantity:            req.Quantity,
		Unit:                req.Unit,
		Status:              status,
		CreatedVia:          channel,
		ProductionRef:       req.ProductionRef,
		SupplierID:          req.SupplierID,
		SupplierName:        req.SupplierName,
		SupplierBatchNumber: req.SupplierBatchNumber,
		ReceivedAt:          req.ReceivedAt,
		Version:             1,
	}
	if len(req.Attributes) > 0 {
		batch.Attributes = datatypes.JSONMap(req.Attributes)
	}
	batch.Stamp(actor)
	return batch, nil
}

// ensureNumbersFree fails when any of numbers is already used by a batch
func ensureNumbersFree(repo repository.BatchRepository, numbers ...string) error {
	taken, err := repo.TakenNumbers(numbers)
	if err != nil {
		return fmt.Errorf("check batch numbers: %w", err)
	}
	if len(taken) > 0 {
		return validationf("batch number %s already exists", taken[0])
	}
	return nil
}

func (s *batchService) Create(ctx context.Context, req *CreateBatchRequest, actor string) (batch *model.Batch, err error) {
	ctx, span := startSpan(ctx, "BatchService.Create")
	defer func() { endSpan(span, err) }()

	batch, err = newBatch(req, actor)
	if err != nil {
		return nil, err
	}

	repo := s.store.Batches.WithTx(s.store.DB.WithContext(ctx))
	if err = ensureNumbersFree(repo, batch.BatchNumber); err != nil {
		return nil, err
	}
	if err = repo.Create(batch); err != nil {
		err = mapStoreError(err)
		return nil, err
	}

	s.publisher.Publish(model.NewLedgerEvent(model.EventBatchCreated, actor,
		fmt.Sprintf("%s created batch %s", actor, batch.BatchNumber), batch))
	return batch, nil
}

func (s *batchService) GetByID(ctx context.Context, id uint64) (*model.Batch, error) {
	return findBatch(s.store.Batches.WithTx(s.store.DB.WithContext(ctx)), id)
}

func (s *batchService) GetByNumber(ctx context.Context, batchNumber string) (*model.Batch, error) {
	batch, err := s.store.Batches.WithTx(s.store.DB.WithContext(ctx)).FindByNumber(batchNumber)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("batch", batchNumber)
	}
	if err != nil {
		return nil, fmt.Errorf("find batch %s: %w", batchNumber, err)
	}
	return batch, nil
}

func (s *batchService) List(ctx context.Context, filter repository.BatchFilter) ([]model.Batch, int64, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, validationf("unknown status %q", filter.Status)
	}
	return s.store.Batches.WithTx(s.store.DB.WithContext(ctx)).List(filter)
}

// transition applies the state machine to batch in memory
func transition(batch *model.Batch, to model.BatchStatus) error {
	if !model.CanTransition(batch.Status, to) {
		return &TransitionError{BatchNumber: batch.BatchNumber, From: batch.Status, To: to}
	}
	batch.Status = to
	return nil
}

func (s *batchService) UpdateStatus(ctx context.Context, id uint64, status model.BatchStatus, actor string) (batch *model.Batch, err error) {
	ctx, span := startSpan(ctx, "BatchService.UpdateStatus", batchIDAttr(id))
	defer func() { endSpan(span, err) }()

	if !status.Valid() {
		return nil, validationf("unknown status %q", status)
	}
	if status == model.BatchSplit || status == model.BatchMerged {
		return nil, validationf("status %s is engine-only: it is set by POST /ledger/split or /ledger/merge, not by a status update", status)
	}

	var from model.BatchStatus
	err = s.store.inLock(ctx, []uint64{id}, func(r *txRepos) error {
		b, err := r.lockBatch(id)
		if err != nil {
			return err
		}
		from = b.Status
		if err := transition(b, status); err != nil {
			return err
		}
		if status == model.BatchScrapped {
			a, err := availabilityOf(r.allocations, b)
			if err != nil {
				return err
			}
			if a.AllocatedQuantity.IsPositive() {
				return validationf("batch %s has active allocations of %s and cannot be scrapped",
					b.BatchNumber, a.AllocatedQuantity.String())
			}
		}
		b.UpdatedBy = actor
		if err := r.batches.Save(b); err != nil {
			return err
		}
		batch = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(model.NewLedgerEvent(model.EventBatchStatusChanged, actor,
		fmt.Sprintf("%s changed batch %s from %s to %s", actor, batch.BatchNumber, from, batch.Status),
		map[string]interface{}{"batch": batch, "oldStatus": from}))
	return batch, nil
}

func (s *batchService) AdjustQuantity(ctx context.Context, id uint64, req *AdjustQuantityRequest, actor string) (adjustment *model.QuantityAdjustment, err error) {
	ctx, span := startSpan(ctx, "BatchService.AdjustQuantity", batchIDAttr(id))
	defer func() { endSpan(span, err) }()

	if err = validateRequest(req); err != nil {
		return nil, err
	}
	if !req.AdjustmentType.Valid() {
		err = validationf("unknown adjustment type %q", req.AdjustmentType)
		return nil, err
	}

	err = s.store.inLock(ctx, []uint64{id}, func(r *txRepos) error {
		b, err := r.lockBatch(id)
		if err != nil {
			return err
		}
		if b.Status.Terminal() {
			return validationf("batch %s is %s and its quantity can no longer change", b.BatchNumber, b.Status)
		}

		a, err := availabilityOf(r.allocations, b)
		if err != nil {
			return err
		}
		if req.NewQuantity.LessThan(a.AllocatedQuantity) {
			return validationf("new quantity %s is below the allocated quantity %s",
				req.NewQuantity.String(), a.AllocatedQuantity.String())
		}

		adj := &model.QuantityAdjustment{
			BatchID:        b.ID,
			BatchNumber:    b.BatchNumber,
			OldQuantity:    b.Quantity,
			NewQuantity:    req.NewQuantity,
			Delta:          req.NewQuantity.Sub(b.Quantity),
			AdjustmentType: req.AdjustmentType,
			Reason:         req.Reason,
			CreatedBy:      actor,
		}
		if err := r.adjustments.Create(adj); err != nil {
			return fmt.Errorf("record adjustment: %w", err)
		}

		b.Quantity = req.NewQuantity
		b.UpdatedBy = actor
		if err := r.batches.Save(b); err != nil {
			return err
		}
		adjustment = adj
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(model.NewLedgerEvent(model.EventBatchQuantityAdjusted, actor,
		fmt.Sprintf("%s adjusted batch %s from %s to %s", actor, adjustment.BatchNumber,
			adjustment.OldQuantity.String(), adjustment.NewQuantity.String()),
		adjustment))
	return adjustment, nil
}

func (s *batchService) Adjustments(ctx context.Context, id uint64) ([]model.QuantityAdjustment, error) {
	db := s.store.DB.WithContext(ctx)
	if _, err := findBatch(s.store.Batches.WithTx(db), id); err != nil {
		return nil, err
	}
	return s.store.Adjustments.WithTx(db).ListByBatch(id)
}

func (s *batchService) Approve(ctx context.Context, id uint64, actor string) (*model.Batch, error) {
	return s.decide(ctx, id, actor, func(b *model.Batch, now time.Time) error {
		if err := transition(b, model.BatchAvailable); err != nil {
			return err
		}
		b.ApprovedBy = actor
		b.ApprovedAt = &now
		return nil
	})
}

func (s *batchService) Reject(ctx context.Context, id uint64, reason, actor string) (*model.Batch, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationf("a rejection reason is required")
	}
	return s.decide(ctx, id, actor, func(b *model.Batch, now time.Time) error {
		if err := transition(b, model.BatchScrapped); err != nil {
			return err
		}
		b.RejectedBy = actor
		b.RejectedAt = &now
		b.RejectionReason = reason
		return nil
	})
}

// decide records a quality decision on a QUALITY_PENDING batch
func (s *batchService) decide(ctx context.Context, id uint64, actor string, apply func(*model.Batch, time.Time) error) (batch *model.Batch, err error) {
	ctx, span := startSpan(ctx, "BatchService.decide", batchIDAttr(id))
	defer func() { endSpan(span, err) }()

	err = s.store.inLock(ctx, []uint64{id}, func(r *txRepos) error {
		b, err := r.lockBatch(id)
		if err != nil {
			return err
		}
		if b.Status != model.BatchQualityPending {
			return validationf("batch %s is %s, not awaiting a quality decision", b.BatchNumber, b.Status)
		}
		if err := apply(b, time.Now()); err != nil {
			return err
		}
		b.UpdatedBy = actor
		if err := r.batches.Save(b); err != nil {
			return err
		}
		batch = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(model.NewLedgerEvent(model.EventBatchStatusChanged, actor,
		fmt.Sprintf("%s set batch %s to %s", actor, batch.BatchNumber, batch.Status),
		map[string]interface{}{"batch": batch, "oldStatus": model.BatchQualityPending}))
	return batch, nil
}
