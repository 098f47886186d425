package service

import (
	"context"
	"fmt"
	"strings"

	"go-batch-ledger/internal/model"

	"github.com/shopspring/decimal"
)

type SplitResult struct {
	SourceBatchID     uint64            `json:"sourceBatchId"`
	SourceBatchNumber string            `json:"sourceBatchNumber"`
	OriginalQuantity  decimal.Decimal   `json:"originalQuantity"`
	RemainingQuantity decimal.Decimal   `json:"remainingQuantity"`
	NewBatches        []model.Batch     `json:"newBatches"`
	Status            model.BatchStatus `json:"status"`
}

type SplitService interface {
	Split(ctx context.Context, req *SplitRequest, actor string) (*SplitResult, error)
}

type splitService struct {
	store     *Store
	publisher EventPublisher
}

func NewSplitService(store *Store, publisher EventPublisher) SplitService {
	return &splitService{store: store, publisher: publisherOrNop(publisher)}
}

// suffixFor names the i-th portion when the caller gave no suffix:
// A..Z, then AA, AB and so on
func suffixFor(i int) string {
	var b []byte
	for i++; i > 0; i = (i - 1) / 26 {
		b = append([]byte{byte('A' + (i-1)%26)}, b...)
	}
	return string(b)
}

// Split carves portions out of an AVAILABLE batch. Taking the whole quantity
// retires the source as SPLIT with quantity zero.
func (s *splitService) Split(ctx context.Context, req *SplitRequest, actor string) (result *SplitResult, err error) {
	ctx, span := startSpan(ctx, "SplitService.Split", batchIDAttr(req.SourceBatchID))
	defer func() { endSpan(span, err) }()

	if err = validateRequest(req); err != nil {
		return nil, err
	}

	total := decimal.Zero
	suffixes := make([]string, len(req.Portions))
	seen := map[string]bool{}
	for i, p := range req.Portions {
		total = total.Add(p.Quantity)
		suffix := strings.TrimSpace(p.BatchNumberSuffix)
		if suffix == "" {
			suffix = suffixFor(i)
		}
		if seen[suffix] {
			err = validationf("batch number suffix %s is used twice", suffix)
			return nil, err
		}
		seen[suffix] = true
		suffixes[i] = suffix
	}

	err = s.store.inLock(ctx, []uint64{req.SourceBatchID}, func(r *txRepos) error {
		source, err := r.lockBatch(req.SourceBatchID)
		if err != nil {
			return err
		}
		if source.Status != model.BatchAvailable {
			return validationf("batch %s is %s, only AVAILABLE batches can be split", source.BatchNumber, source.Status)
		}
		if total.GreaterThan(source.Quantity) {
			return validationf("portions total %s exceeds batch quantity %s", total.String(), source.Quantity.String())
		}
		a, err := availabilityOf(r.allocations, source)
		if err != nil {
			return err
		}
		if a.AllocatedQuantity.IsPositive() {
			return validationf("batch %s has active allocations of %s, release them before splitting",
				source.BatchNumber, a.AllocatedQuantity.String())
		}

		numbers := make([]string, len(suffixes))
		for i, suffix := range suffixes {
			numbers[i] = fmt.Sprintf("%s-%s", source.BatchNumber, suffix)
		}
		if err := ensureNumbersFree(r.batches, numbers...); err != nil {
			return err
		}

		result = &SplitResult{
			SourceBatchID:     source.ID,
			SourceBatchNumber: source.BatchNumber,
			OriginalQuantity:  source.Quantity,
		}
		for i, p := range req.Portions {
			child := &model.Batch{
				BatchNumber:  numbers[i],
				MaterialID:   source.MaterialID,
				MaterialName: source.MaterialName,
				Quantity:     p.Quantity,
				Unit:         source.Unit,
				Status:       model.BatchAvailable,
				CreatedVia:   model.CreatedBySplit,
				Attributes:   source.Attributes,
				Version:      1,
			}
			child.Stamp(actor)
			if err := r.batches.Create(child); err != nil {
				return fmt.Errorf("create split batch %s: %w", child.BatchNumber, err)
			}
			edge := &model.GenealogyEdge{
				SourceBatchID: source.ID,
				TargetBatchID: child.ID,
				RelationKind:  model.RelationSplit,
				Quantity:      p.Quantity,
				Unit:          source.Unit,
				Reason:        req.Reason,
				CreatedBy:     actor,
			}
			if err := addEdge(r.genealogy, edge); err != nil {
				return err
			}
			result.NewBatches = append(result.NewBatches, *child)
		}

		source.Quantity = source.Quantity.Sub(total)
		if source.Quantity.IsZero() {
			if err := transition(source, model.BatchSplit); err != nil {
				return err
			}
		}
		source.UpdatedBy = actor
		if err := r.batches.Save(source); err != nil {
			return err
		}
		result.RemainingQuantity = source.Quantity
		result.Status = source.Status
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(model.NewLedgerEvent(model.EventBatchSplit, actor,
		fmt.Sprintf("%s split batch %s into %d batches", actor, result.SourceBatchNumber, len(result.NewBatches)),
		result))
	return result, nil
}
