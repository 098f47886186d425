package service

import (
	"context"
	"fmt"
	"strings"

	"go-batch-ledger/internal/model"
	"go-batch-ledger/pkg/idgen"
	"go-batch-ledger/pkg/validator"

	"github.com/shopspring/decimal"
)

const mergedNumberPrefix = "MRG"

type MergeResult struct {
	SourceBatches []model.Batch     `json:"sourceBatches"`
	MergedBatch   *model.Batch      `json:"mergedBatch"`
	TotalQuantity decimal.Decimal   `json:"totalQuantity"`
	Status        model.BatchStatus `json:"status"`
}

type MergeService interface {
	Merge(ctx context.Context, req *MergeRequest, actor string) (*MergeResult, error)
}

type mergeService struct {
	store     *Store
	numbers   idgen.BatchNumberGenerator
	publisher EventPublisher
}

func NewMergeService(store *Store, numbers idgen.BatchNumberGenerator, publisher EventPublisher) MergeService {
	return &mergeService{store: store, numbers: numbers, publisher: publisherOrNop(publisher)}
}

// Merge folds two or more AVAILABLE batches of one material into a new batch.
// Every check runs before the first write.
func (s *mergeService) Merge(ctx context.Context, req *MergeRequest, actor string) (result *MergeResult, err error) {
	ctx, span := startSpan(ctx, "MergeService.Merge")
	defer func() { endSpan(span, err) }()

	if err = validateRequest(req); err != nil {
		return nil, err
	}

	var ids []uint64
	seen := map[uint64]bool{}
	for _, id := range req.SourceBatchIDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) < 2 {
		err = validationf("at least two distinct source batches are required")
		return nil, err
	}

	err = s.store.inLock(ctx, ids, func(r *txRepos) error {
		byID, err := r.lockBatches(ids)
		if err != nil {
			return err
		}

		first := byID[ids[0]]
		for _, id := range ids[1:] {
			if byID[id].MaterialID != first.MaterialID {
				return validationf("material mismatch")
			}
		}
		for _, id := range ids[1:] {
			if byID[id].Unit != first.Unit {
				return validationf("unit mismatch")
			}
		}
		for _, id := range ids {
			if b := byID[id]; b.Status != model.BatchAvailable {
				return validationf("batch %s is %s, only AVAILABLE batches can be merged", b.BatchNumber, b.Status)
			}
		}
		totals, err := r.allocations.ActiveTotals(ids)
		if err != nil {
			return fmt.Errorf("sum allocations: %w", err)
		}
		total := decimal.Zero
		for _, id := range ids {
			b := byID[id]
			if allocated := totals[id]; allocated.IsPositive() {
				return validationf("batch %s has active allocations of %s, release them before merging",
					b.BatchNumber, allocated.String())
			}
			total = total.Add(b.Quantity)
		}
		if !validator.FitsQuantity(total) {
			return validationf("merged quantity %s exceeds the storable maximum", total.String())
		}

		number := strings.TrimSpace(req.TargetBatchNumber)
		if number == "" {
			number = s.numbers.Next(mergedNumberPrefix)
		}
		if err := ensureNumbersFree(r.batches, number); err != nil {
			return err
		}

		merged := &model.Batch{
			BatchNumber:  number,
			MaterialID:   first.MaterialID,
			MaterialName: first.MaterialName,
			Quantity:     total,
			Unit:         first.Unit,
			Status:       model.BatchAvailable,
			CreatedVia:   model.CreatedByMerge,
			Version:      1,
		}
		merged.Stamp(actor)
		if err := r.batches.Create(merged); err != nil {
			return fmt.Errorf("create merged batch: %w", err)
		}

		result = &MergeResult{MergedBatch: merged, TotalQuantity: total, Status: merged.Status}
		for _, id := range ids {
			source := byID[id]
			edge := &model.GenealogyEdge{
				SourceBatchID: source.ID,
				TargetBatchID: merged.ID,
				RelationKind:  model.RelationMerge,
				Quantity:      source.Quantity,
				Unit:          source.Unit,
				Reason:        req.Reason,
				CreatedBy:     actor,
			}
			if err := addEdge(r.genealogy, edge); err != nil {
				return err
			}

			if err := transition(source, model.BatchMerged); err != nil {
				return err
			}
			source.Quantity = decimal.Zero
			source.UpdatedBy = actor
			if err := r.batches.Save(source); err != nil {
				return err
			}
			result.SourceBatches = append(result.SourceBatches, *source)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(model.NewLedgerEvent(model.EventBatchMerged, actor,
		fmt.Sprintf("%s merged %d batches into %s", actor, len(result.SourceBatches), result.MergedBatch.BatchNumber),
		result))
	return result, nil
}
