package service

import (
	"context"
	"fmt"
	"time"

	"go-batch-ledger/internal/model"
	"go-batch-ledger/internal/repository"

	"github.com/shopspring/decimal"
)

// LineageNode is one batch reached across a genealogy edge. Quantity, Unit
// and RelationKind describe the edge, the rest describes the batch.
type LineageNode struct {
	BatchID      uint64             `json:"batchId"`
	BatchNumber  string             `json:"batchNumber"`
	MaterialID   string             `json:"materialId"`
	MaterialName string             `json:"materialName"`
	Status       model.BatchStatus  `json:"status"`
	Quantity     decimal.Decimal    `json:"quantity"`
	Unit         string             `json:"unit"`
	RelationKind model.RelationKind `json:"relationKind"`
	Depth        int                `json:"depth"`
	// Repeated marks a batch already expanded elsewhere in the tree. Its
	// lineage is listed only under that first occurrence.
	Repeated bool           `json:"repeated,omitempty"`
	Nodes    []*LineageNode `json:"nodes,omitempty"`
}

// ProductionInfo is present for batches created by a production transform
type ProductionInfo struct {
	ProductionRef string         `json:"productionRef,omitempty"`
	ProducedBy    string         `json:"producedBy"`
	ProducedAt    time.Time      `json:"producedAt"`
	Inputs        []*LineageNode `json:"inputs"`
}

type GenealogyView struct {
	Batch          *model.Batch    `json:"batch"`
	ParentBatches  []*LineageNode  `json:"parentBatches"`
	ChildBatches   []*LineageNode  `json:"childBatches"`
	ProductionInfo *ProductionInfo `json:"productionInfo,omitempty"`
}

type ProduceResult struct {
	Batch  *model.Batch          `json:"batch"`
	Inputs []model.Batch         `json:"inputs"`
	Edges  []model.GenealogyEdge `json:"edges"`
}

type GenealogyService interface {
	AncestorsOf(ctx context.Context, batchID uint64, depth int) ([]*LineageNode, error)
	DescendantsOf(ctx context.Context, batchID uint64, depth int) ([]*LineageNode, error)
	Genealogy(ctx context.Context, batchID uint64) (*GenealogyView, error)
	Link(ctx context.Context, req *LinkRequest, actor string) (*model.GenealogyEdge, error)
	RecordProduction(ctx context.Context, req *ProduceRequest, actor string) (*ProduceResult, error)
}

type genealogyService struct {
	store     *Store
	publisher EventPublisher
}

func NewGenealogyService(store *Store, publisher EventPublisher) GenealogyService {
	return &genealogyService{store: store, publisher: publisherOrNop(publisher)}
}

type direction int

const (
	upstream direction = iota
	downstream
)

func (s *genealogyService) AncestorsOf(ctx context.Context, batchID uint64, depth int) ([]*LineageNode, error) {
	return s.tree(ctx, batchID, depth, upstream)
}

func (s *genealogyService) DescendantsOf(ctx context.Context, batchID uint64, depth int) ([]*LineageNode, error) {
	return s.tree(ctx, batchID, depth, downstream)
}

func (s *genealogyService) tree(ctx context.Context, batchID uint64, depth int, dir direction) (nodes []*LineageNode, err error) {
	ctx, span := startSpan(ctx, "GenealogyService.tree", batchIDAttr(batchID))
	defer func() { endSpan(span, err) }()

	if depth < 0 {
		return nil, validationf("depth must not be negative")
	}
	db := s.store.DB.WithContext(ctx)
	batches := s.store.Batches.WithTx(db)
	if _, err = findBatch(batches, batchID); err != nil {
		return nil, err
	}
	return walk(batches, s.store.Genealogy.WithTx(db), batchID, depth, dir)
}

// walk expands the lineage of rootID breadth first, one edge query per level.
// depth 0 means unbounded. Every batch is expanded once, at its shallowest
// occurrence; later occurrences come back as Repeated leaves, so the tree
// never holds more nodes than there are edges.
func walk(batches repository.BatchRepository, edges repository.GenealogyRepository, rootID uint64, depth int, dir direction) ([]*LineageNode, error) {
	root := &LineageNode{BatchID: rootID}
	loaded := map[uint64][]model.GenealogyEdge{}
	known := map[uint64]*model.Batch{}
	expanded := map[uint64]bool{rootID: true}

	frontier := []*LineageNode{root}
	for level := 1; len(frontier) > 0 && (depth == 0 || level <= depth); level++ {
		var pending []uint64
		queued := map[uint64]bool{}
		for _, n := range frontier {
			if _, ok := loaded[n.BatchID]; !ok && !queued[n.BatchID] {
				queued[n.BatchID] = true
				pending = append(pending, n.BatchID)
			}
		}

		if len(pending) > 0 {
			var (
				found []model.GenealogyEdge
				err   error
			)
			if dir == upstream {
				found, err = edges.ParentEdges(pending)
			} else {
				found, err = edges.ChildEdges(pending)
			}
			if err != nil {
				return nil, fmt.Errorf("load genealogy edges: %w", err)
			}

			for _, id := range pending {
				loaded[id] = nil
			}
			var unknown []uint64
			for _, e := range found {
				from, to := e.SourceBatchID, e.TargetBatchID
				if dir == upstream {
					from, to = to, from
				}
				loaded[from] = append(loaded[from], e)
				if _, ok := known[to]; !ok {
					known[to] = nil
					unknown = append(unknown, to)
				}
			}
			rows, err := batches.FindByIDs(unknown)
			if err != nil {
				return nil, fmt.Errorf("load genealogy batches: %w", err)
			}
			for i := range rows {
				known[rows[i].ID] = &rows[i]
			}
		}

		var next []*LineageNode
		for _, n := range frontier {
			for _, e := range loaded[n.BatchID] {
				otherID := e.TargetBatchID
				if dir == upstream {
					otherID = e.SourceBatchID
				}
				// only reachable through a cycle in stored data
				if otherID == rootID {
					continue
				}
				child := &LineageNode{
					BatchID:      otherID,
					Quantity:     e.Quantity,
					Unit:         e.Unit,
					RelationKind: e.RelationKind,
					Depth:        level,
					Repeated:     expanded[otherID],
				}
				if b := known[otherID]; b != nil {
					child.BatchNumber = b.BatchNumber
					child.MaterialID = b.MaterialID
					child.MaterialName = b.MaterialName
					child.Status = b.Status
				}
				n.Nodes = append(n.Nodes, child)
				if !child.Repeated {
					expanded[otherID] = true
					next = append(next, child)
				}
			}
		}
		frontier = next
	}

	if root.Nodes == nil {
		return []*LineageNode{}, nil
	}
	return root.Nodes, nil
}

func (s *genealogyService) Genealogy(ctx context.Context, batchID uint64) (view *GenealogyView, err error) {
	ctx, span := startSpan(ctx, "GenealogyService.Genealogy", batchIDAttr(batchID))
	defer func() { endSpan(span, err) }()

	db := s.store.DB.WithContext(ctx)
	batches := s.store.Batches.WithTx(db)
	edges := s.store.Genealogy.WithTx(db)

	batch, err := findBatch(batches, batchID)
	if err != nil {
		return nil, err
	}
	parents, err := walk(batches, edges, batchID, 1, upstream)
	if err != nil {
		return nil, err
	}
	children, err := walk(batches, edges, batchID, 1, downstream)
	if err != nil {
		return nil, err
	}

	view = &GenealogyView{Batch: batch, ParentBatches: parents, ChildBatches: children}
	if batch.CreatedVia == model.CreatedByProduction {
		info := &ProductionInfo{
			ProductionRef: batch.ProductionRef,
			ProducedBy:    batch.CreatedBy,
			ProducedAt:    batch.CreatedAt,
			Inputs:        []*LineageNode{},
		}
		for _, p := range parents {
			if p.RelationKind == model.RelationTransform {
				info.Inputs = append(info.Inputs, p)
			}
		}
		view.ProductionInfo = info
	}
	return view, nil
}

// reachable reports whether to can be reached from from by following edges
// source to target
func reachable(edges repository.GenealogyRepository, from, to uint64) (bool, error) {
	if from == to {
		return true, nil
	}
	visited := map[uint64]bool{from: true}
	frontier := []uint64{from}
	for len(frontier) > 0 {
		found, err := edges.ChildEdges(frontier)
		if err != nil {
			return false, fmt.Errorf("load genealogy edges: %w", err)
		}
		var next []uint64
		for _, e := range found {
			if e.TargetBatchID == to {
				return true, nil
			}
			if !visited[e.TargetBatchID] {
				visited[e.TargetBatchID] = true
				next = append(next, e.TargetBatchID)
			}
		}
		frontier = next
	}
	return false, nil
}

// addEdge is the only writer of genealogy edges. It refuses any edge that
// would close a cycle.
func addEdge(edges repository.GenealogyRepository, edge *model.GenealogyEdge) error {
	cyclic, err := reachable(edges, edge.TargetBatchID, edge.SourceBatchID)
	if err != nil {
		return err
	}
	if cyclic {
		return fmt.Errorf("%w: batch %d already descends from batch %d",
			ErrCycleDetected, edge.SourceBatchID, edge.TargetBatchID)
	}
	if err := edges.Create(edge); err != nil {
		return fmt.Errorf("create genealogy edge: %w", err)
	}
	return nil
}

// Link records an extra TRANSFORM edge between two existing batches, for
// corrections where the original production was booked without it
func (s *genealogyService) Link(ctx context.Context, req *LinkRequest, actor string) (edge *model.GenealogyEdge, err error) {
	ctx, span := startSpan(ctx, "GenealogyService.Link", batchIDAttr(req.SourceBatchID))
	defer func() { endSpan(span, err) }()

	if err = validateRequest(req); err != nil {
		return nil, err
	}
	if req.SourceBatchID == req.TargetBatchID {
		err = fmt.Errorf("%w: a batch cannot be linked to itself", ErrCycleDetected)
		return nil, err
	}

	var source, target *model.Batch
	err = s.store.inLock(ctx, []uint64{req.SourceBatchID, req.TargetBatchID}, func(r *txRepos) error {
		byID, err := r.lockBatches([]uint64{req.SourceBatchID, req.TargetBatchID})
		if err != nil {
			return err
		}
		source, target = byID[req.SourceBatchID], byID[req.TargetBatchID]

		e := &model.GenealogyEdge{
			SourceBatchID: source.ID,
			TargetBatchID: target.ID,
			RelationKind:  model.RelationTransform,
			Quantity:      req.Quantity,
			Unit:          source.Unit,
			Reason:        req.Reason,
			CreatedBy:     actor,
		}
		if err := addEdge(r.genealogy, e); err != nil {
			return err
		}
		edge = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(model.NewLedgerEvent(model.EventGenealogyLinked, actor,
		fmt.Sprintf("%s linked batch %s to %s", actor, source.BatchNumber, target.BatchNumber), edge))
	return edge, nil
}

// RecordProduction books a production confirmation: the output batch is
// created, every input gives up its consumed quantity and is linked to the
// output by a TRANSFORM edge. Inputs drained to zero become CONSUMED.
func (s *genealogyService) RecordProduction(ctx context.Context, req *ProduceRequest, actor string) (result *ProduceResult, err error) {
	ctx, span := startSpan(ctx, "GenealogyService.RecordProduction")
	defer func() { endSpan(span, err) }()

	if err = validateRequest(req); err != nil {
		return nil, err
	}
	if req.Output.CreatedVia == "" {
		req.Output.CreatedVia = model.CreatedByProduction
	}
	if req.Output.Status == "" {
		req.Output.Status = model.BatchProduced
	}
	output, err := newBatch(&req.Output, actor)
	if err != nil {
		return nil, err
	}

	consumed := map[uint64]decimal.Decimal{}
	var ids []uint64
	for _, in := range req.Inputs {
		if _, ok := consumed[in.BatchID]; !ok {
			ids = append(ids, in.BatchID)
		}
		consumed[in.BatchID] = consumed[in.BatchID].Add(in.Quantity)
	}

	result = &ProduceResult{}
	err = s.store.inLock(ctx, ids, func(r *txRepos) error {
		byID, err := r.lockBatches(ids)
		if err != nil {
			return err
		}
		if err := ensureNumbersFree(r.batches, output.BatchNumber); err != nil {
			return err
		}

		for _, id := range ids {
			in := byID[id]
			switch in.Status {
			case model.BatchAvailable, model.BatchReserved, model.BatchProduced:
			default:
				return validationf("input batch %s is %s and cannot be consumed", in.BatchNumber, in.Status)
			}
			a, err := availabilityOf(r.allocations, in)
			if err != nil {
				return err
			}
			if consumed[id].GreaterThan(a.AvailableQuantity) {
				return &InsufficientQuantityError{
					BatchID:     in.ID,
					BatchNumber: in.BatchNumber,
					Requested:   consumed[id],
					Available:   a.AvailableQuantity,
				}
			}
		}

		if err := r.batches.Create(output); err != nil {
			return fmt.Errorf("create output batch: %w", err)
		}

		for _, id := range ids {
			in := byID[id]
			edge := &model.GenealogyEdge{
				SourceBatchID: in.ID,
				TargetBatchID: output.ID,
				RelationKind:  model.RelationTransform,
				Quantity:      consumed[id],
				Unit:          in.Unit,
				CreatedBy:     actor,
			}
			if err := addEdge(r.genealogy, edge); err != nil {
				return err
			}
			result.Edges = append(result.Edges, *edge)

			in.Quantity = in.Quantity.Sub(consumed[id])
			if in.Quantity.IsZero() {
				if err := transition(in, model.BatchConsumed); err != nil {
					return err
				}
			}
			in.UpdatedBy = actor
			if err := r.batches.Save(in); err != nil {
				return err
			}
			result.Inputs = append(result.Inputs, *in)
		}
		result.Batch = output
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(model.NewLedgerEvent(model.EventBatchProduced, actor,
		fmt.Sprintf("%s produced batch %s from %d inputs", actor, output.BatchNumber, len(ids)), result))
	return result, nil
}
