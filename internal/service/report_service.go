package service

import (
	"context"
	"fmt"

	"go-batch-ledger/internal/model"
)

type LedgerSummary struct {
	TotalBatches      int64                       `json:"totalBatches"`
	BatchesByStatus   map[model.BatchStatus]int64 `json:"batchesByStatus"`
	ActiveAllocations int64                       `json:"activeAllocations"`
	GenealogyEdges    int64                       `json:"genealogyEdges"`
}

const (
	IssueNegativeQuantity = "NEGATIVE_QUANTITY"
	IssueOverAllocated    = "OVER_ALLOCATED"
	IssueTerminalQuantity = "TERMINAL_WITH_QUANTITY"
	IssueDanglingEdge     = "DANGLING_EDGE"
	IssueGenealogyCycle   = "GENEALOGY_CYCLE"
)

// batch ids per allocation query during verification
const verifyAllocationsChunk = 500

type Issue struct {
	Kind        string `json:"kind"`
	BatchID     uint64 `json:"batchId,omitempty"`
	BatchNumber string `json:"batchNumber,omitempty"`
	Detail      string `json:"detail"`
}

type VerifyReport struct {
	CheckedBatches int     `json:"checkedBatches"`
	CheckedEdges   int     `json:"checkedEdges"`
	Issues         []Issue `json:"issues"`
	OK             bool    `json:"ok"`
}

type ReportService interface {
	Summary(ctx context.Context) (*LedgerSummary, error)
	Verify(ctx context.Context) (*VerifyReport, error)
}

type reportService struct {
	store *Store
}

func NewReportService(store *Store) ReportService {
	return &reportService{store: store}
}

func (s *reportService) Summary(ctx context.Context) (*LedgerSummary, error) {
	db := s.store.DB.WithContext(ctx)

	byStatus, err := s.store.Batches.WithTx(db).CountByStatus()
	if err != nil {
		return nil, fmt.Errorf("count batches: %w", err)
	}
	active, err := s.store.Allocations.WithTx(db).CountActive()
	if err != nil {
		return nil, fmt.Errorf("count allocations: %w", err)
	}
	edges, err := s.store.Genealogy.WithTx(db).Count()
	if err != nil {
		return nil, fmt.Errorf("count genealogy edges: %w", err)
	}

	summary := &LedgerSummary{
		BatchesByStatus:   make(map[model.BatchStatus]int64, len(model.AllStatuses)),
		ActiveAllocations: active,
		GenealogyEdges:    edges,
	}
	for _, st := range model.AllStatuses {
		summary.BatchesByStatus[st] = byStatus[st]
		summary.TotalBatches += byStatus[st]
	}
	return summary, nil
}

// Verify re-checks the ledger rules against the stored data. It reads
// without locks, so a report taken under write load is a best effort.
func (s *reportService) Verify(ctx context.Context) (report *VerifyReport, err error) {
	ctx, span := startSpan(ctx, "ReportService.Verify")
	defer func() { endSpan(span, err) }()

	db := s.store.DB.WithContext(ctx)
	batches, err := s.store.Batches.WithTx(db).FindAll()
	if err != nil {
		return nil, fmt.Errorf("load batches: %w", err)
	}
	edges, err := s.store.Genealogy.WithTx(db).FindAll()
	if err != nil {
		return nil, fmt.Errorf("load genealogy edges: %w", err)
	}

	report = &VerifyReport{CheckedBatches: len(batches), CheckedEdges: len(edges), Issues: []Issue{}}
	byID := make(map[uint64]*model.Batch, len(batches))
	ids := make([]uint64, 0, len(batches))
	for i := range batches {
		byID[batches[i].ID] = &batches[i]
		ids = append(ids, batches[i].ID)
	}

	allocations := s.store.Allocations.WithTx(db)
	for start := 0; start < len(ids); start += verifyAllocationsChunk {
		end := start + verifyAllocationsChunk
		if end > len(ids) {
			end = len(ids)
		}
		totals, err := allocations.ActiveTotals(ids[start:end])
		if err != nil {
			return nil, fmt.Errorf("sum allocations: %w", err)
		}
		for _, id := range ids[start:end] {
			b := byID[id]
			if b.Quantity.IsNegative() {
				report.add(IssueNegativeQuantity, b, "quantity is %s", b.Quantity.String())
			}
			if totals[id].GreaterThan(b.Quantity) {
				report.add(IssueOverAllocated, b, "allocated %s exceeds quantity %s",
					totals[id].String(), b.Quantity.String())
			}
			if (b.Status == model.BatchSplit || b.Status == model.BatchMerged) && !b.Quantity.IsZero() {
				report.add(IssueTerminalQuantity, b, "%s batch still holds %s", b.Status, b.Quantity.String())
			}
		}
	}

	adjacency := make(map[uint64][]uint64)
	for _, e := range edges {
		if byID[e.SourceBatchID] == nil || byID[e.TargetBatchID] == nil {
			report.Issues = append(report.Issues, Issue{
				Kind:   IssueDanglingEdge,
				Detail: fmt.Sprintf("edge %d references a missing batch (%d -> %d)", e.ID, e.SourceBatchID, e.TargetBatchID),
			})
			continue
		}
		adjacency[e.SourceBatchID] = append(adjacency[e.SourceBatchID], e.TargetBatchID)
	}
	for _, id := range findCycleEntries(ids, adjacency) {
		report.add(IssueGenealogyCycle, byID[id], "batch is reachable from itself")
	}

	report.OK = len(report.Issues) == 0
	return report, nil
}

func (r *VerifyReport) add(kind string, b *model.Batch, format string, args ...interface{}) {
	r.Issues = append(r.Issues, Issue{
		Kind:        kind,
		BatchID:     b.ID,
		BatchNumber: b.BatchNumber,
		Detail:      fmt.Sprintf(format, args...),
	})
}

// findCycleEntries runs an iterative three-color DFS and returns the nodes
// at which a back edge closes a cycle
func findCycleEntries(nodes []uint64, adjacency map[uint64][]uint64) []uint64 {
	const (
		white = iota
		grey
		black
	)
	color := make(map[uint64]int, len(nodes))
	var found []uint64

	type frame struct {
		id   uint64
		next int
	}
	for _, start := range nodes {
		if color[start] != white {
			continue
		}
		stack := []frame{{id: start}}
		color[start] = grey
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			children := adjacency[top.id]
			if top.next == len(children) {
				color[top.id] = black
				stack = stack[:len(stack)-1]
				continue
			}
			child := children[top.next]
			top.next++
			switch color[child] {
			case white:
				color[child] = grey
				stack = append(stack, frame{id: child})
			case grey:
				found = append(found, child)
			}
		}
	}
	return found
}
