package service

import (
	"context"
	"errors"
	"testing"

	"go-batch-ledger/internal/model"
)

func TestSuffixFor(t *testing.T) {
	testCases := []struct {
		index int
		want  string
	}{
		{0, "A"},
		{1, "B"},
		{25, "Z"},
		{26, "AA"},
		{27, "AB"},
		{51, "AZ"},
		{52, "BA"},
		{701, "ZZ"},
		{702, "AAA"},
	}
	for _, tc := range testCases {
		if got := suffixFor(tc.index); got != tc.want {
			t.Errorf("suffixFor(%d): expected %s, got %s", tc.index, tc.want, got)
		}
	}
}

func TestSplit_WholeQuantityRetiresSource(t *testing.T) {
	store := setupStore(t)
	pub := &recordingPublisher{}
	source := mustCreateBatch(t, store, "B-001", "RM-1", "500")

	res, err := NewSplitService(store, pub).Split(context.Background(), &SplitRequest{
		SourceBatchID: source.ID,
		Portions: []SplitPortion{
			{Quantity: dec("200")},
			{Quantity: dec("300")},
		},
		Reason: "repack",
	}, testActor)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	if len(res.NewBatches) != 2 {
		t.Fatalf("Expected 2 new batches, got %d", len(res.NewBatches))
	}
	if res.NewBatches[0].BatchNumber != "B-001-A" || res.NewBatches[1].BatchNumber != "B-001-B" {
		t.Errorf("Expected B-001-A and B-001-B, got %s and %s",
			res.NewBatches[0].BatchNumber, res.NewBatches[1].BatchNumber)
	}
	assertQuantity(t, "first portion", res.NewBatches[0].Quantity, "200")
	assertQuantity(t, "second portion", res.NewBatches[1].Quantity, "300")
	assertQuantity(t, "original quantity", res.OriginalQuantity, "500")
	assertQuantity(t, "remaining quantity", res.RemainingQuantity, "0")
	if res.Status != model.BatchSplit {
		t.Errorf("Expected result status SPLIT, got %s", res.Status)
	}

	for _, nb := range res.NewBatches {
		if nb.Status != model.BatchAvailable || nb.CreatedVia != model.CreatedBySplit {
			t.Errorf("Expected new batch AVAILABLE via SPLIT, got %s via %s", nb.Status, nb.CreatedVia)
		}
		if nb.MaterialID != "RM-1" || nb.Unit != "kg" {
			t.Errorf("Expected material and unit copied, got %s %s", nb.MaterialID, nb.Unit)
		}
	}

	stored := mustGetBatch(t, store, source.ID)
	if stored.Status != model.BatchSplit {
		t.Errorf("Expected source status SPLIT, got %s", stored.Status)
	}
	assertQuantity(t, "source quantity", stored.Quantity, "0")

	edges, err := store.Genealogy.ChildEdges([]uint64{source.ID})
	if err != nil {
		t.Fatalf("ChildEdges failed: %v", err)
	}
	if len(edges) != 2 {
		t.Fatalf("Expected 2 split edges, got %d", len(edges))
	}
	for _, e := range edges {
		if e.RelationKind != model.RelationSplit {
			t.Errorf("Expected SPLIT edge, got %s", e.RelationKind)
		}
	}

	if got := pub.types(); len(got) != 1 || got[0] != model.EventBatchSplit {
		t.Errorf("Expected one batch_split event, got %v", got)
	}
}

func TestSplit_PartialKeepsRemainder(t *testing.T) {
	store := setupStore(t)
	source := mustCreateBatch(t, store, "B-010", "RM-1", "100.5")

	res, err := NewSplitService(store, nil).Split(context.Background(), &SplitRequest{
		SourceBatchID: source.ID,
		Portions: []SplitPortion{
			{Quantity: dec("40.25"), BatchNumberSuffix: "X1"},
		},
	}, testActor)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	if res.NewBatches[0].BatchNumber != "B-010-X1" {
		t.Errorf("Expected B-010-X1, got %s", res.NewBatches[0].BatchNumber)
	}
	assertQuantity(t, "remaining quantity", res.RemainingQuantity, "60.25")
	if res.Status != model.BatchAvailable {
		t.Errorf("Expected source to stay AVAILABLE, got %s", res.Status)
	}

	stored := mustGetBatch(t, store, source.ID)
	assertQuantity(t, "source quantity", stored.Quantity, "60.25")
	if stored.Version != source.Version+1 {
		t.Errorf("Expected version %d, got %d", source.Version+1, stored.Version)
	}
}

func TestSplit_Rejections(t *testing.T) {
	testCases := []struct {
		name     string
		portions []SplitPortion
		prepare  func(t *testing.T, store *Store, b *model.Batch)
	}{
		{
			name:     "empty portions",
			portions: nil,
		},
		{
			name:     "zero portion",
			portions: []SplitPortion{{Quantity: dec("0")}},
		},
		{
			name:     "negative portion",
			portions: []SplitPortion{{Quantity: dec("-5")}},
		},
		{
			name:     "over quantity",
			portions: []SplitPortion{{Quantity: dec("60")}, {Quantity: dec("50")}},
		},
		{
			name:     "portions finer than stored scale",
			portions: []SplitPortion{{Quantity: dec("33.3333333")}, {Quantity: dec("33.3333333")}, {Quantity: dec("33.3333334")}},
		},
		{
			name:     "portion rounds to zero",
			portions: []SplitPortion{{Quantity: dec("0.0000001")}},
		},
		{
			name:     "duplicate suffix",
			portions: []SplitPortion{{Quantity: dec("10"), BatchNumberSuffix: "P"}, {Quantity: dec("10"), BatchNumberSuffix: "P"}},
		},
		{
			name:     "active allocation",
			portions: []SplitPortion{{Quantity: dec("10")}},
			prepare: func(t *testing.T, store *Store, b *model.Batch) {
				mustAllocate(t, store, b.ID, "OL-1", "5")
			},
		},
		{
			name:     "source not available",
			portions: []SplitPortion{{Quantity: dec("10")}},
			prepare: func(t *testing.T, store *Store, b *model.Batch) {
				if _, err := NewBatchService(store, nil).UpdateStatus(context.Background(), b.ID, model.BatchBlocked, testActor); err != nil {
					t.Fatalf("UpdateStatus failed: %v", err)
				}
			},
		},
		{
			name:     "resulting number taken",
			portions: []SplitPortion{{Quantity: dec("10")}},
			prepare: func(t *testing.T, store *Store, b *model.Batch) {
				mustCreateBatch(t, store, b.BatchNumber+"-A", "RM-9", "1")
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := setupStore(t)
			source := mustCreateBatch(t, store, "B-020", "RM-1", "100")
			if tc.prepare != nil {
				tc.prepare(t, store, source)
			}
			before := mustGetBatch(t, store, source.ID)

			_, err := NewSplitService(store, nil).Split(context.Background(), &SplitRequest{
				SourceBatchID: source.ID,
				Portions:      tc.portions,
			}, testActor)

			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}

			after := mustGetBatch(t, store, source.ID)
			if after.Version != before.Version || !after.Quantity.Equal(before.Quantity) || after.Status != before.Status {
				t.Errorf("Expected source untouched, got version %d quantity %s status %s",
					after.Version, after.Quantity.String(), after.Status)
			}
			edges, _ := store.Genealogy.ChildEdges([]uint64{source.ID})
			if len(edges) != 0 {
				t.Errorf("Expected no edges, got %d", len(edges))
			}
		})
	}
}

func TestSplit_UnknownSource(t *testing.T) {
	store := setupStore(t)
	_, err := NewSplitService(store, nil).Split(context.Background(), &SplitRequest{
		SourceBatchID: 999,
		Portions:      []SplitPortion{{Quantity: dec("1")}},
	}, testActor)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestSplit_TerminalSourceCannotBeSplitAgain(t *testing.T) {
	store := setupStore(t)
	source := mustCreateBatch(t, store, "B-030", "RM-1", "10")
	svc := NewSplitService(store, nil)

	req := &SplitRequest{SourceBatchID: source.ID, Portions: []SplitPortion{{Quantity: dec("10")}}}
	if _, err := svc.Split(context.Background(), req, testActor); err != nil {
		t.Fatalf("First split failed: %v", err)
	}
	_, err := svc.Split(context.Background(), &SplitRequest{
		SourceBatchID: source.ID,
		Portions:      []SplitPortion{{Quantity: dec("1"), BatchNumberSuffix: "Z"}},
	}, testActor)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Expected ValidationError for SPLIT source, got %v", err)
	}
}
