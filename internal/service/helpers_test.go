package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"go-batch-ledger/internal/model"
	"go-batch-ledger/internal/repository"
	"go-batch-ledger/pkg/lock"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testActor = "tester@example.com"

func setupStore(t *testing.T) *Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	// One connection keeps the in-memory database alive and serializes
	// writers the way SQLite expects.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := repository.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return NewStore(db, lock.NewLocalLocker())
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func mustCreateBatch(t *testing.T, store *Store, number, material, qty string) *model.Batch {
	t.Helper()
	svc := NewBatchService(store, nil)
	b, err := svc.Create(context.Background(), &CreateBatchRequest{
		BatchNumber:  number,
		MaterialID:   material,
		MaterialName: "Material " + material,
		Quantity:     dec(qty),
		Unit:         "kg",
	}, testActor)
	if err != nil {
		t.Fatalf("Failed to create batch %s: %v", number, err)
	}
	return b
}

func mustGetBatch(t *testing.T, store *Store, id uint64) *model.Batch {
	t.Helper()
	b, err := store.Batches.FindByID(id)
	if err != nil {
		t.Fatalf("Failed to load batch %d: %v", id, err)
	}
	return b
}

func mustAllocate(t *testing.T, store *Store, batchID uint64, orderLine, qty string) *model.Allocation {
	t.Helper()
	a, err := NewAllocationService(store, nil).Allocate(context.Background(), &AllocateRequest{
		BatchID:     batchID,
		OrderLineID: orderLine,
		Quantity:    dec(qty),
	}, testActor)
	if err != nil {
		t.Fatalf("Failed to allocate %s on batch %d: %v", qty, batchID, err)
	}
	return a
}

func assertQuantity(t *testing.T, label string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Errorf("Expected %s %s, got %s", label, want, got.String())
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.LedgerEvent
}

func (p *recordingPublisher) Publish(event model.LedgerEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}
