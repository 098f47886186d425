package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"go-batch-ledger/internal/middleware"
	"go-batch-ledger/internal/model"
	"go-batch-ledger/internal/repository"
	"go-batch-ledger/internal/service"
	"go-batch-ledger/pkg/idgen"
	"go-batch-ledger/pkg/lock"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupApp(t *testing.T) *fiber.App {
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
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := repository.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	gen, err := idgen.NewSnowflake(1)
	if err != nil {
		t.Fatalf("NewSnowflake failed: %v", err)
	}
	store := service.NewStore(db, lock.NewLocalLocker())
	allocations := service.NewAllocationService(store, nil)

	batchHandler := NewBatchHandler(service.NewBatchService(store, nil), allocations)
	ledgerHandler := NewLedgerHandler(
		service.NewSplitService(store, nil),
		service.NewMergeService(store, gen, nil),
		allocations,
		service.NewAvailabilityCalculator(store),
		service.NewGenealogyService(store, nil),
		service.NewReportService(store),
	)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	api := app.Group("/api/v1", middleware.Authenticate([]byte("handler-test"), false))
	RegisterRoutes(api, batchHandler, ledgerHandler, false)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

func decodeInto(t *testing.T, raw []byte, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("Failed to decode %s: %v", raw, err)
	}
}

func createBatch(t *testing.T, app *fiber.App, number, material string, qty float64) model.Batch {
	t.Helper()
	status, raw := doJSON(t, app, http.MethodPost, "/api/v1/batches", map[string]interface{}{
		"batchNumber": number,
		"materialId":  material,
		"quantity":    qty,
		"unit":        "kg",
	})
	if status != 201 {
		t.Fatalf("Expected 201 creating %s, got %d: %s", number, status, raw)
	}
	var b model.Batch
	decodeInto(t, raw, &b)
	return b
}

type errorBody struct {
	Message   string          `json:"message"`
	Code      string          `json:"code"`
	Requested decimal.Decimal `json:"requested"`
	Available decimal.Decimal `json:"available"`
}

func TestSplitEndpoint(t *testing.T) {
	app := setupApp(t)
	source := createBatch(t, app, "B-001", "RM-1", 500)

	status, raw := doJSON(t, app, http.MethodPost, "/api/v1/ledger/split", map[string]interface{}{
		"sourceBatchId": source.ID,
		"portions": []map[string]interface{}{
			{"quantity": 200},
			{"quantity": 300},
		},
		"reason": "repack",
	})
	if status != 201 {
		t.Fatalf("Expected 201, got %d: %s", status, raw)
	}

	var res service.SplitResult
	decodeInto(t, raw, &res)
	if res.SourceBatchNumber != "B-001" || len(res.NewBatches) != 2 || res.Status != model.BatchSplit {
		t.Errorf("Unexpected split result: %+v", res)
	}
	if !res.RemainingQuantity.IsZero() {
		t.Errorf("Expected remaining 0, got %s", res.RemainingQuantity)
	}

	status, raw = doJSON(t, app, http.MethodPost, "/api/v1/ledger/split", map[string]interface{}{
		"sourceBatchId": source.ID,
		"portions":      []map[string]interface{}{{"quantity": 1, "batchNumberSuffix": "Z"}},
	})
	var eb errorBody
	decodeInto(t, raw, &eb)
	if status != 400 || eb.Code != codeValidation {
		t.Errorf("Expected 400 VALIDATION_ERROR, got %d %s", status, eb.Code)
	}
}

func TestMergeEndpoint_MaterialMismatch(t *testing.T) {
	app := setupApp(t)
	a := createBatch(t, app, "B-002", "RM-1", 300)
	b := createBatch(t, app, "B-004", "RM-2", 200)

	status, raw := doJSON(t, app, http.MethodPost, "/api/v1/ledger/merge", map[string]interface{}{
		"sourceBatchIds": []uint64{a.ID, b.ID},
	})
	var eb errorBody
	decodeInto(t, raw, &eb)
	if status != 400 || eb.Message != "material mismatch" {
		t.Fatalf("Expected 400 material mismatch, got %d %s", status, raw)
	}
}

func TestAllocationEndpoints(t *testing.T) {
	app := setupApp(t)
	batch := createBatch(t, app, "B-500", "RM-1", 500)

	status, raw := doJSON(t, app, http.MethodPost, "/api/v1/ledger/allocate", map[string]interface{}{
		"batchId":     batch.ID,
		"orderLineId": "OL-1",
		"quantity":    500,
	})
	if status != 201 {
		t.Fatalf("Expected 201, got %d: %s", status, raw)
	}
	var alloc model.Allocation
	decodeInto(t, raw, &alloc)

	status, raw = doJSON(t, app, http.MethodPost, "/api/v1/ledger/allocate", map[string]interface{}{
		"batchId":     batch.ID,
		"orderLineId": "OL-2",
		"quantity":    1,
	})
	var eb errorBody
	decodeInto(t, raw, &eb)
	if status != 409 || eb.Code != codeInsufficient {
		t.Fatalf("Expected 409 INSUFFICIENT_QUANTITY, got %d %s", status, raw)
	}
	if !eb.Requested.Equal(decimal.NewFromInt(1)) || !eb.Available.IsZero() {
		t.Errorf("Expected requested 1 available 0, got %s %s", eb.Requested, eb.Available)
	}

	status, raw = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/v1/ledger/availability/%d", batch.ID), nil)
	if status != 200 {
		t.Fatalf("Expected 200, got %d", status)
	}
	var av service.Availability
	decodeInto(t, raw, &av)
	if !av.FullyAllocated || !av.AllocatedQuantity.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Expected fully allocated 500, got %+v", av)
	}

	releasePath := fmt.Sprintf("/api/v1/ledger/release/%d", alloc.ID)
	if status, raw = doJSON(t, app, http.MethodPost, releasePath, nil); status != 204 {
		t.Fatalf("Expected 204, got %d: %s", status, raw)
	}
	if status, _ = doJSON(t, app, http.MethodPost, releasePath, nil); status != 400 {
		t.Errorf("Expected 400 on second release, got %d", status)
	}
	if status, _ = doJSON(t, app, http.MethodPost, "/api/v1/ledger/release/999", nil); status != 404 {
		t.Errorf("Expected 404 for unknown allocation, got %d", status)
	}
	if status, _ = doJSON(t, app, http.MethodPost, "/api/v1/ledger/release/abc", nil); status != 400 {
		t.Errorf("Expected 400 for malformed id, got %d", status)
	}

	status, raw = doJSON(t, app, http.MethodGet, "/api/v1/order-lines/OL-1/allocations", nil)
	var list []model.Allocation
	decodeInto(t, raw, &list)
	if status != 200 || len(list) != 1 || list[0].Status != model.AllocationReleased {
		t.Errorf("Expected one released allocation for OL-1, got %d %s", status, raw)
	}
}

func TestBatchEndpoints(t *testing.T) {
	app := setupApp(t)
	batch := createBatch(t, app, "B-700", "RM-1", 100)

	status, raw := doJSON(t, app, http.MethodGet, "/api/v1/batches/number/B-700", nil)
	if status != 200 {
		t.Fatalf("Expected 200, got %d: %s", status, raw)
	}

	status, raw = doJSON(t, app, http.MethodPatch, fmt.Sprintf("/api/v1/batches/%d/quantity", batch.ID), map[string]interface{}{
		"newQuantity":    95,
		"adjustmentType": "DAMAGE",
		"reason":         "short",
	})
	if status != 400 {
		t.Errorf("Expected 400 for short reason, got %d: %s", status, raw)
	}

	status, raw = doJSON(t, app, http.MethodPatch, fmt.Sprintf("/api/v1/batches/%d/quantity", batch.ID), map[string]interface{}{
		"newQuantity":    95,
		"adjustmentType": "DAMAGE",
		"reason":         "torn bag during unloading",
	})
	if status != 200 {
		t.Fatalf("Expected 200, got %d: %s", status, raw)
	}
	var adj model.QuantityAdjustment
	decodeInto(t, raw, &adj)
	if !adj.Delta.Equal(decimal.NewFromInt(-5)) {
		t.Errorf("Expected delta -5, got %s", adj.Delta)
	}

	status, raw = doJSON(t, app, http.MethodPatch, fmt.Sprintf("/api/v1/batches/%d/status", batch.ID), map[string]interface{}{
		"status": "CONSUMED",
	})
	if status != 200 {
		t.Fatalf("Expected 200, got %d: %s", status, raw)
	}
	status, raw = doJSON(t, app, http.MethodPatch, fmt.Sprintf("/api/v1/batches/%d/status", batch.ID), map[string]interface{}{
		"status": "AVAILABLE",
	})
	var eb errorBody
	decodeInto(t, raw, &eb)
	if status != 409 || eb.Code != codeTransition {
		t.Errorf("Expected 409 INVALID_TRANSITION, got %d %s", status, raw)
	}

	if status, _ = doJSON(t, app, http.MethodGet, "/api/v1/batches/424242", nil); status != 404 {
		t.Errorf("Expected 404, got %d", status)
	}

	status, raw = doJSON(t, app, http.MethodGet, "/api/v1/batches?materialId=RM-1", nil)
	var page struct {
		Data  []model.Batch `json:"data"`
		Total int64         `json:"total"`
	}
	decodeInto(t, raw, &page)
	if status != 200 || page.Total != 1 || len(page.Data) != 1 {
		t.Errorf("Expected one listed batch, got %d %s", status, raw)
	}
}

func TestGenealogyEndpoints(t *testing.T) {
	app := setupApp(t)
	a := createBatch(t, app, "B-002", "RM-1", 300)
	b := createBatch(t, app, "B-003", "RM-1", 200)

	status, raw := doJSON(t, app, http.MethodPost, "/api/v1/ledger/merge", map[string]interface{}{
		"sourceBatchIds": []uint64{a.ID, b.ID},
	})
	if status != 201 {
		t.Fatalf("Expected 201, got %d: %s", status, raw)
	}
	var merged service.MergeResult
	decodeInto(t, raw, &merged)
	if !merged.TotalQuantity.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Expected total 500, got %s", merged.TotalQuantity)
	}

	status, raw = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/v1/ledger/genealogy/%d", merged.MergedBatch.ID), nil)
	if status != 200 {
		t.Fatalf("Expected 200, got %d: %s", status, raw)
	}
	var view service.GenealogyView
	decodeInto(t, raw, &view)
	if len(view.ParentBatches) != 2 || len(view.ChildBatches) != 0 {
		t.Errorf("Expected 2 parents and no children, got %d and %d", len(view.ParentBatches), len(view.ChildBatches))
	}

	status, raw = doJSON(t, app, http.MethodPost, "/api/v1/ledger/links", map[string]interface{}{
		"sourceBatchId": merged.MergedBatch.ID,
		"targetBatchId": a.ID,
		"quantity":      1,
		"reason":        "wrong direction on purpose",
	})
	var eb errorBody
	decodeInto(t, raw, &eb)
	if status != 409 || eb.Code != codeCycle {
		t.Errorf("Expected 409 CYCLE_DETECTED, got %d %s", status, raw)
	}

	status, raw = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/v1/ledger/descendants/%d?depth=1", a.ID), nil)
	var tree struct {
		Nodes []service.LineageNode `json:"nodes"`
	}
	decodeInto(t, raw, &tree)
	if status != 200 || len(tree.Nodes) != 1 || tree.Nodes[0].BatchID != merged.MergedBatch.ID {
		t.Errorf("Expected merged batch as only descendant, got %d %s", status, raw)
	}

	if status, raw = doJSON(t, app, http.MethodGet, "/api/v1/ledger/verify", nil); status != 200 {
		t.Errorf("Expected 200 from verify, got %d: %s", status, raw)
	}
}

func TestUnknownRoute(t *testing.T) {
	app := setupApp(t)
	status, raw := doJSON(t, app, http.MethodGet, "/api/v1/nothing-here", nil)
	var eb errorBody
	decodeInto(t, raw, &eb)
	if status != 404 || eb.Code != codeNotFound {
		t.Errorf("Expected 404 NOT_FOUND, got %d %s", status, raw)
	}
}

func TestPrivilegesEndpoint(t *testing.T) {
	app := setupApp(t)
	status, raw := doJSON(t, app, http.MethodGet, "/api/v1/ledger/privileges", nil)
	if status != 200 {
		t.Fatalf("Expected 200, got %d: %s", status, raw)
	}

	var privileges []model.Privilege
	decodeInto(t, raw, &privileges)
	if len(privileges) != len(model.DefaultPrivileges) {
		t.Fatalf("Expected %d privileges, got %d", len(model.DefaultPrivileges), len(privileges))
	}
	codes := map[string]bool{}
	for _, p := range privileges {
		codes[p.Code] = true
	}
	for _, want := range []string{model.PrivBatchSplit, model.PrivBatchMerge, model.PrivAllocationCreate, model.PrivGenealogyLink} {
		if !codes[want] {
			t.Errorf("Expected privilege %s in listing", want)
		}
	}
}
