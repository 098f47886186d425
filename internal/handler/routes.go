package handler

import (
	"go-batch-ledger/internal/middleware"
	"go-batch-ledger/internal/model"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the ledger API on api. enforce switches the
// privilege checks on mutations.
func RegisterRoutes(api fiber.Router, batches *BatchHandler, ledger *LedgerHandler, enforce bool) {
	priv := func(code string) fiber.Handler {
		return middleware.RequirePrivilege(code, enforce)
	}

	// Batch store
	b := api.Group("/batches")
	b.Get("/", batches.GetBatches)
	b.Post("/", priv(model.PrivBatchCreate), batches.CreateBatch)
	b.Get("/number/:batchNumber", batches.GetBatchByNumber)
	b.Get("/:id", batches.GetBatch)
	b.Patch("/:id/status", priv(model.PrivBatchUpdate), batches.UpdateStatus)
	b.Patch("/:id/quantity", priv(model.PrivBatchUpdate), batches.AdjustQuantity)
	b.Get("/:id/adjustments", batches.GetAdjustments)
	b.Post("/:id/approve", priv(model.PrivQualityDecide), batches.Approve)
	b.Post("/:id/reject", priv(model.PrivQualityDecide), batches.Reject)
	b.Get("/:id/allocations", batches.GetBatchAllocations)

	api.Get("/order-lines/:orderLineId/allocations", batches.GetOrderLineAllocations)

	// Ledger operations
	l := api.Group("/ledger")
	l.Post("/split", priv(model.PrivBatchSplit), ledger.Split)
	l.Post("/merge", priv(model.PrivBatchMerge), ledger.Merge)
	l.Post("/allocate", priv(model.PrivAllocationCreate), ledger.Allocate)
	l.Post("/release/:allocationId", priv(model.PrivAllocationRelease), ledger.Release)
	l.Get("/availability/:batchId", ledger.Availability)
	l.Get("/genealogy/:batchId", ledger.Genealogy)
	l.Get("/ancestors/:batchId", ledger.Ancestors)
	l.Get("/descendants/:batchId", ledger.Descendants)
	l.Post("/produce", priv(model.PrivBatchProduce), ledger.Produce)
	l.Post("/links", priv(model.PrivGenealogyLink), ledger.Link)
	l.Get("/summary", ledger.Summary)
	l.Get("/verify", ledger.Verify)
	l.Get("/privileges", ledger.Privileges)
}
